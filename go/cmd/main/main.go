package main

import (
	"github.com/lunixbochs/x86emu/go/cmd"

	_ "github.com/lunixbochs/x86emu/go/cmd/run"

	_ "github.com/lunixbochs/x86emu/go/cmd/com"
	_ "github.com/lunixbochs/x86emu/go/cmd/multi"
	_ "github.com/lunixbochs/x86emu/go/cmd/opcodes"
)

func main() { cmd.Main() }
