package run

import (
	"github.com/lunixbochs/x86emu/go/cmd"
)

func Main(args []string) int {
	return cmd.NewCmd(args[0]).Run(args)
}

func init() { cmd.Register("run", "execute a program (.com, or .bin loaded at 0x7c00)", Main) }
