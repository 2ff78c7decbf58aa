package com

import (
	"github.com/lunixbochs/x86emu/go/cmd"
)

// Main runs a DOS .COM program whatever its file name.
func Main(args []string) int {
	c := cmd.NewCmd(args[0])
	c.Format = "com"
	return c.Run(args)
}

func init() { cmd.Register("com", "execute a DOS .COM program", Main) }
