package x86

import "github.com/lunixbochs/x86emu/go/models"

// Arch names the machine's registers for traces, savestates and the
// command line.
var Arch = &models.Arch{
	Name: "x86",
	Bits: 32,
	PC:   EIP,
	SP:   ESP,
	Regs: map[string]int{
		"eax": EAX, "ecx": ECX, "edx": EDX, "ebx": EBX,
		"esp": ESP, "ebp": EBP, "esi": ESI, "edi": EDI,
		"eip":    EIP,
		"eflags": EFLAGS,

		"es": RegES, "cs": RegCS, "ss": RegSS,
		"ds": RegDS, "fs": RegFS, "gs": RegGS,

		"cr0": RegCR0, "cr2": RegCR2, "cr3": RegCR3, "cr4": RegCR4,

		"dr0": RegDR0, "dr1": RegDR1, "dr2": RegDR2, "dr3": RegDR3,
		"dr4": RegDR4, "dr5": RegDR5, "dr6": RegDR6, "dr7": RegDR7,

		"gdtr": RegGDTR,
		"idtr": RegIDTR,
	},
	DefaultRegs: []string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"eip", "eflags", "cs", "ds", "es", "ss",
	},
}
