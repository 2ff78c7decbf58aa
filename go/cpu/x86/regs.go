package x86

// general register indexes, also the RegRead/RegWrite enums for them
const (
	EAX = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

// segment register indexes (Regs.Seg)
const (
	ES = iota
	CS
	SS
	DS
	FS
	GS
)

// RegRead/RegWrite enums beyond the general registers
const (
	EIP = iota + 8
	EFLAGS
	RegES
	RegCS
	RegSS
	RegDS
	RegFS
	RegGS
	RegCR0
	RegCR2
	RegCR3
	RegCR4
	RegDR0
	RegDR1
	RegDR2
	RegDR3
	RegDR4
	RegDR5
	RegDR6
	RegDR7
	// descriptor table registers read as base | limit<<32
	RegGDTR
	RegIDTR
)

const (
	CR0_PE = 1 << 0
	CR0_TS = 1 << 3
	CR0_PG = 1 << 31
)

// Regs is the architectural register file.
type Regs struct {
	R      [8]uint32
	EIP    uint32
	EFLAGS uint32
	Seg    [6]uint16
	CR     [5]uint32
	DR     [8]uint32
	FPU    FPU
}

func (r *Regs) Reg8(i int) uint8 {
	if i < 4 {
		return uint8(r.R[i])
	}
	return uint8(r.R[i-4] >> 8)
}

func (r *Regs) SetReg8(i int, v uint8) {
	if i < 4 {
		r.R[i] = r.R[i]&^0xff | uint32(v)
	} else {
		r.R[i-4] = r.R[i-4]&^0xff00 | uint32(v)<<8
	}
}

func (r *Regs) Reg16(i int) uint16 { return uint16(r.R[i]) }

func (r *Regs) SetReg16(i int, v uint16) {
	r.R[i] = r.R[i]&^0xffff | uint32(v)
}

// FPU is the x87 register stack. Values are kept as float64.
type FPU struct {
	ST     [8]float64
	Top    int
	Status uint16
	Ctrl   uint16
	Tags   uint8 // bit i set: physical register i is empty
}

const (
	fpuC0 = 1 << 8
	fpuC1 = 1 << 9
	fpuC2 = 1 << 10
	fpuC3 = 1 << 14
	fpuIE = 1 << 0
	fpuSF = 1 << 6
	fpuZE = 1 << 2
)

func (f *FPU) Reset() {
	*f = FPU{Ctrl: 0x037f, Tags: 0xff}
}

// Phys maps ST(i) to a physical register index.
func (f *FPU) Phys(i int) int { return (f.Top + i) & 7 }

func (f *FPU) Get(i int) float64 { return f.ST[f.Phys(i)] }

func (f *FPU) Set(i int, v float64) {
	p := f.Phys(i)
	f.ST[p] = v
	f.Tags &^= 1 << uint(p)
}

func (f *FPU) Push(v float64) {
	f.Top = (f.Top - 1) & 7
	if f.Tags&(1<<uint(f.Top)) == 0 {
		f.Status |= fpuIE | fpuSF | fpuC1
	}
	f.Set(0, v)
}

func (f *FPU) Pop() float64 {
	v := f.ST[f.Top]
	f.Tags |= 1 << uint(f.Top)
	f.Top = (f.Top + 1) & 7
	return v
}

// StatusWord merges the stack top into the status register.
func (f *FPU) StatusWord() uint16 {
	return f.Status&^0x3800 | uint16(f.Top)<<11
}
