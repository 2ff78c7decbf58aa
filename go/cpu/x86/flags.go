package x86

import (
	"math/bits"
)

const (
	FlagCF = 1 << 0
	FlagPF = 1 << 2
	FlagAF = 1 << 4
	FlagZF = 1 << 6
	FlagSF = 1 << 7
	FlagTF = 1 << 8
	FlagIF = 1 << 9
	FlagDF = 1 << 10
	FlagOF = 1 << 11

	flagsArith = FlagCF | FlagPF | FlagAF | FlagZF | FlagSF | FlagOF
	// bit 1 always reads as set
	flagsFixed = 1 << 1
)

type word interface {
	~uint8 | ~uint16 | ~uint32
}

// integer covers every operand value width a handler can take.
type integer interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func widthOf[T integer]() int {
	return bits.Len64(uint64(^T(0))) / 8
}

func signBit[T word]() T {
	return ^(^T(0) >> 1)
}

func signExtend[T word](v T) uint32 {
	switch widthOf[T]() {
	case 1:
		return uint32(int32(int8(v)))
	case 2:
		return uint32(int32(int16(v)))
	}
	return uint32(v)
}

func parity(v uint8) bool {
	return bits.OnesCount8(v)&1 == 0
}

func (m *Machine) flag(f uint32) bool { return m.EFLAGS&f != 0 }

func (m *Machine) setFlag(f uint32, on bool) {
	if on {
		m.EFLAGS |= f
	} else {
		m.EFLAGS &^= f
	}
}

func (m *Machine) carry() uint32 { return m.EFLAGS & FlagCF }

// setSZP sets SF, ZF and PF from res and clears the flags in clear.
func setSZP[T word](m *Machine, res T, clear uint32) {
	f := m.EFLAGS &^ (FlagSF | FlagZF | FlagPF | clear)
	if res == 0 {
		f |= FlagZF
	}
	if res&signBit[T]() != 0 {
		f |= FlagSF
	}
	if parity(uint8(res)) {
		f |= FlagPF
	}
	m.EFLAGS = f
}

func flagsLogic[T word](m *Machine, res T) {
	setSZP(m, res, FlagCF|FlagOF|FlagAF)
}

func flagsAdd[T word](m *Machine, a, b, c, res T) {
	setSZP(m, res, FlagCF|FlagOF|FlagAF)
	if uint64(a)+uint64(b)+uint64(c) > uint64(^T(0)) {
		m.EFLAGS |= FlagCF
	}
	if (a^res)&(b^res)&signBit[T]() != 0 {
		m.EFLAGS |= FlagOF
	}
	if (a^b^res)&0x10 != 0 {
		m.EFLAGS |= FlagAF
	}
}

func flagsSub[T word](m *Machine, a, b, c, res T) {
	setSZP(m, res, FlagCF|FlagOF|FlagAF)
	if uint64(a) < uint64(b)+uint64(c) {
		m.EFLAGS |= FlagCF
	}
	if (a^b)&(a^res)&signBit[T]() != 0 {
		m.EFLAGS |= FlagOF
	}
	if (a^b^res)&0x10 != 0 {
		m.EFLAGS |= FlagAF
	}
}

// conditions for Jcc/SETcc, indexed by the low opcode nibble
var conditions = [16]func(f uint32) bool{
	func(f uint32) bool { return f&FlagOF != 0 },
	func(f uint32) bool { return f&FlagOF == 0 },
	func(f uint32) bool { return f&FlagCF != 0 },
	func(f uint32) bool { return f&FlagCF == 0 },
	func(f uint32) bool { return f&FlagZF != 0 },
	func(f uint32) bool { return f&FlagZF == 0 },
	func(f uint32) bool { return f&(FlagCF|FlagZF) != 0 },
	func(f uint32) bool { return f&(FlagCF|FlagZF) == 0 },
	func(f uint32) bool { return f&FlagSF != 0 },
	func(f uint32) bool { return f&FlagSF == 0 },
	func(f uint32) bool { return f&FlagPF != 0 },
	func(f uint32) bool { return f&FlagPF == 0 },
	func(f uint32) bool { return (f&FlagSF != 0) != (f&FlagOF != 0) },
	func(f uint32) bool { return (f&FlagSF != 0) == (f&FlagOF != 0) },
	func(f uint32) bool { return f&FlagZF != 0 || (f&FlagSF != 0) != (f&FlagOF != 0) },
	func(f uint32) bool { return f&FlagZF == 0 && (f&FlagSF != 0) == (f&FlagOF != 0) },
}

var conditionNames = [16]string{"o", "no", "b", "ae", "e", "ne", "be", "a", "s", "ns", "p", "np", "l", "ge", "le", "g"}
