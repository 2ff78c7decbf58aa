package x86

// String instructions are generic over the element type T and the index
// width A (SI/DI/CX or ESI/EDI/ECX). With a REP prefix the whole loop runs in
// one step; registers are updated every iteration so a fault can restart it.

type index interface {
	~uint16 | ~uint32
}

func getIdx[A index](m *Machine, r int) uint32 {
	return uint32(A(m.R[r]))
}

func addIdx[A index](m *Machine, r int, d uint32) {
	v := A(m.R[r]) + A(d)
	m.R[r] = m.R[r]&^uint32(^A(0)) | uint32(v)
}

func strDelta[T word](m *Machine) uint32 {
	if m.flag(FlagDF) {
		return -uint32(widthOf[T]())
	}
	return uint32(widthOf[T]())
}

// repeat runs body once, or CX times under REP. body returns false to end a
// REPE/REPNE loop early.
func repeat[A index](m *Machine, body func() bool) {
	if m.rep == repNone {
		body()
		return
	}
	for getIdx[A](m, ECX) != 0 {
		more := body()
		addIdx[A](m, ECX, ^uint32(0))
		if !more {
			return
		}
	}
}

// repCond reports whether a REPE/REPNE compare loop continues.
func (m *Machine) repCond() bool {
	switch m.rep {
	case repE:
		return m.flag(FlagZF)
	case repNE:
		return !m.flag(FlagZF)
	}
	return true
}

func movs[T word, A index](m *Machine) {
	src := m.segOr(DS)
	repeat[A](m, func() bool {
		v := readT[T](m, m.linear(src, getIdx[A](m, ESI)))
		writeT(m, m.linear(ES, getIdx[A](m, EDI)), v)
		d := strDelta[T](m)
		addIdx[A](m, ESI, d)
		addIdx[A](m, EDI, d)
		return true
	})
}

func stos[T word, A index](m *Machine) {
	v := T(m.R[EAX])
	repeat[A](m, func() bool {
		writeT(m, m.linear(ES, getIdx[A](m, EDI)), v)
		addIdx[A](m, EDI, strDelta[T](m))
		return true
	})
}

func lods[T word, A index](m *Machine) {
	src := m.segOr(DS)
	repeat[A](m, func() bool {
		putAcc(m, readT[T](m, m.linear(src, getIdx[A](m, ESI))))
		addIdx[A](m, ESI, strDelta[T](m))
		return true
	})
}

func cmps[T word, A index](m *Machine) {
	src := m.segOr(DS)
	repeat[A](m, func() bool {
		a := readT[T](m, m.linear(src, getIdx[A](m, ESI)))
		b := readT[T](m, m.linear(ES, getIdx[A](m, EDI)))
		cmpOp(m, a, b)
		d := strDelta[T](m)
		addIdx[A](m, ESI, d)
		addIdx[A](m, EDI, d)
		return m.repCond()
	})
}

func scas[T word, A index](m *Machine) {
	repeat[A](m, func() bool {
		b := readT[T](m, m.linear(ES, getIdx[A](m, EDI)))
		cmpOp(m, T(m.R[EAX]), b)
		addIdx[A](m, EDI, strDelta[T](m))
		return m.repCond()
	})
}

func ins[T word, A index](m *Machine) {
	port := m.Reg16(EDX)
	repeat[A](m, func() bool {
		v := T(m.portIn(port, widthOf[T]()))
		writeT(m, m.linear(ES, getIdx[A](m, EDI)), v)
		addIdx[A](m, EDI, strDelta[T](m))
		return true
	})
}

func outs[T word, A index](m *Machine) {
	src := m.segOr(DS)
	port := m.Reg16(EDX)
	repeat[A](m, func() bool {
		v := readT[T](m, m.linear(src, getIdx[A](m, ESI)))
		m.portOut(port, widthOf[T](), uint32(v))
		addIdx[A](m, ESI, strDelta[T](m))
		return true
	})
}

// stringOp holds the handlers of one string instruction. Byte forms share a
// handler across operand sizes.
type stringOp struct {
	name string
	base byte
	b    [2]interface{} // by address size
	w    [4]interface{} // by slot
}

var stringOps = []stringOp{
	{"movs", 0xa4,
		[2]interface{}{movs[uint8, uint16], movs[uint8, uint32]},
		[4]interface{}{movs[uint16, uint16], movs[uint32, uint16], movs[uint16, uint32], movs[uint32, uint32]}},
	{"cmps", 0xa6,
		[2]interface{}{cmps[uint8, uint16], cmps[uint8, uint32]},
		[4]interface{}{cmps[uint16, uint16], cmps[uint32, uint16], cmps[uint16, uint32], cmps[uint32, uint32]}},
	{"stos", 0xaa,
		[2]interface{}{stos[uint8, uint16], stos[uint8, uint32]},
		[4]interface{}{stos[uint16, uint16], stos[uint32, uint16], stos[uint16, uint32], stos[uint32, uint32]}},
	{"lods", 0xac,
		[2]interface{}{lods[uint8, uint16], lods[uint8, uint32]},
		[4]interface{}{lods[uint16, uint16], lods[uint32, uint16], lods[uint16, uint32], lods[uint32, uint32]}},
	{"scas", 0xae,
		[2]interface{}{scas[uint8, uint16], scas[uint8, uint32]},
		[4]interface{}{scas[uint16, uint16], scas[uint32, uint16], scas[uint16, uint32], scas[uint32, uint32]}},
	{"ins", 0x6c,
		[2]interface{}{ins[uint8, uint16], ins[uint8, uint32]},
		[4]interface{}{ins[uint16, uint16], ins[uint32, uint16], ins[uint16, uint32], ins[uint32, uint32]}},
	{"outs", 0x6e,
		[2]interface{}{outs[uint8, uint16], outs[uint8, uint32]},
		[4]interface{}{outs[uint16, uint16], outs[uint32, uint16], outs[uint16, uint32], outs[uint32, uint32]}},
}

// prefixes

func segPrefix(seg int) func(*Machine) {
	return func(m *Machine) { m.override = seg }
}

func opsizePrefix(m *Machine)   { m.opPrefix = true }
func addrsizePrefix(m *Machine) { m.adPrefix = true }
func lockPrefix(m *Machine)     { m.lock = true }
func repPrefix(m *Machine)      { m.rep = repE }
func repnePrefix(m *Machine)    { m.rep = repNE }
