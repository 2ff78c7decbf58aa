package x86

// accumulator halves: AL/AH for bytes, (E)AX/(E)DX otherwise

func accLo[T word](m *Machine) T {
	return T(m.R[EAX])
}

func accHi[T word](m *Machine) T {
	if widthOf[T]() == 1 {
		return T(m.R[EAX] >> 8)
	}
	return T(m.R[EDX])
}

func setAcc[T word](m *Machine, lo, hi T) {
	switch widthOf[T]() {
	case 1:
		m.SetReg16(EAX, uint16(hi)<<8|uint16(lo))
	case 2:
		m.SetReg16(EAX, uint16(lo))
		m.SetReg16(EDX, uint16(hi))
	default:
		m.R[EAX] = uint32(lo)
		m.R[EDX] = uint32(hi)
	}
}

func signed[T word](v T) int64 {
	return int64(int32(signExtend(v)))
}

func mulFlags(m *Machine, overflow bool) {
	m.setFlag(FlagCF, overflow)
	m.setFlag(FlagOF, overflow)
}

func mul[T word](m *Machine, src T) {
	w := uint(widthOf[T]() * 8)
	p := uint64(accLo[T](m)) * uint64(src)
	setAcc(m, T(p), T(p>>w))
	mulFlags(m, T(p>>w) != 0)
}

func imul[T word](m *Machine, src T) {
	w := uint(widthOf[T]() * 8)
	p := signed(accLo[T](m)) * signed(src)
	setAcc(m, T(p), T(p>>w))
	mulFlags(m, p != signed(T(p)))
}

// two and three operand IMUL truncate to the destination
func imul2[T word](m *Machine, dst *T, src T) {
	p := signed(*dst) * signed(src)
	*dst = T(p)
	mulFlags(m, p != signed(T(p)))
}

func imul3[T word](m *Machine, dst Out[T], a, b T) {
	p := signed(a) * signed(b)
	*dst = T(p)
	mulFlags(m, p != signed(T(p)))
}

func div[T word](m *Machine, src T) {
	if src == 0 {
		m.divideError()
	}
	w := uint(widthOf[T]() * 8)
	n := uint64(accHi[T](m))<<w | uint64(accLo[T](m))
	q := n / uint64(src)
	if q > uint64(^T(0)) {
		m.divideError()
	}
	setAcc(m, T(q), T(n%uint64(src)))
}

func idiv[T word](m *Machine, src T) {
	if src == 0 {
		m.divideError()
	}
	w := uint(widthOf[T]() * 8)
	shift := 64 - 2*w
	n := int64(uint64(accHi[T](m))<<w|uint64(accLo[T](m))) << shift >> shift
	d := signed(src)
	q := n / d
	if q != signed(T(q)) {
		m.divideError()
	}
	setAcc(m, T(q), T(n%d))
}

// group 3 (F6/F7) by /digit; /1 is an undocumented alias of TEST
type unaryOp struct {
	name    string
	b, w, d interface{}
}

var group3 = [8]unaryOp{
	{"test", nil, nil, nil},
	{"test", nil, nil, nil},
	{"not", not[uint8], not[uint16], not[uint32]},
	{"neg", neg[uint8], neg[uint16], neg[uint32]},
	{"mul", mul[uint8], mul[uint16], mul[uint32]},
	{"imul", imul[uint8], imul[uint16], imul[uint32]},
	{"div", div[uint8], div[uint16], div[uint32]},
	{"idiv", idiv[uint8], idiv[uint16], idiv[uint32]},
}
