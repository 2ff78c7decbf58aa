package x86

func add[T word](m *Machine, dst *T, src T) {
	r := *dst + src
	flagsAdd(m, *dst, src, 0, r)
	*dst = r
}

func adc[T word](m *Machine, dst *T, src T) {
	c := T(m.carry())
	r := *dst + src + c
	flagsAdd(m, *dst, src, c, r)
	*dst = r
}

func sub[T word](m *Machine, dst *T, src T) {
	r := *dst - src
	flagsSub(m, *dst, src, 0, r)
	*dst = r
}

func sbb[T word](m *Machine, dst *T, src T) {
	c := T(m.carry())
	r := *dst - src - c
	flagsSub(m, *dst, src, c, r)
	*dst = r
}

func and[T word](m *Machine, dst *T, src T) {
	*dst &= src
	flagsLogic(m, *dst)
}

func or[T word](m *Machine, dst *T, src T) {
	*dst |= src
	flagsLogic(m, *dst)
}

func xor[T word](m *Machine, dst *T, src T) {
	*dst ^= src
	flagsLogic(m, *dst)
}

func cmpOp[T word](m *Machine, a, b T) {
	flagsSub(m, a, b, 0, a-b)
}

func test[T word](m *Machine, a, b T) {
	flagsLogic(m, a&b)
}

// inc and dec leave CF alone
func inc[T word](m *Machine, dst *T) {
	cf := m.carry()
	add(m, dst, 1)
	m.EFLAGS = m.EFLAGS&^FlagCF | cf
}

func dec[T word](m *Machine, dst *T) {
	cf := m.carry()
	sub(m, dst, 1)
	m.EFLAGS = m.EFLAGS&^FlagCF | cf
}

func not[T word](m *Machine, dst *T) {
	*dst = ^*dst
}

func neg[T word](m *Machine, dst *T) {
	v := *dst
	*dst = -v
	flagsSub(m, 0, v, 0, *dst)
}

// one ALU operation at each width, in /digit order
type aluOp struct {
	name    string
	b, w, d interface{}
}

var aluOps = [8]aluOp{
	{"add", add[uint8], add[uint16], add[uint32]},
	{"or", or[uint8], or[uint16], or[uint32]},
	{"adc", adc[uint8], adc[uint16], adc[uint32]},
	{"sbb", sbb[uint8], sbb[uint16], sbb[uint32]},
	{"and", and[uint8], and[uint16], and[uint32]},
	{"sub", sub[uint8], sub[uint16], sub[uint32]},
	{"xor", xor[uint8], xor[uint16], xor[uint32]},
	{"cmp", cmpOp[uint8], cmpOp[uint16], cmpOp[uint32]},
}

// decimal adjust

func daa(m *Machine) {
	al, cf := m.Reg8(EAX), m.flag(FlagCF)
	old := al
	af := al&0xf > 9 || m.flag(FlagAF)
	if af {
		al += 6
	}
	if old > 0x99 || cf {
		al += 0x60
		cf = true
	}
	m.SetReg8(EAX, al)
	setSZP(m, al, FlagCF|FlagAF)
	m.setFlag(FlagAF, af)
	m.setFlag(FlagCF, cf)
}

func das(m *Machine) {
	al, cf := m.Reg8(EAX), m.flag(FlagCF)
	old := al
	af := al&0xf > 9 || m.flag(FlagAF)
	if af {
		al -= 6
	}
	if old > 0x99 || cf {
		al -= 0x60
		cf = true
	}
	m.SetReg8(EAX, al)
	setSZP(m, al, FlagCF|FlagAF)
	m.setFlag(FlagAF, af)
	m.setFlag(FlagCF, cf)
}

func aaa(m *Machine) {
	adj := m.Reg8(EAX)&0xf > 9 || m.flag(FlagAF)
	if adj {
		m.SetReg16(EAX, m.Reg16(EAX)+0x106)
	}
	m.SetReg8(EAX, m.Reg8(EAX)&0xf)
	m.setFlag(FlagAF, adj)
	m.setFlag(FlagCF, adj)
}

func aas(m *Machine) {
	adj := m.Reg8(EAX)&0xf > 9 || m.flag(FlagAF)
	if adj {
		m.SetReg16(EAX, m.Reg16(EAX)-6)
		m.SetReg8(4, m.Reg8(4)-1)
	}
	m.SetReg8(EAX, m.Reg8(EAX)&0xf)
	m.setFlag(FlagAF, adj)
	m.setFlag(FlagCF, adj)
}

func aam(m *Machine, base uint8) {
	if base == 0 {
		m.divideError()
	}
	al := m.Reg8(EAX)
	m.SetReg8(4, al/base)
	m.SetReg8(EAX, al%base)
	flagsLogic(m, al%base)
}

func aad(m *Machine, base uint8) {
	al := m.Reg8(EAX) + m.Reg8(4)*base
	m.SetReg16(EAX, uint16(al))
	flagsLogic(m, al)
}

func salc(m *Machine) {
	if m.flag(FlagCF) {
		m.SetReg8(EAX, 0xff)
	} else {
		m.SetReg8(EAX, 0)
	}
}

// flag instructions

func clc(m *Machine) { m.EFLAGS &^= FlagCF }
func stc(m *Machine) { m.EFLAGS |= FlagCF }
func cmc(m *Machine) { m.EFLAGS ^= FlagCF }
func cli(m *Machine) { m.EFLAGS &^= FlagIF }
func sti(m *Machine) { m.EFLAGS |= FlagIF }
func cld(m *Machine) { m.EFLAGS &^= FlagDF }
func std(m *Machine) { m.EFLAGS |= FlagDF }

func lahf(m *Machine) {
	m.SetReg8(4, uint8(m.EFLAGS))
}

func sahf(m *Machine) {
	const mask = FlagSF | FlagZF | FlagAF | FlagPF | FlagCF
	m.EFLAGS = m.EFLAGS&^mask | uint32(m.Reg8(4))&mask
}

// bit tests. Register bit offsets wrap at the operand width.

func bitOf[T word, B word](bit B) T {
	return T(1) << (uint(bit) % uint(widthOf[T]()*8))
}

func bt[T word, B word](m *Machine, v T, bit B) {
	m.setFlag(FlagCF, v&bitOf[T](bit) != 0)
}

func bts[T word, B word](m *Machine, dst *T, bit B) {
	mask := bitOf[T](bit)
	m.setFlag(FlagCF, *dst&mask != 0)
	*dst |= mask
}

func btr[T word, B word](m *Machine, dst *T, bit B) {
	mask := bitOf[T](bit)
	m.setFlag(FlagCF, *dst&mask != 0)
	*dst &^= mask
}

func btc[T word, B word](m *Machine, dst *T, bit B) {
	mask := bitOf[T](bit)
	m.setFlag(FlagCF, *dst&mask != 0)
	*dst ^= mask
}

// bsf and bsr leave the destination alone when the source is zero
func bsf[T word](m *Machine, dst *T, src T) {
	m.setFlag(FlagZF, src == 0)
	if src != 0 {
		i := T(0)
		for src&1 == 0 {
			src >>= 1
			i++
		}
		*dst = i
	}
}

func bsr[T word](m *Machine, dst *T, src T) {
	m.setFlag(FlagZF, src == 0)
	if src != 0 {
		i := T(widthOf[T]()*8 - 1)
		for src&signBit[T]() == 0 {
			src <<= 1
			i--
		}
		*dst = i
	}
}

func bswap(m *Machine, r *uint32) {
	v := *r
	*r = v>>24 | v>>8&0xff00 | v<<8&0xff0000 | v<<24
}

func cmpxchg[T word](m *Machine, dst *T, src T) {
	acc := T(m.R[EAX])
	cmpOp(m, acc, *dst)
	if acc == *dst {
		*dst = src
	} else {
		putAcc(m, *dst)
	}
}

func xadd[T word](m *Machine, dst, src *T) {
	sum := *dst
	add(m, &sum, *src)
	*src = *dst
	*dst = sum
}

// putAcc writes AL, AX or EAX.
func putAcc[T word](m *Machine, v T) {
	switch widthOf[T]() {
	case 1:
		m.SetReg8(EAX, uint8(v))
	case 2:
		m.SetReg16(EAX, uint16(v))
	default:
		m.R[EAX] = uint32(v)
	}
}
