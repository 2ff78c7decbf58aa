package x86

// Near branch targets arrive already resolved to an absolute EIP, truncated
// to the operand size.

func jmp[T word](m *Machine, target T) {
	m.jump(uint32(target))
}

func call[T word](m *Machine, target T) {
	pushT(m, T(m.NextIP()))
	m.jump(uint32(target))
}

func ret[T word](m *Machine) {
	m.jump(uint32(popT[T](m)))
}

func retImm[T word](m *Machine, n uint16) {
	ip := popT[T](m)
	m.setSP(m.sp() + uint32(n))
	m.jump(uint32(ip))
}

func jcc[T word](cc int) func(*Machine, T) {
	cond := conditions[cc]
	return func(m *Machine, target T) {
		if cond(m.EFLAGS) {
			m.jump(uint32(target))
		}
	}
}

func setcc(cc int) func(*Machine, Out[uint8]) {
	cond := conditions[cc]
	return func(m *Machine, dst Out[uint8]) {
		if cond(m.EFLAGS) {
			*dst = 1
		} else {
			*dst = 0
		}
	}
}

// count is CX or ECX depending on the address size
func (m *Machine) count() uint32 {
	if m.addr32 {
		return m.R[ECX]
	}
	return uint32(m.Reg16(ECX))
}

func (m *Machine) setCount(v uint32) {
	if m.addr32 {
		m.R[ECX] = v
	} else {
		m.SetReg16(ECX, uint16(v))
	}
}

func loop[T word](m *Machine, target T) {
	c := m.count() - 1
	m.setCount(c)
	if c&m.countMask() != 0 {
		m.jump(uint32(target))
	}
}

func loope[T word](m *Machine, target T) {
	c := m.count() - 1
	m.setCount(c)
	if c&m.countMask() != 0 && m.flag(FlagZF) {
		m.jump(uint32(target))
	}
}

func loopne[T word](m *Machine, target T) {
	c := m.count() - 1
	m.setCount(c)
	if c&m.countMask() != 0 && !m.flag(FlagZF) {
		m.jump(uint32(target))
	}
}

func jcxz[T word](m *Machine, target T) {
	if m.count() == 0 {
		m.jump(uint32(target))
	}
}

func (m *Machine) countMask() uint32 {
	if m.addr32 {
		return 0xffffffff
	}
	return 0xffff
}

// far transfers

func (m *Machine) jumpFar(sel uint16, off uint32) {
	m.loadSegment(CS, sel)
	m.jump(off)
}

func jmpFar(m *Machine, p FarPtr) {
	m.jumpFar(p.Sel, p.Off)
}

func callFar[T word](m *Machine, p FarPtr) {
	pushT(m, T(m.Seg[CS]))
	pushT(m, T(m.NextIP()))
	m.jumpFar(p.Sel, p.Off)
}

func retf[T word](m *Machine) {
	ip := popT[T](m)
	cs := popT[T](m)
	m.jumpFar(uint16(cs), uint32(ip))
}

func retfImm[T word](m *Machine, n uint16) {
	retf[T](m)
	m.setSP(m.sp() + uint32(n))
}

// interrupts

// intN calls HOOK_INTR hooks when there are any, otherwise it vectors
// through the guest's interrupt table.
func intN(m *Machine, n uint8) {
	if m.HasIntr() {
		m.OnIntr(uint32(n))
		return
	}
	m.interrupt(n, m.NextIP(), 0, false)
}

func int3(m *Machine) {
	intN(m, 3)
}

func into(m *Machine) {
	if m.flag(FlagOF) {
		intN(m, 4)
	}
}

// iret only has a 16-bit form here
func iret(m *Machine) {
	ip := popT[uint16](m)
	cs := popT[uint16](m)
	flags := popT[uint16](m)
	m.jumpFar(cs, uint32(ip))
	const mask = flagsArith | FlagTF | FlagIF | FlagDF
	m.EFLAGS = m.EFLAGS&^0xffff | uint32(flags)&mask | flagsFixed
}
