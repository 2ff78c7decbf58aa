package x86

func mov[T integer](m *Machine, dst Out[T], src T) {
	*dst = src
}

func movzx[T, U word](m *Machine, dst Out[T], src U) {
	*dst = T(src)
}

func movsx[T, U word](m *Machine, dst Out[T], src U) {
	*dst = T(signExtend(src))
}

func xchg[T word](m *Machine, a, b *T) {
	*a, *b = *b, *a
}

// stack

func (m *Machine) sp() uint32 {
	if m.stack32 {
		return m.R[ESP]
	}
	return uint32(m.Reg16(ESP))
}

func (m *Machine) setSP(v uint32) {
	if m.stack32 {
		m.R[ESP] = v
	} else {
		m.SetReg16(ESP, uint16(v))
	}
}

// pushT writes below SP before moving it, so a faulting push leaves SP alone.
func pushT[T integer](m *Machine, v T) {
	sp := m.sp() - uint32(widthOf[T]())
	if !m.stack32 {
		sp &= 0xffff
	}
	writeT(m, m.linear(SS, sp), v)
	m.setSP(sp)
}

func popT[T integer](m *Machine) T {
	sp := m.sp()
	v := readT[T](m, m.linear(SS, sp))
	m.setSP(sp + uint32(widthOf[T]()))
	return v
}

func push[T word](m *Machine, v T) {
	pushT(m, v)
}

func pop[T word](m *Machine, dst Out[T]) {
	*dst = popT[T](m)
}

// segment pushes and pops move S bytes of stack
func pushSeg[S word](m *Machine, sel uint16) {
	pushT(m, S(sel))
}

func popSeg[S word](m *Machine, dst Out[uint16]) {
	*dst = uint16(popT[S](m))
}

func pusha[T word](m *Machine) {
	sp := T(m.R[ESP])
	for i := EAX; i <= EDI; i++ {
		if i == ESP {
			pushT(m, sp)
		} else {
			pushT(m, T(m.R[i]))
		}
	}
}

func popa[T word](m *Machine) {
	for i := EDI; i >= EAX; i-- {
		v := popT[T](m)
		if i == ESP {
			continue
		}
		if widthOf[T]() == 2 {
			m.SetReg16(i, uint16(v))
		} else {
			m.R[i] = uint32(v)
		}
	}
}

func pushf[T word](m *Machine) {
	pushT(m, T(m.EFLAGS))
}

func popf[T word](m *Machine) {
	v := uint32(popT[T](m))
	const mask = flagsArith | FlagTF | FlagIF | FlagDF
	m.EFLAGS = m.EFLAGS&^mask | v&mask | flagsFixed
}

func enter[T word](m *Machine, size uint16, level uint8) {
	level &= 31
	pushT(m, T(m.R[EBP]))
	frame := m.sp()
	for i := uint8(1); i < level; i++ {
		bp := m.R[EBP] - uint32(i)*uint32(widthOf[T]())
		if !m.stack32 {
			bp &= 0xffff
		}
		pushT(m, readT[T](m, m.linear(SS, bp)))
	}
	if level > 0 {
		pushT(m, T(frame))
	}
	setWidth(m, EBP, T(frame))
	m.setSP(m.sp() - uint32(size))
}

func leave[T word](m *Machine) {
	m.setSP(m.R[EBP])
	setWidth(m, EBP, popT[T](m))
}

// setWidth writes the low T bits of a general register.
func setWidth[T word](m *Machine, r int, v T) {
	if widthOf[T]() == 2 {
		m.SetReg16(r, uint16(v))
	} else {
		m.R[r] = uint32(v)
	}
}

// conversions

func cbw(m *Machine)  { m.SetReg16(EAX, uint16(int8(m.Reg8(EAX)))) }
func cwde(m *Machine) { m.R[EAX] = uint32(int16(m.Reg16(EAX))) }

func cwd(m *Machine) {
	m.SetReg16(EDX, uint16(int16(m.Reg16(EAX))>>15))
}

func cdq(m *Machine) {
	m.R[EDX] = uint32(int32(m.R[EAX]) >> 31)
}

func xlat(m *Machine) {
	off := m.R[EBX]
	if !m.addr32 {
		off &= 0xffff
	}
	off += uint32(m.Reg8(EAX))
	if !m.addr32 {
		off &= 0xffff
	}
	m.SetReg8(EAX, readT[uint8](m, m.linear(m.segOr(DS), off)))
}

// loadFar returns a LDS/LES/LSS/LFS/LGS handler for segment register seg.
func loadFar[T word](seg int) func(*Machine, Out[T], FarPtr) {
	return func(m *Machine, dst Out[T], p FarPtr) {
		m.loadSegment(seg, p.Sel)
		*dst = T(p.Off)
	}
}

// port IO

func in[T, P word](m *Machine, dst Out[T], port P) {
	*dst = T(m.portIn(uint16(port), widthOf[T]()))
}

func out[P, T word](m *Machine, port P, v T) {
	m.portOut(uint16(port), widthOf[T](), uint32(v))
}

// system registers

func lgdt(m *Machine, v uint64) {
	m.gdt = descTable{base: uint32(v >> 16), limit: uint16(v)}
	if !m.op32 {
		m.gdt.base &= 0xffffff
	}
}

func lidt(m *Machine, v uint64) {
	m.idt = descTable{base: uint32(v >> 16), limit: uint16(v)}
	if !m.op32 {
		m.idt.base &= 0xffffff
	}
}

func sgdt(m *Machine, dst Out[uint64]) {
	*dst = uint64(m.gdt.base)<<16 | uint64(m.gdt.limit)
}

func sidt(m *Machine, dst Out[uint64]) {
	*dst = uint64(m.idt.base)<<16 | uint64(m.idt.limit)
}

func smsw(m *Machine, dst Out[uint16]) {
	*dst = uint16(m.CR[0])
}

// lmsw cannot clear PE
func lmsw(m *Machine, v uint16) {
	cr0 := m.CR[0]&^0xe | uint32(v)&0xf
	m.setCR(0, cr0)
}

func clts(m *Machine) {
	m.CR[0] &^= CR0_TS
}

// invlpg flushes by the address-size offset; the operand is truncated to the
// operand size and is not used.
func invlpg[T word](m *Machine, _ T) {
	m.MMU.FlushPage(m.linear(m.eaSeg, m.eaOff))
}

func cpuid(m *Machine) {
	switch m.R[EAX] {
	case 0:
		m.R[EAX] = 1
		// "GoEmuX86Core" in EBX, EDX, ECX order
		m.R[EBX] = 0x6d456f47
		m.R[EDX] = 0x36385875
		m.R[ECX] = 0x65726f43
	case 1:
		// family 4 with an on-chip FPU
		m.R[EAX] = 0x400
		m.R[EBX] = 0
		m.R[ECX] = 0
		m.R[EDX] = 1
	default:
		m.R[EAX], m.R[EBX], m.R[ECX], m.R[EDX] = 0, 0, 0, 0
	}
}

func rdtsc(m *Machine) {
	m.R[EAX] = uint32(m.Ticks)
	m.R[EDX] = uint32(m.Ticks >> 32)
}

func nop(m *Machine) {}

func hlt(m *Machine) {
	m.halted = true
}
