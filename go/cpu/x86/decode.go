package x86

import (
	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
	"github.com/lunixbochs/x86emu/go/cpu/x86/mmu"
)

// longest legal instruction
const windowSize = 16

// fill reads the fetch window at CS:EIP. A fault is remembered and only
// raised if decoding runs past the readable bytes.
func (m *Machine) fill() {
	m.winN, m.winErr = m.MMU.ReadBytes(m.linear(CS, m.EIP), m.win[:], mmu.Fetch)
	m.cur = 0
}

func (m *Machine) short() {
	if m.winErr != nil {
		m.raise(m.winErr)
	}
	m.fault(&DecodeFault{Addr: m.start, Bytes: append([]byte(nil), m.win[:m.cur]...)})
}

func (m *Machine) fetch8() byte {
	if m.cur >= m.winN {
		m.short()
	}
	b := m.win[m.cur]
	m.cur++
	return b
}

func (m *Machine) fetch16() uint16 {
	return uint16(m.fetch8()) | uint16(m.fetch8())<<8
}

func (m *Machine) fetch32() uint32 {
	return uint32(m.fetch16()) | uint32(m.fetch16())<<16
}

// fetchN reads an n byte little endian value.
func (m *Machine) fetchN(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(m.fetch8()) << (uint(i) * 8)
	}
	return v
}

func (m *Machine) modrm() byte {
	if !m.haveModRM {
		m.modrmByte = m.fetch8()
		m.haveModRM = true
	}
	return m.modrmByte
}

// NextIP is the address of the next instruction, as far as it has been decoded.
func (m *Machine) NextIP() uint32 {
	ip := m.start + uint32(m.cur)
	if !m.code32 {
		ip &= 0xffff
	}
	return ip
}

// jump makes target the next EIP once the instruction completes.
func (m *Machine) jump(target uint32) {
	m.jumped = true
	m.target = target
	if m.HasBlock() {
		m.OnBlock(uint64(m.linear(CS, target)), 0)
	}
}

// decode selects the procedure for the opcode at the cursor.
func (m *Machine) decode() *Proc {
	m.op32 = m.code32 != m.opPrefix
	m.addr32 = m.code32 != m.adPrefix
	code := m.win[m.cur:m.winN]
	leaf, n, err := m.tables.Lookup(code)
	switch {
	case err == errShort:
		m.cur = m.winN
		m.short()
	case err != nil:
		if d, ok := err.(*DecodeFault); ok {
			d.Addr = m.start
		}
		m.fault(err)
	}
	m.cur += n
	slot := catalog.Slot(m.op32, m.addr32)
	p := leaf.Procs[slot]
	if p == nil {
		m.fault(&UnimplementedSizeFault{
			Addr:   m.start,
			Bytes:  leaf.Desc.Bytes(),
			Name:   leaf.Desc.Name,
			Op32:   m.op32,
			Addr32: m.addr32,
		})
	}
	return p
}

// epilog finishes a non-prefix instruction.
func (m *Machine) epilog() {
	if m.jumped {
		m.EIP = m.target
	} else {
		m.EIP = m.NextIP()
	}
	m.resetPrefixes()
}

func (m *Machine) resetPrefixes() {
	m.override = -1
	m.opPrefix = false
	m.adPrefix = false
	m.rep = repNone
	m.lock = false
	m.jumped = false
}
