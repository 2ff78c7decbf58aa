package x86

import (
	"github.com/pkg/errors"
)

// segment is the hidden descriptor cache behind a segment register.
type segment struct {
	base  uint32
	limit uint32
	big   bool // D/B bit: 32-bit code or stack
}

// descTable is a GDTR/IDTR value.
type descTable struct {
	base  uint32
	limit uint16
}

func (m *Machine) protected() bool { return m.CR[0]&CR0_PE != 0 }

func (m *Machine) linear(seg int, off uint32) uint32 {
	return m.segs[seg].base + off
}

// segOr returns the override segment, or def when there is none.
func (m *Machine) segOr(def int) int {
	if m.override >= 0 {
		return m.override
	}
	return def
}

// SegBase returns the cached base of a segment register.
func (m *Machine) SegBase(seg int) uint32 { return m.segs[seg].base }

// loadSegment writes a segment register and refreshes its descriptor cache.
// Real mode bases are selector<<4; protected mode reads the GDT.
func (m *Machine) loadSegment(i int, sel uint16) {
	m.Seg[i] = sel
	var s segment
	switch {
	case !m.protected():
		// data segments keep a 32-bit size from protected mode (unreal mode)
		s = segment{base: uint32(sel) << 4, limit: 0xffff, big: m.segs[i].big && i != CS}
	case sel&^3 == 0:
		// null selector
	default:
		var err error
		if s, err = m.descriptor(sel); err != nil {
			m.fault(err)
		}
	}
	m.segs[i] = s
	switch i {
	case CS:
		m.code32 = s.big
	case SS:
		m.stack32 = s.big
	}
}

func (m *Machine) descriptor(sel uint16) (segment, error) {
	if sel&4 != 0 {
		return segment{}, errors.Errorf("selector %#x: LDT selectors are not supported", sel)
	}
	off := uint32(sel &^ 7)
	if off+7 > uint32(m.gdt.limit) {
		return segment{}, errors.Errorf("selector %#x is outside the GDT (limit %#x)", sel, m.gdt.limit)
	}
	lo := uint32(m.readN(m.gdt.base+off, 4))
	hi := uint32(m.readN(m.gdt.base+off+4, 4))
	s := segment{
		base:  lo>>16 | (hi&0xff)<<16 | hi&0xff000000,
		limit: lo&0xffff | hi&0xf0000,
		big:   hi&(1<<22) != 0,
	}
	if hi&(1<<23) != 0 {
		s.limit = s.limit<<12 | 0xfff
	}
	return s, nil
}

// setCR writes a control register, keeping the MMU in step with CR0.PG and CR3.
func (m *Machine) setCR(i int, v uint32) {
	m.CR[i] = v
	switch i {
	case 0, 3:
		m.updatePaging()
	}
}

func (m *Machine) updatePaging() {
	if m.CR[0]&CR0_PG != 0 {
		m.MMU.SetDirectory(m.CR[3] &^ 0xfff)
	} else {
		m.MMU.SetDirectory(0)
	}
}
