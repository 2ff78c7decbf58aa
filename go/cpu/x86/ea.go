package x86

// EffectiveAddress is a decoded ModR/M operand: either a register (mod 3)
// or a segment and offset.
type EffectiveAddress struct {
	Reg    bool
	Index  int // register number when Reg is set
	Seg    int
	Offset uint32
}

// 16-bit base/index pairs by rm; -1 means none
var ea16 = [8][2]int{
	{EBX, ESI}, {EBX, EDI}, {EBP, ESI}, {EBP, EDI},
	{ESI, -1}, {EDI, -1}, {EBP, -1}, {EBX, -1},
}

// ResolveModRM decodes the ModR/M byte at the cursor along with any SIB and
// displacement bytes. Each byte is consumed exactly once; repeated calls for
// the same instruction reuse the ModR/M byte already read.
func (m *Machine) ResolveModRM(addr32 bool) EffectiveAddress {
	modrm := m.modrm()
	mod, rm := modrm>>6, int(modrm&7)
	if mod == 3 {
		return EffectiveAddress{Reg: true, Index: rm}
	}
	var ea EffectiveAddress
	if addr32 {
		ea = m.resolve32(mod, rm)
	} else {
		ea = m.resolve16(mod, rm)
	}
	if m.override >= 0 {
		ea.Seg = m.override
	}
	m.eaSeg = ea.Seg
	m.eaOff = ea.Offset
	return ea
}

func (m *Machine) resolve16(mod byte, rm int) EffectiveAddress {
	ea := EffectiveAddress{Seg: DS}
	var off uint16
	if mod == 0 && rm == 6 {
		off = m.fetch16()
	} else {
		pair := ea16[rm]
		off = m.Reg16(pair[0])
		if pair[1] >= 0 {
			off += m.Reg16(pair[1])
		}
		if pair[0] == EBP {
			ea.Seg = SS
		}
		switch mod {
		case 1:
			off += uint16(int8(m.fetch8()))
		case 2:
			off += m.fetch16()
		}
	}
	ea.Offset = uint32(off)
	return ea
}

func (m *Machine) resolve32(mod byte, rm int) EffectiveAddress {
	ea := EffectiveAddress{Seg: DS}
	var off uint32
	if rm == 4 {
		sib := m.fetch8()
		scale, index, base := sib>>6, int(sib>>3&7), int(sib&7)
		if base == EBP && mod == 0 {
			off = m.fetch32()
		} else {
			off = m.R[base]
			if base == ESP || base == EBP {
				ea.Seg = SS
			}
		}
		if index != ESP {
			off += m.R[index] << scale
		}
	} else if rm == EBP && mod == 0 {
		off = m.fetch32()
	} else {
		off = m.R[rm]
		if rm == EBP {
			ea.Seg = SS
		}
	}
	switch mod {
	case 1:
		off += uint32(int32(int8(m.fetch8())))
	case 2:
		off += m.fetch32()
	}
	ea.Offset = off
	return ea
}
