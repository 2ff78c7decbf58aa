package x86

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

type locKind uint8

const (
	locNone locKind = iota
	locReg8
	locReg16
	locReg32
	locSeg
	locCR
	locDR
	locST // physical x87 register
	locImm
	locMem
)

// loc is where a resolved operand lives for the duration of one instruction.
type loc struct {
	kind  locKind
	idx   int
	width int
	addr  uint32 // linear, locMem
	val   uint64 // locImm
}

// Out marks a handler operand that is only written. The old value is not loaded.
type Out[T any] *T

// FarPtr is a segment:offset pair.
type FarPtr struct {
	Sel uint16
	Off uint32
}

func regLoc(width int) locKind {
	switch width {
	case 1:
		return locReg8
	case 2:
		return locReg16
	}
	return locReg32
}

func (m *Machine) get(l *loc) uint64 {
	switch l.kind {
	case locReg8:
		return uint64(m.Reg8(l.idx))
	case locReg16:
		return uint64(m.Reg16(l.idx))
	case locReg32:
		return uint64(m.R[l.idx])
	case locSeg:
		return uint64(m.Seg[l.idx])
	case locCR:
		return uint64(m.CR[l.idx])
	case locDR:
		return uint64(m.DR[l.idx])
	case locImm:
		return l.val
	case locMem:
		return m.readN(l.addr, l.width)
	}
	panic(errors.Errorf("x86: integer load from %s", l))
}

func (m *Machine) put(l *loc, v uint64) {
	switch l.kind {
	case locReg8:
		m.SetReg8(l.idx, uint8(v))
	case locReg16:
		m.SetReg16(l.idx, uint16(v))
	case locReg32:
		m.R[l.idx] = uint32(v)
	case locSeg:
		m.loadSegment(l.idx, uint16(v))
	case locCR:
		m.setCR(l.idx, uint32(v))
	case locDR:
		m.DR[l.idx] = uint32(v)
	case locMem:
		m.writeN(l.addr, l.width, v)
	default:
		panic(errors.Errorf("x86: integer store to %s", l))
	}
}

func (m *Machine) getF(l *loc) float64 {
	switch l.kind {
	case locST:
		return m.FPU.ST[l.idx]
	case locMem:
		switch l.width {
		case 4:
			return float64(math.Float32frombits(uint32(m.readN(l.addr, 4))))
		case 8:
			return math.Float64frombits(m.readN(l.addr, 8))
		case 10:
			mant := m.readN(l.addr, 8)
			se := m.readN(l.addr+8, 2)
			return f80ToFloat64(mant, uint16(se))
		}
	}
	panic(errors.Errorf("x86: float load from %s", l))
}

func (m *Machine) putF(l *loc, v float64) {
	switch l.kind {
	case locST:
		m.FPU.ST[l.idx] = v
		m.FPU.Tags &^= 1 << uint(l.idx)
		return
	case locMem:
		switch l.width {
		case 4:
			m.writeN(l.addr, 4, uint64(math.Float32bits(float32(v))))
			return
		case 8:
			m.writeN(l.addr, 8, math.Float64bits(v))
			return
		case 10:
			mant, se := float64ToF80(v)
			var buf [10]byte
			binary.LittleEndian.PutUint64(buf[:], mant)
			binary.LittleEndian.PutUint16(buf[8:], se)
			m.writeBytes(l.addr, buf[:])
			return
		}
	}
	panic(errors.Errorf("x86: float store to %s", l))
}

func (m *Machine) getFar(l *loc) FarPtr {
	raw := m.get(l)
	if l.width == 6 {
		return FarPtr{Sel: uint16(raw >> 32), Off: uint32(raw)}
	}
	return FarPtr{Sel: uint16(raw >> 16), Off: uint32(raw & 0xffff)}
}

var locNames = [...]string{"none", "reg8", "reg16", "reg32", "seg", "cr", "dr", "st", "imm", "mem"}

func (l *loc) String() string {
	return locNames[l.kind]
}

// resolver fills in one operand's location, consuming instruction bytes.
type resolver func(m *Machine, l *loc)

// priority orders operand resolution: ModR/M reg field and fixed operands
// first, then r/m and memory offsets, then immediates, which always trail the
// addressing bytes.
func priority(op *catalog.Operand) int {
	switch op.Kind {
	case catalog.KindRM, catalog.KindMem, catalog.KindEA, catalog.KindFarMem,
		catalog.KindDesc, catalog.KindRegRM, catalog.KindMOffs, catalog.KindStackField:
		return 1
	case catalog.KindImm, catalog.KindRel, catalog.KindFarImm:
		return 2
	}
	return 0
}

func newResolver(d *catalog.Descriptor, op *catalog.Operand, op32, addr32 bool) resolver {
	width := op.Width(op32)
	switch op.Kind {
	case catalog.KindReg:
		idx := int(op.Reg.Index)
		switch op.Reg.Class {
		case catalog.ClassSegment:
			return func(m *Machine, l *loc) { *l = loc{kind: locSeg, idx: idx, width: 2} }
		case catalog.ClassStack:
			return func(m *Machine, l *loc) { *l = loc{kind: locST, idx: m.FPU.Phys(idx), width: 10} }
		}
		kind := regLoc(width)
		return func(m *Machine, l *loc) { *l = loc{kind: kind, idx: idx, width: width} }
	case catalog.KindRegField:
		kind := regLoc(width)
		return func(m *Machine, l *loc) {
			*l = loc{kind: kind, idx: int(m.modrm() >> 3 & 7), width: width}
		}
	case catalog.KindRegRM:
		return func(m *Machine, l *loc) {
			*l = loc{kind: locReg32, idx: int(m.modrm() & 7), width: 4}
		}
	case catalog.KindSegField:
		return func(m *Machine, l *loc) {
			idx := int(m.modrm() >> 3 & 7)
			if idx > GS {
				m.undefined()
			}
			*l = loc{kind: locSeg, idx: idx, width: 2}
		}
	case catalog.KindControl:
		return func(m *Machine, l *loc) {
			idx := int(m.modrm() >> 3 & 7)
			if idx == 1 || idx > 4 {
				m.undefined()
			}
			*l = loc{kind: locCR, idx: idx, width: 4}
		}
	case catalog.KindDebug:
		return func(m *Machine, l *loc) {
			*l = loc{kind: locDR, idx: int(m.modrm() >> 3 & 7), width: 4}
		}
	case catalog.KindStackField:
		return func(m *Machine, l *loc) {
			*l = loc{kind: locST, idx: m.FPU.Phys(int(m.modrm() & 7)), width: 10}
		}
	case catalog.KindConst:
		val := op.Value
		return func(m *Machine, l *loc) { *l = loc{kind: locImm, val: val, width: width} }
	case catalog.KindImm:
		enc := op.EncodedWidth(op32, addr32)
		signed := op.Signed
		mask := widthMask(width)
		return func(m *Machine, l *loc) {
			v := m.fetchN(enc)
			if signed {
				v = uint64(signExtendN(v, enc))
			}
			*l = loc{kind: locImm, val: v & mask, width: width}
		}
	case catalog.KindRel:
		enc := op.EncodedWidth(op32, addr32)
		mask := widthMask(width)
		return func(m *Machine, l *loc) {
			disp := signExtendN(m.fetchN(enc), enc)
			target := uint64(m.NextIP()+uint32(disp)) & mask
			*l = loc{kind: locImm, val: target, width: width}
		}
	case catalog.KindFarImm:
		return func(m *Machine, l *loc) {
			*l = loc{kind: locImm, val: m.fetchN(width), width: width}
		}
	case catalog.KindMOffs:
		enc := op.EncodedWidth(op32, addr32)
		return func(m *Machine, l *loc) {
			off := uint32(m.fetchN(enc))
			seg := m.segOr(DS)
			*l = loc{kind: locMem, addr: m.linear(seg, off), width: width}
		}
	case catalog.KindRM:
		return func(m *Machine, l *loc) {
			ea := m.ResolveModRM(addr32)
			if ea.Reg {
				*l = loc{kind: regLoc(width), idx: ea.Index, width: width}
			} else {
				*l = loc{kind: locMem, addr: m.linear(ea.Seg, ea.Offset), width: width}
			}
		}
	case catalog.KindMem, catalog.KindFarMem, catalog.KindDesc:
		name := d.Name
		return func(m *Machine, l *loc) {
			ea := m.ResolveModRM(addr32)
			if ea.Reg {
				m.fault(&AddressingFault{Addr: m.start, Name: name, ModRM: m.modrmByte})
			}
			*l = loc{kind: locMem, addr: m.linear(ea.Seg, ea.Offset), width: width}
		}
	case catalog.KindEA:
		name := d.Name
		mask := widthMask(width)
		return func(m *Machine, l *loc) {
			ea := m.ResolveModRM(addr32)
			if ea.Reg {
				m.fault(&AddressingFault{Addr: m.start, Name: name, ModRM: m.modrmByte})
			}
			*l = loc{kind: locImm, val: uint64(ea.Offset) & mask, width: width}
		}
	}
	panic(errors.Errorf("x86: no resolver for %s", op))
}

func widthMask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(uint(width)*8) - 1
}

func signExtendN(v uint64, n int) int64 {
	shift := uint(64 - n*8)
	return int64(v<<shift) >> shift
}

// memory access by linear address

func (m *Machine) readN(addr uint32, n int) uint64 {
	var v uint64
	var err error
	switch n {
	case 1:
		var b uint8
		b, err = m.MMU.Read8(addr)
		v = uint64(b)
	case 2:
		var w uint16
		w, err = m.MMU.Read16(addr)
		v = uint64(w)
	case 4:
		var d uint32
		d, err = m.MMU.Read32(addr)
		v = uint64(d)
	case 8:
		v, err = m.MMU.Read64(addr)
	default:
		v, err = m.MMU.ReadN(addr, n)
	}
	if err != nil {
		m.raise(err)
	}
	if m.HasMem() {
		m.OnMem(cpu.MEM_READ, uint64(addr), n, int64(v))
	}
	return v
}

func (m *Machine) writeN(addr uint32, n int, v uint64) {
	var err error
	switch n {
	case 1:
		err = m.MMU.Write8(addr, uint8(v))
	case 2:
		err = m.MMU.Write16(addr, uint16(v))
	case 4:
		err = m.MMU.Write32(addr, uint32(v))
	case 8:
		err = m.MMU.Write64(addr, v)
	default:
		err = m.MMU.WriteN(addr, n, v)
	}
	if err != nil {
		m.raise(err)
	}
	if m.HasMem() {
		m.OnMem(cpu.MEM_WRITE, uint64(addr), n, int64(v))
	}
}

func (m *Machine) writeBytes(addr uint32, p []byte) {
	if err := m.MMU.WriteBytes(addr, p); err != nil {
		m.raise(err)
	}
	if m.HasMem() {
		m.OnMem(cpu.MEM_WRITE, uint64(addr), len(p), 0)
	}
}

func readT[T integer](m *Machine, addr uint32) T {
	return T(m.readN(addr, widthOf[T]()))
}

func writeT[T integer](m *Machine, addr uint32, v T) {
	m.writeN(addr, widthOf[T](), uint64(v))
}
