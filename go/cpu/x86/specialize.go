package x86

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
)

// Proc is one descriptor specialized for an operand and address size.
type Proc struct {
	Desc   *catalog.Descriptor
	Op32   bool
	Addr32 bool

	order []int // operand indexes in resolution order
	res   []resolver
	call  func(m *Machine)
}

// Run executes the instruction at the cursor. The opcode bytes have already
// been consumed.
func (p *Proc) Run(m *Machine) {
	m.haveModRM = false
	for i, r := range p.res {
		r(m, &m.ops[p.order[i]])
	}
	p.call(m)
	if !p.Desc.Prefix {
		m.epilog()
	}
}

func (p *Proc) String() string {
	return fmt.Sprintf("%s [op%d addr%d]", p.Desc.Name, bitsName(p.Op32), bitsName(p.Addr32))
}

// Specialize builds the procedure for one size combination. It panics if the
// handler's signature does not fit the operands, so a bad table fails at startup.
func Specialize(d *catalog.Descriptor, op32, addr32 bool) *Proc {
	h := d.Handlers[catalog.Slot(op32, addr32)]
	if h == nil {
		return nil
	}
	p := &Proc{Desc: d, Op32: op32, Addr32: addr32}
	order := make([]int, len(d.Operands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return priority(&d.Operands[order[a]]) < priority(&d.Operands[order[b]])
	})
	p.order = order
	for _, i := range order {
		p.res = append(p.res, newResolver(d, &d.Operands[i], op32, addr32))
	}
	b := &binder{d: d, op32: op32}
	p.call = adapt(b, h)
	return p
}

// SpecializeAll builds all four size slots. Slots that share a handler and
// differ only in a size the operands do not depend on share one *Proc.
func SpecializeAll(d *catalog.Descriptor) [4]*Proc {
	var procs [4]*Proc
	opSens, addrSens := d.OpSizeSensitive(), d.AddrSizeSensitive()
	for s := range procs {
		h := d.Handlers[s]
		if h == nil {
			continue
		}
		op32, addr32 := catalog.SlotSizes(s)
		for prev := 0; prev < s; prev++ {
			if procs[prev] == nil || !sameHandler(d.Handlers[prev], h) {
				continue
			}
			pop32, paddr32 := catalog.SlotSizes(prev)
			if (pop32 != op32 && opSens) || (paddr32 != addr32 && addrSens) {
				continue
			}
			procs[s] = procs[prev]
			break
		}
		if procs[s] == nil {
			procs[s] = Specialize(d, op32, addr32)
		}
	}
	return procs
}

func sameHandler(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	return va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}

// binder checks handler operand types against the descriptor at build time.
type binder struct {
	d    *catalog.Descriptor
	op32 bool
}

func (b *binder) fail(format string, args ...interface{}) {
	panic(errors.Errorf("x86: %s [%s]: %s", b.d.Name, b.d.Format, fmt.Sprintf(format, args...)))
}

func (b *binder) arity(n int) {
	if len(b.d.Operands) != n {
		b.fail("handler takes %d operands, descriptor has %d", n, len(b.d.Operands))
	}
}

// checkInt verifies operand i can be passed as an integer of the given width.
func (b *binder) checkInt(i, width int, writable bool) {
	op := &b.d.Operands[i]
	w := op.Width(b.op32)
	if op.Kind == catalog.KindFarImm || op.Kind == catalog.KindFarMem {
		b.fail("operand %d (%s) is a far pointer", i, op.Token)
	}
	if w != width && !(width == 8 && w == 6) {
		b.fail("operand %d (%s) is %d bytes, handler wants %d", i, op.Token, w, width)
	}
	if op.Kind == catalog.KindReg && op.Reg.Class == catalog.ClassStack {
		b.fail("operand %d (%s) is an fpu register", i, op.Token)
	}
	if writable {
		b.checkWritable(i)
	}
}

func (b *binder) checkWritable(i int) {
	switch b.d.Operands[i].Kind {
	case catalog.KindImm, catalog.KindRel, catalog.KindConst, catalog.KindEA, catalog.KindFarImm:
		b.fail("operand %d (%s) is not writable", i, b.d.Operands[i].Token)
	}
}

func (b *binder) checkFloat(i int, writable bool) {
	op := &b.d.Operands[i]
	switch {
	case op.Kind == catalog.KindMem && (op.Size == 4 || op.Size == 8 || op.Size == 10):
	case op.Width(b.op32) == 10:
	default:
		b.fail("operand %d (%s) cannot hold a float", i, op.Token)
	}
	if writable {
		b.checkWritable(i)
	}
}

func (b *binder) checkFar(i int) {
	switch b.d.Operands[i].Kind {
	case catalog.KindFarImm, catalog.KindFarMem:
	default:
		b.fail("operand %d (%s) is not a far pointer", i, b.d.Operands[i].Token)
	}
}

// Adapters load operands from m.ops, call the handler and write back every
// operand passed by reference. Operand indexes are in declaration order.

func val1[A integer](b *binder, h func(*Machine, A)) func(*Machine) {
	b.arity(1)
	b.checkInt(0, widthOf[A](), false)
	return func(m *Machine) {
		h(m, A(m.get(&m.ops[0])))
	}
}

func ref1[A integer](b *binder, h func(*Machine, *A)) func(*Machine) {
	b.arity(1)
	b.checkInt(0, widthOf[A](), true)
	return func(m *Machine) {
		a := A(m.get(&m.ops[0]))
		h(m, &a)
		m.put(&m.ops[0], uint64(a))
	}
}

func out1[A integer](b *binder, h func(*Machine, Out[A])) func(*Machine) {
	b.arity(1)
	b.checkInt(0, widthOf[A](), true)
	return func(m *Machine) {
		var a A
		h(m, &a)
		m.put(&m.ops[0], uint64(a))
	}
}

func val2[A, B integer](b *binder, h func(*Machine, A, B)) func(*Machine) {
	b.arity(2)
	b.checkInt(0, widthOf[A](), false)
	b.checkInt(1, widthOf[B](), false)
	return func(m *Machine) {
		h(m, A(m.get(&m.ops[0])), B(m.get(&m.ops[1])))
	}
}

func ref2[A, B integer](b *binder, h func(*Machine, *A, B)) func(*Machine) {
	b.arity(2)
	b.checkInt(0, widthOf[A](), true)
	b.checkInt(1, widthOf[B](), false)
	return func(m *Machine) {
		a := A(m.get(&m.ops[0]))
		h(m, &a, B(m.get(&m.ops[1])))
		m.put(&m.ops[0], uint64(a))
	}
}

func out2[A, B integer](b *binder, h func(*Machine, Out[A], B)) func(*Machine) {
	b.arity(2)
	b.checkInt(0, widthOf[A](), true)
	b.checkInt(1, widthOf[B](), false)
	return func(m *Machine) {
		var a A
		h(m, &a, B(m.get(&m.ops[1])))
		m.put(&m.ops[0], uint64(a))
	}
}

func refRef2[A integer](b *binder, h func(*Machine, *A, *A)) func(*Machine) {
	b.arity(2)
	b.checkInt(0, widthOf[A](), true)
	b.checkInt(1, widthOf[A](), true)
	return func(m *Machine) {
		x, y := A(m.get(&m.ops[0])), A(m.get(&m.ops[1]))
		h(m, &x, &y)
		m.put(&m.ops[0], uint64(x))
		m.put(&m.ops[1], uint64(y))
	}
}

func out3[A integer](b *binder, h func(*Machine, Out[A], A, A)) func(*Machine) {
	b.arity(3)
	b.checkInt(0, widthOf[A](), true)
	b.checkInt(1, widthOf[A](), false)
	b.checkInt(2, widthOf[A](), false)
	return func(m *Machine) {
		var a A
		h(m, &a, A(m.get(&m.ops[1])), A(m.get(&m.ops[2])))
		m.put(&m.ops[0], uint64(a))
	}
}

func ref3[A integer](b *binder, h func(*Machine, *A, A, uint8)) func(*Machine) {
	b.arity(3)
	b.checkInt(0, widthOf[A](), true)
	b.checkInt(1, widthOf[A](), false)
	b.checkInt(2, 1, false)
	return func(m *Machine) {
		a := A(m.get(&m.ops[0]))
		h(m, &a, A(m.get(&m.ops[1])), uint8(m.get(&m.ops[2])))
		m.put(&m.ops[0], uint64(a))
	}
}

func far1(b *binder, h func(*Machine, FarPtr)) func(*Machine) {
	b.arity(1)
	b.checkFar(0)
	return func(m *Machine) {
		h(m, m.getFar(&m.ops[0]))
	}
}

func outFar2[A integer](b *binder, h func(*Machine, Out[A], FarPtr)) func(*Machine) {
	b.arity(2)
	b.checkInt(0, widthOf[A](), true)
	b.checkFar(1)
	return func(m *Machine) {
		var a A
		h(m, &a, m.getFar(&m.ops[1]))
		m.put(&m.ops[0], uint64(a))
	}
}

func fval1(b *binder, h func(*Machine, float64)) func(*Machine) {
	b.arity(1)
	b.checkFloat(0, false)
	return func(m *Machine) {
		h(m, m.getF(&m.ops[0]))
	}
}

func fout1(b *binder, h func(*Machine, Out[float64])) func(*Machine) {
	b.arity(1)
	b.checkFloat(0, true)
	return func(m *Machine) {
		var f float64
		h(m, &f)
		m.putF(&m.ops[0], f)
	}
}

func fref1(b *binder, h func(*Machine, *float64)) func(*Machine) {
	b.arity(1)
	b.checkFloat(0, true)
	return func(m *Machine) {
		f := m.getF(&m.ops[0])
		h(m, &f)
		m.putF(&m.ops[0], f)
	}
}

func fref2(b *binder, h func(*Machine, *float64, float64)) func(*Machine) {
	b.arity(2)
	b.checkFloat(0, true)
	b.checkFloat(1, false)
	return func(m *Machine) {
		f := m.getF(&m.ops[0])
		h(m, &f, m.getF(&m.ops[1]))
		m.putF(&m.ops[0], f)
	}
}

// adapt picks the adapter for a handler's concrete signature.
func adapt(b *binder, h interface{}) func(*Machine) {
	switch h := h.(type) {
	case func(*Machine):
		b.arity(0)
		return h

	case func(*Machine, uint8):
		return val1(b, h)
	case func(*Machine, uint16):
		return val1(b, h)
	case func(*Machine, uint32):
		return val1(b, h)
	case func(*Machine, uint64):
		return val1(b, h)

	case func(*Machine, *uint8):
		return ref1(b, h)
	case func(*Machine, *uint16):
		return ref1(b, h)
	case func(*Machine, *uint32):
		return ref1(b, h)

	case func(*Machine, Out[uint8]):
		return out1(b, h)
	case func(*Machine, Out[uint16]):
		return out1(b, h)
	case func(*Machine, Out[uint32]):
		return out1(b, h)
	case func(*Machine, Out[uint64]):
		return out1(b, h)

	case func(*Machine, uint8, uint8):
		return val2(b, h)
	case func(*Machine, uint16, uint16):
		return val2(b, h)
	case func(*Machine, uint32, uint32):
		return val2(b, h)
	case func(*Machine, uint16, uint8):
		return val2(b, h)
	case func(*Machine, uint32, uint8):
		return val2(b, h)
	case func(*Machine, uint8, uint16):
		return val2(b, h)
	case func(*Machine, uint8, uint32):
		return val2(b, h)

	case func(*Machine, *uint8, uint8):
		return ref2(b, h)
	case func(*Machine, *uint16, uint16):
		return ref2(b, h)
	case func(*Machine, *uint32, uint32):
		return ref2(b, h)
	case func(*Machine, *uint16, uint8):
		return ref2(b, h)
	case func(*Machine, *uint32, uint8):
		return ref2(b, h)

	case func(*Machine, Out[uint8], uint8):
		return out2(b, h)
	case func(*Machine, Out[uint16], uint16):
		return out2(b, h)
	case func(*Machine, Out[uint32], uint32):
		return out2(b, h)
	case func(*Machine, Out[uint16], uint8):
		return out2(b, h)
	case func(*Machine, Out[uint32], uint8):
		return out2(b, h)
	case func(*Machine, Out[uint32], uint16):
		return out2(b, h)
	case func(*Machine, Out[uint8], uint16):
		return out2(b, h)
	case func(*Machine, Out[uint8], uint32):
		return out2(b, h)
	case func(*Machine, Out[uint16], uint32):
		return out2(b, h)

	case func(*Machine, *uint8, *uint8):
		return refRef2(b, h)
	case func(*Machine, *uint16, *uint16):
		return refRef2(b, h)
	case func(*Machine, *uint32, *uint32):
		return refRef2(b, h)

	case func(*Machine, Out[uint16], uint16, uint16):
		return out3(b, h)
	case func(*Machine, Out[uint32], uint32, uint32):
		return out3(b, h)

	case func(*Machine, *uint16, uint16, uint8):
		return ref3(b, h)
	case func(*Machine, *uint32, uint32, uint8):
		return ref3(b, h)

	case func(*Machine, FarPtr):
		return far1(b, h)
	case func(*Machine, Out[uint16], FarPtr):
		return outFar2(b, h)
	case func(*Machine, Out[uint32], FarPtr):
		return outFar2(b, h)

	case func(*Machine, float64):
		return fval1(b, h)
	case func(*Machine, Out[float64]):
		return fout1(b, h)
	case func(*Machine, *float64):
		return fref1(b, h)
	case func(*Machine, *float64, float64):
		return fref2(b, h)
	}
	b.fail("unsupported handler type %T", h)
	return nil
}
