package x86

import (
	"math"
)

// x87 subset. Values are held as float64, so extended precision loads and
// stores round. Stack faults only set status bits.

func fld(m *Machine, v float64) {
	m.FPU.Push(v)
}

func fst(m *Machine, dst Out[float64]) {
	*dst = m.FPU.Get(0)
}

func fstp(m *Machine, dst Out[float64]) {
	*dst = m.FPU.Pop()
}

func fild[T integer](m *Machine, v T) {
	var i int64
	switch widthOf[T]() {
	case 2:
		i = int64(int16(v))
	case 4:
		i = int64(int32(v))
	default:
		i = int64(v)
	}
	m.FPU.Push(float64(i))
}

// fround rounds by the control word's rounding field.
func (m *Machine) fround(v float64) float64 {
	switch m.FPU.Ctrl >> 10 & 3 {
	case 1:
		return math.Floor(v)
	case 2:
		return math.Ceil(v)
	case 3:
		return math.Trunc(v)
	}
	return math.RoundToEven(v)
}

func fist[T integer](m *Machine, dst Out[T]) {
	v := m.fround(m.FPU.Get(0))
	bits := float64(uint64(1) << uint(widthOf[T]()*8-1))
	if math.IsNaN(v) || v >= bits || v < -bits {
		// integer indefinite
		m.FPU.Status |= fpuIE
		*dst = T(uint64(1) << uint(widthOf[T]()*8-1))
		return
	}
	*dst = T(int64(v))
}

func fistp[T integer](m *Machine, dst Out[T]) {
	fist(m, dst)
	m.FPU.Pop()
}

func fxch(m *Machine, v *float64) {
	st0 := m.FPU.Get(0)
	m.FPU.Set(0, *v)
	*v = st0
}

func fadd(m *Machine, dst *float64, src float64)  { *dst += src }
func fsub(m *Machine, dst *float64, src float64)  { *dst -= src }
func fsubr(m *Machine, dst *float64, src float64) { *dst = src - *dst }
func fmul(m *Machine, dst *float64, src float64)  { *dst *= src }

func fdiv(m *Machine, dst *float64, src float64) {
	if src == 0 {
		m.FPU.Status |= fpuZE
	}
	*dst /= src
}

func fdivr(m *Machine, dst *float64, src float64) {
	if *dst == 0 {
		m.FPU.Status |= fpuZE
	}
	*dst = src / *dst
}

// popping forms operate on ST(i), ST(0) and then pop
func thenPop(op func(*Machine, *float64, float64)) func(*Machine, *float64, float64) {
	return func(m *Machine, dst *float64, src float64) {
		op(m, dst, src)
		m.FPU.Pop()
	}
}

// fpuArith lists the D8/DC arithmetic group by /digit; /2 and /3 are compares
var fpuArith = [8]struct {
	name string
	op   func(*Machine, *float64, float64)
}{
	{"fadd", fadd}, {"fmul", fmul}, {"fcom", nil}, {"fcomp", nil},
	{"fsub", fsub}, {"fsubr", fsubr}, {"fdiv", fdiv}, {"fdivr", fdivr},
}

func fcom(m *Machine, v float64) {
	st0 := m.FPU.Get(0)
	s := m.FPU.Status &^ (fpuC0 | fpuC2 | fpuC3)
	switch {
	case math.IsNaN(st0) || math.IsNaN(v):
		s |= fpuC0 | fpuC2 | fpuC3
	case st0 < v:
		s |= fpuC0
	case st0 == v:
		s |= fpuC3
	}
	m.FPU.Status = s
}

func fcomp(m *Machine, v float64) {
	fcom(m, v)
	m.FPU.Pop()
}

func fcompp(m *Machine) {
	fcom(m, m.FPU.Get(1))
	m.FPU.Pop()
	m.FPU.Pop()
}

func ftst(m *Machine) { fcom(m, 0) }

func fchs(m *Machine) { m.FPU.Set(0, -m.FPU.Get(0)) }
func fabs(m *Machine) { m.FPU.Set(0, math.Abs(m.FPU.Get(0))) }
func fld1(m *Machine) { m.FPU.Push(1) }
func fldz(m *Machine) { m.FPU.Push(0) }

func fldpi(m *Machine)  { m.FPU.Push(math.Pi) }
func fldl2e(m *Machine) { m.FPU.Push(math.Log2E) }
func fldl2t(m *Machine) { m.FPU.Push(math.Log2(10)) }
func fldlg2(m *Machine) { m.FPU.Push(math.Log10(2)) }
func fldln2(m *Machine) { m.FPU.Push(math.Ln2) }

func fsqrt(m *Machine) { m.FPU.Set(0, math.Sqrt(m.FPU.Get(0))) }

func frndint(m *Machine) { m.FPU.Set(0, m.fround(m.FPU.Get(0))) }

func fninit(m *Machine) { m.FPU.Reset() }

func fldcw(m *Machine, v uint16) { m.FPU.Ctrl = v }

func fnstcw(m *Machine, dst Out[uint16]) { *dst = m.FPU.Ctrl }

func fnstsw(m *Machine, dst Out[uint16]) { *dst = m.FPU.StatusWord() }

func fnstswAX(m *Machine) { m.SetReg16(EAX, m.FPU.StatusWord()) }

func fnclex(m *Machine) { m.FPU.Status &^= 0x80ff }
