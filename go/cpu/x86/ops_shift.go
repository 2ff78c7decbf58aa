package x86

// Shift and rotate counts are masked to 5 bits. A zero count changes nothing,
// flags included. OF is defined for single-bit shifts and left as computed
// otherwise.

func msb[T word](v T) bool { return v&signBit[T]() != 0 }

func shl[T word](m *Machine, dst *T, count uint8) {
	c := uint(count & 31)
	if c == 0 {
		return
	}
	w := uint(widthOf[T]() * 8)
	v := *dst
	var r T
	var cf bool
	if c <= w {
		cf = uint64(v)>>(w-c)&1 != 0
		r = T(uint64(v) << c)
	}
	setSZP(m, r, FlagCF|FlagOF|FlagAF)
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(r) != cf)
	*dst = r
}

func shr[T word](m *Machine, dst *T, count uint8) {
	c := uint(count & 31)
	if c == 0 {
		return
	}
	v := *dst
	cf := uint64(v)>>(c-1)&1 != 0
	r := T(uint64(v) >> c)
	setSZP(m, r, FlagCF|FlagOF|FlagAF)
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(v))
	*dst = r
}

func sar[T word](m *Machine, dst *T, count uint8) {
	c := uint(count & 31)
	if c == 0 {
		return
	}
	s := signed(*dst)
	cf := s>>(c-1)&1 != 0
	r := T(s >> c)
	setSZP(m, r, FlagCF|FlagOF|FlagAF)
	m.setFlag(FlagCF, cf)
	*dst = r
}

func rol[T word](m *Machine, dst *T, count uint8) {
	if count&31 == 0 {
		return
	}
	w := uint(widthOf[T]() * 8)
	c := uint(count&31) % w
	v := *dst
	r := v<<c | v>>((w-c)%w)
	cf := r&1 != 0
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(r) != cf)
	*dst = r
}

func ror[T word](m *Machine, dst *T, count uint8) {
	if count&31 == 0 {
		return
	}
	w := uint(widthOf[T]() * 8)
	c := uint(count&31) % w
	v := *dst
	r := v>>c | v<<((w-c)%w)
	m.setFlag(FlagCF, msb(r))
	m.setFlag(FlagOF, msb(r) != msb(r<<1))
	*dst = r
}

// rcl and rcr rotate through CF as a w+1 bit value
func rcl[T word](m *Machine, dst *T, count uint8) {
	w := uint(widthOf[T]() * 8)
	c := uint(count&31) % (w + 1)
	if c == 0 {
		return
	}
	v := uint64(*dst) | uint64(m.carry())<<w
	v = (v<<c | v>>(w+1-c)) & (1<<(w+1) - 1)
	r := T(v)
	cf := v>>w&1 != 0
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(r) != cf)
	*dst = r
}

func rcr[T word](m *Machine, dst *T, count uint8) {
	w := uint(widthOf[T]() * 8)
	c := uint(count&31) % (w + 1)
	if c == 0 {
		return
	}
	v := uint64(*dst) | uint64(m.carry())<<w
	m.setFlag(FlagOF, msb(*dst) != m.flag(FlagCF))
	v = (v>>c | v<<(w+1-c)) & (1<<(w+1) - 1)
	*dst = T(v)
	m.setFlag(FlagCF, v>>w&1 != 0)
}

func shld[T word](m *Machine, dst *T, src T, count uint8) {
	c := uint(count & 31)
	w := uint(widthOf[T]() * 8)
	if c == 0 || c > w {
		return
	}
	v := uint64(*dst)<<w | uint64(src)
	r := T(v << c >> w)
	cf := v>>(2*w-c)&1 != 0
	setSZP(m, r, FlagCF|FlagOF|FlagAF)
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(r) != msb(*dst))
	*dst = r
}

func shrd[T word](m *Machine, dst *T, src T, count uint8) {
	c := uint(count & 31)
	w := uint(widthOf[T]() * 8)
	if c == 0 || c > w {
		return
	}
	v := uint64(src)<<w | uint64(*dst)
	r := T(v >> c)
	cf := v>>(c-1)&1 != 0
	setSZP(m, r, FlagCF|FlagOF|FlagAF)
	m.setFlag(FlagCF, cf)
	m.setFlag(FlagOF, msb(r) != msb(*dst))
	*dst = r
}

// group 2 (C0/C1/D0-D3) by /digit; /6 is an alias of SHL
var group2 = [8]unaryOp{
	{"rol", rol[uint8], rol[uint16], rol[uint32]},
	{"ror", ror[uint8], ror[uint16], ror[uint32]},
	{"rcl", rcl[uint8], rcl[uint16], rcl[uint32]},
	{"rcr", rcr[uint8], rcr[uint16], rcr[uint32]},
	{"shl", shl[uint8], shl[uint16], shl[uint32]},
	{"shr", shr[uint8], shr[uint16], shr[uint32]},
	{"sal", shl[uint8], shl[uint16], shl[uint32]},
	{"sar", sar[uint8], sar[uint16], sar[uint32]},
}
