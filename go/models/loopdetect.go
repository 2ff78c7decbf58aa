package models

// LoopDetect finds short repeating runs in an address stream so traces can
// collapse them.
type LoopDetect struct {
	max  int
	hist []uint64

	body  []uint64
	pos   int
	count int
}

// NewLoopDetect finds loops of up to max addresses.
func NewLoopDetect(max int) *LoopDetect {
	return &LoopDetect{max: max, hist: make([]uint64, 0, max*2)}
}

// Update feeds the next address. While addr continues a known loop it returns
// true, the loop body and the number of completed repeats. When the loop
// breaks it returns false with the body and final count once.
func (l *LoopDetect) Update(addr uint64) (bool, []uint64, int) {
	if l.body != nil {
		if l.body[l.pos] == addr {
			if l.pos++; l.pos == len(l.body) {
				l.pos = 0
				l.count++
			}
			return true, l.body, l.count
		}
		body, count := l.body, l.count
		l.body, l.pos, l.count = nil, 0, 0
		l.hist = append(l.hist[:0], addr)
		return false, body, count
	}
	if len(l.hist) == cap(l.hist) {
		copy(l.hist, l.hist[1:])
		l.hist = l.hist[:len(l.hist)-1]
	}
	l.hist = append(l.hist, addr)
	n := len(l.hist)
	for p := 1; p <= l.max && p*2 <= n; p++ {
		if equal(l.hist[n-p:], l.hist[n-2*p:n-p]) {
			l.body = append([]uint64(nil), l.hist[n-p:]...)
			l.count = 1
			l.hist = l.hist[:0]
			return true, l.body, l.count
		}
	}
	return false, nil, 0
}

func equal(a, b []uint64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
