package cpu

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a described span of physical or linear address space.
type Region struct {
	Addr uint64
	Size uint64
	Desc string
}

func (r *Region) String() string {
	desc := fmt.Sprintf("0x%x-0x%x", r.Addr, r.End())
	if r.Desc != "" {
		desc += fmt.Sprintf(" [%s]", r.Desc)
	}
	return desc
}

func (r *Region) End() uint64 { return r.Addr + r.Size }

func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (r *Region) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := r.Addr, r.End()
	e2 := addr + size
	if end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	if end <= start {
		return start, 0, false
	}
	return start, end - start, true
}

func (r *Region) Overlaps(addr, size uint64) bool {
	_, _, ok := r.Intersect(addr, size)
	return ok
}

type Regions []*Region

func (p Regions) Len() int           { return len(p) }
func (p Regions) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Regions) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Regions) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// Add inserts r keeping the list sorted. It refuses overlapping regions.
func (p *Regions) Add(r *Region) bool {
	for _, e := range *p {
		if e.Overlaps(r.Addr, r.Size) {
			return false
		}
	}
	*p = append(*p, r)
	sort.Sort(*p)
	return true
}

// binary search to find index of the region containing addr, if any, else -1
func (p Regions) bsearch(addr uint64) int {
	l := 0
	r := len(p) - 1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		switch {
		case e.Contains(addr):
			return mid
		case addr >= e.Addr:
			l = mid + 1
		default:
			r = mid - 1
		}
	}
	return -1
}

func (p Regions) Find(addr uint64) *Region {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}
