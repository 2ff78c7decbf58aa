package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/lunixbochs/x86emu/go/models/cpu"
)

var (
	colorSame = ansi.ColorCode("default:default")
	colorNew  = ansi.ColorCode("default+bu:default")
)

// ChangeMask is a run of hex digits that either all changed or all stayed.
type ChangeMask struct {
	Old, New string
	Changed  bool
}

type Change struct {
	Enum     int
	Name     string
	Old, New uint64
}

func (c *Change) Changed() bool { return c.Old != c.New }

// Mask splits the hex renderings of New and Old into changed and unchanged runs.
func (c *Change) Mask(digits int) []ChangeMask {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	n, o := fmt.Sprintf(hexFmt, c.New), fmt.Sprintf(hexFmt, c.Old)
	var masks []ChangeMask
	start := 0
	for i := 1; i <= len(n); i++ {
		if i < len(n) && (n[i] == o[i]) == (n[start] == o[start]) {
			continue
		}
		masks = append(masks, ChangeMask{Old: o[start:i], New: n[start:i], Changed: n[start] != o[start]})
		start = i
	}
	return masks
}

func (c *Change) String(digits int, color bool) string {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	switch {
	case !c.Changed():
		return fmt.Sprintf("  %4s 0x"+hexFmt, c.Name, c.New)
	case !color:
		return fmt.Sprintf("+ %4s 0x"+hexFmt, c.Name, c.New)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %s%4s%s 0x", colorNew, c.Name, ansi.Reset)
	for _, m := range c.Mask(digits) {
		if m.Changed {
			b.WriteString(colorNew)
		} else {
			b.WriteString(colorSame)
		}
		b.WriteString(m.New)
	}
	b.WriteString(ansi.Reset)
	return b.String()
}

type Changes struct {
	// Digits is the hex width of every value.
	Digits  int
	Changes []*Change
}

// String renders the changes four to a row.
func (cs *Changes) String(color bool) string {
	const cols = 4
	var b strings.Builder
	for i, c := range cs.Changes {
		b.WriteString(c.String(cs.Digits, color))
		if i%cols == cols-1 || i == len(cs.Changes)-1 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func (cs *Changes) Count() int {
	n := 0
	for _, c := range cs.Changes {
		if c.Changed() {
			n++
		}
	}
	return n
}

func (cs *Changes) Find(enum int) *Change {
	for _, c := range cs.Changes {
		if c.Enum == enum {
			return c
		}
	}
	return nil
}

// StatusDiff tracks register values between calls to Changes.
type StatusDiff struct {
	Arch *Arch
	Cpu  cpu.Cpu
	old  map[int]uint64
}

// Changes compares the registers with the previous call. With onlyChanged
// set, unchanged registers and registers outside Arch.DefaultRegs are left out.
func (s *StatusDiff) Changes(onlyChanged bool) (*Changes, error) {
	regs, err := s.Arch.RegDump(s.Cpu)
	if err != nil {
		return nil, err
	}
	cs := &Changes{Digits: s.Arch.Bits / 4}
	for _, r := range regs {
		c := &Change{Enum: r.Enum, Name: r.Name, Old: s.old[r.Enum], New: r.Val}
		if onlyChanged && (!r.Default || !c.Changed()) {
			continue
		}
		cs.Changes = append(cs.Changes, c)
	}
	if s.old == nil {
		s.old = make(map[int]uint64, len(regs))
	}
	for _, r := range regs {
		s.old[r.Enum] = r.Val
	}
	return cs, nil
}
