package models

import (
	"sort"
	"sync"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/models/cpu"
)

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val     uint64
	Default bool
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

// Arch names the registers of a CPU for tracing and savestates.
type Arch struct {
	Name string
	Bits int
	PC   int
	SP   int
	Regs map[string]int
	// DefaultRegs are shown by register traces
	DefaultRegs []string

	// sorted for RegDump
	regList regList
	once    sync.Once
}

// RegNames lists register names in natural order (dr2 before dr10).
func (a *Arch) RegNames() []string {
	names := make([]string, 0, len(a.Regs))
	for _, r := range a.sorted() {
		names = append(names, r.Name)
	}
	return names
}

func (a *Arch) sorted() regList {
	a.once.Do(func() {
		rl := make(regList, 0, len(a.Regs))
		for name, enum := range a.Regs {
			rl = append(rl, Reg{enum, name})
		}
		sort.Sort(rl)
		a.regList = rl
	})
	return a.regList
}

// RegDump reads every register in natural name order.
func (a *Arch) RegDump(c cpu.Cpu) ([]RegVal, error) {
	defaults := make(map[string]bool, len(a.DefaultRegs))
	for _, name := range a.DefaultRegs {
		defaults[name] = true
	}
	regs := a.sorted()
	ret := make([]RegVal, len(regs))
	for i, r := range regs {
		val, err := c.RegRead(r.Enum)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", r.Name)
		}
		ret[i] = RegVal{r, val, defaults[r.Name]}
	}
	return ret, nil
}

// RegEnum looks up a register by name.
func (a *Arch) RegEnum(name string) (int, error) {
	if enum, ok := a.Regs[name]; ok {
		return enum, nil
	}
	return 0, errors.Errorf("%s has no register %q", a.Name, name)
}
