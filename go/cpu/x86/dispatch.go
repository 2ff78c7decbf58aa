package x86

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
)

// Leaf holds the four size slots of one opcode. A nil slot is a valid
// opcode without an implementation for that size combination.
type Leaf struct {
	Desc  *catalog.Descriptor
	Procs [4]*Proc
}

// Tables is the opcode dispatch structure. Rows of the two-byte and
// extended tables are allocated on first use.
type Tables struct {
	one  [256]*Leaf
	two  [256]*[256]*Leaf
	ext  [256]*[8]*Leaf
	ext2 [256]*[256]*[8]*Leaf

	descs []*catalog.Descriptor
}

var errShort = errors.New("instruction bytes exhausted")

// NewTables expands and specializes descs into a dispatch structure.
func NewTables(descs []*catalog.Descriptor) (*Tables, error) {
	t := &Tables{}
	for _, d := range descs {
		expanded, err := catalog.Expand(d)
		if err != nil {
			return nil, err
		}
		for _, e := range expanded {
			if err := t.add(e); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Tables) add(d *catalog.Descriptor) error {
	leaf := &Leaf{Desc: d, Procs: SpecializeAll(d)}
	b1, b2 := byte(d.Opcode), byte(0)
	if d.MultiByte() {
		b1, b2 = byte(d.Opcode>>8), byte(d.Opcode)
	}
	var slot **Leaf
	switch {
	case !d.MultiByte() && d.Mode != catalog.ModeDigit:
		slot = &t.one[b1]
		if t.ext[b1] != nil || t.two[b1] != nil {
			return errors.Errorf("%s: opcode %02X is already an escape", d, b1)
		}
	case !d.MultiByte():
		if t.one[b1] != nil {
			return errors.Errorf("%s: opcode %02X is already a one-byte instruction", d, b1)
		}
		if t.ext[b1] == nil {
			t.ext[b1] = new([8]*Leaf)
		}
		slot = &t.ext[b1][d.Digit]
	case d.Mode != catalog.ModeDigit:
		if t.one[b1] != nil {
			return errors.Errorf("%s: opcode %02X is already a one-byte instruction", d, b1)
		}
		if t.two[b1] == nil {
			t.two[b1] = new([256]*Leaf)
		}
		slot = &t.two[b1][b2]
		if t.ext2[b1] != nil && t.ext2[b1][b2] != nil {
			return errors.Errorf("%s: opcode %02X %02X is already extended", d, b1, b2)
		}
	default:
		if t.one[b1] != nil {
			return errors.Errorf("%s: opcode %02X is already a one-byte instruction", d, b1)
		}
		if t.two[b1] != nil && t.two[b1][b2] != nil {
			return errors.Errorf("%s: opcode %02X %02X is already a two-byte instruction", d, b1, b2)
		}
		if t.two[b1] == nil {
			t.two[b1] = new([256]*Leaf)
		}
		if t.ext2[b1] == nil {
			t.ext2[b1] = new([256]*[8]*Leaf)
		}
		if t.ext2[b1][b2] == nil {
			t.ext2[b1][b2] = new([8]*Leaf)
		}
		slot = &t.ext2[b1][b2][d.Digit]
	}
	if *slot != nil {
		return errors.Errorf("duplicate opcode: %s and %s", (*slot).Desc, d)
	}
	*slot = leaf
	t.descs = append(t.descs, d)
	return nil
}

// Lookup finds the leaf for the instruction at the start of code and returns
// the number of opcode bytes it consumes. A ModR/M byte used to pick an
// extended opcode is looked at but not consumed.
func (t *Tables) Lookup(code []byte) (*Leaf, int, error) {
	undefined := func(n int) error {
		return &DecodeFault{Bytes: append([]byte(nil), code[:n]...)}
	}
	if len(code) == 0 {
		return nil, 0, errShort
	}
	b1 := code[0]
	if l := t.one[b1]; l != nil {
		return l, 1, nil
	}
	if t.two[b1] == nil && t.ext[b1] == nil {
		return nil, 0, undefined(1)
	}
	if len(code) < 2 {
		return nil, 0, errShort
	}
	b2 := code[1]
	if row := t.two[b1]; row != nil {
		if l := row[b2]; l != nil {
			return l, 2, nil
		}
		if t.ext2[b1] != nil && t.ext2[b1][b2] != nil {
			if len(code) < 3 {
				return nil, 0, errShort
			}
			if l := t.ext2[b1][b2][code[2]>>3&7]; l != nil {
				return l, 2, nil
			}
			return nil, 0, undefined(3)
		}
	}
	if row := t.ext[b1]; row != nil {
		if l := row[b2>>3&7]; l != nil {
			return l, 1, nil
		}
	}
	return nil, 0, undefined(2)
}

// Descriptors lists every concrete descriptor in insertion order.
func (t *Tables) Descriptors() []*catalog.Descriptor {
	return t.descs
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// DefaultTables returns the process-wide tables for the built-in instruction
// set, building them on first use. They are read-only afterwards.
func DefaultTables() *Tables {
	defaultOnce.Do(func() {
		t, err := NewTables(Opcodes())
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}
