// Package catalog turns declarative opcode format strings into normalized
// instruction descriptors.
package catalog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode says how an opcode uses its ModR/M byte.
type Mode uint8

const (
	ModeNone     Mode = iota // no ModR/M byte
	ModeDigit                // reg field is an opcode extension (/0../7)
	ModeFull                 // reg and rm both select operands (/r)
	ModeRegCoded             // low 3 opcode bits select a register (+)
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDigit:
		return "digit"
	case ModeFull:
		return "full"
	case ModeRegCoded:
		return "regcoded"
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// Slot indexes the four size-mode variants of an instruction.
func Slot(op32, addr32 bool) int {
	s := 0
	if addr32 {
		s |= 2
	}
	if op32 {
		s |= 1
	}
	return s
}

// SlotSizes is the inverse of Slot.
func SlotSizes(slot int) (op32, addr32 bool) {
	return slot&1 != 0, slot&2 != 0
}

type Descriptor struct {
	Format string
	Name   string
	// Opcode holds one or two bytes, the first byte in the high half of a
	// two-byte opcode.
	Opcode   uint16
	Len      int
	Mode     Mode
	Digit    uint8
	Operands []Operand
	// Handlers are indexed by Slot. A nil entry is a valid opcode with no
	// implementation for that size combination.
	Handlers [4]interface{}
	Prefix   bool

	// RegIndex is the register encoded in the opcode of an expanded
	// register-coded descriptor, -1 otherwise.
	RegIndex int
	coded    int
}

func (d *Descriptor) MultiByte() bool { return d.Len == 2 }

// Bytes returns the opcode bytes in instruction-stream order.
func (d *Descriptor) Bytes() []byte {
	if d.Len == 2 {
		return []byte{byte(d.Opcode >> 8), byte(d.Opcode)}
	}
	return []byte{byte(d.Opcode)}
}

// Expanded reports whether the descriptor is a concrete member of a
// register-coded family.
func (d *Descriptor) Expanded() bool { return d.RegIndex >= 0 }

func (d *Descriptor) OpSizeSensitive() bool {
	for i := range d.Operands {
		if d.Operands[i].OpSizeSensitive() {
			return true
		}
	}
	return false
}

func (d *Descriptor) AddrSizeSensitive() bool {
	for i := range d.Operands {
		if d.Operands[i].AddrSizeSensitive() {
			return true
		}
	}
	return false
}

// UsesModRM reports whether executing the instruction reads a ModR/M byte.
func (d *Descriptor) UsesModRM() bool {
	if d.Mode == ModeDigit || d.Mode == ModeFull {
		return true
	}
	return false
}

// Bind attaches the display name and semantic handlers. One handler serves
// every slot, two are indexed by operand size, four are indexed by Slot.
func (d *Descriptor) Bind(name string, handlers ...interface{}) error {
	d.Name = name
	switch len(handlers) {
	case 1:
		for i := range d.Handlers {
			d.Handlers[i] = handlers[0]
		}
	case 2:
		for i := range d.Handlers {
			d.Handlers[i] = handlers[i&1]
		}
	case 4:
		copy(d.Handlers[:], handlers)
	default:
		return errors.Errorf("%s: expected 1, 2 or 4 handlers, got %d", d.Format, len(handlers))
	}
	return nil
}

func (d *Descriptor) String() string {
	var ops []string
	for i := range d.Operands {
		ops = append(ops, d.Operands[i].Token)
	}
	s := fmt.Sprintf("% X", d.Bytes())
	switch d.Mode {
	case ModeDigit:
		s += fmt.Sprintf(" /%d", d.Digit)
	case ModeFull:
		s += " /r"
	}
	name := d.Name
	if name == "" {
		name = "?"
	}
	if len(ops) > 0 {
		return fmt.Sprintf("%-16s %s %s", s, name, strings.Join(ops, ", "))
	}
	return fmt.Sprintf("%-16s %s", s, name)
}

func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Operands = append([]Operand(nil), d.Operands...)
	return &c
}
