package x86

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeFault means the bytes at Addr match no opcode.
type DecodeFault struct {
	Addr  uint32
	Bytes []byte
}

func (d *DecodeFault) Error() string {
	return fmt.Sprintf("undefined opcode % x at %#x", d.Bytes, d.Addr)
}

// UnimplementedSizeFault means the opcode exists but has no implementation
// for the active operand/address size.
type UnimplementedSizeFault struct {
	Addr   uint32
	Bytes  []byte
	Name   string
	Op32   bool
	Addr32 bool
}

func bitsName(b bool) int {
	if b {
		return 32
	}
	return 16
}

func (u *UnimplementedSizeFault) Error() string {
	return fmt.Sprintf("%s (% x) at %#x not implemented with %d-bit operands and %d-bit addressing",
		u.Name, u.Bytes, u.Addr, bitsName(u.Op32), bitsName(u.Addr32))
}

// AddressingFault is a memory-only operand encoded as a register.
type AddressingFault struct {
	Addr  uint32
	Name  string
	ModRM byte
}

func (a *AddressingFault) Error() string {
	return fmt.Sprintf("%s at %#x: ModR/M %#02x encodes a register where memory is required", a.Name, a.Addr, a.ModRM)
}

// ErrDivide is #DE with nowhere to deliver it.
var ErrDivide = errors.New("divide error")

// trap unwinds the instruction in progress.
type trap struct {
	err error
}

func (m *Machine) raise(err error) {
	panic(trap{err})
}

// fault raises a host-level error with a stack trace.
func (m *Machine) fault(err error) {
	panic(trap{errors.WithStack(err)})
}
