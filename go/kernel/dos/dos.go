// Package dos services the DOS and BIOS interrupts .COM programs use for
// console IO and termination.
package dos

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// DOS 5.0
const dosVersion = 0x0005

type service struct {
	name string
	fn   func(k *Kernel)
}

// INT 21h functions by AH
var int21 = map[uint8]service{
	0x00: {"terminate", func(k *Kernel) { k.exit(0) }},
	0x01: {"char_in", (*Kernel).charIn},
	0x02: {"char_out", func(k *Kernel) { k.write([]byte{k.dl()}) }},
	0x06: {"direct_io", (*Kernel).directIO},
	0x09: {"display", (*Kernel).display},
	0x30: {"version", func(k *Kernel) { k.setAX(dosVersion) }},
	0x4c: {"terminate_with_code", func(k *Kernel) { k.exit(int(k.m.R[x86.EAX] & 0xff)) }},
}

// INT 10h functions by AH
var int10 = map[uint8]service{
	0x0e: {"teletype", func(k *Kernel) { k.write([]byte{uint8(k.m.R[x86.EAX])}) }},
}

// Kernel answers INT 20h, INT 21h and INT 10h through a HOOK_INTR hook.
// Termination stops the machine and leaves a models.ExitStatus in Err.
type Kernel struct {
	In  io.Reader
	Out io.Writer
	// Trace logs each service call when set.
	Trace io.Writer
	Err   error

	m    *x86.Machine
	hook cpu.Hook
}

func New(m *x86.Machine, in io.Reader, out io.Writer) (*Kernel, error) {
	k := &Kernel{In: in, Out: out, m: m}
	hook, err := m.HookAdd(cpu.HOOK_INTR, func(_ cpu.Cpu, intno uint32) {
		k.Interrupt(uint8(intno))
	}, 1, 0)
	if err != nil {
		return nil, err
	}
	k.hook = hook
	return k, nil
}

// Close detaches the kernel from the machine.
func (k *Kernel) Close() error {
	return k.m.HookDel(k.hook)
}

// Exited reports the guest's exit code once it has terminated.
func (k *Kernel) Exited() (int, bool) {
	if status, ok := k.Err.(models.ExitStatus); ok {
		return int(status), true
	}
	return 0, false
}

func (k *Kernel) Interrupt(intno uint8) {
	ah := uint8(k.m.R[x86.EAX] >> 8)
	var table map[uint8]service
	switch intno {
	case 0x20:
		k.trace("int 20h terminate")
		k.exit(0)
		return
	case 0x21:
		table = int21
	case 0x10:
		table = int10
	default:
		k.fail(errors.Errorf("unhandled interrupt %#02x at %04x:%04x", intno, k.m.Seg[x86.CS], k.m.EIP))
		return
	}
	svc, ok := table[ah]
	if !ok {
		k.fail(errors.Errorf("unhandled int %02xh function AH=%#02x", intno, ah))
		return
	}
	k.trace(fmt.Sprintf("int %02xh/%02x %s", intno, ah, svc.name))
	svc.fn(k)
}

func (k *Kernel) trace(msg string) {
	if k.Trace != nil {
		fmt.Fprintln(k.Trace, msg)
	}
}

func (k *Kernel) fail(err error) {
	k.Err = err
	k.m.Stop()
}

func (k *Kernel) exit(code int) {
	k.fail(models.ExitStatus(code))
}

func (k *Kernel) dl() byte { return byte(k.m.R[x86.EDX]) }

func (k *Kernel) setAX(v uint16) {
	k.m.R[x86.EAX] = k.m.R[x86.EAX]&^0xffff | uint32(v)
}

func (k *Kernel) setAL(v byte) {
	k.m.R[x86.EAX] = k.m.R[x86.EAX]&^0xff | uint32(v)
}

func (k *Kernel) write(p []byte) {
	if _, err := k.Out.Write(p); err != nil {
		k.fail(errors.Wrap(err, "console write"))
	}
}

// readByte returns 0 at end of input.
func (k *Kernel) readByte() (byte, bool) {
	if k.In == nil {
		return 0, false
	}
	var b [1]byte
	if n, _ := k.In.Read(b[:]); n == 0 {
		return 0, false
	}
	return b[0], true
}

// charIn reads a byte with echo.
func (k *Kernel) charIn() {
	b, ok := k.readByte()
	k.setAL(b)
	if ok {
		k.write([]byte{b})
	}
}

// directIO writes DL, or reads without echo when DL is 0xff. ZF is set when
// no input is available.
func (k *Kernel) directIO() {
	if k.dl() != 0xff {
		k.write([]byte{k.dl()})
		return
	}
	b, ok := k.readByte()
	k.setAL(b)
	if ok {
		k.m.EFLAGS &^= x86.FlagZF
	} else {
		k.m.EFLAGS |= x86.FlagZF
	}
}

// display writes the '$'-terminated string at DS:DX.
func (k *Kernel) display() {
	addr := uint64(k.m.SegBase(x86.DS)) + uint64(k.m.R[x86.EDX]&0xffff)
	r := bufio.NewReaderSize(io.LimitReader(&models.MemReader{Cpu: k.m, Addr: addr}, 0x10000), 256)
	s, err := r.ReadBytes('$')
	if err == io.EOF {
		err = errors.Errorf("unterminated string at %04x:%04x", k.m.Seg[x86.DS], k.m.R[x86.EDX]&0xffff)
	}
	if err != nil {
		k.fail(err)
		return
	}
	k.write(s[:len(s)-1])
}
