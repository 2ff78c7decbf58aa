package loader

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

const (
	comEntry = 0x100
	comStack = 0xfffe
	// leaves 256 bytes of stack below the top of the segment
	maxComSize = 0x10000 - comEntry - 0x100
)

// PSP is the 256-byte program segment prefix DOS builds in front of a .COM
// image.
type PSP struct {
	Int20     [2]byte
	MemTop    uint16
	Reserved1 byte
	CPMCall   [5]byte
	TermAddr  uint32
	BreakAddr uint32
	ErrAddr   uint32
	ParentPSP uint16
	Handles   [20]byte
	EnvSeg    uint16
	SaveSSSP  uint32
	HandleMax uint16
	HandlePtr uint32
	PrevPSP   uint32
	Reserved2 [4]byte
	Version   uint16
	Reserved3 [14]byte
	Int21     [3]byte
	Reserved4 [9]byte
	FCB1      [16]byte
	FCB2      [20]byte
	TailLen   uint8
	Tail      [127]byte
}

func NewPSP(seg uint16, args []string) (*PSP, error) {
	p := &PSP{
		Int20:     [2]byte{0xcd, 0x20},
		MemTop:    0xa000,
		ParentPSP: seg,
		HandleMax: 20,
		HandlePtr: uint32(seg)<<16 | 0x18,
		PrevPSP:   0xffffffff,
		Version:   0x0005,
		Int21:     [3]byte{0xcd, 0x21, 0xcb},
	}
	for i := range p.Handles {
		p.Handles[i] = 0xff
	}
	// stdin, stdout, stderr, aux, printer
	copy(p.Handles[:], []byte{1, 1, 1, 0, 2})
	var tail string
	if len(args) > 0 {
		tail = " " + strings.Join(args, " ")
	}
	if len(tail) > len(p.Tail)-1 {
		return nil, errors.Errorf("command tail is %d bytes, limit is %d", len(tail), len(p.Tail)-1)
	}
	p.TailLen = uint8(len(tail))
	copy(p.Tail[:], tail+"\r")
	return p, nil
}

func (p *PSP) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, p, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "packing PSP")
	}
	return buf.Bytes(), nil
}

// Com is a flat .COM program. CS, DS, ES and SS all point at the PSP, the
// image starts at offset 0x100 and SP starts at 0xfffe with a zero word
// pushed so a near RET lands on the INT 20h at PSP:0.
type Com struct {
	Seg  uint16
	PSP  *PSP
	data []byte
}

func NewCom(data []byte, seg uint16, args []string) (*Com, error) {
	if len(data) > maxComSize {
		return nil, errors.Errorf(".COM image is %#x bytes, limit is %#x", len(data), maxComSize)
	}
	psp, err := NewPSP(seg, args)
	if err != nil {
		return nil, err
	}
	return &Com{Seg: seg, PSP: psp, data: data}, nil
}

func (c *Com) Format() string { return "com" }

func (c *Com) base() uint64 { return uint64(c.Seg) << 4 }

func (c *Com) Regions() cpu.Regions {
	b := c.base()
	return cpu.Regions{
		{Addr: b, Size: comEntry, Desc: "psp"},
		{Addr: b + comEntry, Size: uint64(len(c.data)), Desc: "image"},
		{Addr: b + comStack, Size: 2, Desc: "stack"},
	}
}

func (c *Com) Load(u cpu.Cpu) error {
	b := c.base()
	if err := struc.PackWithOrder(&models.MemWriter{Cpu: u, Addr: b}, c.PSP, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "writing PSP")
	}
	if err := u.MemWrite(b+comEntry, c.data); err != nil {
		return err
	}
	if err := u.MemWrite(b+comStack, []byte{0, 0}); err != nil {
		return err
	}
	regs := []struct {
		enum int
		val  uint64
	}{
		{x86.RegCS, uint64(c.Seg)},
		{x86.RegDS, uint64(c.Seg)},
		{x86.RegES, uint64(c.Seg)},
		{x86.RegSS, uint64(c.Seg)},
		{x86.ESP, comStack},
		{x86.EIP, comEntry},
	}
	for _, r := range regs {
		if err := u.RegWrite(r.enum, r.val); err != nil {
			return err
		}
	}
	return nil
}
