package loader

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// DefaultRawBase is where a boot sector is loaded.
const DefaultRawBase = 0x7c00

// Raw is a flat binary entered at its first byte with zero segments. The
// stack grows down from the load address.
type Raw struct {
	Base uint32
	data []byte
}

func NewRaw(data []byte, base uint32) (*Raw, error) {
	if base == 0 {
		base = DefaultRawBase
	}
	if base > 0xffff {
		return nil, errors.Errorf("raw load address %#x is outside the first segment", base)
	}
	r := &Raw{Base: base, data: data}
	// the interrupt vectors and BIOS data area stay clear
	low := cpu.Regions{{Addr: 0, Size: 0x500, Desc: "ivt"}}
	for _, region := range r.Regions() {
		if !low.Add(region) {
			return nil, errors.Errorf("raw image %s overlaps the interrupt vector table", region)
		}
	}
	return r, nil
}

func (r *Raw) Format() string { return "raw" }

func (r *Raw) Regions() cpu.Regions {
	return cpu.Regions{{Addr: uint64(r.Base), Size: uint64(len(r.data)), Desc: "image"}}
}

func (r *Raw) Load(u cpu.Cpu) error {
	if err := u.MemWrite(uint64(r.Base), r.data); err != nil {
		return err
	}
	for _, seg := range []int{x86.RegCS, x86.RegDS, x86.RegES, x86.RegSS} {
		if err := u.RegWrite(seg, 0); err != nil {
			return err
		}
	}
	if err := u.RegWrite(x86.ESP, uint64(r.Base)); err != nil {
		return err
	}
	return u.RegWrite(x86.EIP, uint64(r.Base))
}
