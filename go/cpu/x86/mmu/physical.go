package mmu

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// VideoMemory receives accesses that land inside the video window.
// Offsets are relative to the start of the window.
type VideoMemory interface {
	ReadVideo(off uint32) byte
	WriteVideo(off uint32, val byte)
}

// Physical is the flat physical address space of one machine.
// Reads outside of RAM float high (0xff) and writes there are dropped.
type Physical struct {
	ram []byte

	vbase, vsize uint32
	video        VideoMemory
}

func NewPhysical(size int) *Physical {
	return &Physical{ram: make([]byte, size)}
}

// MapVideo redirects [base, base+size) to v. A nil v removes the window.
func (p *Physical) MapVideo(base, size uint32, v VideoMemory) {
	if v == nil {
		size = 0
	}
	p.vbase, p.vsize, p.video = base, size, v
}

func (p *Physical) Video() VideoMemory { return p.video }

func (p *Physical) Size() int { return len(p.ram) }

func (p *Physical) inVideo(addr uint32) bool {
	return addr-p.vbase < p.vsize
}

// flat reports whether [addr, addr+n) is plain RAM.
func (p *Physical) flat(addr uint32, n int) bool {
	end := uint64(addr) + uint64(n)
	if end > uint64(len(p.ram)) {
		return false
	}
	return p.vsize == 0 || end <= uint64(p.vbase) || uint64(addr) >= uint64(p.vbase)+uint64(p.vsize)
}

func (p *Physical) Read8(addr uint32) byte {
	if p.inVideo(addr) {
		return p.video.ReadVideo(addr - p.vbase)
	}
	if uint64(addr) < uint64(len(p.ram)) {
		return p.ram[addr]
	}
	return 0xff
}

func (p *Physical) Write8(addr uint32, val byte) {
	if p.inVideo(addr) {
		p.video.WriteVideo(addr-p.vbase, val)
	} else if uint64(addr) < uint64(len(p.ram)) {
		p.ram[addr] = val
	}
}

func (p *Physical) Read16(addr uint32) uint16 {
	if p.flat(addr, 2) {
		return binary.LittleEndian.Uint16(p.ram[addr:])
	}
	return uint16(p.slowRead(addr, 2))
}

func (p *Physical) Read32(addr uint32) uint32 {
	if p.flat(addr, 4) {
		return binary.LittleEndian.Uint32(p.ram[addr:])
	}
	return uint32(p.slowRead(addr, 4))
}

func (p *Physical) Read64(addr uint32) uint64 {
	if p.flat(addr, 8) {
		return binary.LittleEndian.Uint64(p.ram[addr:])
	}
	return p.slowRead(addr, 8)
}

func (p *Physical) Write16(addr uint32, val uint16) {
	if p.flat(addr, 2) {
		binary.LittleEndian.PutUint16(p.ram[addr:], val)
	} else {
		p.slowWrite(addr, 2, uint64(val))
	}
}

func (p *Physical) Write32(addr uint32, val uint32) {
	if p.flat(addr, 4) {
		binary.LittleEndian.PutUint32(p.ram[addr:], val)
	} else {
		p.slowWrite(addr, 4, uint64(val))
	}
}

func (p *Physical) Write64(addr uint32, val uint64) {
	if p.flat(addr, 8) {
		binary.LittleEndian.PutUint64(p.ram[addr:], val)
	} else {
		p.slowWrite(addr, 8, val)
	}
}

func (p *Physical) slowRead(addr uint32, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(p.Read8(addr+uint32(i))) << (uint(i) * 8)
	}
	return v
}

func (p *Physical) slowWrite(addr uint32, n int, val uint64) {
	for i := 0; i < n; i++ {
		p.Write8(addr+uint32(i), byte(val>>(uint(i)*8)))
	}
}

// ReadN reads an odd-sized little endian value, such as a 6-byte pseudo descriptor.
func (p *Physical) ReadN(addr uint32, size int) (uint64, error) {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = p.Read8(addr + uint32(i))
	}
	return cpu.UnpackUint(binary.LittleEndian, size, buf)
}

func (p *Physical) WriteN(addr uint32, size int, val uint64) error {
	buf, err := cpu.PackUint(binary.LittleEndian, size, nil, val)
	if err != nil {
		return err
	}
	for i, b := range buf {
		p.Write8(addr+uint32(i), b)
	}
	return nil
}

// Load copies data into RAM. It bypasses the video window.
func (p *Physical) Load(addr uint32, data []byte) error {
	if uint64(addr)+uint64(len(data)) > uint64(len(p.ram)) {
		return errors.Errorf("load of %d bytes at %#x exceeds physical memory (%#x)", len(data), addr, len(p.ram))
	}
	copy(p.ram[addr:], data)
	return nil
}

// Dump returns a copy of RAM.
func (p *Physical) Dump() []byte {
	return append([]byte(nil), p.ram...)
}
