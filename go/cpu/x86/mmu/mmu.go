// Package mmu implements physical memory and linear address translation
// (two level 4K paging, a translation cache, the A20 gate and a video window).
package mmu

import (
	"github.com/pkg/errors"
)

const (
	pageSize  = 0x1000
	pageMask  = pageSize - 1
	pteP      = 1 << 0
	pteA      = 1 << 5
	frameMask = ^uint32(pageMask)

	// A20Disabled masks bit 20 and above, wrapping addresses at 1MB.
	A20Disabled = 0x000fffff
	A20Enabled  = 0xffffffff
)

// MMU translates linear addresses for one machine. It is not safe for concurrent use.
type MMU struct {
	Phys *Physical

	dir   uint32
	a20   uint32
	cache map[uint32]uint32

	// Walks counts page table walks (translation cache misses).
	Walks int
}

func New(phys *Physical) *MMU {
	return &MMU{
		Phys:  phys,
		a20:   A20Enabled,
		cache: make(map[uint32]uint32),
	}
}

// SetDirectory loads the page directory base. Zero disables paging.
// The whole translation cache is dropped on every call.
func (m *MMU) SetDirectory(base uint32) {
	m.dir = base & frameMask
	m.Flush()
}

func (m *MMU) Directory() uint32 { return m.dir }

func (m *MMU) Paging() bool { return m.dir != 0 }

func (m *MMU) Flush() {
	for k := range m.cache {
		delete(m.cache, k)
	}
}

// FlushPage drops the cached translation for one linear address.
func (m *MMU) FlushPage(linear uint32) {
	delete(m.cache, linear>>12)
}

func (m *MMU) Cached(linear uint32) (uint32, bool) {
	base, ok := m.cache[linear>>12]
	return base, ok
}

func (m *MMU) SetA20(enabled bool) {
	mask := uint32(A20Disabled)
	if enabled {
		mask = A20Enabled
	}
	if mask != m.a20 {
		m.a20 = mask
		m.Flush()
	}
}

func (m *MMU) A20() bool { return m.a20 == A20Enabled }

// Translate maps a linear address to a physical address.
func (m *MMU) Translate(linear uint32, acc Access) (uint32, error) {
	if m.dir == 0 {
		return linear & m.a20, nil
	}
	page := linear >> 12
	if base, ok := m.cache[page]; ok {
		return base | linear&pageMask, nil
	}
	base, err := m.walk(linear, acc)
	if err != nil {
		return 0, err
	}
	m.cache[page] = base
	return base | linear&pageMask, nil
}

func (m *MMU) walk(linear uint32, acc Access) (uint32, error) {
	m.Walks++
	pdeAddr := (m.dir + (linear>>22)*4) & m.a20
	pde := m.Phys.Read32(pdeAddr)
	if pde&pteP == 0 {
		return 0, &PageFault{Addr: linear, Access: acc, Level: LevelDirectory}
	}
	pteAddr := ((pde & frameMask) + (linear>>12&0x3ff)*4) & m.a20
	pte := m.Phys.Read32(pteAddr)
	if pte&pteP == 0 {
		return 0, &PageFault{Addr: linear, Access: acc, Level: LevelTable}
	}
	if pde&pteA == 0 {
		m.Phys.Write32(pdeAddr, pde|pteA)
	}
	if pte&pteA == 0 {
		m.Phys.Write32(pteAddr, pte|pteA)
	}
	return pte & frameMask & m.a20, nil
}

func (m *MMU) Read8(addr uint32) (byte, error) {
	p, err := m.Translate(addr, Read)
	if err != nil {
		return 0, err
	}
	return m.Phys.Read8(p), nil
}

func (m *MMU) Read16(addr uint32) (uint16, error) {
	v, err := m.read(addr, 2)
	return uint16(v), err
}

func (m *MMU) Read32(addr uint32) (uint32, error) {
	v, err := m.read(addr, 4)
	return uint32(v), err
}

func (m *MMU) Read64(addr uint32) (uint64, error) {
	return m.read(addr, 8)
}

func (m *MMU) read(addr uint32, size int) (uint64, error) {
	if int(addr&pageMask)+size <= pageSize {
		p, err := m.Translate(addr, Read)
		if err != nil {
			return 0, err
		}
		switch size {
		case 2:
			return uint64(m.Phys.Read16(p)), nil
		case 4:
			return uint64(m.Phys.Read32(p)), nil
		case 8:
			return m.Phys.Read64(p), nil
		default:
			return m.Phys.ReadN(p, size)
		}
	}
	var v uint64
	for i := 0; i < size; i++ {
		b, err := m.Read8(addr + uint32(i))
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (uint(i) * 8)
	}
	return v, nil
}

func (m *MMU) Write8(addr uint32, val byte) error {
	p, err := m.Translate(addr, Write)
	if err != nil {
		return err
	}
	m.Phys.Write8(p, val)
	return nil
}

func (m *MMU) Write16(addr uint32, val uint16) error {
	return m.write(addr, 2, uint64(val))
}

func (m *MMU) Write32(addr uint32, val uint32) error {
	return m.write(addr, 4, uint64(val))
}

func (m *MMU) Write64(addr uint32, val uint64) error {
	return m.write(addr, 8, val)
}

// ReadN reads a little endian value of 1 to 8 bytes, such as a 6-byte pseudo
// descriptor.
func (m *MMU) ReadN(addr uint32, size int) (uint64, error) {
	if size < 1 || size > 8 {
		return 0, errors.Errorf("bad access size %d", size)
	}
	return m.read(addr, size)
}

func (m *MMU) WriteN(addr uint32, size int, val uint64) error {
	if size < 1 || size > 8 {
		return errors.Errorf("bad access size %d", size)
	}
	return m.write(addr, size, val)
}

func (m *MMU) write(addr uint32, size int, val uint64) error {
	var phys [8]uint32
	for i := 0; i < size; i++ {
		// the A20 wrap and page boundaries are both page aligned, so one
		// translation covers the rest of its page
		if i > 0 && (addr+uint32(i))&pageMask != 0 {
			phys[i] = phys[i-1] + 1
			continue
		}
		p, err := m.Translate(addr+uint32(i), Write)
		if err != nil {
			return err
		}
		phys[i] = p
	}
	if phys[size-1]-phys[0] == uint32(size-1) {
		switch size {
		case 2:
			m.Phys.Write16(phys[0], uint16(val))
			return nil
		case 4:
			m.Phys.Write32(phys[0], uint32(val))
			return nil
		case 8:
			m.Phys.Write64(phys[0], val)
			return nil
		default:
			return m.Phys.WriteN(phys[0], size, val)
		}
	}
	for i := 0; i < size; i++ {
		m.Phys.Write8(phys[i], byte(val>>(uint(i)*8)))
	}
	return nil
}

// ReadBytes fills p from linear memory with the given access kind. It stops at
// the first untranslatable byte and returns how many bytes were read.
func (m *MMU) ReadBytes(addr uint32, p []byte, acc Access) (int, error) {
	for i := 0; i < len(p); {
		la := addr + uint32(i)
		phys, err := m.Translate(la, acc)
		if err != nil {
			return i, err
		}
		n := pageSize - int(la&pageMask)
		if n > len(p)-i {
			n = len(p) - i
		}
		for j := 0; j < n; j++ {
			p[i+j] = m.Phys.Read8(phys + uint32(j))
		}
		i += n
	}
	return len(p), nil
}

// WriteBytes stores p at addr. Every page is translated before anything is written.
func (m *MMU) WriteBytes(addr uint32, p []byte) error {
	phys := make([]uint32, len(p))
	for i := range p {
		la := addr + uint32(i)
		if i > 0 && la&pageMask != 0 {
			phys[i] = phys[i-1] + 1
			continue
		}
		pa, err := m.Translate(la, Write)
		if err != nil {
			return err
		}
		phys[i] = pa
	}
	for i, b := range p {
		m.Phys.Write8(phys[i], b)
	}
	return nil
}
