package mmu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testDir   = 0x10000
	testTable = 0x11000
)

// newPaged maps linear page vpage to physical frame for each pair in maps.
func newPaged(t *testing.T, maps ...uint32) *MMU {
	t.Helper()
	m := New(NewPhysical(4 << 20))
	m.Phys.Write32(testDir, testTable|pteP)
	for i := 0; i+1 < len(maps); i += 2 {
		vpage, frame := maps[i], maps[i+1]
		if vpage>>10 != 0 {
			t.Fatalf("test mapping %#x is outside the first directory entry", vpage)
		}
		m.Phys.Write32(testTable+vpage*4, frame<<12|pteP)
	}
	m.SetDirectory(testDir)
	return m
}

func TestIdentityA20(t *testing.T) {
	m := New(NewPhysical(2 << 20))
	if p, err := m.Translate(0x123456, Read); err != nil || p != 0x123456 {
		t.Fatalf("translate with A20 enabled: %#x, %v", p, err)
	}
	m.SetA20(false)
	if p, err := m.Translate(0x123456, Read); err != nil || p != 0x023456 {
		t.Fatalf("translate with A20 disabled: %#x, %v", p, err)
	}
	if err := m.Write8(0x100010, 0x42); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Read8(0x10); v != 0x42 {
		t.Fatalf("write above 1MB did not wrap: %#x", v)
	}
	if m.Walks != 0 {
		t.Fatal("identity translation walked page tables")
	}
}

func TestPageWalkAndCache(t *testing.T) {
	m := newPaged(t, 0x1, 0x200, 0x2, 0x201)
	p, err := m.Translate(0x1234, Read)
	if err != nil {
		t.Fatal(err)
	}
	if p != 0x200234 {
		t.Fatalf("translated to %#x, want 0x200234", p)
	}
	if m.Walks != 1 {
		t.Fatalf("walks = %d, want 1", m.Walks)
	}
	if p, _ = m.Translate(0x1ffc, Write); p != 0x200ffc || m.Walks != 1 {
		t.Fatalf("cached translate = %#x with %d walks", p, m.Walks)
	}
	if base, ok := m.Cached(0x1000); !ok || base != 0x200000 {
		t.Fatalf("cache entry = %#x, %v", base, ok)
	}
	if m.Phys.Read32(testTable+4)&pteA == 0 {
		t.Error("walk did not set the accessed bit")
	}
}

func TestDirectoryWriteFlushes(t *testing.T) {
	m := newPaged(t, 0x1, 0x200)
	if _, err := m.Translate(0x1000, Read); err != nil {
		t.Fatal(err)
	}
	// remap the page behind the cache's back, then reload the same directory
	m.Phys.Write32(testTable+4, 0x300<<12|pteP)
	if p, _ := m.Translate(0x1000, Read); p != 0x200000 {
		t.Fatalf("stale entry not used before flush: %#x", p)
	}
	m.SetDirectory(testDir)
	p, err := m.Translate(0x1000, Read)
	if err != nil {
		t.Fatal(err)
	}
	if p != 0x300000 || m.Walks != 2 {
		t.Fatalf("after directory write: %#x with %d walks", p, m.Walks)
	}
	m.FlushPage(0x1000)
	if _, ok := m.Cached(0x1000); ok {
		t.Fatal("FlushPage left the entry cached")
	}
}

func TestPageFault(t *testing.T) {
	m := newPaged(t, 0x1, 0x200)
	_, err := m.Translate(0x00c00123, Read)
	pf, ok := err.(*PageFault)
	if !ok {
		t.Fatalf("expected *PageFault, got %v", err)
	}
	want := &PageFault{Addr: 0x00c00123, Access: Read, Level: LevelDirectory}
	if diff := cmp.Diff(want, pf); diff != "" {
		t.Fatalf("fault mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Cached(0x00c00123); ok || len(m.cache) != 0 {
		t.Fatal("page fault modified the translation cache")
	}

	_, err = m.Translate(0x5000, Fetch)
	pf, ok = err.(*PageFault)
	if !ok || pf.Level != LevelTable || pf.Access != Fetch {
		t.Fatalf("missing table entry: %v", err)
	}
	if pf.Code() != 1<<4 {
		t.Errorf("fetch fault code = %#x", pf.Code())
	}
	if (&PageFault{Access: Write}).Code() != 2 {
		t.Error("write fault code should set bit 1")
	}
}

func TestStraddle(t *testing.T) {
	// linear pages 1 and 2 map to frames that are not adjacent
	m := newPaged(t, 0x1, 0x205, 0x2, 0x201)
	if err := m.Write32(0x1ffe, 0xaabbccdd); err != nil {
		t.Fatal(err)
	}
	if m.Phys.Read16(0x205ffe) != 0xccdd || m.Phys.Read16(0x201000) != 0xaabb {
		t.Fatalf("straddling write landed at %#x / %#x", m.Phys.Read16(0x205ffe), m.Phys.Read16(0x201000))
	}
	if v, err := m.Read32(0x1ffe); err != nil || v != 0xaabbccdd {
		t.Fatalf("straddling read = %#x, %v", v, err)
	}

	// page 3 is not present: nothing may be written
	m.Phys.Write16(0x201ffe, 0x1111)
	if err := m.Write32(0x2ffe, 0x22222222); err == nil {
		t.Fatal("write into a missing page succeeded")
	}
	if m.Phys.Read16(0x201ffe) != 0x1111 {
		t.Fatal("faulting write stored its first half")
	}
}

func TestPseudoDescriptorAccess(t *testing.T) {
	m := newPaged(t, 0x1, 0x205, 0x2, 0x201)
	// within one page, then across the non-adjacent frames
	for _, addr := range []uint32{0x1010, 0x1ffd} {
		if err := m.WriteN(addr, 6, 0x665544332211); err != nil {
			t.Fatal(err)
		}
		if v, err := m.ReadN(addr, 6); err != nil || v != 0x665544332211 {
			t.Fatalf("ReadN(%#x) = %#x, %v", addr, v, err)
		}
	}
	if m.Phys.Read16(0x205ffe) != 0x3322 || m.Phys.Read16(0x201000) != 0x5544 {
		t.Fatal("straddling 6-byte write landed in the wrong frames")
	}
	if _, err := m.ReadN(0x1000, 9); err == nil {
		t.Fatal("ReadN accepted 9 bytes")
	}
}

func TestReadBytesStopsAtFault(t *testing.T) {
	m := newPaged(t, 0x1, 0x200)
	m.Phys.Load(0x200ff8, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf := make([]byte, 16)
	n, err := m.ReadBytes(0x1ff8, buf, Fetch)
	if n != 8 {
		t.Fatalf("read %d bytes, want 8", n)
	}
	if pf, ok := err.(*PageFault); !ok || pf.Addr != 0x2000 || pf.Access != Fetch {
		t.Fatalf("unexpected error %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[:n]); diff != "" {
		t.Fatal(diff)
	}
}

func TestVideoWindow(t *testing.T) {
	fb := NewFrameBuffer(TextSize)
	m := newPaged(t, 0x1, TextBase>>12)
	m.Phys.MapVideo(TextBase, TextSize, fb)

	// a linear page mapped onto the window is redirected too
	for i, c := range []byte("hi") {
		if err := m.Write16(0x1000+uint32(i)*2, uint16(c)|0x0700); err != nil {
			t.Fatal(err)
		}
	}
	if fb.Writes != 4 {
		t.Fatalf("frame buffer saw %d writes", fb.Writes)
	}
	if m.Phys.ram[TextBase] != 0 {
		t.Fatal("window write reached RAM")
	}
	if got := fb.Text(4, 2); got != "hi\n\n" {
		t.Fatalf("text = %q", got)
	}
	if v, _ := m.Read8(0x1000); v != 'h' {
		t.Fatalf("read through window = %#x", v)
	}
}

func TestOpenBus(t *testing.T) {
	p := NewPhysical(0x1000)
	p.Write32(0x2000, 0x12345678)
	if v := p.Read32(0x2000); v != 0xffffffff {
		t.Fatalf("read outside RAM = %#x", v)
	}
	if v := p.Read16(0xfff); v != 0xff00 {
		t.Fatalf("read across the end of RAM = %#x", v)
	}
	if err := p.Load(0xff0, make([]byte, 32)); err == nil {
		t.Fatal("oversized Load succeeded")
	}
	if err := p.WriteN(0x10, 6, 0x665544332211); err != nil {
		t.Fatal(err)
	}
	if v, err := p.ReadN(0x10, 6); err != nil || v != 0x665544332211 {
		t.Fatalf("ReadN = %#x, %v", v, err)
	}
}
