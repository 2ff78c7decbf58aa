package loader

import (
	"bytes"
	"testing"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
)

// mov ah, 9; mov dx, 0x10b; int 21h; ret; "hi$"
var hello = []byte{0xb4, 0x09, 0xba, 0x0b, 0x01, 0xcd, 0x21, 0xc3, 0, 0, 0, 'h', 'i', '$'}

func TestPSPLayout(t *testing.T) {
	p, err := NewPSP(0x1000, []string{"a", "bc"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 0x100 {
		t.Fatalf("PSP is %#x bytes", len(b))
	}
	checks := []struct {
		off  int
		want []byte
	}{
		{0x00, []byte{0xcd, 0x20}},
		{0x02, []byte{0x00, 0xa0}},
		{0x50, []byte{0xcd, 0x21, 0xcb}},
		{0x80, []byte{5, ' ', 'a', ' ', 'b', 'c', '\r'}},
	}
	for _, c := range checks {
		if got := b[c.off : c.off+len(c.want)]; !bytes.Equal(got, c.want) {
			t.Errorf("PSP[%#x] = % x, want % x", c.off, got, c.want)
		}
	}
}

func TestPSPTailTooLong(t *testing.T) {
	if _, err := NewPSP(0x1000, []string{string(make([]byte, 200))}); err == nil {
		t.Fatal("oversized command tail accepted")
	}
}

func TestComLoad(t *testing.T) {
	img, err := Load(bytes.NewReader(hello), "", Options{Seg: 0x1000})
	if err != nil {
		t.Fatal(err)
	}
	if img.Format() != "com" {
		t.Fatalf("format %q", img.Format())
	}
	m := x86.NewMachine(1 << 20)
	if err := img.Load(m); err != nil {
		t.Fatal(err)
	}
	for _, seg := range []int{x86.CS, x86.DS, x86.ES, x86.SS} {
		if m.Seg[seg] != 0x1000 || m.SegBase(seg) != 0x10000 {
			t.Errorf("segment %d = %#x base %#x", seg, m.Seg[seg], m.SegBase(seg))
		}
	}
	if m.EIP != 0x100 || m.R[x86.ESP] != 0xfffe {
		t.Fatalf("eip=%#x esp=%#x", m.EIP, m.R[x86.ESP])
	}
	code, _ := m.MemRead(0x10100, uint64(len(hello)))
	if !bytes.Equal(code, hello) {
		t.Fatal("image not at PSP:0x100")
	}
	psp, _ := m.MemRead(0x10000, 2)
	if !bytes.Equal(psp, []byte{0xcd, 0x20}) {
		t.Fatalf("PSP starts with % x", psp)
	}
	regions := img.Regions()
	if r := regions.Find(0x10105); r == nil || r.Desc != "image" {
		t.Fatalf("region at 0x10105 = %v", r)
	}
}

func TestComTooLarge(t *testing.T) {
	if _, err := NewCom(make([]byte, 0xff00), 0x1000, nil); err == nil {
		t.Fatal("oversized image accepted")
	}
}

func TestRawLoad(t *testing.T) {
	img, err := Load(bytes.NewReader([]byte{0xf4}), "bin", Options{})
	if err != nil {
		t.Fatal(err)
	}
	m := x86.NewMachine(1 << 20)
	if err := img.Load(m); err != nil {
		t.Fatal(err)
	}
	if m.EIP != DefaultRawBase || m.Seg[x86.CS] != 0 {
		t.Fatalf("entry %04x:%04x", m.Seg[x86.CS], m.EIP)
	}
	if err := m.Run(10); err != nil || !m.Halted() {
		t.Fatalf("run: halted=%v err=%v", m.Halted(), err)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		data   []byte
		format string
	}{
		{nil, ""},
		{[]byte("MZ\x90\x00"), ""},
		{[]byte{0x90}, "elf"},
	}
	for _, c := range cases {
		if _, err := Load(bytes.NewReader(c.data), c.format, Options{}); err == nil {
			t.Errorf("Load(% x, %q) should fail", c.data, c.format)
		}
	}
	if _, err := NewRaw([]byte{0x90}, 0x20000); err == nil {
		t.Error("raw base above 64k accepted")
	}
	if _, err := NewRaw([]byte{0x90}, 0x100); err == nil {
		t.Error("raw image over the vector table accepted")
	}
}
