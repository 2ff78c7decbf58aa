package models_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models"
)

func TestSavestateRoundTrip(t *testing.T) {
	m := x86.NewMachine(1 << 16)
	m.R[x86.ECX] = 0xdeadbeef
	m.EIP = 0x1234
	m.SetIDT(0x800, 0x7ff)
	if err := m.RegWrite(x86.RegDS, 0x40); err != nil {
		t.Fatal(err)
	}
	if err := m.MemWrite(0x2000, []byte("savestate")); err != nil {
		t.Fatal(err)
	}
	data, err := models.Save(x86.Arch, m, m.MMU.Phys)
	if err != nil {
		t.Fatal(err)
	}

	n := x86.NewMachine(1 << 16)
	if err := models.Load(x86.Arch, n, n.MMU.Phys, data); err != nil {
		t.Fatal(err)
	}
	want, _ := x86.Arch.RegDump(m)
	got, _ := x86.Arch.RegDump(n)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("registers (-want +got):\n%s", diff)
	}
	if n.SegBase(x86.DS) != 0x400 {
		t.Fatalf("DS base %#x", n.SegBase(x86.DS))
	}
	if !bytes.Equal(m.MMU.Phys.Dump(), n.MMU.Phys.Dump()) {
		t.Fatal("memory differs after restore")
	}
}

func TestSavestateRejects(t *testing.T) {
	m := x86.NewMachine(1 << 16)
	data, err := models.Save(x86.Arch, m, m.MMU.Phys)
	if err != nil {
		t.Fatal(err)
	}
	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xff
	bigger := x86.NewMachine(1 << 17)
	cases := map[string]struct {
		m    *x86.Machine
		data []byte
	}{
		"magic":    {m, append([]byte("XXXX"), data[4:]...)},
		"checksum": {m, corrupt},
		"memsize":  {bigger, data},
		"short":    {m, data[:10]},
	}
	for name, c := range cases {
		if err := models.Load(x86.Arch, c.m, c.m.MMU.Phys, c.data); err == nil {
			t.Errorf("%s: Load should fail", name)
		}
	}
}
