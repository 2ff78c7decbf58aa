package models_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models"
)

func TestChangeMask(t *testing.T) {
	c := &models.Change{Name: "eax", Old: 0x12345678, New: 0x12ff5678}
	want := []models.ChangeMask{
		{Old: "12", New: "12"},
		{Old: "34", New: "ff", Changed: true},
		{Old: "5678", New: "5678"},
	}
	if diff := cmp.Diff(want, c.Mask(8)); diff != "" {
		t.Fatalf("Mask (-want +got):\n%s", diff)
	}
}

func TestStatusDiff(t *testing.T) {
	m := x86.NewMachine(1 << 16)
	s := &models.StatusDiff{Arch: x86.Arch, Cpu: m}
	if _, err := s.Changes(true); err != nil {
		t.Fatal(err)
	}
	m.R[x86.EBX] = 7
	m.CR[3] = 0x1000 // not a default register
	cs, err := s.Changes(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Changes) != 1 || cs.Changes[0].Name != "ebx" {
		t.Fatalf("changes = %+v", cs.Changes)
	}
	if got := cs.String(false); !strings.Contains(got, "+  ebx 0x00000007") {
		t.Fatalf("plain output %q", got)
	}

	m.R[x86.EDX] = 9
	cs, err = s.Changes(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Changes) != len(x86.Arch.Regs) || cs.Count() != 1 {
		t.Fatalf("full dump has %d registers, %d changed", len(cs.Changes), cs.Count())
	}
	if c := cs.Find(x86.RegCR3); c == nil || c.New != 0x1000 || c.Changed() {
		t.Fatalf("cr3 change = %+v", c)
	}
	if got := strings.Count(cs.String(false), "\n"); got != (len(cs.Changes)+3)/4 {
		t.Fatalf("%d rows for %d registers", got, len(cs.Changes))
	}
}
