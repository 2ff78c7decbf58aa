package multi

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/lunixbochs/x86emu/go/models"
)

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	programs := map[string][]byte{
		// mov dl, 'a'; mov ah, 2; int 21h; mov ax, 0x4c03; int 21h
		"a.com": {0xb2, 'a', 0xb4, 0x02, 0xcd, 0x21, 0xb8, 0x03, 0x4c, 0xcd, 0x21},
		// hlt
		"b.com": {0xf4},
		// ud2
		"c.com": {0x0f, 0x0b},
	}
	var paths []string
	for _, name := range []string{"a.com", "b.com", "c.com"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, programs[name], 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	paths = append(paths, filepath.Join(dir, "missing.com"))

	cfg := &models.Config{MemSize: 1 << 20, LoadSeg: 0x1000, Output: io.Discard, Limit: 1000}
	res := RunAll(cfg, paths, 2)
	if len(res) != 4 {
		t.Fatalf("%d results", len(res))
	}
	if res[0].Code != 3 || res[0].Out.String() != "a" || res[0].Err != nil {
		t.Errorf("a.com: code=%d out=%q err=%v", res[0].Code, res[0].Out.String(), res[0].Err)
	}
	if res[1].Code != 0 || res[1].Err != nil {
		t.Errorf("b.com: code=%d err=%v", res[1].Code, res[1].Err)
	}
	if res[2].Err == nil {
		t.Error("c.com: ud2 should fail")
	}
	if res[3].Err == nil {
		t.Error("missing.com: no error")
	}
}

func TestRunAllParallel(t *testing.T) {
	dir := t.TempDir()
	// mov cx, 0x100; loop $; int 20h
	spin := []byte{0xb9, 0x00, 0x01, 0xe2, 0xfe, 0xcd, 0x20}
	var paths []string
	for _, name := range []string{"1.com", "2.com", "3.com", "4.com", "5.com", "6.com"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, spin, 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	cfg := &models.Config{MemSize: 1 << 20, LoadSeg: 0x1000, Output: io.Discard}
	for i, r := range RunAll(cfg, paths, 0) {
		if r.Err != nil || r.Code != 0 {
			t.Errorf("%s: code=%d err=%v", paths[i], r.Code, r.Err)
		}
	}
}
