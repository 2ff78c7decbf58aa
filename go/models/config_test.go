package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDecode(t *testing.T) {
	c := DefaultConfig()
	err := c.Decode(`
verbose = true
trace_exec = true
limit = 5000
load_segment = 0x2000
loop_collapse = 8
`)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Verbose || !c.TraceExec || c.Limit != 5000 || c.LoadSeg != 0x2000 || c.LoopCollapse != 8 {
		t.Fatalf("decoded %+v", c)
	}
	if c.MemSize != 1<<20 || c.Output != os.Stderr {
		t.Fatal("defaults lost while decoding")
	}
}

func TestConfigUnknownKey(t *testing.T) {
	if err := DefaultConfig().Decode("colour = true"); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigName)
	if err := os.WriteFile(path, []byte("screen = true\nmem_size = 2097152\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Screen || c.MemSize != 2<<20 {
		t.Fatalf("loaded %+v", c)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing config file accepted")
	}
}
