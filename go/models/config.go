package models

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

const ConfigName = "config.toml"

type Config struct {
	Color     bool   `toml:"color"`
	Verbose   bool   `toml:"verbose"`
	TraceExec bool   `toml:"trace_exec"`
	TraceReg  bool   `toml:"trace_reg"`
	TraceMem  bool   `toml:"trace_mem"`
	Screen    bool   `toml:"screen"`
	Limit     uint64 `toml:"limit"`
	MemSize   int    `toml:"mem_size"`
	LoadSeg   uint16 `toml:"load_segment"`
	// LoopCollapse folds exec trace loops of up to this many instructions.
	LoopCollapse int `toml:"loop_collapse"`

	Output io.Writer `toml:"-"`
}

// DefaultConfig writes to stderr, with color if stderr is a terminal.
func DefaultConfig() *Config {
	fd := os.Stderr.Fd()
	return &Config{
		Color:   isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		MemSize: 1 << 20,
		LoadSeg: 0x1000,
		Output:  os.Stderr,
	}
}

// Decode overlays the keys present in a TOML document.
func (c *Config) Decode(data string) error {
	md, err := toml.Decode(data, c)
	if err != nil {
		return errors.Wrap(err, "parsing config")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return errors.Errorf("unknown config key %q", undec[0].String())
	}
	return nil
}

func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	return errors.Wrap(c.Decode(string(data)), path)
}

// LoadConfig starts from DefaultConfig and applies config.toml from the
// system then user config folders, or only path if it is set.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path != "" {
		return c, c.LoadFile(path)
	}
	dirs := configdir.New("lunixbochs", "x86emu")
	folders := dirs.QueryFolders(configdir.All)
	for i := len(folders) - 1; i >= 0; i-- {
		data, err := folders[i].ReadFile(ConfigName)
		if err != nil {
			continue
		}
		if err := c.Decode(string(data)); err != nil {
			return nil, errors.Wrap(err, folders[i].Path)
		}
	}
	return c, nil
}
