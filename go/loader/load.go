// Package loader places guest programs in a machine's memory.
package loader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/models/cpu"
)

var ErrUnknownFormat = errors.New("could not identify program format")

// Image is a program ready to be copied into a machine.
type Image interface {
	Format() string
	// Regions describes the memory Load writes.
	Regions() cpu.Regions
	// Load writes the image to memory and sets the entry registers.
	Load(c cpu.Cpu) error
}

// Options control where images are placed.
type Options struct {
	// Seg is the load segment of .COM programs.
	Seg uint16
	// Base is the load address of raw binaries.
	Base uint32
	// Args form the PSP command tail.
	Args []string
}

func LoadFile(path string, opts Options) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	img, err := Load(f, format, opts)
	return img, errors.Wrap(err, path)
}

// Load reads a program. An empty format is inferred from the data: anything
// that is not an MZ executable loads as a .COM program.
func Load(r io.Reader, format string, opts Options) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) == 0 {
		return nil, errors.New("program is empty")
	}
	if format == "" || format == "exe" {
		if bytes.HasPrefix(data, []byte("MZ")) || bytes.HasPrefix(data, []byte("ZM")) {
			return nil, errors.Wrap(ErrUnknownFormat, "MZ executables are not supported")
		}
		format = "com"
	}
	switch format {
	case "com":
		return NewCom(data, opts.Seg, opts.Args)
	case "bin", "raw", "img":
		return NewRaw(data, opts.Base)
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "format %q", format)
}
