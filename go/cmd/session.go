package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/cpu/x86/mmu"
	"github.com/lunixbochs/x86emu/go/kernel/dos"
	"github.com/lunixbochs/x86emu/go/loader"
	"github.com/lunixbochs/x86emu/go/models"
)

// Session is one loaded program on its own machine.
type Session struct {
	Name    string
	Config  *models.Config
	Machine *x86.Machine
	Kernel  *dos.Kernel
	Image   loader.Image

	tracer *tracer
}

// NewSession builds a machine from cfg, loads the program at path and
// attaches the DOS kernel and any tracers cfg asks for.
func NewSession(cfg *models.Config, path string, args []string, format string, stdin io.Reader, stdout io.Writer) (*Session, error) {
	opts := loader.Options{Seg: cfg.LoadSeg, Args: args}
	var img loader.Image
	var err error
	if format == "" {
		img, err = loader.LoadFile(path, opts)
	} else {
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, errors.WithStack(err)
		}
		img, err = loader.Load(f, format, opts)
		f.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewSessionImage(cfg, filepath.Base(path), img, stdin, stdout)
}

func NewSessionImage(cfg *models.Config, name string, img loader.Image, stdin io.Reader, stdout io.Writer) (*Session, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	b := &x86.Builder{MemSize: cfg.MemSize, Video: cfg.Screen}
	m, err := b.NewMachine()
	if err != nil {
		return nil, err
	}
	if err := img.Load(m); err != nil {
		return nil, errors.Wrapf(err, "loading %s", name)
	}
	k, err := dos.New(m, stdin, stdout)
	if err != nil {
		return nil, err
	}
	s := &Session{Name: name, Config: cfg, Machine: m, Kernel: k, Image: img}
	if cfg.Verbose {
		k.Trace = cfg.Output
		fmt.Fprintf(cfg.Output, "[%s] %s image\n%s\n", name, img.Format(), img.Regions())
	}
	if s.tracer, err = newTracer(cfg, m); err != nil {
		return nil, err
	}
	return s, nil
}

// Run executes until the program exits, halts or reaches Config.Limit and
// returns the guest's exit status.
func (s *Session) Run() (int, error) {
	m := s.Machine
	err := m.Run(s.Config.Limit)
	s.tracer.flush()
	if err != nil {
		return 1, err
	}
	if code, ok := s.Kernel.Exited(); ok {
		return code, nil
	}
	switch {
	case s.Kernel.Err != nil:
		return 1, s.Kernel.Err
	case m.Halted():
		return 0, nil
	}
	pc := uint64(m.SegBase(x86.CS)) + uint64(m.EIP)
	return 1, errors.Errorf("stopped after %d instructions at %04x:%08x%s", m.Ticks, m.Seg[x86.CS], m.EIP, s.where(pc))
}

// where names the image region holding a linear address, if any.
func (s *Session) where(addr uint64) string {
	if r := s.Image.Regions().Find(addr); r != nil {
		return fmt.Sprintf(" [%s]", r.Desc)
	}
	return ""
}

// Screen renders the 80x25 text frame buffer, or "" without -screen.
func (s *Session) Screen() string {
	fb, ok := s.Machine.MMU.Phys.Video().(*mmu.FrameBuffer)
	if !ok {
		return ""
	}
	text := strings.TrimRight(fb.Text(80, 25), "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

func (s *Session) Save(path string) error {
	m := s.Machine
	data, err := models.Save(x86.Arch, m, m.MMU.Phys)
	if err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

func (s *Session) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	m := s.Machine
	return errors.Wrap(models.Load(x86.Arch, m, m.MMU.Phys, data), path)
}

func (s *Session) Close() error {
	return s.Kernel.Close()
}
