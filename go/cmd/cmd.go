// Package cmd holds the command line front end shared by the subcommands.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/models"
)

// Cmd parses the common emulator flags and runs one program.
type Cmd struct {
	Config *models.Config
	Flags  *flag.FlagSet

	Stdin  io.Reader
	Stdout io.Writer

	// NoArgs rejects guest arguments after the program path.
	NoArgs bool
	// Format forces a program format instead of detecting it.
	Format string

	flagCfg    models.Config
	configPath string
	outfile    string
	loadPath   string
	savePre    string
	savePost   string
	cpuprofile string
	out        *os.File
}

func NewCmd(name string) *Cmd {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	c := &Cmd{Flags: fs, Stdin: os.Stdin, Stdout: os.Stdout}
	fc := &c.flagCfg
	fs.BoolVar(&fc.Verbose, "v", false, "verbose output")
	fs.BoolVar(&fc.TraceExec, "etrace", false, "trace execution")
	fs.BoolVar(&fc.TraceReg, "rtrace", false, "trace register modification")
	fs.BoolVar(&fc.TraceMem, "mtrace", false, "trace memory access")
	fs.IntVar(&fc.LoopCollapse, "loop", 0, "collapse -etrace loops of up to this many instructions")
	fs.BoolVar(&fc.Screen, "screen", false, "map text video memory and print it after execution")
	fs.Uint64Var(&fc.Limit, "limit", 0, "stop after this many instructions (0 is unlimited)")
	fs.IntVar(&fc.MemSize, "mem", 0, "physical memory size in bytes")
	fs.Func("seg", "load segment for .COM programs (default 0x1000)", func(s string) error {
		v, err := strconv.ParseUint(s, 0, 16)
		fc.LoadSeg = uint16(v)
		return err
	})

	fs.StringVar(&c.configPath, "config", "", "config file (default: config.toml in the user config folder)")
	fs.StringVar(&c.Format, "format", "", "program format: com, bin (default: by extension)")
	fs.StringVar(&c.outfile, "o", "", "redirect trace output to file (default stderr)")
	fs.StringVar(&c.loadPath, "load", "", "restore a savestate before running")
	fs.StringVar(&c.savePre, "savepre", "", "save state to file and exit before emulation starts")
	fs.StringVar(&c.savePost, "savepost", "", "save state to file after emulation ends")
	fs.StringVar(&c.cpuprofile, "cpuprofile", "", "write cpu profile to <file>")

	fs.Usage = func() {
		u := "Usage: %s [options] <program>"
		if !c.NoArgs {
			u += " [args...]"
		}
		fmt.Fprintf(os.Stderr, u+"\n\nOptions:\n", name)
		var flags, tflags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) {
			if strings.HasSuffix(f.Name, "trace") || f.Name == "loop" {
				tflags = append(tflags, f)
			} else {
				flags = append(flags, f)
			}
		})
		PrintFlags(os.Stderr, flags)
		fmt.Fprintf(os.Stderr, "\nTrace Options:\n")
		PrintFlags(os.Stderr, tflags)
	}
	return c
}

// Parse reads the flags and builds Config: defaults, then the config file,
// then any flags given on the command line. It returns the program path and
// guest arguments.
func (c *Cmd) Parse(argv []string) (string, []string, error) {
	fs := c.Flags
	if err := fs.Parse(argv[1:]); err != nil {
		return "", nil, err
	}
	args := fs.Args()
	if len(args) < 1 || c.NoArgs && len(args) > 1 {
		fs.Usage()
		return "", nil, errors.New("expected a program path")
	}
	cfg, err := models.LoadConfig(c.configPath)
	if err != nil {
		return "", nil, err
	}
	fc := &c.flagCfg
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Verbose = fc.Verbose
		case "etrace":
			cfg.TraceExec = fc.TraceExec
		case "rtrace":
			cfg.TraceReg = fc.TraceReg
		case "mtrace":
			cfg.TraceMem = fc.TraceMem
		case "loop":
			cfg.LoopCollapse = fc.LoopCollapse
		case "screen":
			cfg.Screen = fc.Screen
		case "limit":
			cfg.Limit = fc.Limit
		case "mem":
			cfg.MemSize = fc.MemSize
		case "seg":
			cfg.LoadSeg = fc.LoadSeg
		}
	})
	if c.outfile != "" {
		out, err := os.OpenFile(c.outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return "", nil, errors.WithStack(err)
		}
		cfg.Output = out
		c.out = out
	}
	c.Config = cfg
	return args[0], args[1:], nil
}

// Close releases the -o trace file, if one was opened.
func (c *Cmd) Close() error {
	if c.out == nil {
		return nil
	}
	err := c.out.Close()
	c.out = nil
	return errors.WithStack(err)
}

// Run executes one program and returns the process exit code: the guest's
// exit status, or 1 on an emulation error.
func (c *Cmd) Run(argv []string) int {
	exe, args, err := c.Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()
	if c.cpuprofile != "" {
		f, err := os.Create(c.cpuprofile)
		if err != nil {
			PrintError(os.Stderr, errors.WithStack(err))
			return 1
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	s, err := NewSession(c.Config, exe, args, c.Format, c.Stdin, c.Stdout)
	if err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	defer s.Close()
	if c.loadPath != "" {
		if err := s.Restore(c.loadPath); err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
	}
	if c.savePre != "" {
		if err := s.Save(c.savePre); err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
		return 0
	}
	code, err := s.Run()
	if c.savePost != "" {
		if err := s.Save(c.savePost); err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
	}
	if c.Config.Screen {
		fmt.Fprint(c.Stdout, s.Screen())
	}
	if err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	return code
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err and, when it carries one, its stack trace in
// aligned columns.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(stackTracer); ok {
			st = t
		}
	}
	if st == nil {
		return
	}
	var frames [][2]string
	width := 0
	for _, f := range st.StackTrace() {
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)
		frames = append(frames, [2]string{fileline, method})
		if len(fileline) > width {
			width = len(fileline)
		}
		if method == "main" {
			break
		}
	}
	for _, f := range frames {
		fmt.Fprintf(w, "%-*s | %s()\n", width, f[0], f[1])
	}
}
