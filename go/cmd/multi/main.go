package multi

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/x86emu/go/cmd"
	"github.com/lunixbochs/x86emu/go/models"
)

// Result is the outcome of one program.
type Result struct {
	Out  bytes.Buffer
	Code int
	Err  error
}

// RunAll runs each program on its own machine, at most jobs at a time, and
// returns the results in argument order. Tracing is disabled.
func RunAll(cfg *models.Config, paths []string, jobs int) []*Result {
	results := make([]*Result, len(paths))
	if jobs < 1 {
		jobs = 1
	}
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		res := &Result{}
		results[i] = res
		g.Go(func() error {
			c := *cfg
			c.TraceExec, c.TraceReg, c.TraceMem, c.Verbose = false, false, false, false
			s, err := cmd.NewSession(&c, path, nil, "", strings.NewReader(""), &res.Out)
			if err != nil {
				res.Code, res.Err = 1, err
				return nil
			}
			defer s.Close()
			res.Code, res.Err = s.Run()
			if c.Screen {
				res.Out.WriteString(s.Screen())
			}
			return nil
		})
	}
	g.Wait()
	return results
}

func Main(args []string) int {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	jobs := fs.Int("j", runtime.GOMAXPROCS(0), "programs to run at once")
	limit := fs.Uint64("limit", 0, "stop each program after this many instructions")
	screen := fs.Bool("screen", false, "map text video memory and print it after each program")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <program> [program...]\n\nOptions:\n", args[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		cmd.PrintFlags(os.Stderr, flags)
	}
	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		return 1
	}
	cfg, err := models.LoadConfig(*configPath)
	if err != nil {
		cmd.PrintError(os.Stderr, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "limit":
			cfg.Limit = *limit
		case "screen":
			cfg.Screen = *screen
		}
	})
	status := 0
	for i, res := range RunAll(cfg, fs.Args(), *jobs) {
		fmt.Printf("== %s (exit %d)\n", fs.Arg(i), res.Code)
		os.Stdout.Write(res.Out.Bytes())
		if res.Err != nil {
			cmd.PrintError(os.Stderr, res.Err)
		}
		if res.Code != 0 && status == 0 {
			status = res.Code
		}
	}
	return status
}

func init() { cmd.Register("multi", "run several programs in parallel, one machine each", Main) }
