package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/models"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// tracer prints -etrace, -rtrace and -mtrace output through machine hooks.
type tracer struct {
	cfg    *models.Config
	m      *x86.Machine
	w      *bufio.Writer
	loop   *models.LoopDetect
	status *models.StatusDiff
	code   [15]byte
}

func newTracer(cfg *models.Config, m *x86.Machine) (*tracer, error) {
	t := &tracer{cfg: cfg, m: m}
	if !cfg.TraceExec && !cfg.TraceReg && !cfg.TraceMem {
		return t, nil
	}
	t.w = bufio.NewWriter(cfg.Output)
	if cfg.TraceExec && cfg.LoopCollapse > 0 {
		t.loop = models.NewLoopDetect(cfg.LoopCollapse)
	}
	if cfg.TraceReg {
		t.status = &models.StatusDiff{Arch: x86.Arch, Cpu: m}
	}
	if cfg.TraceExec || cfg.TraceReg {
		if _, err := m.HookAdd(cpu.HOOK_CODE, t.onCode, 1, 0); err != nil {
			return nil, err
		}
	}
	if cfg.TraceMem {
		if _, err := m.HookAdd(cpu.HOOK_MEM_READ|cpu.HOOK_MEM_WRITE, t.onMem, 1, 0); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *tracer) flush() {
	if t.w == nil {
		return
	}
	if t.loop != nil {
		// a loop still running when execution stops
		if _, body, count := t.loop.Update(^uint64(0)); count > 0 {
			t.printLoop(body, count)
		}
	}
	t.w.Flush()
}

func (t *tracer) printLoop(body []uint64, count int) {
	fmt.Fprintf(t.w, "  [loop of %d instructions repeated %d times]\n", len(body), count)
}

func (t *tracer) onCode(_ cpu.Cpu, addr uint64, _ uint32) {
	if t.status != nil {
		cs, err := t.status.Changes(true)
		if err == nil && len(cs.Changes) > 0 {
			t.w.WriteString(cs.String(t.cfg.Color))
		}
	}
	if !t.cfg.TraceExec {
		return
	}
	if t.loop != nil {
		looping, body, count := t.loop.Update(addr)
		if looping {
			return
		}
		if count > 0 {
			t.printLoop(body, count)
		}
	}
	fmt.Fprintf(t.w, "%04x:%08x  %s\n", t.m.Seg[x86.CS], t.m.EIP, t.disasm(addr))
}

// disasm names the instruction at addr from the dispatch tables.
func (t *tracer) disasm(addr uint64) string {
	code := t.code[:]
	if err := t.m.MemReadInto(code, addr); err != nil {
		code = code[:1]
		if err := t.m.MemReadInto(code, addr); err != nil {
			return "??"
		}
	}
	var names []string
	tables := t.m.Tables()
	pos := 0
	for pos < len(code) {
		leaf, n, err := tables.Lookup(code[pos:])
		if err != nil {
			return fmt.Sprintf("% x  (bad)", code[:pos+1])
		}
		d := leaf.Desc
		pos += n
		if !d.Prefix {
			var ops []string
			for i := range d.Operands {
				ops = append(ops, d.Operands[i].Token)
			}
			names = append(names, strings.TrimSpace(d.Name+" "+strings.Join(ops, ",")))
			break
		}
		names = append(names, d.Name)
	}
	return fmt.Sprintf("%-20s %s", fmt.Sprintf("% x", code[:pos]), strings.Join(names, " "))
}

func (t *tracer) onMem(_ cpu.Cpu, access int, addr uint64, size int, val int64) {
	dir := "R"
	if access == cpu.MEM_WRITE {
		dir = "W"
	}
	if size > 8 {
		// block writes carry no value
		fmt.Fprintf(t.w, "  %s 0x%08x [%d]\n", dir, addr, size)
		return
	}
	fmt.Fprintf(t.w, "  %s 0x%08x [%d] 0x%0*x\n", dir, addr, size, size*2, uint64(val)&(1<<(uint(size)*8)-1))
}
