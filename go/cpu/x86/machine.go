// Package x86 is an interpreter for 16/32-bit x86 code.
package x86

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/cpu/x86/mmu"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

const (
	repNone = iota
	repE    // F3: REP / REPE
	repNE   // F2: REPNE
)

// Ports handles IN/OUT. Port 0x92 (fast A20 gate) is handled by the machine.
type Ports interface {
	In(port uint16, size int) uint32
	Out(port uint16, size int, val uint32)
}

type Builder struct {
	MemSize int
	// Video maps a text mode frame buffer at 0xb8000.
	Video bool
	Ports Ports
}

func (b *Builder) New() (cpu.Cpu, error) {
	return b.NewMachine()
}

func (b *Builder) NewMachine() (*Machine, error) {
	size := b.MemSize
	if size == 0 {
		size = 1 << 20
	}
	if size < 0x1000 {
		return nil, errors.Errorf("memory size %#x is too small", size)
	}
	m := NewMachine(size)
	m.Ports = b.Ports
	if b.Video {
		m.MMU.Phys.MapVideo(mmu.TextBase, mmu.TextSize, mmu.NewFrameBuffer(mmu.TextSize))
	}
	return m, nil
}

// Machine is one emulated CPU with its own memory. Machines share the
// read-only dispatch tables and are otherwise independent.
type Machine struct {
	*cpu.Hooks
	Regs

	MMU   *mmu.MMU
	Ports Ports
	// Ticks counts retired instructions.
	Ticks uint64

	tables  *Tables
	segs    [6]segment
	gdt     descTable
	idt     descTable
	code32  bool
	stack32 bool
	halted  bool
	stop    bool

	// decode state of the instruction in progress
	win       [windowSize]byte
	winN      int
	winErr    error
	cur       int
	start     uint32
	modrmByte byte
	haveModRM bool
	eaSeg     int
	eaOff     uint32
	ops       [3]loc
	override  int
	opPrefix  bool
	adPrefix  bool
	op32      bool
	addr32    bool
	rep       int
	lock      bool
	jumped    bool
	target    uint32
}

func NewMachine(memSize int) *Machine {
	m := &Machine{
		MMU:    mmu.New(mmu.NewPhysical(memSize)),
		tables: DefaultTables(),
	}
	m.Hooks = cpu.NewHooks(m)
	m.Reset()
	return m
}

// Reset puts the machine in real mode with flat zero segments.
func (m *Machine) Reset() {
	m.Regs = Regs{EFLAGS: flagsFixed}
	m.FPU.Reset()
	m.segs = [6]segment{}
	m.gdt, m.idt = descTable{}, descTable{limit: 0x3ff}
	m.code32, m.stack32, m.halted = false, false, false
	for i := range m.Seg {
		m.loadSegment(i, 0)
	}
	m.MMU.SetDirectory(0)
	m.resetPrefixes()
}

func (m *Machine) Tables() *Tables { return m.tables }

// Code32 reports whether CS is a 32-bit code segment.
func (m *Machine) Code32() bool { return m.code32 }

func (m *Machine) Halted() bool { return m.halted }

// Step executes one instruction, including its prefixes.
func (m *Machine) Step() (err error) {
	m.start = m.EIP
	m.fill()
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(trap)
			if !ok {
				panic(r)
			}
			err = m.trapped(t.err)
		}
	}()
	if m.HasCode() {
		m.OnCode(uint64(m.linear(CS, m.EIP)), 0)
	}
	for {
		p := m.decode()
		p.Run(m)
		if !p.Desc.Prefix {
			break
		}
	}
	m.Ticks++
	return nil
}

// trapped handles a fault raised during Step. The instruction is abandoned
// with EIP at its first prefix byte; earlier writes are not undone.
func (m *Machine) trapped(err error) error {
	m.resetPrefixes()
	m.EIP = m.start
	switch e := errors.Cause(err).(type) {
	case *mmu.PageFault:
		m.CR[2] = e.Addr
		if m.HasFault() {
			access := cpu.MEM_READ_UNMAPPED
			switch e.Access {
			case mmu.Write:
				access = cpu.MEM_WRITE_UNMAPPED
			case mmu.Fetch:
				access = cpu.MEM_FETCH_UNMAPPED
			}
			if m.OnFault(access, uint64(e.Addr), 0, 0) {
				return nil
			}
		}
		if m.idtHas(14) {
			return m.deliver(14, e.Code(), true, m.start)
		}
		return err
	case *exception:
		if m.protected() && !m.idtHas(e.vector) {
			return errors.Wrapf(e.err, "exception %d at %#x", e.vector, m.start)
		}
		return m.deliver(e.vector, 0, false, m.start)
	}
	return err
}

// exception is a CPU exception raised by an instruction handler.
type exception struct {
	vector uint8
	err    error
}

func (e *exception) Error() string { return e.err.Error() }

func (m *Machine) divideError() {
	m.raise(&exception{vector: 0, err: ErrDivide})
}

func (m *Machine) undefined() {
	m.fault(&DecodeFault{Addr: m.start, Bytes: append([]byte(nil), m.win[:m.cur]...)})
}

func (m *Machine) idtHas(vector uint8) bool {
	return m.protected() && uint32(vector)*8+7 <= uint32(m.idt.limit)
}

// deliver vectors an interrupt through the IVT (real mode) or IDT. Faults
// during delivery are returned, not retried.
func (m *Machine) deliver(vector uint8, code uint32, hasCode bool, ret uint32) (err error) {
	defer func() {
		m.jumped = false
		if r := recover(); r != nil {
			t, ok := r.(trap)
			if !ok {
				panic(r)
			}
			err = errors.Wrapf(t.err, "delivering interrupt %d", vector)
		}
	}()
	m.interrupt(vector, ret, code, hasCode)
	m.EIP = m.target
	return nil
}

// interrupt pushes the return frame and makes the handler the jump target.
func (m *Machine) interrupt(vector uint8, ret, code uint32, hasCode bool) {
	if !m.protected() {
		ent := uint32(m.readN(m.idt.base+uint32(vector)*4, 4))
		pushT(m, uint16(m.EFLAGS))
		pushT(m, m.Seg[CS])
		pushT(m, uint16(ret))
		m.EFLAGS &^= FlagIF | FlagTF
		m.loadSegment(CS, uint16(ent>>16))
		m.jump(ent & 0xffff)
		return
	}
	if !m.idtHas(vector) {
		m.fault(errors.Errorf("interrupt %d is outside the IDT", vector))
	}
	addr := m.idt.base + uint32(vector)*8
	lo, hi := uint32(m.readN(addr, 4)), uint32(m.readN(addr+4, 4))
	if hi&(1<<15) == 0 {
		m.fault(errors.Errorf("interrupt %d: gate not present", vector))
	}
	gateType := hi >> 8 & 0xf
	pushT(m, m.EFLAGS)
	pushT(m, uint32(m.Seg[CS]))
	pushT(m, ret)
	if hasCode {
		pushT(m, code)
	}
	if gateType == 0xe {
		m.EFLAGS &^= FlagIF
	}
	m.EFLAGS &^= FlagTF
	m.loadSegment(CS, uint16(lo>>16))
	m.jump(hi&0xffff0000 | lo&0xffff)
}

// Start runs from CS:begin until EIP reaches until, Stop is called or the
// CPU halts.
func (m *Machine) Start(begin, until uint64) error {
	m.EIP = uint32(begin)
	m.stop, m.halted = false, false
	if m.HasBlock() {
		m.OnBlock(uint64(m.linear(CS, m.EIP)), 0)
	}
	for uint64(m.EIP) != until && !m.stop && !m.halted {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run executes at most limit instructions from the current CS:EIP. A zero
// limit runs until the machine stops or halts.
func (m *Machine) Run(limit uint64) error {
	m.stop = false
	for n := uint64(0); !m.stop && !m.halted && (limit == 0 || n < limit); n++ {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) Stop() error {
	m.stop = true
	return nil
}

func (m *Machine) Close() error { return nil }

func (m *Machine) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	return p, m.MemReadInto(p, addr)
}

func (m *Machine) MemReadInto(p []byte, addr uint64) error {
	_, err := m.MMU.ReadBytes(uint32(addr), p, mmu.Read)
	return errors.Wrapf(err, "read %d bytes at %#x", len(p), addr)
}

func (m *Machine) MemWrite(addr uint64, p []byte) error {
	return errors.Wrapf(m.MMU.WriteBytes(uint32(addr), p), "write %d bytes at %#x", len(p), addr)
}

func (m *Machine) RegRead(reg int) (uint64, error) {
	switch {
	case reg >= EAX && reg <= EDI:
		return uint64(m.R[reg]), nil
	case reg == EIP:
		return uint64(m.EIP), nil
	case reg == EFLAGS:
		return uint64(m.EFLAGS), nil
	case reg >= RegES && reg <= RegGS:
		return uint64(m.Seg[reg-RegES]), nil
	case reg == RegCR0:
		return uint64(m.CR[0]), nil
	case reg >= RegCR2 && reg <= RegCR4:
		return uint64(m.CR[reg-RegCR2+2]), nil
	case reg >= RegDR0 && reg <= RegDR7:
		return uint64(m.DR[reg-RegDR0]), nil
	case reg == RegGDTR:
		return uint64(m.gdt.base) | uint64(m.gdt.limit)<<32, nil
	case reg == RegIDTR:
		return uint64(m.idt.base) | uint64(m.idt.limit)<<32, nil
	}
	return 0, errors.Errorf("unknown register %d", reg)
}

func (m *Machine) RegWrite(reg int, val uint64) error {
	switch {
	case reg >= EAX && reg <= EDI:
		m.R[reg] = uint32(val)
	case reg == EIP:
		m.EIP = uint32(val)
	case reg == EFLAGS:
		m.EFLAGS = uint32(val) | flagsFixed
	case reg >= RegES && reg <= RegGS:
		return m.catch(func() { m.loadSegment(reg-RegES, uint16(val)) })
	case reg == RegCR0:
		m.setCR(0, uint32(val))
	case reg >= RegCR2 && reg <= RegCR4:
		m.setCR(reg-RegCR2+2, uint32(val))
	case reg >= RegDR0 && reg <= RegDR7:
		m.DR[reg-RegDR0] = uint32(val)
	case reg == RegGDTR:
		m.SetGDT(uint32(val), uint16(val>>32))
	case reg == RegIDTR:
		m.SetIDT(uint32(val), uint16(val>>32))
	default:
		return errors.Errorf("unknown register %d", reg)
	}
	return nil
}

// catch runs f outside of Step, turning a raised fault into an error.
func (m *Machine) catch(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(trap)
			if !ok {
				panic(r)
			}
			err = t.err
		}
	}()
	f()
	return nil
}

// SetGDT loads GDTR, as LGDT would.
func (m *Machine) SetGDT(base uint32, limit uint16) {
	m.gdt = descTable{base, limit}
}

func (m *Machine) SetIDT(base uint32, limit uint16) {
	m.idt = descTable{base, limit}
}

// Context is a saved register state.
type Context struct {
	Regs    Regs
	segs    [6]segment
	gdt     descTable
	idt     descTable
	code32  bool
	stack32 bool
}

func (m *Machine) ContextSave(reuse interface{}) (interface{}, error) {
	ctx, ok := reuse.(*Context)
	if !ok {
		ctx = &Context{}
	}
	*ctx = Context{m.Regs, m.segs, m.gdt, m.idt, m.code32, m.stack32}
	return ctx, nil
}

func (m *Machine) ContextRestore(v interface{}) error {
	ctx, ok := v.(*Context)
	if !ok {
		return errors.Errorf("ContextRestore: expected *Context, got %T", v)
	}
	m.Regs = ctx.Regs
	m.segs, m.gdt, m.idt = ctx.segs, ctx.gdt, ctx.idt
	m.code32, m.stack32 = ctx.code32, ctx.stack32
	m.updatePaging()
	return nil
}

func (m *Machine) portIn(port uint16, size int) uint32 {
	if port == 0x92 {
		if m.MMU.A20() {
			return 2
		}
		return 0
	}
	if m.Ports == nil {
		return uint32(widthMask(size))
	}
	return m.Ports.In(port, size)
}

func (m *Machine) portOut(port uint16, size int, val uint32) {
	if port == 0x92 {
		m.MMU.SetA20(val&2 != 0)
		return
	}
	if m.Ports != nil {
		m.Ports.Out(port, size, val)
	}
}
