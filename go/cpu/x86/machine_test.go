package x86

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/x86emu/go/cpu/x86/mmu"
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

const codeBase = 0x100

func newTestMachine(t testing.TB, code ...byte) *Machine {
	t.Helper()
	m := NewMachine(1 << 20)
	m.EIP = codeBase
	m.R[ESP] = 0x8000
	if err := m.MemWrite(codeBase, code); err != nil {
		t.Fatal(err)
	}
	return m
}

func steps(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("step %d at %#x: %v", i, m.EIP, err)
		}
	}
}

func TestAddRegisters(t *testing.T) {
	m := newTestMachine(t, 0x01, 0xd8)
	m.SetReg16(EAX, 5)
	m.SetReg16(EBX, 3)
	steps(t, m, 1)
	if ax := m.Reg16(EAX); ax != 8 {
		t.Fatalf("AX = %d, want 8", ax)
	}
	if m.EIP != codeBase+2 {
		t.Fatalf("EIP = %#x, want %#x", m.EIP, codeBase+2)
	}
	if m.EFLAGS&(FlagZF|FlagCF|FlagOF) != 0 {
		t.Fatalf("flags %#x after 5+3", m.EFLAGS)
	}
}

func TestAddFlags(t *testing.T) {
	tests := []struct {
		a, b, res uint16
		flags     uint32
	}{
		{5, 3, 8, 0},
		{0xffff, 1, 0, FlagCF | FlagZF | FlagPF | FlagAF},
		{0x7fff, 1, 0x8000, FlagOF | FlagSF | FlagPF | FlagAF},
		{0x8000, 0x8000, 0, FlagCF | FlagZF | FlagOF | FlagPF},
	}
	for _, test := range tests {
		m := newTestMachine(t, 0x01, 0xd8)
		m.SetReg16(EAX, test.a)
		m.SetReg16(EBX, test.b)
		steps(t, m, 1)
		if got := m.Reg16(EAX); got != test.res {
			t.Errorf("%#x+%#x = %#x, want %#x", test.a, test.b, got, test.res)
		}
		if got := m.EFLAGS & flagsArith; got != test.flags {
			t.Errorf("%#x+%#x: flags %#x, want %#x", test.a, test.b, got, test.flags)
		}
	}
}

func TestOperandSizePrefix(t *testing.T) {
	m := newTestMachine(t, 0x66, 0x01, 0xd8, 0x01, 0xd8)
	m.R[EAX], m.R[EBX] = 0x1ffff, 1
	steps(t, m, 1)
	if m.R[EAX] != 0x20000 || m.EIP != codeBase+3 {
		t.Fatalf("EAX = %#x, EIP = %#x", m.R[EAX], m.EIP)
	}
	// the prefix does not leak into the next instruction
	m.R[EAX] = 0x1ffff
	steps(t, m, 1)
	if m.R[EAX] != 0x10000 {
		t.Fatalf("EAX = %#x after 16-bit add", m.R[EAX])
	}
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name  string
		code  []byte
		setup func(m *Machine)
		want  map[int]uint32
	}{
		{name: "shl", code: []byte{0xb8, 0x01, 0x00, 0xd1, 0xe0}, want: map[int]uint32{EAX: 2}},
		{name: "sar", code: []byte{0xb8, 0x00, 0x80, 0xc1, 0xf8, 0x04}, want: map[int]uint32{EAX: 0xf800}},
		{name: "imul3", code: []byte{0xb9, 0x07, 0x00, 0x6b, 0xc1, 0x06}, want: map[int]uint32{EAX: 42, ECX: 7}},
		{name: "movzx", code: []byte{0xb3, 0xff, 0x0f, 0xb6, 0xc3}, want: map[int]uint32{EAX: 0xff}},
		{name: "movsx", code: []byte{0xb3, 0xff, 0x0f, 0xbe, 0xc3}, want: map[int]uint32{EAX: 0xffff}},
		{name: "xchg", code: []byte{0xb8, 0x01, 0x00, 0xbb, 0x02, 0x00, 0x93}, want: map[int]uint32{EAX: 2, EBX: 1}},
		{name: "lea", code: []byte{0xbb, 0x00, 0x10, 0xbe, 0x20, 0x00, 0x8d, 0x40, 0x05}, want: map[int]uint32{EAX: 0x1025}},
		{name: "neg", code: []byte{0xb8, 0x05, 0x00, 0xf7, 0xd8}, want: map[int]uint32{EAX: 0xfffb}},
		{name: "mul", code: []byte{0xb8, 0x00, 0x01, 0xbb, 0x00, 0x01, 0xf7, 0xe3}, want: map[int]uint32{EAX: 0, EDX: 1}},
		{name: "div8", code: []byte{0xb8, 0x64, 0x00, 0xb3, 0x07, 0xf6, 0xf3}, want: map[int]uint32{EAX: 0x020e}},
		{name: "bswap", code: []byte{0x66, 0xb8, 0x78, 0x56, 0x34, 0x12, 0x0f, 0xc8}, want: map[int]uint32{EAX: 0x78563412}},
		{name: "sete", code: []byte{0x31, 0xc0, 0x0f, 0x94, 0xc3}, want: map[int]uint32{EAX: 0, EBX: 1}},
		{name: "bsf", code: []byte{0xbb, 0x00, 0x01, 0x0f, 0xbc, 0xc3}, want: map[int]uint32{EAX: 8}},
		{name: "cwd", code: []byte{0xb8, 0x00, 0x80, 0x99}, want: map[int]uint32{EDX: 0xffff}},
		{name: "daa", code: []byte{0xb0, 0x15, 0x04, 0x27, 0x27}, want: map[int]uint32{EAX: 0x42}},
		{name: "shld", code: []byte{0xb8, 0x34, 0x12, 0xbb, 0xcd, 0xab, 0x0f, 0xa4, 0xd8, 0x04}, want: map[int]uint32{EAX: 0x234a}},
		{name: "enter/leave", code: []byte{0xbd, 0x34, 0x12, 0xc8, 0x04, 0x00, 0x00, 0xc9}, want: map[int]uint32{ESP: 0x8000, EBP: 0x1234}},
		{name: "pushf/pop", code: []byte{0x9c, 0x58}, want: map[int]uint32{EAX: flagsFixed, ESP: 0x8000}},
		{name: "push/pop", code: []byte{0xb8, 0x34, 0x12, 0x50, 0x5b}, want: map[int]uint32{EBX: 0x1234, ESP: 0x8000}},
		{
			name: "xlat",
			code: []byte{0xbb, 0x00, 0x20, 0xb0, 0x03, 0xd7},
			setup: func(m *Machine) {
				m.MemWrite(0x2000, []byte{10, 11, 12, 13})
			},
			want: map[int]uint32{EAX: 13},
		},
		{
			name: "les",
			code: []byte{0xc4, 0x1e, 0x00, 0x20, 0x8c, 0xc0},
			setup: func(m *Machine) {
				m.MemWrite(0x2000, []byte{0x34, 0x12, 0x78, 0x56})
			},
			want: map[int]uint32{EBX: 0x1234, EAX: 0x5678},
		},
		{
			name: "pusha/popa",
			code: []byte{0xb8, 0x01, 0x00, 0xbf, 0x07, 0x00, 0x60, 0x31, 0xc0, 0x31, 0xff, 0x61},
			want: map[int]uint32{EAX: 1, EDI: 7, ESP: 0x8000},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := newTestMachine(t, test.code...)
			if test.setup != nil {
				test.setup(m)
			}
			if err := m.Start(codeBase, uint64(codeBase+len(test.code))); err != nil {
				t.Fatal(err)
			}
			for reg, want := range test.want {
				if m.R[reg] != want {
					t.Errorf("reg %d = %#x, want %#x", reg, m.R[reg], want)
				}
			}
		})
	}
}

func TestCallRetHalt(t *testing.T) {
	m := newTestMachine(t,
		0xe8, 0x01, 0x00, // call 0x104
		0xf4,             // hlt
		0xb8, 0x2a, 0x00, // mov ax, 42
		0xc3, // ret
	)
	if err := m.Run(0); err != nil {
		t.Fatal(err)
	}
	if !m.Halted() || m.Reg16(EAX) != 42 || m.R[ESP] != 0x8000 {
		t.Fatalf("halted=%v AX=%d SP=%#x", m.Halted(), m.Reg16(EAX), m.R[ESP])
	}
	if m.Ticks != 4 {
		t.Fatalf("retired %d instructions, want 4", m.Ticks)
	}
}

func TestConditionalJump(t *testing.T) {
	m := newTestMachine(t,
		0x31, 0xc0, // xor ax, ax
		0x74, 0x02, // jz +2
		0x40, 0x40,
		0x40, // inc ax
	)
	if err := m.Start(codeBase, codeBase+7); err != nil {
		t.Fatal(err)
	}
	if m.Reg16(EAX) != 1 {
		t.Fatalf("AX = %d, jz not taken", m.Reg16(EAX))
	}
}

func TestLoop(t *testing.T) {
	m := newTestMachine(t,
		0xb9, 0x05, 0x00, // mov cx, 5
		0x31, 0xc0, // xor ax, ax
		0x40,       // inc ax
		0xe2, 0xfd, // loop -3
	)
	if err := m.Start(codeBase, codeBase+8); err != nil {
		t.Fatal(err)
	}
	if m.Reg16(EAX) != 5 || m.Reg16(ECX) != 0 {
		t.Fatalf("AX=%d CX=%d", m.Reg16(EAX), m.Reg16(ECX))
	}
}

func TestRepStos(t *testing.T) {
	m := newTestMachine(t,
		0xb0, 0xaa, // mov al, 0xaa
		0xb9, 0x10, 0x00, // mov cx, 16
		0xbf, 0x00, 0x20, // mov di, 0x2000
		0xf3, 0xaa, // rep stosb
	)
	steps(t, m, 4)
	if m.Reg16(ECX) != 0 || m.Reg16(EDI) != 0x2010 {
		t.Fatalf("CX=%#x DI=%#x", m.Reg16(ECX), m.Reg16(EDI))
	}
	mem, _ := m.MemRead(0x2000, 17)
	for i, b := range mem[:16] {
		if b != 0xaa {
			t.Fatalf("byte %d = %#x", i, b)
		}
	}
	if mem[16] != 0 {
		t.Fatal("rep stosb overran")
	}
}

func TestRepeCmps(t *testing.T) {
	m := newTestMachine(t, 0xf3, 0xa6)
	m.MemWrite(0x3000, []byte("abcX"))
	m.MemWrite(0x3100, []byte("abcY"))
	m.SetReg16(ESI, 0x3000)
	m.SetReg16(EDI, 0x3100)
	m.SetReg16(ECX, 10)
	steps(t, m, 1)
	if m.Reg16(ECX) != 6 || m.Reg16(ESI) != 0x3004 || m.flag(FlagZF) {
		t.Fatalf("CX=%d SI=%#x ZF=%v", m.Reg16(ECX), m.Reg16(ESI), m.flag(FlagZF))
	}
}

func TestSegmentOverride(t *testing.T) {
	m := newTestMachine(t,
		0x26, 0x8b, 0x07, // mov ax, es:[bx]
		0x8b, 0x0f, // mov cx, [bx]
	)
	if err := m.RegWrite(RegES, 0x100); err != nil {
		t.Fatal(err)
	}
	m.SetReg16(EBX, 0x10)
	m.MemWrite(0x1010, []byte{0xef, 0xbe})
	m.MemWrite(0x0010, []byte{0x34, 0x12})
	steps(t, m, 2)
	if m.Reg16(EAX) != 0xbeef || m.Reg16(ECX) != 0x1234 {
		t.Fatalf("AX=%#x CX=%#x", m.Reg16(EAX), m.Reg16(ECX))
	}
}

func TestDivideErrorRealMode(t *testing.T) {
	m := newTestMachine(t,
		0x31, 0xc9, // xor cx, cx
		0xf7, 0xf1, // div cx
	)
	// vector 0 -> 0000:0500, which halts
	m.MemWrite(0, []byte{0x00, 0x05, 0x00, 0x00})
	m.MemWrite(0x500, []byte{0xf4})
	if err := m.Run(0); err != nil {
		t.Fatal(err)
	}
	if !m.Halted() || m.EIP != 0x501 {
		t.Fatalf("halted=%v EIP=%#x", m.Halted(), m.EIP)
	}
	ret, _ := m.MemRead(0x7ffa, 2)
	if ret[0] != 0x02 || ret[1] != 0x01 {
		t.Fatalf("return address % x, want the faulting div", ret)
	}
}

func TestDivideErrorUndelivered(t *testing.T) {
	m := newTestMachine(t, 0x31, 0xc9, 0xf7, 0xf1)
	m.SetIDT(0, 0)
	if err := m.RegWrite(RegCR0, CR0_PE); err != nil {
		t.Fatal(err)
	}
	steps(t, m, 1)
	err := m.Step()
	if errors.Cause(err) != ErrDivide {
		t.Fatalf("got %v, want divide error", err)
	}
	if m.EIP != codeBase+2 {
		t.Fatalf("EIP = %#x, want the div", m.EIP)
	}
}

func TestDecodeFault(t *testing.T) {
	for _, code := range [][]byte{{0xf1}, {0x0f, 0xff}, {0x66, 0x0f, 0xff}} {
		m := newTestMachine(t, code...)
		err := m.Step()
		d, ok := errors.Cause(err).(*DecodeFault)
		if !ok {
			t.Fatalf("% x: got %v", code, err)
		}
		if d.Addr != codeBase || d.Bytes[0] != code[len(code)-len(d.Bytes)] {
			t.Errorf("% x: fault %+v", code, d)
		}
		if m.EIP != codeBase || m.opPrefix {
			t.Errorf("% x: EIP=%#x opPrefix=%v after fault", code, m.EIP, m.opPrefix)
		}
	}
}

func TestUnimplementedSizeFault(t *testing.T) {
	m := newTestMachine(t, 0x66, 0xcf)
	err := m.Step()
	u, ok := errors.Cause(err).(*UnimplementedSizeFault)
	if !ok {
		t.Fatalf("got %v", err)
	}
	if u.Name != "iret" || !u.Op32 || u.Addr32 || u.Addr != codeBase {
		t.Fatalf("fault %+v", u)
	}
	if m.EIP != codeBase {
		t.Fatalf("EIP = %#x", m.EIP)
	}
}

func TestAddressingFault(t *testing.T) {
	m := newTestMachine(t, 0x8d, 0xc0)
	err := m.Step()
	a, ok := errors.Cause(err).(*AddressingFault)
	if !ok || a.ModRM != 0xc0 || a.Name != "lea" {
		t.Fatalf("got %v", err)
	}
}

// pagedMachine identity maps the first 1MB except the pages listed in holes.
func pagedMachine(t *testing.T, code []byte, holes ...uint32) *Machine {
	t.Helper()
	m := newTestMachine(t, code...)
	const dir, table = 0x10000, 0x11000
	phys := m.MMU.Phys
	phys.Write32(dir, table|3)
	for page := uint32(0); page < 0x100; page++ {
		phys.Write32(table+page*4, page<<12|3)
	}
	for _, page := range holes {
		phys.Write32(table+page*4, 0)
	}
	m.SetIDT(0, 0)
	if err := m.RegWrite(RegCR3, dir); err != nil {
		t.Fatal(err)
	}
	if err := m.RegWrite(RegCR0, CR0_PE|CR0_PG); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPageFaultRestart(t *testing.T) {
	m := pagedMachine(t, []byte{0x3e, 0xa1, 0x00, 0x00}, 0x50) // mov ax, ds:[0]
	m.segs[DS].base = 0x50000
	err := m.Step()
	pf, ok := errors.Cause(err).(*mmu.PageFault)
	if !ok {
		t.Fatalf("got %v, want a page fault", err)
	}
	if pf.Addr != 0x50000 || pf.Access != mmu.Read {
		t.Fatalf("fault %+v", pf)
	}
	if m.CR[2] != 0x50000 || m.EIP != codeBase || m.override != -1 {
		t.Fatalf("CR2=%#x EIP=%#x override=%d", m.CR[2], m.EIP, m.override)
	}
	if _, ok := m.MMU.Cached(0x50000); ok {
		t.Fatal("faulting page was cached")
	}

	m.MMU.Phys.Write32(0x11000+0x50*4, 0x60000|3)
	m.MMU.Phys.Write16(0x60000, 0xcafe)
	steps(t, m, 1)
	if m.Reg16(EAX) != 0xcafe || m.EIP != codeBase+4 {
		t.Fatalf("AX=%#x EIP=%#x after restart", m.Reg16(EAX), m.EIP)
	}
}

func TestPageFaultHook(t *testing.T) {
	m := pagedMachine(t, []byte{0xc7, 0x06, 0x00, 0x00, 0x34, 0x12}, 0x50) // mov word [0], 0x1234
	m.segs[DS].base = 0x50000
	var faults []uint64
	_, err := m.HookAdd(cpu.HOOK_MEM_ERR, func(_ cpu.Cpu, access int, addr uint64, size int, val int64) bool {
		if access != cpu.MEM_WRITE_UNMAPPED {
			t.Errorf("access %d", access)
		}
		faults = append(faults, addr)
		m.MMU.Phys.Write32(0x11000+0x50*4, 0x50000|3)
		return true
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	steps(t, m, 1)
	if m.EIP != codeBase || len(faults) != 1 || faults[0] != 0x50000 {
		t.Fatalf("EIP=%#x faults=%x", m.EIP, faults)
	}
	steps(t, m, 1)
	if v, _ := m.MemRead(0x50000, 2); v[0] != 0x34 || v[1] != 0x12 {
		t.Fatalf("memory % x", v)
	}
}

func TestMovCR3Flushes(t *testing.T) {
	m := pagedMachine(t, []byte{
		0xa1, 0x00, 0x00, // mov ax, [0]
		0x0f, 0x22, 0xd9, // mov cr3, ecx
		0xa1, 0x00, 0x00,
	})
	m.segs[DS].base = 0x50000
	m.R[ECX] = 0x10000
	steps(t, m, 1)
	if _, ok := m.MMU.Cached(0x50000); !ok {
		t.Fatal("translation not cached")
	}
	steps(t, m, 1)
	if _, ok := m.MMU.Cached(0x50000); ok {
		t.Fatal("CR3 write kept the cache")
	}
	walks := m.MMU.Walks
	steps(t, m, 1)
	if m.MMU.Walks <= walks {
		t.Fatal("no fresh walk after CR3 write")
	}
}

func TestInvlpgAddressSize(t *testing.T) {
	m := pagedMachine(t, []byte{
		0x67, 0xa1, 0x00, 0x00, 0x05, 0x00, // mov ax, [0x50000]
		0x67, 0x0f, 0x01, 0x3d, 0x00, 0x00, 0x05, 0x00, // invlpg [0x50000]
	})
	steps(t, m, 1)
	if _, ok := m.MMU.Cached(0x50000); !ok {
		t.Fatal("translation not cached")
	}
	steps(t, m, 1)
	if _, ok := m.MMU.Cached(0x50000); ok {
		t.Fatal("invlpg with a 16-bit operand size kept the page cached")
	}
	if m.EIP != 0x10e {
		t.Fatalf("EIP = %#x, want 0x10e", m.EIP)
	}
}

func TestDescriptorTableRegisters(t *testing.T) {
	m := newTestMachine(t,
		0x0f, 0x01, 0x16, 0x00, 0x20, // lgdt [0x2000]
		0x0f, 0x01, 0x06, 0x00, 0x30, // sgdt [0x3000]
	)
	if err := m.MemWrite(0x2000, []byte{0x27, 0x00, 0x56, 0x34, 0x12, 0x99}); err != nil {
		t.Fatal(err)
	}
	steps(t, m, 2)
	if m.gdt.base != 0x123456 || m.gdt.limit != 0x27 {
		t.Fatalf("gdt = %#x/%#x", m.gdt.base, m.gdt.limit)
	}
	got, err := m.MemRead(0x3000, 6)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x27, 0x00, 0x56, 0x34, 0x12, 0x00}, got); diff != "" {
		t.Fatalf("sgdt image (-want +got):\n%s", diff)
	}
}

func TestA20Port(t *testing.T) {
	m := newTestMachine(t,
		0xe4, 0x92, // in al, 0x92
		0x88, 0xc3, // mov bl, al
		0xb0, 0x00, // mov al, 0
		0xe6, 0x92, // out 0x92, al
	)
	steps(t, m, 4)
	if m.Reg8(EBX) != 2 {
		t.Fatalf("port 0x92 read %#x with A20 on", m.Reg8(EBX))
	}
	if m.MMU.A20() {
		t.Fatal("A20 still enabled")
	}
}

type recordPorts struct {
	out []uint32
}

func (p *recordPorts) In(port uint16, size int) uint32 { return uint32(port) + uint32(size) }

func (p *recordPorts) Out(port uint16, size int, val uint32) {
	p.out = append(p.out, uint32(port), uint32(size), val)
}

func TestPorts(t *testing.T) {
	ports := &recordPorts{}
	b := &Builder{Ports: ports}
	m, err := b.NewMachine()
	if err != nil {
		t.Fatal(err)
	}
	code := []byte{
		0xba, 0x10, 0x03, // mov dx, 0x310
		0xed,       // in ax, dx
		0x66, 0xef, // out dx, eax
	}
	m.MemWrite(codeBase, code)
	if err := m.Start(codeBase, codeBase+uint64(len(code))); err != nil {
		t.Fatal(err)
	}
	if m.Reg16(EAX) != 0x312 {
		t.Fatalf("in ax,dx = %#x", m.Reg16(EAX))
	}
	if len(ports.out) != 3 || ports.out[0] != 0x310 || ports.out[1] != 4 {
		t.Fatalf("out calls %x", ports.out)
	}
}

func TestVideoWrite(t *testing.T) {
	m, err := (&Builder{Video: true}).NewMachine()
	if err != nil {
		t.Fatal(err)
	}
	code := []byte{
		0xb8, 0x00, 0xb8, // mov ax, 0xb800
		0x8e, 0xc0, // mov es, ax
		0x31, 0xff, // xor di, di
		0xb8, 0x48, 0x07, // mov ax, 0x0748
		0xab,       // stosw
		0xb0, 0x69, // mov al, 'i'
		0xab, // stosw
	}
	m.MemWrite(codeBase, code)
	if err := m.Start(codeBase, codeBase+uint64(len(code))); err != nil {
		t.Fatal(err)
	}
	fb := m.MMU.Phys.Video().(*mmu.FrameBuffer)
	if line := strings.SplitN(fb.Text(80, 25), "\n", 2)[0]; line != "Hi" {
		t.Fatalf("screen line %q", line)
	}
	if fb.Writes != 4 {
		t.Fatalf("%d video writes, want 4", fb.Writes)
	}
}

func TestInterruptHook(t *testing.T) {
	m := newTestMachine(t, 0xcd, 0x21)
	var got []uint32
	if _, err := m.HookAdd(cpu.HOOK_INTR, func(_ cpu.Cpu, intno uint32) {
		got = append(got, intno)
	}, 1, 0); err != nil {
		t.Fatal(err)
	}
	steps(t, m, 1)
	if len(got) != 1 || got[0] != 0x21 || m.EIP != codeBase+2 {
		t.Fatalf("intr %v, EIP %#x", got, m.EIP)
	}
}

func TestFPUAdd(t *testing.T) {
	m := newTestMachine(t,
		0xd9, 0xe8, // fld1
		0xd9, 0xe8, // fld1
		0xde, 0xc1, // faddp st1, st
		0xdf, 0x1e, 0x00, 0x20, // fistp word [0x2000]
	)
	steps(t, m, 4)
	if v, _ := m.MemRead(0x2000, 2); v[0] != 2 || v[1] != 0 {
		t.Fatalf("fistp stored % x", v)
	}
	if m.FPU.Top != 0 {
		t.Fatalf("fpu top %d after balanced pushes", m.FPU.Top)
	}
}

func TestContextRestore(t *testing.T) {
	m := newTestMachine(t, 0x40)
	m.SetReg16(EAX, 7)
	ctx, err := m.ContextSave(nil)
	if err != nil {
		t.Fatal(err)
	}
	steps(t, m, 1)
	if err := m.ContextRestore(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Reg16(EAX) != 7 || m.EIP != codeBase {
		t.Fatalf("AX=%d EIP=%#x after restore", m.Reg16(EAX), m.EIP)
	}
	if err := m.ContextRestore("bogus"); err == nil {
		t.Fatal("restored a bogus context")
	}
}

func TestCodeHooks(t *testing.T) {
	m := newTestMachine(t, 0x40, 0x40, 0xeb, 0xfc) // inc ax; inc ax; jmp -4
	var code, blocks int
	m.HookAdd(cpu.HOOK_CODE, func(_ cpu.Cpu, addr uint64, size uint32) { code++ }, 1, 0)
	m.HookAdd(cpu.HOOK_BLOCK, func(_ cpu.Cpu, addr uint64, size uint32) { blocks++ }, 1, 0)
	if err := m.Run(6); err != nil {
		t.Fatal(err)
	}
	if code != 6 || blocks != 2 {
		t.Fatalf("code hooks %d, block hooks %d", code, blocks)
	}
}

func TestConcurrentMachines(t *testing.T) {
	var g errgroup.Group
	results := make([]uint16, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			m := NewMachine(0x10000)
			code := []byte{
				0xb9, byte(i + 1), 0x00, // mov cx, i+1
				0x31, 0xc0, // xor ax, ax
				0x01, 0xc8, // add ax, cx
				0xe2, 0xfc, // loop -4
			}
			m.R[ESP] = 0x8000
			if err := m.MemWrite(codeBase, code); err != nil {
				return err
			}
			if err := m.Start(codeBase, codeBase+uint64(len(code))); err != nil {
				return err
			}
			results[i] = m.Reg16(EAX)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, got := range results {
		n := uint16(i + 1)
		if want := n * (n + 1) / 2; got != want {
			t.Errorf("machine %d: AX = %d, want %d", i, got, want)
		}
	}
}

func BenchmarkStep(b *testing.B) {
	m := newTestMachine(b, 0x01, 0xd8, 0xeb, 0xfc) // add ax, bx; jmp -4
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
