package cpu

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func callAll(h *Hooks) {
	h.OnBlock(0x1000, 1)
	h.OnCode(0x1001, 2)
	h.OnIntr(3)
	h.OnMem(MEM_WRITE, 0x1002, 4, -1)
	h.OnMem(MEM_READ, 0x1002, 4, -1)
	h.OnFault(MEM_WRITE_UNMAPPED, 0x1003, 8, -2)
}

// this test ensures it's safe to dispatch all hooks while empty
func TestHooksEmpty(t *testing.T) {
	h := NewHooks(nil)
	callAll(h)
	if h.HasCode() || h.HasIntr() || h.HasMem() || h.HasFault() || h.HasBlock() {
		t.Fatal("empty hooks report callbacks")
	}
}

// checks if two lists of strings are equal
func strseq(a []string, b []string) error {
	if len(a) != len(b) {
		return errors.Errorf("output list length mismatch: %v != %v", a, b)
	}
	for i, v := range a {
		if v != b[i] {
			return errors.Errorf("output list value mismatch: %s != %s", v, b[i])
		}
	}
	return nil
}

func TestHooks(t *testing.T) {
	h := NewHooks(nil)
	compare := []string{
		"block(0x1000, 0x1)", "code(0x1001, 0x2)", "intr(3)",
		"mem(16, 0x1002, 4, -0x1)", "fault(20, 0x1003, 8, -0x2)",
	}
	var results []string
	blockCb := func(_ Cpu, addr uint64, size uint32) {
		results = append(results, fmt.Sprintf("block(%#x, %#x)", addr, size))
	}
	codeCb := func(_ Cpu, addr uint64, size uint32) {
		results = append(results, fmt.Sprintf("code(%#x, %#x)", addr, size))
	}
	intrCb := func(_ Cpu, intno uint32) {
		results = append(results, fmt.Sprintf("intr(%d)", intno))
	}
	writeCb := func(_ Cpu, access int, addr uint64, size int, val int64) {
		results = append(results, fmt.Sprintf("mem(%d, %#x, %d, %#x)", access, addr, size, val))
	}
	faultCb := func(_ Cpu, access int, addr uint64, size int, val int64) bool {
		results = append(results, fmt.Sprintf("fault(%d, %#x, %d, %#x)", access, addr, size, val))
		return val == 42
	}
	var hooks []Hook
	addHooks := func(h *Hooks) {
		for _, v := range []struct {
			htype int
			cb    interface{}
		}{
			{HOOK_BLOCK, blockCb}, {HOOK_CODE, codeCb}, {HOOK_INTR, intrCb},
			{HOOK_MEM_WRITE, writeCb}, {HOOK_MEM_ERR, faultCb},
		} {
			hh, err := h.HookAdd(v.htype, v.cb, 1, 0)
			if err != nil {
				t.Fatal(err)
			}
			hooks = append(hooks, hh)
		}
	}
	removeHooks := func(h *Hooks) {
		for _, v := range hooks {
			if err := h.HookDel(v); err != nil {
				t.Fatal(err)
			}
		}
		hooks = nil
	}
	addHooks(h)
	callAll(h)
	if err := strseq(results, compare); err != nil {
		t.Fatal(err)
	}
	results = nil

	// remove, add, remove, add, call
	removeHooks(h)
	addHooks(h)
	removeHooks(h)
	addHooks(h)
	callAll(h)
	if err := strseq(results, compare); err != nil {
		t.Fatal(err)
	}
	results = nil

	// add twice, every callback fires twice
	addHooks(h)
	callAll(h)
	compare2 := make([]string, 0, len(compare)*2)
	for _, v := range compare {
		compare2 = append(append(compare2, v), v)
	}
	if err := strseq(results, compare2); err != nil {
		t.Fatal(err)
	}

	if h.OnFault(MEM_WRITE_UNMAPPED, 0, 0, 42) != true {
		t.Fatal("OnFault positive return does not seem to work")
	}
	if h.OnFault(MEM_WRITE_UNMAPPED, 0, 0, 0) != false {
		t.Fatal("OnFault negative return does not seem to work")
	}
}

func TestHookAddErrors(t *testing.T) {
	h := NewHooks(nil)
	if _, err := h.HookAdd(HOOK_CODE, func() {}, 1, 0); err == nil {
		t.Error("HookAdd accepted a mistyped callback")
	}
	if _, err := h.HookAdd(12345, func(Cpu, uint32) {}, 1, 0); err == nil {
		t.Error("HookAdd accepted an unknown hook type")
	}
	if err := h.HookDel(42); err == nil {
		t.Error("HookDel accepted a non-hook")
	}
}

// positive and negative tests for each hook type with start-end range enabled
func TestHookRange(t *testing.T) {
	h := NewHooks(nil)
	compare := []string{
		"block(0x1000, 0x1)", "code(0x1000, 0x1)",
		"mem(16, 0x1000, 8, 0x0)", "fault(20, 0x1000, 8, 0x0)",
		"block(0x1fff, 0x1)",
	}
	var results []string
	blockCb := func(_ Cpu, addr uint64, size uint32) {
		results = append(results, fmt.Sprintf("block(%#x, %#x)", addr, size))
	}
	codeCb := func(_ Cpu, addr uint64, size uint32) {
		results = append(results, fmt.Sprintf("code(%#x, %#x)", addr, size))
	}
	writeCb := func(_ Cpu, access int, addr uint64, size int, val int64) {
		results = append(results, fmt.Sprintf("mem(%d, %#x, %d, %#x)", access, addr, size, val))
	}
	faultCb := func(_ Cpu, access int, addr uint64, size int, val int64) bool {
		results = append(results, fmt.Sprintf("fault(%d, %#x, %d, %#x)", access, addr, size, val))
		return false
	}
	if _, err := h.HookAdd(HOOK_BLOCK, blockCb, 0x1000, 0x1fff); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_CODE, codeCb, 0x1000, 0x1fff); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_MEM_WRITE, writeCb, 0x1000, 0x1fff); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_MEM_ERR, faultCb, 0x1000, 0x1fff); err != nil {
		t.Fatal(err)
	}
	for addr := uint64(0); addr < 0x4000; addr += 0x1000 {
		h.OnBlock(addr, 1)
		h.OnCode(addr, 1)
		h.OnMem(MEM_WRITE, addr, 8, 0)
		h.OnFault(MEM_WRITE_UNMAPPED, addr, 8, 0)
	}
	h.OnBlock(0x1fff, 1)
	if err := strseq(results, compare); err != nil {
		t.Fatal(err)
	}
}

func TestPackUint(t *testing.T) {
	for _, size := range []int{1, 2, 4, 6, 8} {
		val := uint64(0x0123456789abcdef) & (^uint64(0) >> uint(64-size*8))
		buf, err := PackUint(binary.LittleEndian, size, nil, val)
		if err != nil {
			t.Fatal(err)
		}
		if got, err := UnpackUint(binary.LittleEndian, size, buf); err != nil || got != val {
			t.Errorf("size %d: got %#x, %v", size, got, err)
		}
	}
	if _, err := PackUint(binary.LittleEndian, 9, nil, 0); err == nil {
		t.Error("PackUint accepted size 9")
	}
}

func BenchmarkHook(b *testing.B) {
	h := NewHooks(nil)
	codeCb := func(_ Cpu, addr uint64, size uint32) {}
	if _, err := h.HookAdd(HOOK_CODE, codeCb, 0x1000, 0x1fff); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.OnCode(0x1000, 1)
	}
}
