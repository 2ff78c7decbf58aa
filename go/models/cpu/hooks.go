package cpu

import (
	"github.com/pkg/errors"
)

type (
	CodeCb     = func(Cpu, uint64, uint32)
	IntrCb     = func(Cpu, uint32)
	MemCb      = func(Cpu, int, uint64, int, int64)
	MemFaultCb = func(Cpu, int, uint64, int, int64) bool
)

type hookInfo struct {
	htype int
	start uint64
	end   uint64
}

func (h *hookInfo) Type() int {
	return h.htype
}

// start > end hooks every address
func (h *hookInfo) Contains(addr uint64) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type hinfo interface {
	Type() int
}

type codeHook struct {
	hookInfo
	cb CodeCb
}

type intrHook struct {
	hookInfo
	cb IntrCb
}

type memHook struct {
	hookInfo
	cb MemCb
}

type memFaultHook struct {
	hookInfo
	cb MemFaultCb
}

// Hooks implements HookAdd/HookDel for interpreters and fans callbacks out.
// The Has* methods let a hot loop skip building callback arguments.
type Hooks struct {
	cpu Cpu

	code     []*codeHook
	block    []*codeHook
	intr     []*intrHook
	mem      []*memHook
	memFault []*memFaultHook
}

func NewHooks(cpu Cpu) *Hooks {
	return &Hooks{cpu: cpu}
}

func (h *Hooks) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (Hook, error) {
	info := hookInfo{htype, start, end}
	var ok bool
	var hook Hook
	switch htype {
	case HOOK_BLOCK, HOOK_CODE:
		hh := &codeHook{hookInfo: info}
		if hh.cb, ok = cb.(CodeCb); ok {
			if htype == HOOK_BLOCK {
				h.block = append(h.block, hh)
			} else {
				h.code = append(h.code, hh)
			}
		}
		hook = hh
	case HOOK_INTR:
		hh := &intrHook{hookInfo: info}
		if hh.cb, ok = cb.(IntrCb); ok {
			h.intr = append(h.intr, hh)
		}
		hook = hh
	case HOOK_MEM_READ, HOOK_MEM_WRITE, HOOK_MEM_READ | HOOK_MEM_WRITE:
		hh := &memHook{hookInfo: info}
		if hh.cb, ok = cb.(MemCb); ok {
			h.mem = append(h.mem, hh)
		}
		hook = hh
	case HOOK_MEM_ERR:
		hh := &memFaultHook{hookInfo: info}
		if hh.cb, ok = cb.(MemFaultCb); ok {
			h.memFault = append(h.memFault, hh)
		}
		hook = hh
	default:
		return nil, errors.Errorf("unknown hook type: %d", htype)
	}
	if !ok {
		return nil, errors.Errorf("wrong callback type %T for hook type %d", cb, htype)
	}
	return hook, nil
}

func without[T comparable](list []T, v T) []T {
	var tmp []T
	for _, e := range list {
		if e != v {
			tmp = append(tmp, e)
		}
	}
	return tmp
}

func (h *Hooks) HookDel(hh Hook) error {
	info, ok := hh.(hinfo)
	if !ok {
		return errors.Errorf("not a hook: %T", hh)
	}
	switch v := hh.(type) {
	case *codeHook:
		if info.Type() == HOOK_BLOCK {
			h.block = without(h.block, v)
		} else {
			h.code = without(h.code, v)
		}
	case *intrHook:
		h.intr = without(h.intr, v)
	case *memHook:
		h.mem = without(h.mem, v)
	case *memFaultHook:
		h.memFault = without(h.memFault, v)
	}
	return nil
}

func (h *Hooks) HasCode() bool  { return len(h.code) > 0 }
func (h *Hooks) HasBlock() bool { return len(h.block) > 0 }
func (h *Hooks) HasIntr() bool  { return len(h.intr) > 0 }
func (h *Hooks) HasMem() bool   { return len(h.mem) > 0 }
func (h *Hooks) HasFault() bool { return len(h.memFault) > 0 }

func (h *Hooks) OnBlock(addr uint64, size uint32) {
	for _, v := range h.block {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnCode(addr uint64, size uint32) {
	for _, v := range h.code {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnIntr(intno uint32) {
	for _, v := range h.intr {
		v.cb(h.cpu, intno)
	}
}

func (h *Hooks) OnMem(access int, addr uint64, size int, val int64) {
	for _, v := range h.mem {
		if v.Contains(addr) && v.wants(access) {
			v.cb(h.cpu, access, addr, size, val)
		}
	}
}

func (h *memHook) wants(access int) bool {
	switch access {
	case MEM_READ, MEM_FETCH:
		return h.htype&HOOK_MEM_READ != 0
	case MEM_WRITE:
		return h.htype&HOOK_MEM_WRITE != 0
	}
	return false
}

// OnFault returns true if any callback handled the fault.
func (h *Hooks) OnFault(access int, addr uint64, size int, val int64) bool {
	for _, v := range h.memFault {
		if v.Contains(addr) {
			if v.cb(h.cpu, access, addr, size, val) {
				return true
			}
		}
	}
	return false
}
