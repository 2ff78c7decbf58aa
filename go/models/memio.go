package models

import (
	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// MemReader reads guest memory sequentially from Addr.
type MemReader struct {
	Cpu  cpu.Cpu
	Addr uint64
}

func (m *MemReader) Read(p []byte) (int, error) {
	if err := m.Cpu.MemReadInto(p, m.Addr); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

// MemWriter writes guest memory sequentially from Addr.
type MemWriter struct {
	Cpu  cpu.Cpu
	Addr uint64
}

func (m *MemWriter) Write(p []byte) (int, error) {
	if err := m.Cpu.MemWrite(m.Addr, p); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}
