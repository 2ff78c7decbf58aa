package mmu

import (
	"fmt"
)

type Access int

const (
	Read Access = iota
	Write
	Fetch
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case Fetch:
		return "fetch"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// page table levels for PageFault.Level
const (
	LevelDirectory = 1
	LevelTable     = 2
)

// PageFault is raised when a page walk finds an entry without the present bit.
// It is recoverable by the guest.
type PageFault struct {
	Addr   uint32
	Access Access
	Level  int
}

func (p *PageFault) Error() string {
	level := "directory"
	if p.Level == LevelTable {
		level = "table"
	}
	return fmt.Sprintf("page fault: %s at %#x (%s entry not present)", p.Access, p.Addr, level)
}

// Code returns the error code pushed by #PF.
func (p *PageFault) Code() uint32 {
	var code uint32
	switch p.Access {
	case Write:
		code |= 1 << 1
	case Fetch:
		code |= 1 << 4
	}
	return code
}
