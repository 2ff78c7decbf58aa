package cpu

// hook enums keep Unicorn's values so callers can share constants
const (
	// hook CPU interrupts (INT n and exceptions routed to the host)
	HOOK_INTR = 1

	// hook each executed instruction
	HOOK_CODE = 4

	// hook each control transfer target
	HOOK_BLOCK = 8

	// hook (before) each memory read/write
	HOOK_MEM_READ  = 1024
	HOOK_MEM_WRITE = 2048
	HOOK_MEM_FETCH = 4096

	// hook all memory errors
	HOOK_MEM_ERR = 1008
)

// access faults passed to HOOK_MEM_ERR callbacks. A page that is not present
// is reported as unmapped.
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14

	MEM_PROT     = MEM_WRITE_PROT | MEM_READ_PROT | MEM_FETCH_PROT
	MEM_UNMAPPED = MEM_READ_UNMAPPED | MEM_WRITE_UNMAPPED | MEM_FETCH_UNMAPPED
)

// memory access types passed to HOOK_MEM_* callbacks
const (
	MEM_WRITE = 16
	MEM_READ  = 17
	MEM_FETCH = 18
)
