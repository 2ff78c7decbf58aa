package catalog

import "fmt"

type RegClass uint8

const (
	ClassNone RegClass = iota
	ClassByte
	ClassWord // AX..DI, widened to EAX..EDI under a 32-bit operand size
	ClassDword
	ClassSegment
	ClassControl
	ClassDebug
	ClassStack // x87 ST(i)
)

func (c RegClass) String() string {
	switch c {
	case ClassByte:
		return "byte"
	case ClassWord:
		return "word"
	case ClassDword:
		return "dword"
	case ClassSegment:
		return "segment"
	case ClassControl:
		return "control"
	case ClassDebug:
		return "debug"
	case ClassStack:
		return "fpu"
	default:
		return fmt.Sprintf("RegClass(%d)", c)
	}
}

// Register is an architectural register together with its 3-bit encoding.
type Register struct {
	Name  string
	Class RegClass
	Index uint8
}

func (r *Register) String() string { return r.Name }

var (
	AL = &Register{"al", ClassByte, 0}
	CL = &Register{"cl", ClassByte, 1}
	DL = &Register{"dl", ClassByte, 2}
	BL = &Register{"bl", ClassByte, 3}
	AH = &Register{"ah", ClassByte, 4}
	CH = &Register{"ch", ClassByte, 5}
	DH = &Register{"dh", ClassByte, 6}
	BH = &Register{"bh", ClassByte, 7}

	AX = &Register{"ax", ClassWord, 0}
	CX = &Register{"cx", ClassWord, 1}
	DX = &Register{"dx", ClassWord, 2}
	BX = &Register{"bx", ClassWord, 3}
	SP = &Register{"sp", ClassWord, 4}
	BP = &Register{"bp", ClassWord, 5}
	SI = &Register{"si", ClassWord, 6}
	DI = &Register{"di", ClassWord, 7}

	EAX = &Register{"eax", ClassDword, 0}
	ECX = &Register{"ecx", ClassDword, 1}
	EDX = &Register{"edx", ClassDword, 2}
	EBX = &Register{"ebx", ClassDword, 3}
	ESP = &Register{"esp", ClassDword, 4}
	EBP = &Register{"ebp", ClassDword, 5}
	ESI = &Register{"esi", ClassDword, 6}
	EDI = &Register{"edi", ClassDword, 7}

	ES = &Register{"es", ClassSegment, 0}
	CS = &Register{"cs", ClassSegment, 1}
	SS = &Register{"ss", ClassSegment, 2}
	DS = &Register{"ds", ClassSegment, 3}
	FS = &Register{"fs", ClassSegment, 4}
	GS = &Register{"gs", ClassSegment, 5}

	ST0 = &Register{"st0", ClassStack, 0}
	ST1 = &Register{"st1", ClassStack, 1}
	ST2 = &Register{"st2", ClassStack, 2}
	ST3 = &Register{"st3", ClassStack, 3}
	ST4 = &Register{"st4", ClassStack, 4}
	ST5 = &Register{"st5", ClassStack, 5}
	ST6 = &Register{"st6", ClassStack, 6}
	ST7 = &Register{"st7", ClassStack, 7}
)

// Encoding index -> register. The byte table is not index-monotonic in the
// high/low halves (4 is AH, not SPL) so these must stay lookup tables.
var (
	ByteRegisters  = [8]*Register{AL, CL, DL, BL, AH, CH, DH, BH}
	WordRegisters  = [8]*Register{AX, CX, DX, BX, SP, BP, SI, DI}
	DwordRegisters = [8]*Register{EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI}
	StackRegisters = [8]*Register{ST0, ST1, ST2, ST3, ST4, ST5, ST6, ST7}
	// 6 and 7 do not encode a segment register.
	SegmentRegisters = [8]*Register{ES, CS, SS, DS, FS, GS, nil, nil}
)

// RegistersByName covers every register that may appear as a fixed operand token.
var RegistersByName = map[string]*Register{}

func init() {
	for _, set := range [][8]*Register{ByteRegisters, WordRegisters, DwordRegisters, StackRegisters, SegmentRegisters} {
		for _, r := range set {
			if r != nil {
				RegistersByName[r.Name] = r
			}
		}
	}
}

// RegisterFamily returns the lookup table used to expand a register-coded
// descriptor whose coded operand belongs to class c.
func RegisterFamily(c RegClass) (*[8]*Register, bool) {
	switch c {
	case ClassByte:
		return &ByteRegisters, true
	case ClassWord:
		return &WordRegisters, true
	case ClassDword:
		return &DwordRegisters, true
	case ClassStack:
		return &StackRegisters, true
	}
	return nil, false
}
