package catalog

import "fmt"

// Kind is the closed set of operand forms the specializer knows how to load.
type Kind uint8

const (
	_              Kind = iota
	KindReg             // a fixed register named by the token
	KindRegField        // ModR/M reg field selects a general register
	KindRegRM           // ModR/M rm field selects a general register regardless of mod
	KindSegField        // ModR/M reg field selects a segment register
	KindControl         // ModR/M reg field selects a control register
	KindDebug           // ModR/M reg field selects a debug register
	KindStackField      // x87 ST(i), coded in the opcode or the rm field
	KindImm             // immediate, possibly sign-extended to the operand size
	KindRel             // instruction-pointer relative target
	KindMOffs           // absolute memory offset encoded after the opcode
	KindRM              // ModR/M register-or-memory
	KindMem             // ModR/M memory only
	KindEA              // ModR/M effective address only, memory is never touched
	KindFarImm          // immediate seg:offset pair
	KindFarMem          // seg:offset pair stored in memory
	KindDesc            // 6-byte descriptor-table pseudo pointer in memory
	KindConst           // implicit constant (shift by 1)
)

var kindNames = map[Kind]string{
	KindReg:        "register",
	KindRegField:   "register field",
	KindRegRM:      "register (rm)",
	KindSegField:   "segment register",
	KindControl:    "control register",
	KindDebug:      "debug register",
	KindStackField: "fpu register",
	KindImm:        "immediate",
	KindRel:        "relative",
	KindMOffs:      "memory offset",
	KindRM:         "register or memory",
	KindMem:        "memory",
	KindEA:         "effective address",
	KindFarImm:     "far pointer",
	KindFarMem:     "far memory pointer",
	KindDesc:       "pseudo descriptor",
	KindConst:      "constant",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Operand is one parsed operand token. Size is the value width in bytes, or
// 0 when the width follows the operand-size attribute (2 or 4). Enc is the
// number of instruction bytes an immediate occupies, with the same 0 rule.
type Operand struct {
	Token  string
	Kind   Kind
	Size   int
	Enc    int
	Class  RegClass
	Reg    *Register
	Signed bool
	Value  uint64 // KindConst
}

var tokens = map[string]Operand{
	"1":    {Kind: KindConst, Size: 1, Value: 1},
	"st":   {Kind: KindReg, Size: 10, Class: ClassStack, Reg: ST0},
	"rb":   {Kind: KindRegField, Size: 1, Class: ClassByte},
	"rw":   {Kind: KindRegField, Class: ClassWord},
	"rd":   {Kind: KindRegField, Size: 4, Class: ClassDword},
	"rrm":  {Kind: KindRegRM, Size: 4, Class: ClassDword},
	"sreg": {Kind: KindSegField, Size: 2, Class: ClassSegment},
	"creg": {Kind: KindControl, Size: 4, Class: ClassControl},
	"dreg": {Kind: KindDebug, Size: 4, Class: ClassDebug},
	"sti":  {Kind: KindStackField, Size: 10, Class: ClassStack},

	"ib":  {Kind: KindImm, Size: 1, Enc: 1},
	"ibs": {Kind: KindImm, Enc: 1, Signed: true},
	"iw":  {Kind: KindImm},
	"i16": {Kind: KindImm, Size: 2, Enc: 2},

	"relb": {Kind: KindRel, Enc: 1, Signed: true},
	"relw": {Kind: KindRel, Signed: true},

	"moffsb": {Kind: KindMOffs, Size: 1},
	"moffsw": {Kind: KindMOffs},

	"rmb":  {Kind: KindRM, Size: 1, Class: ClassByte},
	"rmw":  {Kind: KindRM, Class: ClassWord},
	"rm16": {Kind: KindRM, Size: 2, Class: ClassWord},

	"m":     {Kind: KindEA},
	"m16":   {Kind: KindMem, Size: 2},
	"m32":   {Kind: KindMem, Size: 4},
	"m64":   {Kind: KindMem, Size: 8},
	"m80":   {Kind: KindMem, Size: 10},
	"mfar":  {Kind: KindFarMem},
	"mdesc": {Kind: KindDesc, Size: 6},
	"ptr":   {Kind: KindFarImm},
}

// LookupToken returns the operand described by an operand token.
func LookupToken(tok string) (Operand, bool) {
	if op, ok := tokens[tok]; ok {
		op.Token = tok
		return op, true
	}
	if r, ok := RegistersByName[tok]; ok {
		return fixedOperand(r), true
	}
	return Operand{}, false
}

func fixedOperand(r *Register) Operand {
	op := Operand{Token: r.Name, Kind: KindReg, Class: r.Class, Reg: r}
	switch r.Class {
	case ClassByte:
		op.Size = 1
	case ClassWord:
		// ax..di widen with the operand size
	case ClassDword:
		op.Size = 4
	case ClassSegment:
		op.Size = 2
	case ClassStack:
		op.Size = 10
	}
	return op
}

func (o *Operand) String() string {
	return fmt.Sprintf("%s (%s)", o.Token, o.Kind)
}

// UsesModRM reports whether resolving the operand reads the ModR/M byte.
func (o *Operand) UsesModRM() bool {
	switch o.Kind {
	case KindRegField, KindRegRM, KindSegField, KindControl, KindDebug,
		KindRM, KindMem, KindEA, KindFarMem, KindDesc, KindStackField:
		return true
	}
	return false
}

// UsesRegField reports whether the operand is selected by the ModR/M reg field.
func (o *Operand) UsesRegField() bool {
	switch o.Kind {
	case KindRegField, KindSegField, KindControl, KindDebug:
		return true
	}
	return false
}

// OpSizeSensitive reports whether an operand-size prefix changes the operand.
func (o *Operand) OpSizeSensitive() bool {
	switch o.Kind {
	case KindFarImm, KindFarMem:
		return true
	case KindImm, KindRel:
		return o.Size == 0 || o.Enc == 0
	}
	return o.Size == 0
}

// AddrSizeSensitive reports whether an address-size prefix changes how the
// operand is decoded.
func (o *Operand) AddrSizeSensitive() bool {
	switch o.Kind {
	case KindRM, KindMem, KindEA, KindFarMem, KindDesc, KindMOffs:
		return true
	}
	return false
}

// Width returns the value width in bytes under the given operand size.
func (o *Operand) Width(op32 bool) int {
	switch o.Kind {
	case KindFarImm, KindFarMem:
		if op32 {
			return 6
		}
		return 4
	}
	if o.Size != 0 {
		return o.Size
	}
	if op32 {
		return 4
	}
	return 2
}

// EncodedWidth returns how many instruction bytes an immediate-like operand
// consumes. Operands that do not live in the instruction stream return 0.
func (o *Operand) EncodedWidth(op32, addr32 bool) int {
	switch o.Kind {
	case KindImm, KindRel:
		if o.Enc != 0 {
			return o.Enc
		}
		if op32 {
			return 4
		}
		return 2
	case KindMOffs:
		if addr32 {
			return 4
		}
		return 2
	case KindFarImm:
		return o.Width(op32)
	}
	return 0
}
