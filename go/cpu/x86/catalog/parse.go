package catalog

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func isOpcodeField(f string) bool {
	f = strings.TrimSuffix(f, "+")
	if len(f) != 2 {
		return false
	}
	_, err := strconv.ParseUint(f, 16, 8)
	return err == nil
}

// Parse reads a format string of the form
//
//	opcode [opcode] [/r | /digit] [operand{,operand}]
//
// where the last opcode byte may carry a "+" to mark a register-coded family.
func Parse(format string) (*Descriptor, error) {
	fields := strings.Fields(format)
	d := &Descriptor{Format: format, RegIndex: -1, coded: -1}
	i := 0
	coded := false
	for ; i < len(fields) && isOpcodeField(fields[i]); i++ {
		if coded {
			return nil, errors.Errorf("%q: opcode byte after register-coded byte", format)
		}
		f := fields[i]
		if strings.HasSuffix(f, "+") {
			coded = true
			f = f[:2]
		}
		b, _ := strconv.ParseUint(f, 16, 8)
		if d.Len == 2 {
			return nil, errors.Errorf("%q: more than two opcode bytes", format)
		}
		d.Opcode = d.Opcode<<8 | uint16(b)
		d.Len++
	}
	if d.Len == 0 {
		return nil, errors.Errorf("%q: missing opcode", format)
	}
	if coded {
		if d.Opcode&7 != 0 {
			return nil, errors.Errorf("%q: register-coded opcode must have its low 3 bits clear", format)
		}
		d.Mode = ModeRegCoded
	}
	if i < len(fields) && strings.HasPrefix(fields[i], "/") {
		if coded {
			return nil, errors.Errorf("%q: register-coded opcode cannot take a ModR/M byte", format)
		}
		m := fields[i][1:]
		switch {
		case m == "r":
			d.Mode = ModeFull
		case len(m) == 1 && m[0] >= '0' && m[0] <= '7':
			d.Mode = ModeDigit
			d.Digit = m[0] - '0'
		default:
			return nil, errors.Errorf("%q: bad ModR/M spec %q", format, fields[i])
		}
		i++
	}
	if i < len(fields) {
		if i != len(fields)-1 {
			return nil, errors.Errorf("%q: unexpected %q", format, strings.Join(fields[i+1:], " "))
		}
		for _, tok := range strings.Split(fields[i], ",") {
			op, ok := LookupToken(tok)
			if !ok {
				return nil, errors.Errorf("%q: unknown operand token %q", format, tok)
			}
			d.Operands = append(d.Operands, op)
		}
	}
	if len(d.Operands) > 3 {
		return nil, errors.Errorf("%q: too many operands", format)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustParse is Parse for the static opcode tables built at startup.
func MustParse(format string) *Descriptor {
	d, err := Parse(format)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) validate() error {
	for i := range d.Operands {
		op := &d.Operands[i]
		switch d.Mode {
		case ModeNone:
			if op.UsesModRM() {
				return errors.Errorf("%q: operand %q needs a ModR/M byte", d.Format, op.Token)
			}
		case ModeDigit:
			if op.UsesRegField() {
				return errors.Errorf("%q: operand %q conflicts with the /%d extension", d.Format, op.Token, d.Digit)
			}
		case ModeRegCoded:
			if d.coded < 0 && (op.Kind == KindRegField || op.Kind == KindStackField) {
				if _, ok := RegisterFamily(op.Class); ok {
					d.coded = i
					continue
				}
			}
			if op.UsesModRM() {
				return errors.Errorf("%q: operand %q needs a ModR/M byte", d.Format, op.Token)
			}
		}
	}
	if d.Mode == ModeFull || d.Mode == ModeDigit {
		used := false
		for i := range d.Operands {
			used = used || d.Operands[i].UsesModRM()
		}
		if !used {
			return errors.Errorf("%q: ModR/M byte is never consumed by an operand", d.Format)
		}
	}
	if d.Mode == ModeRegCoded && d.coded < 0 {
		return errors.Errorf("%q: register-coded opcode without a register operand", d.Format)
	}
	return nil
}
