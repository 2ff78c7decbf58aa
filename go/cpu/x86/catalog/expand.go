package catalog

import "github.com/pkg/errors"

// Expand turns a register-coded descriptor into its eight concrete members,
// ordered by encoded register index. Other descriptors are returned as-is.
func Expand(d *Descriptor) ([]*Descriptor, error) {
	if d.Mode != ModeRegCoded {
		return []*Descriptor{d}, nil
	}
	if d.Expanded() {
		return nil, errors.Errorf("%q: already expanded", d.Format)
	}
	coded := d.Operands[d.coded]
	family, ok := RegisterFamily(coded.Class)
	if !ok {
		return nil, errors.Errorf("%q: no register family for %s", d.Format, coded.Class)
	}
	out := make([]*Descriptor, 8)
	for i, reg := range family {
		c := d.clone()
		c.Opcode = d.Opcode + uint16(i)
		c.RegIndex = i
		op := fixedOperand(reg)
		op.Token = reg.Name
		// a widened word register keeps its operand-size behaviour
		c.Operands[d.coded] = op
		out[i] = c
	}
	return out, nil
}
