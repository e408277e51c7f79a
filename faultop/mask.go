package faultop

import "strings"

// Mask is a bitset over Op, used to scope a fault to a subset of
// operations. The zero Mask affects nothing; MaskAll affects every
// operation in the taxonomy.
//
// Grounded on config_parse_operations_mask/config_should_affect_operation
// in the original driver's config.c: an empty mask disables a fault
// entirely regardless of its other settings, and the literal "all" (or
// "*") is shorthand for every bit set rather than requiring every
// operation name to be spelled out.
type Mask uint32

// MaskNone is the mask that affects no operation.
func MaskNone() Mask { return 0 }

// MaskAll is the mask that affects every operation.
func MaskAll() Mask { return Mask(1<<NumOps - 1) }

// Of builds a mask containing exactly the given operations.
func Of(ops ...Op) Mask {
	var m Mask
	for _, op := range ops {
		m |= 1 << op
	}
	return m
}

// Has reports whether the mask includes op.
func (m Mask) Has(op Op) bool {
	return m&(1<<op) != 0
}

// ParseMask parses a comma-separated list of operation names, or the
// literal "all"/"*" for every operation, or an empty string for none.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MaskNone(), nil
	}
	if s == "all" || s == "*" {
		return MaskAll(), nil
	}

	var m Mask
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, err := Parse(part)
		if err != nil {
			return 0, err
		}
		m |= 1 << op
	}
	return m, nil
}

// String renders the mask back into its configuration-file form.
func (m Mask) String() string {
	if m == MaskAll() {
		return "all"
	}
	if m == MaskNone() {
		return ""
	}
	var parts []string
	for _, op := range All() {
		if m.Has(op) {
			parts = append(parts, op.String())
		}
	}
	return strings.Join(parts, ",")
}
