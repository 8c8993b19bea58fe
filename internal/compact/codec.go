package compact

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FieldSpec names a bit range inside a packed integer.
type FieldSpec struct {
	Name   string
	Offset uint
	Width  uint
}

// Field is a FieldSpec together with the value packed into it.
type Field struct {
	FieldSpec
	Value *uint256.Int
}

// Layout is an ordered, non-overlapping set of fields making up one packed value.
type Layout struct {
	Name   string
	Fields []FieldSpec
}

var (
	// LockTagLayout: scope:1 @95 | resetPeriod:3 @92 | allocatorId:92 @0.
	LockTagLayout = Layout{Name: "lockTag", Fields: []FieldSpec{
		{Name: "scope", Offset: 95, Width: 1},
		{Name: "resetPeriod", Offset: 92, Width: 3},
		{Name: "allocatorId", Offset: 0, Width: 92},
	}}

	// AllocatorIDLayout: compactFlag:4 @88 | low88:88 @0.
	AllocatorIDLayout = Layout{Name: "allocatorId", Fields: []FieldSpec{
		{Name: "compactFlag", Offset: 88, Width: 4},
		{Name: "low88", Offset: 0, Width: 88},
	}}

	// TokenIDLayout: lockTag:96 @160 | token:160 @0.
	TokenIDLayout = Layout{Name: "id", Fields: []FieldSpec{
		{Name: "lockTag", Offset: 160, Width: 96},
		{Name: "token", Offset: 0, Width: 160},
	}}

	// ClaimantIDLayout: lockTag:96 @160 | recipient:160 @0.
	ClaimantIDLayout = Layout{Name: "claimant", Fields: []FieldSpec{
		{Name: "lockTag", Offset: 160, Width: 96},
		{Name: "recipient", Offset: 0, Width: 160},
	}}
)

// Mask returns 2^width - 1.
func Mask(width uint) *uint256.Int {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), width)
	return m.SubUint64(m, 1)
}

// Pack range-checks every field against its width and ORs the shifted values
// together. Every field needs a value; nil is ErrMalformedType.
func Pack(fields ...Field) (*uint256.Int, error) {
	if err := checkLayout(fields); err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	for _, f := range fields {
		if f.Value == nil {
			return nil, fmt.Errorf("%w: field %s has no value", ErrMalformedType, f.Name)
		}
		if f.Value.BitLen() > int(f.Width) {
			return nil, &FieldError{Field: f.Name, Width: f.Width, BitLen: f.Value.BitLen()}
		}
		out.Or(out, new(uint256.Int).Lsh(f.Value, f.Offset))
	}
	return out, nil
}

// PackTruncating is the legacy variant of Pack: values wider than their field
// are masked down to the field width instead of being rejected.
func PackTruncating(fields ...Field) (*uint256.Int, error) {
	if err := checkLayout(fields); err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	for _, f := range fields {
		if f.Value == nil {
			return nil, fmt.Errorf("%w: field %s has no value", ErrMalformedType, f.Name)
		}
		v := new(uint256.Int).And(f.Value, Mask(f.Width))
		out.Or(out, v.Lsh(v, f.Offset))
	}
	return out, nil
}

// Unpack extracts width bits starting at offset.
func Unpack(packed *uint256.Int, offset, width uint) *uint256.Int {
	v := new(uint256.Int).Rsh(packed, offset)
	return v.And(v, Mask(width))
}

func checkLayout(fields []Field) error {
	occupied := new(uint256.Int)
	for _, f := range fields {
		if f.Width == 0 || f.Offset+f.Width > 256 {
			return fmt.Errorf("%w: field %s at offset %d width %d", ErrLayout, f.Name, f.Offset, f.Width)
		}
		m := new(uint256.Int).Lsh(Mask(f.Width), f.Offset)
		if !new(uint256.Int).And(occupied, m).IsZero() {
			return fmt.Errorf("%w: field %s overlaps a previous field", ErrLayout, f.Name)
		}
		occupied.Or(occupied, m)
	}
	return nil
}

// Width is the total number of bits covered by the layout.
func (l Layout) Width() uint {
	var w uint
	for _, f := range l.Fields {
		if end := f.Offset + f.Width; end > w {
			w = end
		}
	}
	return w
}

// Pack packs values positionally into the layout's fields.
func (l Layout) Pack(values ...*uint256.Int) (*uint256.Int, error) {
	fields, err := l.bind(values)
	if err != nil {
		return nil, err
	}
	packed, err := Pack(fields...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", l.Name, err)
	}
	return packed, nil
}

// PackTruncating packs values positionally, masking each one to its field width.
func (l Layout) PackTruncating(values ...*uint256.Int) (*uint256.Int, error) {
	fields, err := l.bind(values)
	if err != nil {
		return nil, err
	}
	return PackTruncating(fields...)
}

// Unpack splits packed into one value per field, in layout order. Bits above
// the layout width are a range violation.
func (l Layout) Unpack(packed *uint256.Int) ([]*uint256.Int, error) {
	if packed.BitLen() > int(l.Width()) {
		return nil, &FieldError{Field: l.Name, Width: l.Width(), BitLen: packed.BitLen()}
	}
	out := make([]*uint256.Int, len(l.Fields))
	for i, f := range l.Fields {
		out[i] = Unpack(packed, f.Offset, f.Width)
	}
	return out, nil
}

func (l Layout) bind(values []*uint256.Int) ([]Field, error) {
	if len(values) != len(l.Fields) {
		return nil, fmt.Errorf("%w: %s takes %d values, got %d", ErrLayout, l.Name, len(l.Fields), len(values))
	}
	fields := make([]Field, len(values))
	for i, spec := range l.Fields {
		fields[i] = Field{FieldSpec: spec, Value: values[i]}
	}
	return fields, nil
}
