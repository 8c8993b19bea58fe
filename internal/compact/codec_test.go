package compact

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestPack_ComposesByOffset(t *testing.T) {
	got, err := Pack(
		Field{FieldSpec{"hi", 8, 8}, uint256.NewInt(0xab)},
		Field{FieldSpec{"lo", 0, 8}, uint256.NewInt(0xcd)},
	)
	if err != nil {
		t.Fatalf("Pack() failed: %v", err)
	}
	if got.Uint64() != 0xabcd {
		t.Errorf("Pack() = %s, want 0xabcd", got.Hex())
	}
}

func TestPack_RejectsOverflow(t *testing.T) {
	_, err := Pack(Field{FieldSpec{"nibble", 0, 4}, uint256.NewInt(16)})
	if !errors.Is(err, ErrRangeViolation) {
		t.Fatalf("expected ErrRangeViolation, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FieldError, got %T", err)
	}
	if fe.Field != "nibble" || fe.Width != 4 || fe.BitLen != 5 {
		t.Errorf("unexpected field error: %+v", fe)
	}
}

func TestPackTruncating_MasksOverflow(t *testing.T) {
	got, err := PackTruncating(
		Field{FieldSpec{"hi", 4, 4}, uint256.NewInt(0x1f)},
		Field{FieldSpec{"lo", 0, 4}, uint256.NewInt(0x2)},
	)
	if err != nil {
		t.Fatalf("PackTruncating() failed: %v", err)
	}
	if got.Uint64() != 0xf2 {
		t.Errorf("PackTruncating() = %s, want 0xf2", got.Hex())
	}
}

func TestPack_LayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"overlap", []Field{
			{FieldSpec{"a", 0, 8}, nil},
			{FieldSpec{"b", 4, 8}, nil},
		}},
		{"past 256 bits", []Field{{FieldSpec{"a", 250, 8}, nil}}},
		{"zero width", []Field{{FieldSpec{"a", 0, 0}, nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Pack(tt.fields...); !errors.Is(err, ErrLayout) {
				t.Errorf("expected ErrLayout, got %v", err)
			}
		})
	}
}

func TestPack_RejectsMissingValue(t *testing.T) {
	fields := []Field{
		{FieldSpec{"hi", 8, 8}, uint256.NewInt(1)},
		{FieldSpec{"lo", 0, 8}, nil},
	}
	if _, err := Pack(fields...); !errors.Is(err, ErrMalformedType) {
		t.Errorf("Pack: expected ErrMalformedType, got %v", err)
	}
	if _, err := PackTruncating(fields...); !errors.Is(err, ErrMalformedType) {
		t.Errorf("PackTruncating: expected ErrMalformedType, got %v", err)
	}
	if _, err := TokenIDLayout.Pack(uint256.NewInt(1), nil); !errors.Is(err, ErrMalformedType) {
		t.Errorf("Layout.Pack: expected ErrMalformedType, got %v", err)
	}
}

func TestMask(t *testing.T) {
	if got := Mask(8).Uint64(); got != 0xff {
		t.Errorf("Mask(8) = %x", got)
	}
	if got := Mask(256); got.BitLen() != 256 {
		t.Errorf("Mask(256) bit length = %d, want 256", got.BitLen())
	}
}

func TestLayout_UnpackIsInverseOfPack(t *testing.T) {
	layouts := []Layout{LockTagLayout, AllocatorIDLayout, TokenIDLayout, ClaimantIDLayout}
	for _, l := range layouts {
		t.Run(l.Name, func(t *testing.T) {
			values := make([]*uint256.Int, len(l.Fields))
			for i, f := range l.Fields {
				// all-ones then a single set bit exercise both field edges
				values[i] = Mask(f.Width)
				if i%2 == 1 {
					values[i] = uint256.NewInt(1)
				}
			}
			packed, err := l.Pack(values...)
			if err != nil {
				t.Fatalf("Pack() failed: %v", err)
			}
			got, err := l.Unpack(packed)
			if err != nil {
				t.Fatalf("Unpack() failed: %v", err)
			}
			for i := range values {
				if !got[i].Eq(values[i]) {
					t.Errorf("field %s: got %s, want %s", l.Fields[i].Name, got[i].Hex(), values[i].Hex())
				}
			}
		})
	}
}

func TestLayout_ValueCount(t *testing.T) {
	if _, err := LockTagLayout.Pack(uint256.NewInt(0)); !errors.Is(err, ErrLayout) {
		t.Errorf("expected ErrLayout for short value list, got %v", err)
	}
}

func TestLayout_UnpackRejectsWideInput(t *testing.T) {
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	if _, err := LockTagLayout.Unpack(wide); !errors.Is(err, ErrRangeViolation) {
		t.Errorf("expected ErrRangeViolation, got %v", err)
	}
}

func TestLayoutWidths(t *testing.T) {
	tests := map[string]struct {
		l    Layout
		want uint
	}{
		"lockTag":     {LockTagLayout, 96},
		"allocatorId": {AllocatorIDLayout, 92},
		"id":          {TokenIDLayout, 256},
		"claimant":    {ClaimantIDLayout, 256},
	}
	for name, tt := range tests {
		if got := tt.l.Width(); got != tt.want {
			t.Errorf("%s width = %d, want %d", name, got, tt.want)
		}
	}
}
