package compact

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Shape distinguishes the two typed-data layouts a compact can take.
type Shape int

const (
	// ShapeSimple is a compact without a mandate.
	ShapeSimple Shape = iota
	// ShapeWitnessed is a compact carrying a Mandate witness struct.
	ShapeWitnessed
)

func (s Shape) String() string {
	switch s {
	case ShapeSimple:
		return "simple"
	case ShapeWitnessed:
		return "witnessed"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Mandate is the witness struct attached to a compact.
type Mandate struct {
	WitnessArgument *uint256.Int
}

// Compact is a sponsor's claim authorization over a resource lock. A non-nil
// Mandate selects the witnessed shape. Treat values as immutable once built.
type Compact struct {
	Arbiter common.Address
	Sponsor common.Address
	Nonce   *uint256.Int
	Expires *uint256.Int
	ID      *uint256.Int
	Amount  *uint256.Int
	Mandate *Mandate
}

// Shape reports which typed-data layout the compact hashes under.
func (c *Compact) Shape() Shape {
	if c.Mandate != nil {
		return ShapeWitnessed
	}
	return ShapeSimple
}

// Validate checks that every field the shape requires is present.
func (c *Compact) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil compact", ErrMalformedType)
	}
	for _, f := range []struct {
		name string
		v    *uint256.Int
	}{
		{"nonce", c.Nonce},
		{"expires", c.Expires},
		{"id", c.ID},
		{"amount", c.Amount},
	} {
		if f.v == nil {
			return fmt.Errorf("%w: compact %s is missing", ErrMalformedType, f.name)
		}
	}
	switch c.Shape() {
	case ShapeWitnessed:
		if c.Mandate.WitnessArgument == nil {
			return fmt.Errorf("%w: mandate present without witnessArgument", ErrMalformedType)
		}
	}
	return nil
}

// LockTag returns the lock tag encoded in the compact's resource lock id.
func (c *Compact) LockTag() (LockTag, error) {
	if c.ID == nil {
		return LockTag{}, fmt.Errorf("%w: compact id is missing", ErrMalformedType)
	}
	tag, _, err := SplitID(c.ID)
	return tag, err
}

// Token returns the token address encoded in the compact's resource lock id.
func (c *Compact) Token() (common.Address, error) {
	if c.ID == nil {
		return common.Address{}, fmt.Errorf("%w: compact id is missing", ErrMalformedType)
	}
	_, token, err := SplitID(c.ID)
	return token, err
}
