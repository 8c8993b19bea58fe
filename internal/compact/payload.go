package compact

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Allocation assigns part of a claim to a receiver under a lock tag.
type Allocation struct {
	LockTag  LockTag
	Claimant common.Address
	Amount   *uint256.Int
}

// Component is one claimant entry of a submitted claim.
type Component struct {
	Claimant *uint256.Int
	Amount   *uint256.Int
}

// Claim is the payload submitted to claim against a signed compact.
type Claim struct {
	AllocatorData     hexutil.Bytes
	SponsorSignature  hexutil.Bytes
	Sponsor           common.Address
	Nonce             *uint256.Int
	Expires           *uint256.Int
	Witness           common.Hash
	WitnessTypestring string
	ID                *uint256.Int
	AllocatedAmount   *uint256.Int
	Claimants         []Component
}

// ClaimOption customizes BuildClaim.
type ClaimOption func(*Claim)

// WithAllocatorData replaces the default zero allocator authorization.
func WithAllocatorData(data []byte) ClaimOption {
	return func(c *Claim) {
		c.AllocatorData = append(hexutil.Bytes{}, data...)
	}
}

// BuildClaim assembles the claim payload for a signed compact. Allocations
// keep the caller's order; nothing is merged or sorted.
func BuildClaim(c *Compact, signature []byte, allocations []Allocation, opts ...ClaimOption) (*Claim, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	claim := &Claim{
		AllocatorData:    common.Hash{}.Bytes(),
		SponsorSignature: append(hexutil.Bytes{}, signature...),
		Sponsor:          c.Sponsor,
		Nonce:            c.Nonce.Clone(),
		Expires:          c.Expires.Clone(),
		ID:               c.ID.Clone(),
		AllocatedAmount:  c.Amount.Clone(),
		Claimants:        make([]Component, 0, len(allocations)),
	}
	switch c.Shape() {
	case ShapeWitnessed:
		claim.Witness = MandateHash(c.Mandate.WitnessArgument)
		claim.WitnessTypestring = WitnessTypestring
	}

	for i, a := range allocations {
		if a.Amount == nil {
			return nil, fmt.Errorf("%w: claimant %d amount is missing", ErrMalformedType, i)
		}
		id, err := ClaimantID(a.LockTag, a.Claimant)
		if err != nil {
			return nil, fmt.Errorf("claimant %d: %w", i, err)
		}
		claim.Claimants = append(claim.Claimants, Component{Claimant: id, Amount: a.Amount.Clone()})
	}

	for _, opt := range opts {
		opt(claim)
	}
	return claim, nil
}
