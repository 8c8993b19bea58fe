package service

import (
	"fmt"
	"strings"

	"github.com/compact-experiment/compact/internal/compact"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Integers are exchanged as strings: decimal or 0x-prefixed hex on input,
// 0x-prefixed hex on output.

// LockTagRequest is the body of POST /lock-tag.
type LockTagRequest struct {
	Scope       uint8  `json:"scope"`
	ResetPeriod uint8  `json:"resetPeriod"`
	Allocator   string `json:"allocator"`
}

// LockTagResponse is the packed lock tag with its decoded fields.
type LockTagResponse struct {
	LockTag     string `json:"lockTag"`
	AllocatorID string `json:"allocatorId"`
	Scope       string `json:"scope"`
	ResetPeriod string `json:"resetPeriod"`
}

// AllocatorIDResponse is the compact allocator id derived from an address.
type AllocatorIDResponse struct {
	Allocator   common.Address `json:"allocator"`
	AllocatorID string         `json:"allocatorId"`
	Flag        uint8          `json:"flag"`
}

// TokenIDRequest is the body of POST /token-id.
type TokenIDRequest struct {
	LockTag string `json:"lockTag"`
	Token   string `json:"token"`
}

// ClaimantIDRequest is the body of POST /claimant-id.
type ClaimantIDRequest struct {
	LockTag  string `json:"lockTag"`
	Claimant string `json:"claimant"`
}

// IDResponse carries a packed token id or claimant id.
type IDResponse struct {
	ID string `json:"id"`
}

// MandateJSON is a mandate witness. A mandate without witnessArgument is rejected.
type MandateJSON struct {
	WitnessArgument *string `json:"witnessArgument"`
}

// CompactJSON is a compact as accepted by the hashing and signing endpoints.
type CompactJSON struct {
	Arbiter string       `json:"arbiter"`
	Sponsor string       `json:"sponsor"`
	Nonce   string       `json:"nonce"`
	Expires string       `json:"expires"`
	ID      string       `json:"id"`
	Amount  string       `json:"amount"`
	Mandate *MandateJSON `json:"mandate,omitempty"`
}

// ClaimHashResponse is the claim hash of a compact with its typehash and registration slot.
type ClaimHashResponse struct {
	ClaimHash        common.Hash `json:"claimHash"`
	TypeHash         common.Hash `json:"typeHash"`
	TypeString       string      `json:"typeString"`
	RegistrationSlot common.Hash `json:"registrationSlot"`
}

// AllocationJSON assigns an amount to a claimant under a lock tag.
type AllocationJSON struct {
	LockTag  string `json:"lockTag"`
	Claimant string `json:"claimant"`
	Amount   string `json:"amount"`
}

// SignCompactRequest is the body of POST /compact/sign.
type SignCompactRequest struct {
	Compact       CompactJSON      `json:"compact"`
	Claimants     []AllocationJSON `json:"claimants"`
	AllocatorData hexutil.Bytes    `json:"allocatorData,omitempty"`
}

// ComponentJSON is one packed claimant entry of a claim.
type ComponentJSON struct {
	Claimant string `json:"claimant"`
	Amount   string `json:"amount"`
}

// ClaimJSON is the claim payload ready for submission.
type ClaimJSON struct {
	AllocatorData     hexutil.Bytes   `json:"allocatorData"`
	SponsorSignature  hexutil.Bytes   `json:"sponsorSignature"`
	Sponsor           common.Address  `json:"sponsor"`
	Nonce             string          `json:"nonce"`
	Expires           string          `json:"expires"`
	Witness           common.Hash     `json:"witness"`
	WitnessTypestring string          `json:"witnessTypestring"`
	ID                string          `json:"id"`
	AllocatedAmount   string          `json:"allocatedAmount"`
	Claimants         []ComponentJSON `json:"claimants"`
}

// SignCompactResponse is the result of POST /compact/sign.
type SignCompactResponse struct {
	RequestID        string      `json:"requestId"`
	ClaimHash        common.Hash `json:"claimHash"`
	RegistrationSlot common.Hash `json:"registrationSlot"`
	Digest           common.Hash `json:"digest"`
	Claim            ClaimJSON   `json:"claim"`
}

// parseUint accepts a plain decimal string or a 0x-prefixed hex string.
// Leading zeros are insignificant in both; octal, binary and digit
// separators are rejected.
func parseUint(name, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: value is missing", name)
	}
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" && len(s) > 2 {
			digits = "0"
		}
		v, err = uint256.FromHex("0x" + digits)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: invalid unsigned integer %q: %w", name, s, err)
	}
	return v, nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseLockTag(s string) (compact.LockTag, error) {
	v, err := parseUint("lockTag", s)
	if err != nil {
		return compact.LockTag{}, err
	}
	return compact.LockTagFromCanonicalInteger(v)
}

func (j *CompactJSON) toCompact() (*compact.Compact, error) {
	var (
		c   compact.Compact
		err error
	)
	if c.Arbiter, err = parseAddress("arbiter", j.Arbiter); err != nil {
		return nil, err
	}
	if c.Sponsor, err = parseAddress("sponsor", j.Sponsor); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  **uint256.Int
	}{
		{"nonce", j.Nonce, &c.Nonce},
		{"expires", j.Expires, &c.Expires},
		{"id", j.ID, &c.ID},
		{"amount", j.Amount, &c.Amount},
	} {
		if *f.dst, err = parseUint(f.name, f.raw); err != nil {
			return nil, err
		}
	}
	if j.Mandate != nil {
		// A mandate object without a witness argument is passed through so
		// the hasher reports it as a malformed type.
		c.Mandate = &compact.Mandate{}
		if j.Mandate.WitnessArgument != nil {
			if c.Mandate.WitnessArgument, err = parseUint("witnessArgument", *j.Mandate.WitnessArgument); err != nil {
				return nil, err
			}
		}
	}
	return &c, nil
}

func (j AllocationJSON) toAllocation(i int) (compact.Allocation, error) {
	tag, err := parseLockTag(j.LockTag)
	if err != nil {
		return compact.Allocation{}, fmt.Errorf("claimants[%d]: %w", i, err)
	}
	claimant, err := parseAddress("claimant", j.Claimant)
	if err != nil {
		return compact.Allocation{}, fmt.Errorf("claimants[%d]: %w", i, err)
	}
	amount, err := parseUint("amount", j.Amount)
	if err != nil {
		return compact.Allocation{}, fmt.Errorf("claimants[%d]: %w", i, err)
	}
	return compact.Allocation{LockTag: tag, Claimant: claimant, Amount: amount}, nil
}

func claimJSON(c *compact.Claim) ClaimJSON {
	out := ClaimJSON{
		AllocatorData:     c.AllocatorData,
		SponsorSignature:  c.SponsorSignature,
		Sponsor:           c.Sponsor,
		Nonce:             c.Nonce.Hex(),
		Expires:           c.Expires.Hex(),
		Witness:           c.Witness,
		WitnessTypestring: c.WitnessTypestring,
		ID:                c.ID.Hex(),
		AllocatedAmount:   c.AllocatedAmount.Hex(),
		Claimants:         make([]ComponentJSON, len(c.Claimants)),
	}
	for i, comp := range c.Claimants {
		out.Claimants[i] = ComponentJSON{Claimant: comp.Claimant.Hex(), Amount: comp.Amount.Hex()}
	}
	return out
}
