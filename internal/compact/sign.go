package compact

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Domain is the EIP-712 signing domain a compact is signed under.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// Validate requires every domain field, since all four are part of the domain type.
func (d Domain) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: domain name is empty", ErrMalformedType)
	case d.Version == "":
		return fmt.Errorf("%w: domain version is empty", ErrMalformedType)
	case d.ChainID == nil || d.ChainID.Sign() < 0:
		return fmt.Errorf("%w: domain chain id is missing", ErrMalformedType)
	}
	return nil
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(d.ChainID)),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// SignRequest is what a Signer receives: the compact together with its full
// EIP-712 typed data (domain, types, primary type, message).
type SignRequest struct {
	Compact   *Compact
	TypedData apitypes.TypedData
}

// NewSignRequest validates domain and compact and assembles the typed data.
func NewSignRequest(domain Domain, c *Compact) (*SignRequest, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &SignRequest{
		Compact: c,
		TypedData: apitypes.TypedData{
			Types:       Types(c),
			PrimaryType: PrimaryType,
			Domain:      domain.typedDataDomain(),
			Message:     message(c),
		},
	}, nil
}

// Digest returns keccak256(0x1901 ∥ domainSeparator ∥ claimHash), the value a
// signer commits to.
func (r *SignRequest) Digest() (common.Hash, error) {
	sighash, _, err := apitypes.TypedDataAndHash(r.TypedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("typed data digest: %w", err)
	}
	return common.BytesToHash(sighash), nil
}

// Portable returns a copy of the typed data with integers rendered as decimal
// strings, suitable for JSON transports that would otherwise lose precision.
func (r *SignRequest) Portable() apitypes.TypedData {
	td := r.TypedData
	td.Message = portable(r.TypedData.Message)
	return td
}

func portable(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case *big.Int:
			out[k] = v.String()
		case map[string]interface{}:
			out[k] = portable(v)
		default:
			out[k] = v
		}
	}
	return out
}

// Signer produces a signature over a compact's typed data. Implementations
// own key management and transport.
type Signer interface {
	SignTypedData(ctx context.Context, req *SignRequest) ([]byte, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, req *SignRequest) ([]byte, error)

func (f SignerFunc) SignTypedData(ctx context.Context, req *SignRequest) ([]byte, error) {
	return f(ctx, req)
}

// SignCompact builds the sign request and hands it to s. Errors from the
// signer are returned as-is.
func SignCompact(ctx context.Context, s Signer, domain Domain, c *Compact) ([]byte, error) {
	req, err := NewSignRequest(domain, c)
	if err != nil {
		return nil, err
	}
	return s.SignTypedData(ctx, req)
}
