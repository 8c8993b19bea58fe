package compact

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
)

const (
	// PrimaryType is the EIP-712 primary type of every compact.
	PrimaryType = "Compact"

	// MandateType is the name of the witness struct.
	MandateType = "Mandate"

	// WitnessTypestring is the witness fragment submitted alongside a witnessed claim.
	WitnessTypestring = "uint256 witnessArgument"
)

var (
	simpleFields = []apitypes.Type{
		{Name: "arbiter", Type: "address"},
		{Name: "sponsor", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "expires", Type: "uint256"},
		{Name: "id", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
	}
	witnessedFields = append(append([]apitypes.Type{}, simpleFields...),
		apitypes.Type{Name: "mandate", Type: MandateType})
	mandateFields = []apitypes.Type{
		{Name: "witnessArgument", Type: "uint256"},
	}

	bytes32Ty = mustType("bytes32")
	addressTy = mustType("address")
	uint256Ty = mustType("uint256")

	compactArgs = abi.Arguments{
		{Type: bytes32Ty}, // typehash
		{Type: addressTy}, {Type: addressTy},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty},
	}
	witnessedArgs = append(append(abi.Arguments{}, compactArgs...), abi.Argument{Type: bytes32Ty})
	mandateArgs   = abi.Arguments{{Type: bytes32Ty}, {Type: uint256Ty}}

	mandateTypeString = encodeType(MandateType, mandateFields)
	mandateTypeHash   = crypto.Keccak256Hash([]byte(mandateTypeString))

	shapes = map[Shape]shapeInfo{
		ShapeSimple:    newShapeInfo(simpleFields, compactArgs),
		ShapeWitnessed: newShapeInfo(witnessedFields, witnessedArgs, mandateTypeString),
	}
)

type shapeInfo struct {
	fields     []apitypes.Type
	args       abi.Arguments
	typeString string
	typeHash   common.Hash
}

func newShapeInfo(fields []apitypes.Type, args abi.Arguments, referenced ...string) shapeInfo {
	ts := encodeType(PrimaryType, fields) + strings.Join(referenced, "")
	return shapeInfo{
		fields:     fields,
		args:       args,
		typeString: ts,
		typeHash:   crypto.Keccak256Hash([]byte(ts)),
	}
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// encodeType renders "Name(type1 name1,type2 name2)".
func encodeType(name string, fields []apitypes.Type) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type + " " + f.Name
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// TypeString returns the canonical EIP-712 type signature for shape.
func TypeString(shape Shape) string {
	return shapes[shape].typeString
}

// TypeHash returns keccak256 of TypeString(shape).
func TypeHash(shape Shape) common.Hash {
	return shapes[shape].typeHash
}

// MandateTypeString returns "Mandate(uint256 witnessArgument)".
func MandateTypeString() string {
	return mandateTypeString
}

// TypeHash returns the typehash the compact is hashed under.
func (c *Compact) TypeHash() common.Hash {
	return TypeHash(c.Shape())
}

// MandateHash is the struct hash of a Mandate on its own; it is the witness
// value carried in a claim. A nil argument hashes as zero.
func MandateHash(witnessArgument *uint256.Int) common.Hash {
	if witnessArgument == nil {
		witnessArgument = new(uint256.Int)
	}
	enc, err := mandateArgs.Pack([32]byte(mandateTypeHash), witnessArgument.ToBig())
	if err != nil {
		// Both values are fixed-size and statically typed.
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// ClaimHash computes the EIP-712 struct hash of c.
func ClaimHash(c *Compact) (common.Hash, error) {
	if err := c.Validate(); err != nil {
		return common.Hash{}, err
	}
	shape := c.Shape()
	info := shapes[shape]
	values := []interface{}{
		[32]byte(info.typeHash),
		c.Arbiter,
		c.Sponsor,
		c.Nonce.ToBig(),
		c.Expires.ToBig(),
		c.ID.ToBig(),
		c.Amount.ToBig(),
	}
	switch shape {
	case ShapeWitnessed:
		values = append(values, [32]byte(MandateHash(c.Mandate.WitnessArgument)))
	}
	enc, err := info.args.Pack(values...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode compact: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// Types returns the EIP-712 type set for c, including EIP712Domain.
func Types(c *Compact) apitypes.Types {
	shape := c.Shape()
	types := apitypes.Types{
		"EIP712Domain": append([]apitypes.Type{}, domainFields...),
		PrimaryType:    append([]apitypes.Type{}, shapes[shape].fields...),
	}
	switch shape {
	case ShapeWitnessed:
		types[MandateType] = append([]apitypes.Type{}, mandateFields...)
	}
	return types
}

// message renders c as EIP-712 message values.
func message(c *Compact) apitypes.TypedDataMessage {
	msg := apitypes.TypedDataMessage{
		"arbiter": c.Arbiter.Hex(),
		"sponsor": c.Sponsor.Hex(),
		"nonce":   c.Nonce.ToBig(),
		"expires": c.Expires.ToBig(),
		"id":      c.ID.ToBig(),
		"amount":  c.Amount.ToBig(),
	}
	switch c.Shape() {
	case ShapeWitnessed:
		msg["mandate"] = map[string]interface{}{
			"witnessArgument": c.Mandate.WitnessArgument.ToBig(),
		}
	}
	return msg
}
