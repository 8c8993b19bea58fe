package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RegistrationScope is the 4-byte selector prefixing every registration slot preimage.
var RegistrationScope = [4]byte{0x68, 0xa3, 0x0d, 0xd0}

// RegistrationSlot derives the storage slot under which a sponsor's
// registration of claimHash (hashed under typeHash) is tracked:
// keccak256(scope ∥ sponsor ∥ claimHash ∥ typeHash), tightly packed.
func RegistrationSlot(sponsor common.Address, claimHash, typeHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(RegistrationScope[:], sponsor.Bytes(), claimHash.Bytes(), typeHash.Bytes())
}

// RegistrationSlot derives the slot for the compact's own claim hash and typehash.
func (c *Compact) RegistrationSlot() (common.Hash, error) {
	claimHash, err := ClaimHash(c)
	if err != nil {
		return common.Hash{}, err
	}
	return RegistrationSlot(c.Sponsor, claimHash, c.TypeHash()), nil
}
