package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AddressToInt widens a 160-bit address without sign extension.
func AddressToInt(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

// TokenID packs a lock tag above a token address: the resource lock id.
func TokenID(tag LockTag, token common.Address) (*uint256.Int, error) {
	return packAddressed(TokenIDLayout, tag, token)
}

// ClaimantID packs a lock tag above a receiving address.
func ClaimantID(tag LockTag, receiver common.Address) (*uint256.Int, error) {
	return packAddressed(ClaimantIDLayout, tag, receiver)
}

func packAddressed(layout Layout, tag LockTag, addr common.Address) (*uint256.Int, error) {
	t, err := tag.ToCanonicalInteger()
	if err != nil {
		return nil, err
	}
	return layout.Pack(t, AddressToInt(addr))
}

// SplitID recovers the lock tag and address from a token id or claimant id.
func SplitID(id *uint256.Int) (LockTag, common.Address, error) {
	parts, err := TokenIDLayout.Unpack(id)
	if err != nil {
		return LockTag{}, common.Address{}, err
	}
	tag, err := LockTagFromCanonicalInteger(parts[0])
	if err != nil {
		return LockTag{}, common.Address{}, err
	}
	return tag, common.Address(parts[1].Bytes20()), nil
}
