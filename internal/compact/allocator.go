package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// AddressNibbles is the number of 4-bit groups in a 160-bit address.
	AddressNibbles = 40

	// MaxCompactFlag is the saturated flag value, reached at 18 leading zero nibbles.
	MaxCompactFlag = 15
)

// AllocatorID is the 92-bit compact form of an allocator address:
// a 4-bit leading-zero class followed by the low 88 bits of the address.
// Distinct addresses sharing both parts collide; the protocol accepts that.
type AllocatorID struct {
	v uint256.Int
}

// LeadingZeroNibbles counts zero nibbles from the most significant end of addr.
func LeadingZeroNibbles(addr common.Address) int {
	return leadingZeroNibbles(new(uint256.Int).SetBytes(addr.Bytes()))
}

func leadingZeroNibbles(v *uint256.Int) int {
	return (160 - v.BitLen()) / 4
}

// CompactFlag maps a leading-zero-nibble count to the 4-bit flag:
// 0-3 -> 0, 4-17 -> z-3, 18 and above -> 15.
func CompactFlag(leadingZeros int) uint8 {
	switch {
	case leadingZeros >= 18:
		return MaxCompactFlag
	case leadingZeros >= 4:
		return uint8(leadingZeros - 3)
	default:
		return 0
	}
}

// NewAllocatorID derives the compact allocator id for addr. It is total.
func NewAllocatorID(addr common.Address) AllocatorID {
	id, _ := AllocatorIDFromInt(new(uint256.Int).SetBytes(addr.Bytes()))
	return id
}

// AllocatorIDFromInt derives the compact id from an address-like integer of
// at most 160 bits.
func AllocatorIDFromInt(v *uint256.Int) (AllocatorID, error) {
	if v.BitLen() > 160 {
		return AllocatorID{}, &FieldError{Field: "allocator", Width: 160, BitLen: v.BitLen()}
	}
	flag := uint256.NewInt(uint64(CompactFlag(leadingZeroNibbles(v))))
	low := new(uint256.Int).And(v, Mask(88))
	packed, err := AllocatorIDLayout.Pack(flag, low)
	if err != nil {
		return AllocatorID{}, err
	}
	return AllocatorID{v: *packed}, nil
}

// ParseAllocatorID accepts an already compacted 92-bit id, as found in a lock tag.
func ParseAllocatorID(v *uint256.Int) (AllocatorID, error) {
	if v.BitLen() > int(AllocatorIDLayout.Width()) {
		return AllocatorID{}, &FieldError{Field: "allocatorId", Width: AllocatorIDLayout.Width(), BitLen: v.BitLen()}
	}
	return AllocatorID{v: *v}, nil
}

// Flag returns the 4-bit compact flag.
func (a AllocatorID) Flag() uint8 {
	return uint8(Unpack(&a.v, 88, 4).Uint64())
}

// Low88 returns the low 88 bits of the originating address.
func (a AllocatorID) Low88() *uint256.Int {
	return Unpack(&a.v, 0, 88)
}

// Int returns the id as a fresh integer.
func (a AllocatorID) Int() *uint256.Int {
	return a.v.Clone()
}

// Matches reports whether addr compacts to this id.
func (a AllocatorID) Matches(addr common.Address) bool {
	other := NewAllocatorID(addr)
	return a.v.Eq(&other.v)
}

func (a AllocatorID) String() string {
	return a.v.Hex()
}
