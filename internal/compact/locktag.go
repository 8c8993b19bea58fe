package compact

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Scope selects whether a resource lock may be claimed on other chains.
type Scope uint8

const (
	ScopeMultichain    Scope = 0
	ScopeChainSpecific Scope = 1
)

func (s Scope) String() string {
	switch s {
	case ScopeMultichain:
		return "multichain"
	case ScopeChainSpecific:
		return "chain-specific"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// ResetPeriod is the 3-bit forced-withdrawal delay class of a lock.
type ResetPeriod uint8

const (
	OneSecond ResetPeriod = iota
	FifteenSeconds
	OneMinute
	TenMinutes
	OneHourAndFiveMinutes
	OneDay
	SevenDaysAndOneHour
	ThirtyDays
)

var resetPeriods = [...]struct {
	name string
	d    time.Duration
}{
	{"1s", time.Second},
	{"15s", 15 * time.Second},
	{"1m", time.Minute},
	{"10m", 10 * time.Minute},
	{"1h5m", time.Hour + 5*time.Minute},
	{"1d", 24 * time.Hour},
	{"7d1h", 7*24*time.Hour + time.Hour},
	{"30d", 30 * 24 * time.Hour},
}

// Duration returns the wall-clock length of the period, or zero if p is out of range.
func (p ResetPeriod) Duration() time.Duration {
	if int(p) >= len(resetPeriods) {
		return 0
	}
	return resetPeriods[p].d
}

func (p ResetPeriod) String() string {
	if int(p) >= len(resetPeriods) {
		return fmt.Sprintf("resetPeriod(%d)", uint8(p))
	}
	return resetPeriods[p].name
}

// LockTag is the 96-bit tag identifying a resource lock's scope, reset
// period and allocator.
type LockTag struct {
	Scope       Scope
	ResetPeriod ResetPeriod
	AllocatorID AllocatorID
}

// NewLockTag validates field widths up front.
func NewLockTag(scope Scope, period ResetPeriod, allocator AllocatorID) (LockTag, error) {
	tag := LockTag{Scope: scope, ResetPeriod: period, AllocatorID: allocator}
	if _, err := tag.ToCanonicalInteger(); err != nil {
		return LockTag{}, err
	}
	return tag, nil
}

// ToCanonicalInteger packs the tag, rejecting any field wider than its slot.
func (t LockTag) ToCanonicalInteger() (*uint256.Int, error) {
	return LockTagLayout.Pack(t.values()...)
}

// ToCanonicalIntegerTruncating packs the tag the way unchecked shifts would,
// masking oversized fields instead of rejecting them.
func (t LockTag) ToCanonicalIntegerTruncating() *uint256.Int {
	packed, _ := LockTagLayout.PackTruncating(t.values()...)
	return packed
}

func (t LockTag) values() []*uint256.Int {
	return []*uint256.Int{
		uint256.NewInt(uint64(t.Scope)),
		uint256.NewInt(uint64(t.ResetPeriod)),
		t.AllocatorID.Int(),
	}
}

// LockTagFromCanonicalInteger is the inverse of ToCanonicalInteger.
func LockTagFromCanonicalInteger(v *uint256.Int) (LockTag, error) {
	parts, err := LockTagLayout.Unpack(v)
	if err != nil {
		return LockTag{}, err
	}
	allocator, err := ParseAllocatorID(parts[2])
	if err != nil {
		return LockTag{}, err
	}
	return LockTag{
		Scope:       Scope(parts[0].Uint64()),
		ResetPeriod: ResetPeriod(parts[1].Uint64()),
		AllocatorID: allocator,
	}, nil
}

func (t LockTag) String() string {
	return fmt.Sprintf("LockTag{scope=%s reset=%s allocator=%s}", t.Scope, t.ResetPeriod, t.AllocatorID)
}
