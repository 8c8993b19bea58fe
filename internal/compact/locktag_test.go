package compact

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestLockTag_RoundTrip(t *testing.T) {
	allocators := []common.Address{
		{},
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0x00000000000000000000000000000000deadbeef"),
		common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"),
	}
	for _, alloc := range allocators {
		for _, scope := range []Scope{ScopeMultichain, ScopeChainSpecific} {
			for period := OneSecond; period <= ThirtyDays; period++ {
				tag, err := NewLockTag(scope, period, NewAllocatorID(alloc))
				if err != nil {
					t.Fatalf("NewLockTag(%s, %s, %s) failed: %v", scope, period, alloc.Hex(), err)
				}
				packed, err := tag.ToCanonicalInteger()
				if err != nil {
					t.Fatalf("ToCanonicalInteger() failed: %v", err)
				}
				if packed.BitLen() > 96 {
					t.Errorf("lock tag %s exceeds 96 bits", packed.Hex())
				}
				got, err := LockTagFromCanonicalInteger(packed)
				if err != nil {
					t.Fatalf("LockTagFromCanonicalInteger() failed: %v", err)
				}
				if got.Scope != scope || got.ResetPeriod != period || !got.AllocatorID.Int().Eq(tag.AllocatorID.Int()) {
					t.Errorf("round trip mismatch: got %s, want %s", got, tag)
				}
			}
		}
	}
}

func TestLockTag_BitPositions(t *testing.T) {
	alloc, err := ParseAllocatorID(uint256.NewInt(0x42))
	if err != nil {
		t.Fatal(err)
	}
	tag := LockTag{Scope: ScopeChainSpecific, ResetPeriod: ThirtyDays, AllocatorID: alloc}
	packed, err := tag.ToCanonicalInteger()
	if err != nil {
		t.Fatal(err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 95)
	want.Or(want, new(uint256.Int).Lsh(uint256.NewInt(7), 92))
	want.Or(want, uint256.NewInt(0x42))
	if !packed.Eq(want) {
		t.Errorf("packed = %s, want %s", packed.Hex(), want.Hex())
	}
}

func TestLockTag_RejectsOversizedFields(t *testing.T) {
	tests := []struct {
		name string
		tag  LockTag
	}{
		{"scope", LockTag{Scope: 2}},
		{"reset period", LockTag{ResetPeriod: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.tag.ToCanonicalInteger(); !errors.Is(err, ErrRangeViolation) {
				t.Errorf("expected ErrRangeViolation, got %v", err)
			}
			if _, err := NewLockTag(tt.tag.Scope, tt.tag.ResetPeriod, tt.tag.AllocatorID); !errors.Is(err, ErrRangeViolation) {
				t.Errorf("NewLockTag: expected ErrRangeViolation, got %v", err)
			}
		})
	}
}

func TestLockTag_TruncatingVariant(t *testing.T) {
	// 9 = 0b1001; only the low three bits survive.
	tag := LockTag{ResetPeriod: 9}
	got := tag.ToCanonicalIntegerTruncating()
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 92)
	if !got.Eq(want) {
		t.Errorf("truncated = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestLockTagFromCanonicalInteger_TooWide(t *testing.T) {
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	if _, err := LockTagFromCanonicalInteger(wide); !errors.Is(err, ErrRangeViolation) {
		t.Errorf("expected ErrRangeViolation, got %v", err)
	}
}

func TestResetPeriod_Duration(t *testing.T) {
	tests := []struct {
		p    ResetPeriod
		want time.Duration
		name string
	}{
		{OneSecond, time.Second, "1s"},
		{FifteenSeconds, 15 * time.Second, "15s"},
		{OneMinute, time.Minute, "1m"},
		{TenMinutes, 10 * time.Minute, "10m"},
		{OneHourAndFiveMinutes, 65 * time.Minute, "1h5m"},
		{OneDay, 24 * time.Hour, "1d"},
		{SevenDaysAndOneHour, 169 * time.Hour, "7d1h"},
		{ThirtyDays, 720 * time.Hour, "30d"},
		{ResetPeriod(8), 0, "resetPeriod(8)"},
	}
	for _, tt := range tests {
		if got := tt.p.Duration(); got != tt.want {
			t.Errorf("%s.Duration() = %v, want %v", tt.name, got, tt.want)
		}
		if got := tt.p.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

func TestTokenID_EndToEnd(t *testing.T) {
	allocator := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	token := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")

	tag, err := NewLockTag(ScopeMultichain, OneSecond, NewAllocatorID(allocator))
	if err != nil {
		t.Fatal(err)
	}
	lockTag, err := tag.ToCanonicalInteger()
	if err != nil {
		t.Fatal(err)
	}
	id, err := TokenID(tag, token)
	if err != nil {
		t.Fatalf("TokenID() failed: %v", err)
	}

	if hi := new(uint256.Int).Rsh(id, 160); !hi.Eq(lockTag) {
		t.Errorf("id >> 160 = %s, want %s", hi.Hex(), lockTag.Hex())
	}
	if lo := new(uint256.Int).And(id, Mask(160)); !lo.Eq(AddressToInt(token)) {
		t.Errorf("id & (2^160-1) = %s, want %s", lo.Hex(), token.Hex())
	}

	gotTag, gotToken, err := SplitID(id)
	if err != nil {
		t.Fatalf("SplitID() failed: %v", err)
	}
	if gotToken != token {
		t.Errorf("token = %s, want %s", gotToken.Hex(), token.Hex())
	}
	if !gotTag.AllocatorID.Matches(allocator) {
		t.Errorf("allocator id %s does not match %s", gotTag.AllocatorID, allocator.Hex())
	}
}

func TestClaimantID_Layout(t *testing.T) {
	receiver := common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")
	alloc, _ := ParseAllocatorID(uint256.NewInt(7))
	tag := LockTag{Scope: ScopeChainSpecific, ResetPeriod: OneDay, AllocatorID: alloc}

	id, err := ClaimantID(tag, receiver)
	if err != nil {
		t.Fatalf("ClaimantID() failed: %v", err)
	}
	lockTag, _ := tag.ToCanonicalInteger()
	if hi := new(uint256.Int).Rsh(id, 160); !hi.Eq(lockTag) {
		t.Errorf("claimant lock tag = %s, want %s", hi.Hex(), lockTag.Hex())
	}
	// A high receiver address must not bleed into the lock tag bits.
	if lo := new(uint256.Int).And(id, Mask(160)); !lo.Eq(Mask(160)) {
		t.Errorf("claimant address bits = %s", lo.Hex())
	}

	if _, err := ClaimantID(LockTag{Scope: 3}, receiver); !errors.Is(err, ErrRangeViolation) {
		t.Errorf("expected ErrRangeViolation for invalid lock tag, got %v", err)
	}
}
