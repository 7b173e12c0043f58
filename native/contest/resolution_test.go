package contest

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Winnrdotfun/protocol/native/oracle"
)

func pricePoint(price int64) oracle.PricePoint {
	return oracle.PricePoint{Price: price, Expo: -8}
}

func TestROIsExactRationals(t *testing.T) {
	start := []oracle.PricePoint{pricePoint(100_0000_0000), pricePoint(100_0000_0000)}
	end := []oracle.PricePoint{pricePoint(101_9280_0000), pricePoint(95_7840_0000)}

	rois, err := ROIs(start, end)
	if err != nil {
		t.Fatalf("rois: %v", err)
	}
	if got, want := rois[0], big.NewRat(1928, 1000); got.Cmp(want) != 0 {
		t.Fatalf("roi 0: expected %s, got %s", want.RatString(), got.RatString())
	}
	if got, want := rois[1], big.NewRat(-4216, 1000); got.Cmp(want) != 0 {
		t.Fatalf("roi 1: expected %s, got %s", want.RatString(), got.RatString())
	}
}

func TestROIsRejectsMismatchAndZeroStart(t *testing.T) {
	if _, err := ROIs([]oracle.PricePoint{pricePoint(1)}, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := ROIs([]oracle.PricePoint{pricePoint(0)}, []oracle.PricePoint{pricePoint(1)}); err == nil {
		t.Fatalf("expected non-positive start price error")
	}
}

func TestScoreWeightsCredits(t *testing.T) {
	rois := []*big.Rat{big.NewRat(1928, 1000), big.NewRat(-4216, 1000)}

	cases := []struct {
		alloc []uint8
		want  *big.Rat
	}{
		{[]uint8{25, 75}, big.NewRat(-268, 100)},
		{[]uint8{50, 50}, big.NewRat(-1144, 1000)},
		{[]uint8{40, 60}, big.NewRat(-17584, 10000)},
		{[]uint8{75, 25}, big.NewRat(392, 1000)},
	}
	for _, tc := range cases {
		if got := Score(tc.alloc, rois); got.Cmp(tc.want) != 0 {
			t.Fatalf("score %v: expected %s, got %s", tc.alloc, tc.want.RatString(), got.RatString())
		}
	}
}

func creditsFor(allocs ...[]uint8) *ContestCredits {
	credits := &ContestCredits{}
	for _, alloc := range allocs {
		credits.CreditAllocations = append(credits.CreditAllocations, alloc...)
	}
	return credits
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	rois := []*big.Rat{big.NewRat(1928, 1000), big.NewRat(-4216, 1000)}
	credits := creditsFor(
		[]uint8{25, 75},
		[]uint8{50, 50},
		[]uint8{40, 60},
		[]uint8{75, 25},
	)

	winners, err := Rank(credits, 4, 2, rois, 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if winners[0] != 3 || winners[1] != 1 {
		t.Fatalf("expected winners [3 1], got %v", winners)
	}
}

func TestRankBreaksTiesByLowerEntryID(t *testing.T) {
	rois := []*big.Rat{big.NewRat(5, 1), big.NewRat(5, 1)}
	credits := creditsFor(
		[]uint8{50, 50},
		[]uint8{30, 70},
		[]uint8{70, 30},
	)

	winners, err := Rank(credits, 3, 2, rois, 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for i, want := range []uint32{0, 1, 2} {
		if winners[i] != want {
			t.Fatalf("tie ranking %d: expected entry %d, got %d", i, want, winners[i])
		}
	}
}

func TestRankFailsClosed(t *testing.T) {
	rois := []*big.Rat{big.NewRat(1, 1)}
	credits := creditsFor([]uint8{100})

	if _, err := Rank(credits, 1, 1, rois, 2); !errors.Is(err, ErrInsufficientEntries) {
		t.Fatalf("expected ErrInsufficientEntries, got %v", err)
	}
	if _, err := Rank(credits, 0, 1, rois, 1); !errors.Is(err, ErrInsufficientEntries) {
		t.Fatalf("expected ErrInsufficientEntries for empty contest, got %v", err)
	}
}

func TestFeeAndShareArithmetic(t *testing.T) {
	pool := PoolAmount(10, 4)
	if pool.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("pool: expected 40, got %s", pool)
	}

	fee := ProtocolFee(pool, 5)
	if fee.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("fee: expected 2, got %s", fee)
	}

	distributable := new(big.Int).Sub(pool, fee)
	first := WinnerShare(distributable, 75)
	second := WinnerShare(distributable, 25)
	if first.Cmp(big.NewInt(28)) != 0 || second.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("shares: expected 28 and 9, got %s and %s", first, second)
	}

	// Floored shares never overdraw the distributable pool.
	total := new(big.Int).Add(first, second)
	if total.Cmp(distributable) > 0 {
		t.Fatalf("shares %s exceed distributable %s", total, distributable)
	}
}

func TestProtocolFeeZeroPool(t *testing.T) {
	if fee := ProtocolFee(big.NewInt(0), 5); fee.Sign() != 0 {
		t.Fatalf("expected zero fee, got %s", fee)
	}
	if share := WinnerShare(big.NewInt(0), 75); share.Sign() != 0 {
		t.Fatalf("expected zero share, got %s", share)
	}
}
