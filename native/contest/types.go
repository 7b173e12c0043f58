package contest

import (
	"math/big"
	"strings"

	"github.com/Winnrdotfun/protocol/native/oracle"
)

const (
	// MaxFeedsPerContest bounds the tracked basket so resolution stays within
	// a fixed compute budget.
	MaxFeedsPerContest = 5

	// TotalCreditPerEntry is the required sum of every allocation vector.
	TotalCreditPerEntry = 100
)

// Config is the registry singleton fixed at initialisation: the admin
// identity, the mint entry fees are denominated in, and the running protocol
// fee percentage.
type Config struct {
	Admin      [20]byte
	Mint       string
	FeePercent uint8
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ContestMetadata is the registry's mutable singleton: the monotonically
// increasing contest counter and the cumulative collected, unwithdrawn fee.
type ContestMetadata struct {
	ContestCount uint64
	FeePercent   uint8
	FeeAmount    *big.Int
}

// Clone returns a deep copy of the metadata.
func (m *ContestMetadata) Clone() *ContestMetadata {
	if m == nil {
		return nil
	}
	clone := &ContestMetadata{ContestCount: m.ContestCount, FeePercent: m.FeePercent, FeeAmount: big.NewInt(0)}
	if m.FeeAmount != nil {
		clone.FeeAmount = new(big.Int).Set(m.FeeAmount)
	}
	return clone
}

// Contest is one round of the draft lifecycle. Key is derived
// deterministically from the registry counter and the creator so independent
// nodes address the same logical contest identically.
type Contest struct {
	ID                     uint64
	Key                    [32]byte
	Creator                [20]byte
	StartTime              int64
	EndTime                int64
	EntryFee               uint64
	MaxEntries             uint32
	NumEntries             uint32
	TokenFeedIDs           []string
	TokenStartPrices       []oracle.PricePoint
	TokenROIs              []*big.Rat
	WinnerRewardAllocation []uint8
	WinnerIDs              []uint32
	IsResolved             bool
}

// Clone returns a deep copy of the contest record.
func (c *Contest) Clone() *Contest {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TokenFeedIDs = append([]string(nil), c.TokenFeedIDs...)
	clone.TokenStartPrices = append([]oracle.PricePoint(nil), c.TokenStartPrices...)
	clone.WinnerRewardAllocation = append([]uint8(nil), c.WinnerRewardAllocation...)
	clone.WinnerIDs = append([]uint32(nil), c.WinnerIDs...)
	if c.TokenROIs != nil {
		clone.TokenROIs = make([]*big.Rat, len(c.TokenROIs))
		for i, roi := range c.TokenROIs {
			if roi != nil {
				clone.TokenROIs[i] = new(big.Rat).Set(roi)
			}
		}
	}
	return &clone
}

// HasStartPrices reports whether the start snapshot has been posted.
func (c *Contest) HasStartPrices() bool {
	return c != nil && len(c.TokenStartPrices) > 0
}

// EntryOpen reports whether entries are accepted at the supplied time. The
// entry window closes when the contest starts; capacity is checked separately.
func (c *Contest) EntryOpen(now int64) bool {
	return c != nil && now < c.StartTime
}

// Ended reports whether the contest end time has elapsed.
func (c *Contest) Ended(now int64) bool {
	return c != nil && now >= c.EndTime
}

// ContestCredits mirrors every entrant's allocation vector in entry order as a
// flat audit record: entry i occupies credits[i*feeds : (i+1)*feeds].
type ContestCredits struct {
	ContestKey        [32]byte
	CreditAllocations []uint8
}

// Clone returns a deep copy of the credits record.
func (c *ContestCredits) Clone() *ContestCredits {
	if c == nil {
		return nil
	}
	return &ContestCredits{
		ContestKey:        c.ContestKey,
		CreditAllocations: append([]uint8(nil), c.CreditAllocations...),
	}
}

// AllocationAt returns the allocation vector for the given entry id.
func (c *ContestCredits) AllocationAt(entryID uint32, numFeeds int) []uint8 {
	if c == nil || numFeeds <= 0 {
		return nil
	}
	start := int(entryID) * numFeeds
	end := start + numFeeds
	if start < 0 || end > len(c.CreditAllocations) {
		return nil
	}
	return append([]uint8(nil), c.CreditAllocations[start:end]...)
}

// ContestEntry is one participant's stake in a contest. IDs are assigned in
// entry order starting at zero and double as the ranking identity.
type ContestEntry struct {
	ID               uint32
	User             [20]byte
	ContestKey       [32]byte
	CreditAllocation []uint8
	HasClaimed       bool
}

// Clone returns a deep copy of the entry record.
func (e *ContestEntry) Clone() *ContestEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.CreditAllocation = append([]uint8(nil), e.CreditAllocation...)
	return &clone
}

// NormalizeMint canonicalises a mint symbol.
func NormalizeMint(mint string) string {
	return strings.ToUpper(strings.TrimSpace(mint))
}

// ValidateAllocation checks an allocation vector against the contest basket:
// one percentage per feed, summing to exactly TotalCreditPerEntry. Malformed
// vectors are rejected outright, never normalised.
func ValidateAllocation(alloc []uint8, numFeeds int) error {
	if len(alloc) != numFeeds {
		return ErrInvalidCreditAllocation
	}
	sum := 0
	for _, credit := range alloc {
		sum += int(credit)
	}
	if sum != TotalCreditPerEntry {
		return ErrInvalidCreditAllocation
	}
	return nil
}

// ValidateRewardAllocation checks the paid-rank percentages sum to 100.
func ValidateRewardAllocation(alloc []uint8) error {
	if len(alloc) == 0 {
		return ErrInvalidRewardAllocation
	}
	sum := 0
	for _, pct := range alloc {
		sum += int(pct)
	}
	if sum != TotalCreditPerEntry {
		return ErrInvalidRewardAllocation
	}
	return nil
}
