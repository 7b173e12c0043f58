package contest

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Winnrdotfun/protocol/native/oracle"
)

// Stored record shapes. RLP has no signed integers, so signed fields travel as
// decimal strings and rationals as "num/denom" strings, mirroring how amounts
// are persisted elsewhere in the module.

type storedConfig struct {
	Admin      [20]byte
	Mint       string
	FeePercent uint8
}

type storedMetadata struct {
	ContestCount uint64
	FeePercent   uint8
	FeeAmount    string
}

type storedPricePoint struct {
	FeedID      string
	Price       string
	Conf        uint64
	Expo        string
	PublishTime uint64
}

type storedContest struct {
	ID                     uint64
	Key                    [32]byte
	Creator                [20]byte
	StartTime              uint64
	EndTime                uint64
	EntryFee               uint64
	MaxEntries             uint32
	NumEntries             uint32
	TokenFeedIDs           []string
	TokenStartPrices       []storedPricePoint
	TokenROIs              []string
	WinnerRewardAllocation []uint8
	WinnerIDs              []uint32
	IsResolved             bool
}

type storedCredits struct {
	ContestKey        [32]byte
	CreditAllocations []uint8
}

type storedEntry struct {
	ID               uint32
	User             [20]byte
	ContestKey       [32]byte
	CreditAllocation []uint8
	HasClaimed       bool
}

// EncodeConfig serialises the config singleton.
func EncodeConfig(c *Config) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("contest: nil config")
	}
	return rlp.EncodeToBytes(storedConfig{Admin: c.Admin, Mint: NormalizeMint(c.Mint), FeePercent: c.FeePercent})
}

// DecodeConfig deserialises the config singleton.
func DecodeConfig(data []byte) (*Config, error) {
	var stored storedConfig
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return &Config{Admin: stored.Admin, Mint: stored.Mint, FeePercent: stored.FeePercent}, nil
}

// EncodeMetadata serialises the metadata singleton.
func EncodeMetadata(m *ContestMetadata) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("contest: nil metadata")
	}
	fee := "0"
	if m.FeeAmount != nil {
		fee = m.FeeAmount.String()
	}
	return rlp.EncodeToBytes(storedMetadata{ContestCount: m.ContestCount, FeePercent: m.FeePercent, FeeAmount: fee})
}

// DecodeMetadata deserialises the metadata singleton.
func DecodeMetadata(data []byte) (*ContestMetadata, error) {
	var stored storedMetadata
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	fee, ok := new(big.Int).SetString(stored.FeeAmount, 10)
	if !ok {
		return nil, fmt.Errorf("contest: invalid fee amount %q", stored.FeeAmount)
	}
	return &ContestMetadata{ContestCount: stored.ContestCount, FeePercent: stored.FeePercent, FeeAmount: fee}, nil
}

// EncodeContest serialises a contest record.
func EncodeContest(c *Contest) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("contest: nil contest")
	}
	stored := storedContest{
		ID:                     c.ID,
		Key:                    c.Key,
		Creator:                c.Creator,
		StartTime:              clampUnix(c.StartTime),
		EndTime:                clampUnix(c.EndTime),
		EntryFee:               c.EntryFee,
		MaxEntries:             c.MaxEntries,
		NumEntries:             c.NumEntries,
		TokenFeedIDs:           append([]string(nil), c.TokenFeedIDs...),
		WinnerRewardAllocation: append([]uint8(nil), c.WinnerRewardAllocation...),
		WinnerIDs:              append([]uint32(nil), c.WinnerIDs...),
		IsResolved:             c.IsResolved,
	}
	for _, point := range c.TokenStartPrices {
		stored.TokenStartPrices = append(stored.TokenStartPrices, toStoredPrice(point))
	}
	for _, roi := range c.TokenROIs {
		if roi == nil {
			roi = new(big.Rat)
		}
		stored.TokenROIs = append(stored.TokenROIs, roi.RatString())
	}
	return rlp.EncodeToBytes(stored)
}

// DecodeContest deserialises a contest record.
func DecodeContest(data []byte) (*Contest, error) {
	var stored storedContest
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	out := &Contest{
		ID:                     stored.ID,
		Key:                    stored.Key,
		Creator:                stored.Creator,
		StartTime:              int64(stored.StartTime),
		EndTime:                int64(stored.EndTime),
		EntryFee:               stored.EntryFee,
		MaxEntries:             stored.MaxEntries,
		NumEntries:             stored.NumEntries,
		TokenFeedIDs:           stored.TokenFeedIDs,
		WinnerRewardAllocation: stored.WinnerRewardAllocation,
		WinnerIDs:              stored.WinnerIDs,
		IsResolved:             stored.IsResolved,
	}
	for _, point := range stored.TokenStartPrices {
		decoded, err := fromStoredPrice(point)
		if err != nil {
			return nil, err
		}
		out.TokenStartPrices = append(out.TokenStartPrices, decoded)
	}
	for _, raw := range stored.TokenROIs {
		roi, ok := new(big.Rat).SetString(raw)
		if !ok {
			return nil, fmt.Errorf("contest: invalid roi %q", raw)
		}
		out.TokenROIs = append(out.TokenROIs, roi)
	}
	return out, nil
}

// EncodeCredits serialises a credit audit record.
func EncodeCredits(c *ContestCredits) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("contest: nil credits")
	}
	return rlp.EncodeToBytes(storedCredits{ContestKey: c.ContestKey, CreditAllocations: append([]uint8(nil), c.CreditAllocations...)})
}

// DecodeCredits deserialises a credit audit record.
func DecodeCredits(data []byte) (*ContestCredits, error) {
	var stored storedCredits
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return &ContestCredits{ContestKey: stored.ContestKey, CreditAllocations: stored.CreditAllocations}, nil
}

// EncodeEntry serialises an entry record.
func EncodeEntry(e *ContestEntry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("contest: nil entry")
	}
	return rlp.EncodeToBytes(storedEntry{
		ID:               e.ID,
		User:             e.User,
		ContestKey:       e.ContestKey,
		CreditAllocation: append([]uint8(nil), e.CreditAllocation...),
		HasClaimed:       e.HasClaimed,
	})
}

// DecodeEntry deserialises an entry record.
func DecodeEntry(data []byte) (*ContestEntry, error) {
	var stored storedEntry
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return &ContestEntry{
		ID:               stored.ID,
		User:             stored.User,
		ContestKey:       stored.ContestKey,
		CreditAllocation: stored.CreditAllocation,
		HasClaimed:       stored.HasClaimed,
	}, nil
}

func toStoredPrice(point oracle.PricePoint) storedPricePoint {
	return storedPricePoint{
		FeedID:      point.FeedID,
		Price:       strconv.FormatInt(point.Price, 10),
		Conf:        point.Conf,
		Expo:        strconv.FormatInt(int64(point.Expo), 10),
		PublishTime: clampUnix(point.PublishTime),
	}
}

func fromStoredPrice(stored storedPricePoint) (oracle.PricePoint, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(stored.Price), 10, 64)
	if err != nil {
		return oracle.PricePoint{}, fmt.Errorf("contest: invalid stored price %q: %w", stored.Price, err)
	}
	expo, err := strconv.ParseInt(strings.TrimSpace(stored.Expo), 10, 32)
	if err != nil {
		return oracle.PricePoint{}, fmt.Errorf("contest: invalid stored expo %q: %w", stored.Expo, err)
	}
	return oracle.PricePoint{
		FeedID:      stored.FeedID,
		Price:       price,
		Conf:        stored.Conf,
		Expo:        int32(expo),
		PublishTime: int64(stored.PublishTime),
	}, nil
}

func clampUnix(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
