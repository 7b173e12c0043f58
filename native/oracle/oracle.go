package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// StandardExpo is the common decimal exponent all price points are normalised
// to before they are persisted or compared. Pyth feeds publish with varying
// exponents; a single exponent keeps stored contest snapshots comparable.
const StandardExpo int32 = -8

// ErrUnknownFeed indicates the source has no observation for the feed id.
var ErrUnknownFeed = errors.New("oracle: unknown feed")

// ErrStalePrice indicates the freshest observation predates the caller's
// required timestamp floor.
var ErrStalePrice = errors.New("oracle: price older than required timestamp")

// PricePoint is a single signed fixed-point price observation. Price scales by
// 10^Expo; Conf is the publisher confidence interval in the same scale. The
// contest engine asserts PublishTime lower bounds only and never interprets
// Conf.
type PricePoint struct {
	FeedID      string
	Price       int64
	Conf        uint64
	Expo        int32
	PublishTime int64
}

// IsZero reports whether the point carries no observation.
func (p PricePoint) IsZero() bool {
	return p.FeedID == "" && p.Price == 0 && p.PublishTime == 0
}

// Rat converts the fixed-point price into an exact rational.
func (p PricePoint) Rat() *big.Rat {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(expoMagnitude(p.Expo))), nil)
	if p.Expo < 0 {
		return new(big.Rat).SetFrac(big.NewInt(p.Price), scale)
	}
	num := new(big.Int).Mul(big.NewInt(p.Price), scale)
	return new(big.Rat).SetInt(num)
}

// Normalize rescales the point to the standard exponent. Precision below the
// standard exponent is truncated; positive-exponent feeds are scaled up.
func (p PricePoint) Normalize() PricePoint {
	if p.Expo == StandardExpo {
		return p
	}
	out := p
	out.Expo = StandardExpo
	diff := int64(p.Expo) - int64(StandardExpo)
	if diff > 0 {
		mul := pow10(diff)
		out.Price = p.Price * mul
		out.Conf = p.Conf * uint64(mul)
		return out
	}
	div := pow10(-diff)
	out.Price = p.Price / div
	out.Conf = p.Conf / uint64(div)
	return out
}

func expoMagnitude(expo int32) int64 {
	if expo < 0 {
		return int64(-expo)
	}
	return int64(expo)
}

func pow10(n int64) int64 {
	out := int64(1)
	for i := int64(0); i < n; i++ {
		out *= 10
	}
	return out
}

// Source supplies the freshest known observation for a named feed.
// Implementations must return ErrUnknownFeed for feeds they do not track.
type Source interface {
	Latest(ctx context.Context, feedID string) (PricePoint, error)
}

// NormalizeFeedID canonicalises a hex feed identifier for map lookups.
func NormalizeFeedID(feedID string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(feedID), "0x"))
}

// ManualSource is an in-memory source used for tests and manual overrides
// during incident response.
type ManualSource struct {
	mu     sync.RWMutex
	points map[string]PricePoint
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{points: make(map[string]PricePoint)}
}

// Set stores an observation for the feed, normalised to the standard exponent.
func (m *ManualSource) Set(feedID string, point PricePoint) {
	if m == nil {
		return
	}
	key := NormalizeFeedID(feedID)
	if key == "" {
		return
	}
	point.FeedID = key
	m.mu.Lock()
	m.points[key] = point.Normalize()
	m.mu.Unlock()
}

// SetDecimal records a price given as a decimal string, e.g. "0.0000112".
func (m *ManualSource) SetDecimal(feedID, price string, publishTime int64) error {
	if m == nil {
		return fmt.Errorf("oracle: manual source not configured")
	}
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(price))
	if !ok {
		return fmt.Errorf("oracle: invalid price %q", price)
	}
	point, err := FromRat(feedID, rat, publishTime)
	if err != nil {
		return err
	}
	m.Set(feedID, point)
	return nil
}

// Latest implements the Source interface.
func (m *ManualSource) Latest(_ context.Context, feedID string) (PricePoint, error) {
	if m == nil {
		return PricePoint{}, fmt.Errorf("oracle: manual source not configured")
	}
	key := NormalizeFeedID(feedID)
	m.mu.RLock()
	point, ok := m.points[key]
	m.mu.RUnlock()
	if !ok {
		return PricePoint{}, fmt.Errorf("%w: %s", ErrUnknownFeed, key)
	}
	return point, nil
}

// FromRat converts an exact rational price into a standard-exponent point.
// Precision beyond the standard exponent is truncated toward zero.
func FromRat(feedID string, rate *big.Rat, publishTime int64) (PricePoint, error) {
	if rate == nil {
		return PricePoint{}, fmt.Errorf("oracle: rate required")
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-StandardExpo)), nil)
	scaled := new(big.Rat).Mul(rate, new(big.Rat).SetInt(scale))
	fixed := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !fixed.IsInt64() {
		return PricePoint{}, fmt.Errorf("oracle: price %s out of fixed-point range", rate.FloatString(12))
	}
	return PricePoint{
		FeedID:      NormalizeFeedID(feedID),
		Price:       fixed.Int64(),
		Expo:        StandardExpo,
		PublishTime: publishTime,
	}, nil
}
