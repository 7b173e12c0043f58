package contest

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/Winnrdotfun/protocol/native/oracle"
)

var hundred = big.NewInt(100)

// ROIs computes the signed percentage return per feed between the posted
// start snapshot and the end observation, in exact rational arithmetic:
// (end - start) / start * 100.
func ROIs(start, end []oracle.PricePoint) ([]*big.Rat, error) {
	if len(start) != len(end) {
		return nil, fmt.Errorf("contest: price snapshot length mismatch (%d vs %d)", len(start), len(end))
	}
	rois := make([]*big.Rat, len(start))
	for i := range start {
		startRat := start[i].Rat()
		if startRat.Sign() <= 0 {
			return nil, fmt.Errorf("contest: non-positive start price for feed %s", start[i].FeedID)
		}
		delta := new(big.Rat).Sub(end[i].Rat(), startRat)
		roi := delta.Quo(delta, startRat)
		rois[i] = roi.Mul(roi, new(big.Rat).SetInt(hundred))
	}
	return rois, nil
}

// Score computes the credit-weighted sum of per-feed ROI for one allocation
// vector: sum(alloc[i]/100 * roi[i]).
func Score(alloc []uint8, rois []*big.Rat) *big.Rat {
	score := new(big.Rat)
	for i, roi := range rois {
		if i >= len(alloc) || roi == nil {
			continue
		}
		weight := big.NewRat(int64(alloc[i]), 100)
		score.Add(score, weight.Mul(weight, roi))
	}
	return score
}

// Rank orders all entries by score descending and returns the ids of the top
// k, best-ranked first. Equal scores rank by lower entry id. When fewer than k
// entries exist the ranking fails closed rather than paying fewer winners.
func Rank(credits *ContestCredits, numEntries uint32, numFeeds int, rois []*big.Rat, k int) ([]uint32, error) {
	if k <= 0 {
		return nil, ErrInvalidRewardAllocation
	}
	if int(numEntries) < k {
		return nil, ErrInsufficientEntries
	}
	type ranked struct {
		id    uint32
		score *big.Rat
	}
	scores := make([]ranked, 0, numEntries)
	for id := uint32(0); id < numEntries; id++ {
		alloc := credits.AllocationAt(id, numFeeds)
		if alloc == nil {
			return nil, fmt.Errorf("contest: missing credit allocation for entry %d", id)
		}
		scores = append(scores, ranked{id: id, score: Score(alloc, rois)})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		cmp := scores[i].score.Cmp(scores[j].score)
		if cmp == 0 {
			return scores[i].id < scores[j].id
		}
		return cmp > 0
	})
	winners := make([]uint32, k)
	for i := 0; i < k; i++ {
		winners[i] = scores[i].id
	}
	return winners, nil
}

// PoolAmount returns the escrowed total for a contest: entryFee * numEntries.
func PoolAmount(entryFee uint64, numEntries uint32) *big.Int {
	pool := new(big.Int).SetUint64(entryFee)
	return pool.Mul(pool, new(big.Int).SetUint64(uint64(numEntries)))
}

// ProtocolFee returns floor(pool * feePercent / 100).
func ProtocolFee(pool *big.Int, feePercent uint8) *big.Int {
	if pool == nil || pool.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(pool, big.NewInt(int64(feePercent)))
	return fee.Div(fee, hundred)
}

// WinnerShare returns floor(distributable * rewardPct / 100) for one ranked
// winner. Shares are computed lazily at claim time; flooring each share
// independently can leave a small residue in escrow, which is never swept.
func WinnerShare(distributable *big.Int, rewardPct uint8) *big.Int {
	if distributable == nil || distributable.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(distributable, big.NewInt(int64(rewardPct)))
	return share.Div(share, hundred)
}
