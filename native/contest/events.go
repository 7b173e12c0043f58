package contest

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/Winnrdotfun/protocol/core/types"
)

const (
	EventTypeRegistryInitialized = "contest.registry.initialized"
	EventTypeContestCreated      = "contest.created"
	EventTypeContestEntered      = "contest.entered"
	EventTypePricesPosted        = "contest.prices_posted"
	EventTypeContestResolved     = "contest.resolved"
	EventTypeRewardClaimed       = "contest.reward_claimed"
	EventTypeFeeWithdrawn        = "contest.fee_withdrawn"
)

// RegistryInitialized is emitted once when the registry singletons are
// created.
type RegistryInitialized struct {
	Admin      [20]byte
	Mint       string
	FeePercent uint8
}

func (RegistryInitialized) EventType() string { return EventTypeRegistryInitialized }

func (e RegistryInitialized) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRegistryInitialized,
		Attributes: map[string]string{
			"admin":      hex.EncodeToString(e.Admin[:]),
			"mint":       e.Mint,
			"feePercent": strconv.FormatUint(uint64(e.FeePercent), 10),
		},
	}
}

// ContestCreated is emitted when a new contest round is opened.
type ContestCreated struct {
	ID        uint64
	Key       [32]byte
	Creator   [20]byte
	StartTime int64
	EndTime   int64
	EntryFee  uint64
	Feeds     int
}

func (ContestCreated) EventType() string { return EventTypeContestCreated }

func (e ContestCreated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeContestCreated,
		Attributes: map[string]string{
			"id":        strconv.FormatUint(e.ID, 10),
			"key":       hex.EncodeToString(e.Key[:]),
			"creator":   hex.EncodeToString(e.Creator[:]),
			"startTime": strconv.FormatInt(e.StartTime, 10),
			"endTime":   strconv.FormatInt(e.EndTime, 10),
			"entryFee":  strconv.FormatUint(e.EntryFee, 10),
			"feeds":     strconv.Itoa(e.Feeds),
		},
	}
}

// ContestEntered is emitted when an entrant's fee lands in escrow.
type ContestEntered struct {
	ContestKey [32]byte
	EntryID    uint32
	User       [20]byte
	EntryFee   uint64
}

func (ContestEntered) EventType() string { return EventTypeContestEntered }

func (e ContestEntered) Event() *types.Event {
	return &types.Event{
		Type: EventTypeContestEntered,
		Attributes: map[string]string{
			"contest":  hex.EncodeToString(e.ContestKey[:]),
			"entryId":  strconv.FormatUint(uint64(e.EntryID), 10),
			"user":     hex.EncodeToString(e.User[:]),
			"entryFee": strconv.FormatUint(e.EntryFee, 10),
		},
	}
}

// PricesPosted is emitted when the start snapshot is fixed.
type PricesPosted struct {
	ContestKey [32]byte
	Feeds      int
}

func (PricesPosted) EventType() string { return EventTypePricesPosted }

func (e PricesPosted) Event() *types.Event {
	return &types.Event{
		Type: EventTypePricesPosted,
		Attributes: map[string]string{
			"contest": hex.EncodeToString(e.ContestKey[:]),
			"feeds":   strconv.Itoa(e.Feeds),
		},
	}
}

// ContestResolved is emitted exactly once per contest at settlement.
type ContestResolved struct {
	ContestKey [32]byte
	WinnerIDs  []uint32
	Fee        *big.Int
}

func (ContestResolved) EventType() string { return EventTypeContestResolved }

func (e ContestResolved) Event() *types.Event {
	winners := ""
	for i, id := range e.WinnerIDs {
		if i > 0 {
			winners += ","
		}
		winners += strconv.FormatUint(uint64(id), 10)
	}
	return &types.Event{
		Type: EventTypeContestResolved,
		Attributes: map[string]string{
			"contest": hex.EncodeToString(e.ContestKey[:]),
			"winners": winners,
			"fee":     formatAmount(e.Fee),
		},
	}
}

// RewardClaimed is emitted when a ranked winner collects their share.
type RewardClaimed struct {
	ContestKey [32]byte
	EntryID    uint32
	User       [20]byte
	Amount     *big.Int
}

func (RewardClaimed) EventType() string { return EventTypeRewardClaimed }

func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRewardClaimed,
		Attributes: map[string]string{
			"contest": hex.EncodeToString(e.ContestKey[:]),
			"entryId": strconv.FormatUint(uint64(e.EntryID), 10),
			"user":    hex.EncodeToString(e.User[:]),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// FeeWithdrawn is emitted when the admin drains collected fee from escrow.
type FeeWithdrawn struct {
	Admin       [20]byte
	Destination [20]byte
	Amount      *big.Int
}

func (FeeWithdrawn) EventType() string { return EventTypeFeeWithdrawn }

func (e FeeWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: EventTypeFeeWithdrawn,
		Attributes: map[string]string{
			"admin":       hex.EncodeToString(e.Admin[:]),
			"destination": hex.EncodeToString(e.Destination[:]),
			"amount":      formatAmount(e.Amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
