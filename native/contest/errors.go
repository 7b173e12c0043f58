package contest

import "errors"

// Validation errors: malformed inputs, rejected synchronously with no state
// change.
var (
	ErrInvalidFeePercent       = errors.New("contest: fee percent out of range")
	ErrInvalidSchedule         = errors.New("contest: invalid start/end schedule")
	ErrInvalidFeedCount        = errors.New("contest: feed count out of range")
	ErrInvalidRewardAllocation = errors.New("contest: reward allocation must sum to 100")
	ErrInvalidCreditAllocation = errors.New("contest: credit allocation must match feeds and sum to 100")
	ErrInvalidMaxEntries       = errors.New("contest: max entries must cover the paid ranks")
	ErrInvalidAmount           = errors.New("contest: amount must be positive")
)

// State-conflict errors: the existing state is authoritative and unchanged.
var (
	ErrAlreadyInitialized  = errors.New("contest: registry already initialized")
	ErrNotInitialized      = errors.New("contest: registry not initialized")
	ErrDuplicateEntry      = errors.New("contest: caller already entered this contest")
	ErrAlreadyResolved     = errors.New("contest: contest already resolved")
	ErrAlreadyClaimed      = errors.New("contest: reward already claimed")
	ErrPricesAlreadyPosted = errors.New("contest: start prices already posted")
	ErrFeeExceedsLedger    = errors.New("contest: withdrawal exceeds collected fee")
	ErrUnauthorized        = errors.New("contest: unauthorized caller")
)

// Temporal errors: acting outside the permitted window.
var (
	ErrEntryClosed       = errors.New("contest: entry window closed")
	ErrContestFull       = errors.New("contest: contest is full")
	ErrContestNotStarted = errors.New("contest: contest has not started")
	ErrContestNotEnded   = errors.New("contest: contest has not ended")
)

// Lookup and settlement errors.
var (
	ErrContestNotFound     = errors.New("contest: contest not found")
	ErrEntryNotFound       = errors.New("contest: entry not found")
	ErrPricesNotPosted     = errors.New("contest: start prices not posted")
	ErrInsufficientEntries = errors.New("contest: not enough entries to pay out winners")
	ErrNotResolved         = errors.New("contest: contest not resolved")
	ErrNotWinner           = errors.New("contest: entry is not a ranked winner")
	ErrInsufficientBalance = errors.New("contest: insufficient balance for entry fee")
	ErrStaleOraclePrice    = errors.New("contest: oracle price predates required floor")
)
