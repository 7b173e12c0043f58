package contest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Winnrdotfun/protocol/core/events"
	"github.com/Winnrdotfun/protocol/core/types"
	"github.com/Winnrdotfun/protocol/native/oracle"
)

var (
	errNilState  = errors.New("contest engine: state not configured")
	errNilOracle = errors.New("contest engine: oracle not configured")
)

type engineState interface {
	ConfigGet() (*Config, bool, error)
	ConfigPut(*Config) error
	MetadataGet() (*ContestMetadata, bool, error)
	MetadataPut(*ContestMetadata) error
	ContestGet(key [32]byte) (*Contest, bool, error)
	ContestPut(*Contest) error
	CreditsGet(contestKey [32]byte) (*ContestCredits, bool, error)
	CreditsPut(*ContestCredits) error
	EntryGet(contestKey [32]byte, user [20]byte) (*ContestEntry, bool, error)
	EntryPut(*ContestEntry) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine wires the contest lifecycle logic with external state, the price
// oracle, and event emitters. Every exported transition corresponds to one
// atomic ledger operation: the caller is expected to apply it inside a
// snapshot so a returned error leaves no partial mutation visible.
type Engine struct {
	state   engineState
	source  oracle.Source
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a contest engine with a no-op emitter. Callers override
// collaborators via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle configures the price source consulted for snapshots and
// resolution.
func (e *Engine) SetOracle(source oracle.Source) { e.source = source }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) registry() (*Config, *ContestMetadata, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotInitialized
	}
	meta, ok, err := e.state.MetadataGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotInitialized
	}
	return cfg, meta, nil
}

func (e *Engine) loadContest(key [32]byte) (*Contest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	c, ok, err := e.state.ContestGet(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContestNotFound
	}
	return c, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// InitRegistry creates the Config and ContestMetadata singletons. It fails if
// the registry has already been initialised.
func (e *Engine) InitRegistry(admin [20]byte, mint string, feePercent uint8) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if feePercent >= 100 {
		return nil, ErrInvalidFeePercent
	}
	normalized := NormalizeMint(mint)
	if normalized == "" {
		return nil, fmt.Errorf("contest: mint required")
	}
	if _, ok, err := e.state.ConfigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	cfg := &Config{Admin: admin, Mint: normalized, FeePercent: feePercent}
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}
	meta := &ContestMetadata{ContestCount: 0, FeePercent: feePercent, FeeAmount: big.NewInt(0)}
	if err := e.state.MetadataPut(meta); err != nil {
		return nil, err
	}
	e.emit(RegistryInitialized{Admin: admin, Mint: normalized, FeePercent: feePercent})
	return cfg.Clone(), nil
}

// CreateParams carries the caller-supplied contest definition.
type CreateParams struct {
	StartTime              int64
	EndTime                int64
	EntryFee               uint64
	MaxEntries             uint32
	TokenFeedIDs           []string
	WinnerRewardAllocation []uint8
}

// CreateContest opens a new round: assigns the next counter value as the
// contest id, derives the deterministic key from (id, creator), and persists
// the contest together with its empty credit audit record.
func (e *Engine) CreateContest(creator [20]byte, params CreateParams) (*Contest, error) {
	_, meta, err := e.registry()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if params.StartTime <= now {
		return nil, ErrInvalidSchedule
	}
	if params.EndTime <= params.StartTime {
		return nil, ErrInvalidSchedule
	}
	if len(params.TokenFeedIDs) == 0 || len(params.TokenFeedIDs) > MaxFeedsPerContest {
		return nil, ErrInvalidFeedCount
	}
	feeds := make([]string, len(params.TokenFeedIDs))
	for i, feedID := range params.TokenFeedIDs {
		normalized := oracle.NormalizeFeedID(feedID)
		if normalized == "" {
			return nil, ErrInvalidFeedCount
		}
		feeds[i] = normalized
	}
	if err := ValidateRewardAllocation(params.WinnerRewardAllocation); err != nil {
		return nil, err
	}
	if params.MaxEntries == 0 || int(params.MaxEntries) < len(params.WinnerRewardAllocation) {
		return nil, ErrInvalidMaxEntries
	}
	id := meta.ContestCount
	key := DeriveContestKey(id, creator)
	c := &Contest{
		ID:                     id,
		Key:                    key,
		Creator:                creator,
		StartTime:              params.StartTime,
		EndTime:                params.EndTime,
		EntryFee:               params.EntryFee,
		MaxEntries:             params.MaxEntries,
		TokenFeedIDs:           feeds,
		WinnerRewardAllocation: append([]uint8(nil), params.WinnerRewardAllocation...),
	}
	if err := e.state.ContestPut(c); err != nil {
		return nil, err
	}
	if err := e.state.CreditsPut(&ContestCredits{ContestKey: key}); err != nil {
		return nil, err
	}
	meta.ContestCount = id + 1
	if err := e.state.MetadataPut(meta); err != nil {
		return nil, err
	}
	e.emit(ContestCreated{
		ID:        id,
		Key:       key,
		Creator:   creator,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		EntryFee:  c.EntryFee,
		Feeds:     len(feeds),
	})
	return c.Clone(), nil
}

// Enter registers a participant: validates the allocation vector, debits the
// entry fee into the pooled escrow vault, assigns the next entry id, and
// appends the allocation to the audit record. A second entry by the same user
// collides on the deterministic entry address and is rejected.
func (e *Engine) Enter(contestKey [32]byte, user [20]byte, allocation []uint8) (*ContestEntry, error) {
	cfg, _, err := e.registry()
	if err != nil {
		return nil, err
	}
	c, err := e.loadContest(contestKey)
	if err != nil {
		return nil, err
	}
	if !c.EntryOpen(e.now()) {
		return nil, ErrEntryClosed
	}
	if c.NumEntries >= c.MaxEntries {
		return nil, ErrContestFull
	}
	if err := ValidateAllocation(allocation, len(c.TokenFeedIDs)); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.EntryGet(contestKey, user); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateEntry
	}
	credits, ok, err := e.state.CreditsGet(contestKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		credits = &ContestCredits{ContestKey: contestKey}
	}
	vault := EscrowVaultAddress(cfg.Mint)
	if err := e.transfer(user, vault, new(big.Int).SetUint64(c.EntryFee)); err != nil {
		return nil, err
	}
	entry := &ContestEntry{
		ID:               c.NumEntries,
		User:             user,
		ContestKey:       contestKey,
		CreditAllocation: append([]uint8(nil), allocation...),
	}
	if err := e.state.EntryPut(entry); err != nil {
		return nil, err
	}
	credits.CreditAllocations = append(credits.CreditAllocations, allocation...)
	if err := e.state.CreditsPut(credits); err != nil {
		return nil, err
	}
	c.NumEntries++
	if err := e.state.ContestPut(c); err != nil {
		return nil, err
	}
	e.emit(ContestEntered{ContestKey: contestKey, EntryID: entry.ID, User: user, EntryFee: c.EntryFee})
	return entry.Clone(), nil
}

// fetchPrices pulls one observation per feed, in feed order, and enforces the
// publish-time floor. Points are normalised to the standard exponent.
func (e *Engine) fetchPrices(ctx context.Context, feeds []string, floor int64) ([]oracle.PricePoint, error) {
	if e.source == nil {
		return nil, errNilOracle
	}
	points := make([]oracle.PricePoint, len(feeds))
	for i, feedID := range feeds {
		point, err := e.source.Latest(ctx, feedID)
		if err != nil {
			return nil, err
		}
		if point.PublishTime < floor {
			return nil, fmt.Errorf("%w: feed %s published %d < %d", ErrStaleOraclePrice, feedID, point.PublishTime, floor)
		}
		points[i] = point.Normalize()
	}
	return points, nil
}

// PostStartPrices fixes the start snapshot once the contest has started. The
// snapshot is first-price-wins: posting again fails.
func (e *Engine) PostStartPrices(ctx context.Context, contestKey [32]byte) error {
	if _, _, err := e.registry(); err != nil {
		return err
	}
	c, err := e.loadContest(contestKey)
	if err != nil {
		return err
	}
	if c.HasStartPrices() {
		return ErrPricesAlreadyPosted
	}
	if e.now() < c.StartTime {
		return ErrContestNotStarted
	}
	points, err := e.fetchPrices(ctx, c.TokenFeedIDs, c.StartTime)
	if err != nil {
		return err
	}
	c.TokenStartPrices = points
	if err := e.state.ContestPut(c); err != nil {
		return err
	}
	e.emit(PricesPosted{ContestKey: contestKey, Feeds: len(points)})
	return nil
}

// Resolve settles a contest exactly once: fetches end prices (published at or
// after the end time), fixes the per-feed ROIs, ranks every entry by
// credit-weighted ROI, records the winners, and accrues the protocol fee into
// the registry ledger. The transition is one-shot and non-retryable.
func (e *Engine) Resolve(ctx context.Context, contestKey [32]byte) error {
	_, meta, err := e.registry()
	if err != nil {
		return err
	}
	c, err := e.loadContest(contestKey)
	if err != nil {
		return err
	}
	if !c.Ended(e.now()) {
		return ErrContestNotEnded
	}
	if c.IsResolved {
		return ErrAlreadyResolved
	}
	if !c.HasStartPrices() {
		return ErrPricesNotPosted
	}
	credits, ok, err := e.state.CreditsGet(contestKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("contest: missing credits record for %x", contestKey[:8])
	}
	endPoints, err := e.fetchPrices(ctx, c.TokenFeedIDs, c.EndTime)
	if err != nil {
		return err
	}
	rois, err := ROIs(c.TokenStartPrices, endPoints)
	if err != nil {
		return err
	}
	winners, err := Rank(credits, c.NumEntries, len(c.TokenFeedIDs), rois, len(c.WinnerRewardAllocation))
	if err != nil {
		return err
	}
	fee := ProtocolFee(PoolAmount(c.EntryFee, c.NumEntries), meta.FeePercent)
	c.TokenROIs = rois
	c.WinnerIDs = winners
	c.IsResolved = true
	if err := e.state.ContestPut(c); err != nil {
		return err
	}
	if meta.FeeAmount == nil {
		meta.FeeAmount = big.NewInt(0)
	}
	meta.FeeAmount = new(big.Int).Add(meta.FeeAmount, fee)
	if err := e.state.MetadataPut(meta); err != nil {
		return err
	}
	e.emit(ContestResolved{ContestKey: contestKey, WinnerIDs: winners, Fee: fee})
	return nil
}

// Claim pays a ranked winner their share from escrow and marks the entry as
// claimed. A second claim fails rather than double-paying.
func (e *Engine) Claim(contestKey [32]byte, user [20]byte) (*big.Int, error) {
	cfg, meta, err := e.registry()
	if err != nil {
		return nil, err
	}
	c, err := e.loadContest(contestKey)
	if err != nil {
		return nil, err
	}
	if !c.IsResolved {
		return nil, ErrNotResolved
	}
	entry, ok, err := e.state.EntryGet(contestKey, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEntryNotFound
	}
	if entry.HasClaimed {
		return nil, ErrAlreadyClaimed
	}
	rank := -1
	for r, id := range c.WinnerIDs {
		if id == entry.ID {
			rank = r
			break
		}
	}
	if rank < 0 {
		return nil, ErrNotWinner
	}
	pool := PoolAmount(c.EntryFee, c.NumEntries)
	fee := ProtocolFee(pool, meta.FeePercent)
	distributable := new(big.Int).Sub(pool, fee)
	share := WinnerShare(distributable, c.WinnerRewardAllocation[rank])
	vault := EscrowVaultAddress(cfg.Mint)
	if err := e.transfer(vault, user, share); err != nil {
		return nil, err
	}
	entry.HasClaimed = true
	if err := e.state.EntryPut(entry); err != nil {
		return nil, err
	}
	e.emit(RewardClaimed{ContestKey: contestKey, EntryID: entry.ID, User: user, Amount: share})
	return share, nil
}

// WithdrawFee transfers collected protocol fee from escrow to an
// admin-designated destination and decrements the fee ledger. Withdrawing
// more than the tracked ledger fails, protecting entrants' principal.
func (e *Engine) WithdrawFee(caller [20]byte, amount *big.Int, destination [20]byte) error {
	cfg, meta, err := e.registry()
	if err != nil {
		return err
	}
	if caller != cfg.Admin {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if meta.FeeAmount == nil || meta.FeeAmount.Cmp(amount) < 0 {
		return ErrFeeExceedsLedger
	}
	vault := EscrowVaultAddress(cfg.Mint)
	if err := e.transfer(vault, destination, amount); err != nil {
		return err
	}
	meta.FeeAmount = new(big.Int).Sub(meta.FeeAmount, amount)
	if err := e.state.MetadataPut(meta); err != nil {
		return err
	}
	e.emit(FeeWithdrawn{Admin: caller, Destination: destination, Amount: amount})
	return nil
}
