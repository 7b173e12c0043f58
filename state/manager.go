// Package state binds the contest module's records to a key-value backend.
// The manager implements the engine's state interface with RLP-serialised
// records and keeps a journal of overwritten values so a failed operation can
// be reverted without any partial mutation becoming visible.
package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Winnrdotfun/protocol/core/types"
	"github.com/Winnrdotfun/protocol/native/contest"
	"github.com/Winnrdotfun/protocol/storage"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

type journalEntry struct {
	key     []byte
	prev    []byte
	existed bool
}

// Manager persists contest records in the underlying key-value store. It is
// not safe for concurrent use; the node serialises operations around it the
// way a ledger serialises conflicting writes to the same account.
type Manager struct {
	db      storage.Database
	journal []journalEntry
}

// NewManager constructs a manager bound to the provided storage backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Snapshot marks the current journal position. Pair with RevertToSnapshot to
// make a sequence of writes all-or-nothing.
func (m *Manager) Snapshot() int {
	if m == nil {
		return 0
	}
	return len(m.journal)
}

// RevertToSnapshot undoes every write recorded after the supplied snapshot,
// restoring the exact prior bytes (or absence) of each touched key.
func (m *Manager) RevertToSnapshot(snapshot int) error {
	if m == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	if snapshot < 0 || snapshot > len(m.journal) {
		return fmt.Errorf("state: invalid snapshot %d", snapshot)
	}
	for i := len(m.journal) - 1; i >= snapshot; i-- {
		entry := m.journal[i]
		if entry.existed {
			if err := m.db.Put(entry.key, entry.prev); err != nil {
				return err
			}
		} else {
			if err := m.db.Delete(entry.key); err != nil {
				return err
			}
		}
	}
	m.journal = m.journal[:snapshot]
	return nil
}

// DiscardSnapshot drops journal history up to the snapshot once an operation
// has committed. Keeping the journal bounded per operation.
func (m *Manager) DiscardSnapshot(snapshot int) {
	if m == nil || snapshot < 0 || snapshot > len(m.journal) {
		return
	}
	m.journal = m.journal[:snapshot]
}

func (m *Manager) put(key, value []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	prev, err := m.db.Get(key)
	existed := true
	if err != nil {
		if err != storage.ErrNotFound {
			return err
		}
		existed = false
		prev = nil
	}
	m.journal = append(m.journal, journalEntry{key: append([]byte(nil), key...), prev: prev, existed: existed})
	return m.db.Put(key, value)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, fmt.Errorf("state: manager not initialised")
	}
	value, err := m.db.Get(key)
	if err == storage.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ConfigGet loads the registry config singleton.
func (m *Manager) ConfigGet() (*contest.Config, bool, error) {
	raw, ok, err := m.get(contest.ConfigStoreKey())
	if err != nil || !ok {
		return nil, false, err
	}
	cfg, err := contest.DecodeConfig(raw)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// ConfigPut stores the registry config singleton.
func (m *Manager) ConfigPut(cfg *contest.Config) error {
	encoded, err := contest.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return m.put(contest.ConfigStoreKey(), encoded)
}

// MetadataGet loads the contest metadata singleton.
func (m *Manager) MetadataGet() (*contest.ContestMetadata, bool, error) {
	raw, ok, err := m.get(contest.MetadataStoreKey())
	if err != nil || !ok {
		return nil, false, err
	}
	meta, err := contest.DecodeMetadata(raw)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// MetadataPut stores the contest metadata singleton.
func (m *Manager) MetadataPut(meta *contest.ContestMetadata) error {
	encoded, err := contest.EncodeMetadata(meta)
	if err != nil {
		return err
	}
	return m.put(contest.MetadataStoreKey(), encoded)
}

// ContestGet loads a contest record by its deterministic key.
func (m *Manager) ContestGet(key [32]byte) (*contest.Contest, bool, error) {
	raw, ok, err := m.get(contest.ContestStoreKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := contest.DecodeContest(raw)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// ContestPut stores a contest record.
func (m *Manager) ContestPut(c *contest.Contest) error {
	encoded, err := contest.EncodeContest(c)
	if err != nil {
		return err
	}
	return m.put(contest.ContestStoreKey(c.Key), encoded)
}

// CreditsGet loads the credit audit record for a contest.
func (m *Manager) CreditsGet(contestKey [32]byte) (*contest.ContestCredits, bool, error) {
	raw, ok, err := m.get(contest.CreditsStoreKey(contestKey))
	if err != nil || !ok {
		return nil, false, err
	}
	credits, err := contest.DecodeCredits(raw)
	if err != nil {
		return nil, false, err
	}
	return credits, true, nil
}

// CreditsPut stores the credit audit record for a contest.
func (m *Manager) CreditsPut(credits *contest.ContestCredits) error {
	encoded, err := contest.EncodeCredits(credits)
	if err != nil {
		return err
	}
	return m.put(contest.CreditsStoreKey(credits.ContestKey), encoded)
}

// EntryGet loads an entry record by its deterministic (contest, user) address.
func (m *Manager) EntryGet(contestKey [32]byte, user [20]byte) (*contest.ContestEntry, bool, error) {
	raw, ok, err := m.get(contest.EntryStoreKey(contestKey, user))
	if err != nil || !ok {
		return nil, false, err
	}
	entry, err := contest.DecodeEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// EntryPut stores an entry record.
func (m *Manager) EntryPut(entry *contest.ContestEntry) error {
	encoded, err := contest.EncodeEntry(entry)
	if err != nil {
		return err
	}
	return m.put(contest.EntryStoreKey(entry.ContestKey, entry.User), encoded)
}

// GetAccount loads a balance record, returning a zeroed account when absent.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	raw, ok, err := m.get(contest.AccountStoreKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	balance := stored.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount stores a balance record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.put(contest.AccountStoreKey(addr), encoded)
}
