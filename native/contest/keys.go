package contest

import (
	"encoding/binary"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Seed tags for deterministic addressing. Every persisted record's address is
// derived from a constant tag plus its identifying keys so independent nodes
// derive identical addresses for identical logical entities.
const (
	seedConfig          = "config"
	seedContestMetadata = "contest_metadata"
	seedEscrowVault     = "escrow_token_account"
	seedContest         = "token_draft_contest"
	seedContestCredits  = "token_draft_contest_credits"
	seedContestEntry    = "token_draft_contest_entry"
)

// DeriveContestKey computes the contest identity from the registry counter and
// the creator at creation time.
func DeriveContestKey(id uint64, creator [20]byte) [32]byte {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], id)
	return ethcrypto.Keccak256Hash([]byte(seedContest), counter[:], creator[:])
}

// DeriveEntryKey computes the entry identity from the contest key and the
// entrant. One entry per (contest, user) pair falls out of the derivation:
// a second entry lands on the same address and is rejected as a duplicate.
func DeriveEntryKey(contestKey [32]byte, user [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(seedContestEntry), contestKey[:], user[:])
}

// EscrowVaultAddress derives the pooled escrow account for a mint. All entry
// fees and accrued protocol fee sit in this single address until claimed or
// withdrawn.
func EscrowVaultAddress(mint string) [20]byte {
	sum := ethcrypto.Keccak256([]byte(seedEscrowVault), []byte(NormalizeMint(mint)))
	var addr [20]byte
	copy(addr[:], sum[12:])
	return addr
}

var (
	configStoreKey   = []byte(seedConfig)
	metadataStoreKey = []byte(seedContestMetadata)
	contestPrefix    = []byte(seedContest + "/")
	creditsPrefix    = []byte(seedContestCredits + "/")
	entryPrefix      = []byte(seedContestEntry + "/")
	accountPrefix    = []byte("account/")
)

// ConfigStoreKey returns the storage key of the config singleton.
func ConfigStoreKey() []byte { return append([]byte(nil), configStoreKey...) }

// MetadataStoreKey returns the storage key of the metadata singleton.
func MetadataStoreKey() []byte { return append([]byte(nil), metadataStoreKey...) }

// ContestStoreKey returns the storage key of a contest record.
func ContestStoreKey(key [32]byte) []byte {
	return appendHex(contestPrefix, key[:])
}

// CreditsStoreKey returns the storage key of a contest's credit audit record.
func CreditsStoreKey(contestKey [32]byte) []byte {
	return appendHex(creditsPrefix, contestKey[:])
}

// EntryStoreKey returns the storage key of an entry record.
func EntryStoreKey(contestKey [32]byte, user [20]byte) []byte {
	entry := DeriveEntryKey(contestKey, user)
	return appendHex(entryPrefix, entry[:])
}

// AccountStoreKey returns the storage key of a ledger account.
func AccountStoreKey(addr [20]byte) []byte {
	return appendHex(accountPrefix, addr[:])
}

func appendHex(prefix []byte, raw []byte) []byte {
	encoded := hex.EncodeToString(raw)
	buf := make([]byte, len(prefix)+len(encoded))
	copy(buf, prefix)
	copy(buf[len(prefix):], encoded)
	return buf
}
