package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Winnrdotfun/protocol/config"
	"github.com/Winnrdotfun/protocol/native/contest"
	"github.com/Winnrdotfun/protocol/observability/metrics"
	"github.com/Winnrdotfun/protocol/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeStateConflict  = -32010
	codeNotFound       = -32011
)

var errBadParams = errors.New("invalid params")

// Server exposes the contest engine over a single JSON-RPC endpoint. State
// transitions are serialised under one mutex and applied inside a state
// snapshot so a failed call leaves nothing behind.
type Server struct {
	engine  *contest.Engine
	manager *state.Manager
	logger  *slog.Logger
	metrics *metrics.ContestMetrics

	mu        sync.Mutex
	authToken string
}

// NewServer wires a server around the engine and its state manager.
func NewServer(engine *contest.Engine, manager *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		manager:   manager,
		logger:    logger,
		metrics:   metrics.Contest(),
		authToken: strings.TrimSpace(os.Getenv("CONTEST_RPC_TOKEN")),
	}
}

// Start serves the RPC endpoint and the Prometheus scrape endpoint until the
// listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status != http.StatusOK && status > 0 {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	mutating := true
	switch req.Method {
	case "contest_get", "contest_getEntry", "contest_metadata":
		mutating = false
	}
	if mutating && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized")
		return
	}

	switch req.Method {
	case "contest_initRegistry":
		s.apply(w, r, req, s.handleInitRegistry)
	case "contest_create":
		s.apply(w, r, req, s.handleCreate)
	case "contest_enter":
		s.apply(w, r, req, s.handleEnter)
	case "contest_postStartPrices":
		s.apply(w, r, req, s.handlePostStartPrices)
	case "contest_resolve":
		s.apply(w, r, req, s.handleResolve)
	case "contest_claim":
		s.apply(w, r, req, s.handleClaim)
	case "contest_withdrawFee":
		s.apply(w, r, req, s.handleWithdrawFee)
	case "contest_get":
		s.query(w, req, s.handleGet)
	case "contest_getEntry":
		s.query(w, req, s.handleGetEntry)
	case "contest_metadata":
		s.query(w, req, s.handleMetadata)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// apply runs a mutating handler inside a snapshot. On error the snapshot is
// reverted so the store matches its pre-call contents byte for byte.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, req RPCRequest, handler func(ctx context.Context, params []json.RawMessage) (interface{}, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.manager.Snapshot()
	result, err := handler(r.Context(), req.Params)
	if err != nil {
		if revertErr := s.manager.RevertToSnapshot(snapshot); revertErr != nil {
			s.logger.Error("snapshot revert failed", "method", req.Method, "error", revertErr)
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error")
			return
		}
		s.metrics.Rejected(req.Method)
		status, code := classifyError(err)
		writeError(w, status, req.ID, code, err.Error())
		return
	}
	s.manager.DiscardSnapshot(snapshot)
	s.metrics.Applied(req.Method)
	writeResult(w, req.ID, result)
}

func (s *Server) query(w http.ResponseWriter, req RPCRequest, handler func(params []json.RawMessage) (interface{}, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := handler(req.Params)
	if err != nil {
		status, code := classifyError(err)
		writeError(w, status, req.ID, code, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

func classifyError(err error) (int, int) {
	switch {
	case errors.Is(err, contest.ErrContestNotFound),
		errors.Is(err, contest.ErrEntryNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, contest.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, errBadParams),
		errors.Is(err, contest.ErrInvalidFeePercent),
		errors.Is(err, contest.ErrInvalidSchedule),
		errors.Is(err, contest.ErrInvalidFeedCount),
		errors.Is(err, contest.ErrInvalidRewardAllocation),
		errors.Is(err, contest.ErrInvalidCreditAllocation),
		errors.Is(err, contest.ErrInvalidMaxEntries),
		errors.Is(err, contest.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, contest.ErrAlreadyInitialized),
		errors.Is(err, contest.ErrNotInitialized),
		errors.Is(err, contest.ErrDuplicateEntry),
		errors.Is(err, contest.ErrAlreadyResolved),
		errors.Is(err, contest.ErrAlreadyClaimed),
		errors.Is(err, contest.ErrPricesAlreadyPosted),
		errors.Is(err, contest.ErrEntryClosed),
		errors.Is(err, contest.ErrContestFull),
		errors.Is(err, contest.ErrContestNotStarted),
		errors.Is(err, contest.ErrContestNotEnded),
		errors.Is(err, contest.ErrPricesNotPosted),
		errors.Is(err, contest.ErrInsufficientEntries),
		errors.Is(err, contest.ErrNotResolved),
		errors.Is(err, contest.ErrNotWinner),
		errors.Is(err, contest.ErrFeeExceedsLedger),
		errors.Is(err, contest.ErrInsufficientBalance):
		return http.StatusConflict, codeStateConflict
	}
	return http.StatusInternalServerError, codeServerError
}

func decodeParams(params []json.RawMessage, target interface{}) error {
	if len(params) != 1 {
		return fmt.Errorf("expected exactly one params object, got %d", len(params))
	}
	dec := json.NewDecoder(strings.NewReader(string(params[0])))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func parseContestKey(s string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return key, fmt.Errorf("%w: invalid contest key: %s", errBadParams, err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("%w: contest key must be %d bytes, got %d", errBadParams, len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

type initRegistryParams struct {
	Admin      string `json:"admin"`
	Mint       string `json:"mint"`
	FeePercent uint8  `json:"feePercent"`
}

type initRegistryResult struct {
	Admin      string `json:"admin"`
	Mint       string `json:"mint"`
	FeePercent uint8  `json:"feePercent"`
}

func (s *Server) handleInitRegistry(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var p initRegistryParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	admin, err := config.ParseAddress(p.Admin)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid admin address: %s", errBadParams, err)
	}
	cfg, err := s.engine.InitRegistry(admin, p.Mint, p.FeePercent)
	if err != nil {
		return nil, err
	}
	return initRegistryResult{
		Admin:      "0x" + hex.EncodeToString(cfg.Admin[:]),
		Mint:       cfg.Mint,
		FeePercent: cfg.FeePercent,
	}, nil
}

type createParams struct {
	Creator                string   `json:"creator"`
	StartTime              int64    `json:"startTime"`
	EndTime                int64    `json:"endTime"`
	EntryFee               uint64   `json:"entryFee"`
	MaxEntries             uint32   `json:"maxEntries"`
	TokenFeedIDs           []string `json:"tokenFeedIds"`
	WinnerRewardAllocation []uint8  `json:"winnerRewardAllocation"`
}

func (s *Server) handleCreate(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var p createParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	creator, err := config.ParseAddress(p.Creator)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid creator address: %s", errBadParams, err)
	}
	c, err := s.engine.CreateContest(creator, contest.CreateParams{
		StartTime:              p.StartTime,
		EndTime:                p.EndTime,
		EntryFee:               p.EntryFee,
		MaxEntries:             p.MaxEntries,
		TokenFeedIDs:           p.TokenFeedIDs,
		WinnerRewardAllocation: p.WinnerRewardAllocation,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contest created", "id", c.ID, "key", hex.EncodeToString(c.Key[:]))
	return contestResultFrom(c), nil
}

type enterParams struct {
	ContestKey       string  `json:"contestKey"`
	User             string  `json:"user"`
	CreditAllocation []uint8 `json:"creditAllocation"`
}

type enterResult struct {
	EntryID    uint32 `json:"entryId"`
	ContestKey string `json:"contestKey"`
	User       string `json:"user"`
}

func (s *Server) handleEnter(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var p enterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	user, err := config.ParseAddress(p.User)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user address: %s", errBadParams, err)
	}
	entry, err := s.engine.Enter(key, user, p.CreditAllocation)
	if err != nil {
		return nil, err
	}
	return enterResult{
		EntryID:    entry.ID,
		ContestKey: hex.EncodeToString(entry.ContestKey[:]),
		User:       "0x" + hex.EncodeToString(entry.User[:]),
	}, nil
}

type contestKeyParams struct {
	ContestKey string `json:"contestKey"`
}

func (s *Server) handlePostStartPrices(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	var p contestKeyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	if err := s.engine.PostStartPrices(ctx, key); err != nil {
		return nil, err
	}
	return map[string]bool{"posted": true}, nil
}

func (s *Server) handleResolve(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	var p contestKeyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Resolve(ctx, key); err != nil {
		return nil, err
	}
	c, _, err := s.manager.ContestGet(key)
	if err != nil {
		return nil, err
	}
	s.updateFeeGauge()
	s.logger.Info("contest resolved", "key", p.ContestKey, "winners", len(c.WinnerIDs))
	return contestResultFrom(c), nil
}

type claimParams struct {
	ContestKey string `json:"contestKey"`
	User       string `json:"user"`
}

type claimResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleClaim(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var p claimParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	user, err := config.ParseAddress(p.User)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user address: %s", errBadParams, err)
	}
	amount, err := s.engine.Claim(key, user)
	if err != nil {
		return nil, err
	}
	s.metrics.ClaimPaid()
	return claimResult{Amount: amount.String()}, nil
}

type withdrawFeeParams struct {
	Caller      string `json:"caller"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

func (s *Server) handleWithdrawFee(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var p withdrawFeeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	caller, err := config.ParseAddress(p.Caller)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid caller address: %s", errBadParams, err)
	}
	destination, err := config.ParseAddress(p.Destination)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid destination address: %s", errBadParams, err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(p.Amount), 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount must be a base-10 integer", errBadParams)
	}
	if err := s.engine.WithdrawFee(caller, amount, destination); err != nil {
		return nil, err
	}
	s.updateFeeGauge()
	return map[string]bool{"withdrawn": true}, nil
}

func (s *Server) updateFeeGauge() {
	meta, ok, err := s.manager.MetadataGet()
	if err != nil || !ok || meta.FeeAmount == nil {
		return
	}
	fee, _ := new(big.Float).SetInt(meta.FeeAmount).Float64()
	s.metrics.SetFeeLedger(fee)
}

type contestResult struct {
	ID                     uint64   `json:"id"`
	Key                    string   `json:"key"`
	Creator                string   `json:"creator"`
	StartTime              int64    `json:"startTime"`
	EndTime                int64    `json:"endTime"`
	EntryFee               uint64   `json:"entryFee"`
	MaxEntries             uint32   `json:"maxEntries"`
	NumEntries             uint32   `json:"numEntries"`
	TokenFeedIDs           []string `json:"tokenFeedIds"`
	TokenStartPrices       []string `json:"tokenStartPrices,omitempty"`
	TokenROIs              []string `json:"tokenRois,omitempty"`
	WinnerRewardAllocation []uint8  `json:"winnerRewardAllocation"`
	WinnerIDs              []uint32 `json:"winnerIds,omitempty"`
	IsResolved             bool     `json:"isResolved"`
}

func contestResultFrom(c *contest.Contest) contestResult {
	result := contestResult{
		ID:                     c.ID,
		Key:                    hex.EncodeToString(c.Key[:]),
		Creator:                "0x" + hex.EncodeToString(c.Creator[:]),
		StartTime:              c.StartTime,
		EndTime:                c.EndTime,
		EntryFee:               c.EntryFee,
		MaxEntries:             c.MaxEntries,
		NumEntries:             c.NumEntries,
		TokenFeedIDs:           append([]string(nil), c.TokenFeedIDs...),
		WinnerRewardAllocation: append([]uint8(nil), c.WinnerRewardAllocation...),
		WinnerIDs:              append([]uint32(nil), c.WinnerIDs...),
		IsResolved:             c.IsResolved,
	}
	for _, point := range c.TokenStartPrices {
		result.TokenStartPrices = append(result.TokenStartPrices, point.Rat().FloatString(8))
	}
	for _, roi := range c.TokenROIs {
		if roi != nil {
			result.TokenROIs = append(result.TokenROIs, roi.FloatString(8))
		}
	}
	return result
}

func (s *Server) handleGet(params []json.RawMessage) (interface{}, error) {
	var p contestKeyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	c, ok, err := s.manager.ContestGet(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, contest.ErrContestNotFound
	}
	return contestResultFrom(c), nil
}

type entryResult struct {
	EntryID          uint32  `json:"entryId"`
	ContestKey       string  `json:"contestKey"`
	User             string  `json:"user"`
	CreditAllocation []uint8 `json:"creditAllocation"`
	HasClaimed       bool    `json:"hasClaimed"`
}

func (s *Server) handleGetEntry(params []json.RawMessage) (interface{}, error) {
	var p claimParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParams, err)
	}
	key, err := parseContestKey(p.ContestKey)
	if err != nil {
		return nil, err
	}
	user, err := config.ParseAddress(p.User)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user address: %s", errBadParams, err)
	}
	entry, ok, err := s.manager.EntryGet(key, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, contest.ErrEntryNotFound
	}
	return entryResult{
		EntryID:          entry.ID,
		ContestKey:       hex.EncodeToString(entry.ContestKey[:]),
		User:             "0x" + hex.EncodeToString(entry.User[:]),
		CreditAllocation: append([]uint8(nil), entry.CreditAllocation...),
		HasClaimed:       entry.HasClaimed,
	}, nil
}

type metadataResult struct {
	ContestCount uint64 `json:"contestCount"`
	FeePercent   uint8  `json:"feePercent"`
	FeeAmount    string `json:"feeAmount"`
}

func (s *Server) handleMetadata(params []json.RawMessage) (interface{}, error) {
	if len(params) != 0 {
		return nil, fmt.Errorf("%w: contest_metadata takes no params", errBadParams)
	}
	meta, ok, err := s.manager.MetadataGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, contest.ErrNotInitialized
	}
	feeAmount := "0"
	if meta.FeeAmount != nil {
		feeAmount = meta.FeeAmount.String()
	}
	return metadataResult{
		ContestCount: meta.ContestCount,
		FeePercent:   meta.FeePercent,
		FeeAmount:    feeAmount,
	}, nil
}
