package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PredictLedger/internal/engine"
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/market"
	"PredictLedger/internal/observability"
	"PredictLedger/internal/query"
)

// HTTPServer exposes the ledger over JSON: command endpoints that drive the
// engine and read endpoints served by the query service. All monetary values
// are fixed-point integers in the ValueConfig scale.
type HTTPServer struct {
	eng     *engine.Engine
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewHTTPServer(
	eng *engine.Engine,
	queries *query.Service,
	health *observability.HealthChecker,
	log zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{eng: eng, queries: queries, health: health, log: log}
}

// Handler builds the route table. Uses Go 1.22 pattern routing.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)

	mux.HandleFunc("GET /api/markets", s.listMarkets)
	mux.HandleFunc("GET /api/markets/{id}", s.getMarket)
	mux.HandleFunc("GET /api/markets/{id}/proposal", s.getProposal)
	mux.HandleFunc("GET /api/markets/{id}/stakes/{outcome}", s.getStakes)
	mux.HandleFunc("GET /api/accounts/{id}/balance", s.getBalance)
	mux.HandleFunc("GET /api/accounts/{id}/stakes", s.getStakerHistory)

	mux.HandleFunc("POST /api/markets", s.createMarket)
	mux.HandleFunc("POST /api/markets/{id}/stakes", s.placeStake)
	mux.HandleFunc("POST /api/markets/{id}/proposal", s.proposeOutcome)
	mux.HandleFunc("POST /api/markets/{id}/challenge", s.challengeProposal)
	mux.HandleFunc("POST /api/markets/{id}/finalize", s.finalizeProposal)
	mux.HandleFunc("POST /api/markets/{id}/resolve", s.resolveProposal)
	mux.HandleFunc("POST /api/markets/{id}/unstake", s.unstake)
	mux.HandleFunc("POST /api/restake", s.restake)
	mux.HandleFunc("POST /api/withdraw", s.withdraw)

	return mux
}

// === Read endpoints ===

func (s *HTTPServer) listMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": s.queries.ListMarkets(),
		"total":   s.eng.MarketCount(),
	})
}

func (s *HTTPServer) getMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	resp, found := s.queries.GetMarket(id)
	if !found {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) getProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	resp, found := s.queries.GetProposal(id)
	if !found {
		writeError(w, http.StatusNotFound, "no proposal")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) getStakes(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	outcome, valid := market.ParseOutcome(r.PathValue("outcome"))
	if !valid {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}
	stakes, found := s.queries.GetStakes(id, outcome)
	if !found {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": stakes})
}

func (s *HTTPServer) getBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.queries.GetBalance(account))
}

func (s *HTTPServer) getStakerHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	var before *int64
	if v := r.URL.Query().Get("before_market"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_market")
			return
		}
		before = &n
	}

	history, err := s.queries.GetStakerHistory(r.Context(), account, limit, before)
	if err != nil {
		s.log.Error().Err(err).Str("account", account.String()).Msg("staker history query failed")
		writeError(w, http.StatusInternalServerError, "failed to load stake history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": history})
}

// === Command endpoints ===

type createMarketRequest struct {
	Caller         uuid.UUID `json:"caller"`
	Question       string    `json:"question"`
	Category       string    `json:"category"`
	EndTime        time.Time `json:"end_time"`
	ResolutionTime time.Time `json:"resolution_time"`
	Seed           int64     `json:"seed"`
}

func (s *HTTPServer) createMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	id, err := s.eng.CreateMarket(req.Caller, req.Question, req.Category,
		req.EndTime, req.ResolutionTime, req.Seed)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"market_id": id})
}

type stakeRequest struct {
	Caller  uuid.UUID `json:"caller"`
	Outcome string    `json:"outcome"`
	Value   int64     `json:"value"`
}

func (s *HTTPServer) placeStake(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req stakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, valid := market.ParseOutcome(req.Outcome)
	if !valid {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}

	index, err := s.eng.PlaceStake(req.Caller, id, outcome, req.Value)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"stake_index": index})
}

type proposeRequest struct {
	Caller  uuid.UUID `json:"caller"`
	Outcome string    `json:"outcome"`
	Bond    int64     `json:"bond"`
}

func (s *HTTPServer) proposeOutcome(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, valid := market.ParseOutcome(req.Outcome)
	if !valid {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}

	if err := s.eng.ProposeOutcome(req.Caller, id, outcome, req.Bond); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "proposed"})
}

type challengeRequest struct {
	Caller uuid.UUID `json:"caller"`
	Bond   int64     `json:"bond"`
}

func (s *HTTPServer) challengeProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req challengeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.ChallengeProposal(req.Caller, id, req.Bond); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "challenged"})
}

type callerRequest struct {
	Caller uuid.UUID `json:"caller"`
}

func (s *HTTPServer) finalizeProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.FinalizeProposal(req.Caller, id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

type resolveRequest struct {
	Caller            uuid.UUID `json:"caller"`
	IsProposalCorrect bool      `json:"is_proposal_correct"`
}

func (s *HTTPServer) resolveProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.ResolveProposal(req.Caller, id, req.IsProposalCorrect); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

type unstakeRequest struct {
	Caller     uuid.UUID `json:"caller"`
	Outcome    string    `json:"outcome"`
	StakeIndex int64     `json:"stake_index"`
}

func (s *HTTPServer) unstake(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req unstakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, valid := market.ParseOutcome(req.Outcome)
	if !valid {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}
	if err := s.eng.Unstake(req.Caller, id, outcome, req.StakeIndex); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "claimed"})
}

type restakeRequest struct {
	Caller      uuid.UUID `json:"caller"`
	OldMarketID int64     `json:"old_market_id"`
	NewMarketID int64     `json:"new_market_id"`
	Outcome     string    `json:"outcome"`
	StakeIndex  int64     `json:"stake_index"`
}

func (s *HTTPServer) restake(w http.ResponseWriter, r *http.Request) {
	var req restakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, valid := market.ParseOutcome(req.Outcome)
	if !valid {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}
	index, err := s.eng.Restake(req.Caller, req.OldMarketID, req.NewMarketID, outcome, req.StakeIndex)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"stake_index": index})
}

type withdrawRequest struct {
	Caller uuid.UUID `json:"caller"`
	Amount int64     `json:"amount"`
}

func (s *HTTPServer) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.eng.Withdraw(req.Caller, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// === Helpers ===

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine sentinels onto HTTP statuses. Unknown errors
// surface as 500 without leaking internals.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound),
		errors.Is(err, engine.ErrStakeNotFound),
		errors.Is(err, engine.ErrNoProposal):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidOutcome),
		errors.Is(err, engine.ErrInsufficientValue),
		errors.Is(err, engine.ErrSameMarket):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrInvalidTiming),
		errors.Is(err, engine.ErrAlreadyResolved),
		errors.Is(err, engine.ErrProposalPending),
		errors.Is(err, engine.ErrChallenged),
		errors.Is(err, engine.ErrNotChallenged),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func marketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

func accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	account, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return account, true
}
