package query

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"

	"PredictLedger/internal/engine"
	"PredictLedger/internal/market"
	fpmath "PredictLedger/internal/math"
)

// Service provides read-only views over the engine. Live reads come
// straight from engine snapshots (authoritative, lock-consistent); the
// staker history listing reads the Postgres projection because the engine
// does not index stakes by account.
type Service struct {
	eng *engine.Engine
	db  *sql.DB
}

func NewService(eng *engine.Engine, db *sql.DB) *Service {
	return &Service{eng: eng, db: db}
}

// GetMarket returns the public view of one market, or false if the id is
// out of range.
func (s *Service) GetMarket(id int64) (MarketResponse, bool) {
	core, state, ok := s.eng.SnapshotMarket(id)
	if !ok {
		return MarketResponse{}, false
	}
	return marketResponse(id, core, state), true
}

// ListMarkets returns all markets in creation order.
func (s *Service) ListMarkets() []MarketResponse {
	n := s.eng.MarketCount()
	out := make([]MarketResponse, 0, n)
	for id := int64(0); id < n; id++ {
		core, state, ok := s.eng.SnapshotMarket(id)
		if !ok {
			continue
		}
		out = append(out, marketResponse(id, core, state))
	}
	return out
}

// GetProposal returns a market's proposal view, or false when the market
// does not exist or has no proposal.
func (s *Service) GetProposal(id int64) (ProposalResponse, bool) {
	p, ok := s.eng.SnapshotProposal(id)
	if !ok {
		return ProposalResponse{}, false
	}
	_, state, _ := s.eng.SnapshotMarket(id)
	return ProposalResponse{
		MarketID:         id,
		Outcome:          p.Outcome.String(),
		Proposer:         p.Proposer,
		Bond:             p.Bond,
		LivenessDeadline: p.LivenessDeadline,
		Challenged:       state.Challenged,
		ChallengeStake:   state.ChallengeStake,
	}, true
}

// GetStakes returns one side's stake arena for a market.
func (s *Service) GetStakes(id int64, outcome market.Outcome) ([]StakeResponse, bool) {
	stakes, ok := s.eng.SnapshotStakes(id, outcome)
	if !ok {
		return nil, false
	}
	out := make([]StakeResponse, len(stakes))
	for i, st := range stakes {
		out[i] = StakeResponse{
			MarketID:   id,
			Outcome:    outcome.String(),
			StakeIndex: int64(i),
			Staker:     st.Staker,
			Amount:     st.Amount,
			Units:      st.Units,
			Claimed:    st.Claimed,
		}
	}
	return out, true
}

// GetBalance returns an account's withdrawable balance. Unknown accounts
// report zero.
func (s *Service) GetBalance(account uuid.UUID) BalanceResponse {
	return BalanceResponse{
		Account: account,
		Balance: s.eng.AccountBalance(account),
	}
}

// GetStakerHistory lists a staker's positions across all markets from the
// projection tables, newest market first. Cursor pagination on market id.
func (s *Service) GetStakerHistory(
	ctx context.Context,
	staker uuid.UUID,
	limit int,
	beforeMarket *int64,
) ([]StakeResponse, error) {
	query := `
		SELECT market_id, outcome, stake_index, amount, units, claimed
		FROM projections.stakes
		WHERE staker = $1
	`
	args := []interface{}{staker}
	if beforeMarket != nil {
		query += " AND market_id < $2"
		args = append(args, *beforeMarket)
	}
	query += " ORDER BY market_id DESC, stake_index ASC"
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StakeResponse
	for rows.Next() {
		var r StakeResponse
		r.Staker = staker
		if err := rows.Scan(
			&r.MarketID, &r.Outcome, &r.StakeIndex, &r.Amount, &r.Units, &r.Claimed,
		); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

func marketResponse(id int64, core market.MarketCore, state market.MarketState) MarketResponse {
	return MarketResponse{
		MarketID:       id,
		Question:       core.Question,
		Category:       core.Category,
		Creator:        core.Creator,
		EndTime:        core.EndTime,
		ResolutionTime: core.ResolutionTime,
		TotalStake:     state.TotalStake,
		YesStake:       state.YesStake,
		NoStake:        state.NoStake,
		RewardPool:     state.RewardPool,
		YesProbability: fpmath.ComputeProbability(state.YesStake, state.NoStake),
		NoProbability:  fpmath.ComputeProbability(state.NoStake, state.YesStake),
		Resolved:       state.Resolved,
		Outcome:        state.Outcome.String(),
		Challenged:     state.Challenged,
	}
}
