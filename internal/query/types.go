package query

import (
	"time"

	"github.com/google/uuid"
)

// MarketResponse is the public view of a market. Probabilities are
// fixed-point values scaled by math.Precision; monetary fields carry the
// ValueConfig scale.
type MarketResponse struct {
	MarketID       int64     `json:"market_id"`
	Question       string    `json:"question"`
	Category       string    `json:"category"`
	Creator        uuid.UUID `json:"creator"`
	EndTime        time.Time `json:"end_time"`
	ResolutionTime time.Time `json:"resolution_time"`

	TotalStake     int64 `json:"total_stake"`
	YesStake       int64 `json:"yes_stake"`
	NoStake        int64 `json:"no_stake"`
	RewardPool     int64 `json:"reward_pool"`
	YesProbability int64 `json:"yes_probability"`
	NoProbability  int64 `json:"no_probability"`

	Resolved   bool   `json:"resolved"`
	Outcome    string `json:"outcome"`
	Challenged bool   `json:"challenged"`
}

// ProposalResponse is the public view of a live or settled proposal.
type ProposalResponse struct {
	MarketID         int64     `json:"market_id"`
	Outcome          string    `json:"outcome"`
	Proposer         uuid.UUID `json:"proposer"`
	Bond             int64     `json:"bond"`
	LivenessDeadline time.Time `json:"liveness_deadline"`
	Challenged       bool      `json:"challenged"`
	ChallengeStake   int64     `json:"challenge_stake"`
}

// StakeResponse is one entry in a market side's stake arena.
type StakeResponse struct {
	MarketID   int64     `json:"market_id"`
	Outcome    string    `json:"outcome"`
	StakeIndex int64     `json:"stake_index"`
	Staker     uuid.UUID `json:"staker"`
	Amount     int64     `json:"amount"`
	Units      int64     `json:"units"`
	Claimed    bool      `json:"claimed"`
}

// BalanceResponse is an account's withdrawable ledger balance.
type BalanceResponse struct {
	Account uuid.UUID `json:"account"`
	Balance int64     `json:"balance"`
}
