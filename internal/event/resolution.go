package event

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeProposed is emitted when a bonded proposal opens its liveness window.
type OutcomeProposed struct {
	Market           int64     `json:"market"`
	Outcome          string    `json:"outcome"`
	Proposer         uuid.UUID `json:"proposer"`
	Bond             int64     `json:"bond"`
	LivenessDeadline time.Time `json:"liveness_deadline"`
}

func (e *OutcomeProposed) EventType() EventType { return EventTypeOutcomeProposed }
func (e *OutcomeProposed) MarketID() *int64     { return &e.Market }

// ProposalChallenged is emitted when a challenger bonds against a proposal.
type ProposalChallenged struct {
	Market         int64     `json:"market"`
	Challenger     uuid.UUID `json:"challenger"`
	Bond           int64     `json:"bond"`
	ChallengeStake int64     `json:"challenge_stake"`
}

func (e *ProposalChallenged) EventType() EventType { return EventTypeProposalChallenged }
func (e *ProposalChallenged) MarketID() *int64     { return &e.Market }

// MarketResolved is emitted once per market when its outcome becomes final,
// whether by uncontested finalization or by the privileged resolver.
type MarketResolved struct {
	Market     int64  `json:"market"`
	Outcome    string `json:"outcome"`
	Challenged bool   `json:"challenged"`
}

func (e *MarketResolved) EventType() EventType { return EventTypeMarketResolved }
func (e *MarketResolved) MarketID() *int64     { return &e.Market }

// RewardsDistributed is emitted when the creator and protocol shares are
// credited. The staker share is paid lazily at claim time.
type RewardsDistributed struct {
	Market        int64 `json:"market"`
	RewardPool    int64 `json:"reward_pool"`
	CreatorShare  int64 `json:"creator_share"`
	ProtocolShare int64 `json:"protocol_share"`
	StakerShare   int64 `json:"staker_share"`
}

func (e *RewardsDistributed) EventType() EventType { return EventTypeRewardsDistributed }
func (e *RewardsDistributed) MarketID() *int64     { return &e.Market }
