package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMarketCreated
	EventTypeStakePlaced
	EventTypeOutcomeProposed
	EventTypeProposalChallenged
	EventTypeMarketResolved
	EventTypeRewardsDistributed
	EventTypeStakeClaimed
	EventTypeStakeRestaked
	EventTypeWithdrawalCompleted
)

// Envelope wraps every emitted event with the core's global sequence.
// Emission is best-effort observability for off-system indexers; it is never
// required for correctness.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	Type EventType

	// Market context (nil for account-scoped events like withdrawals)
	MarketID *int64

	// Engine clock reading at emission
	Timestamp time.Time

	// Event-specific data, JSON-encoded at the persistence/publish boundary
	Payload Event
}

// Event is the interface all event payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// MarketID returns the market context (nil for account-scoped events)
	MarketID() *int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeMarketCreated:
		return "MarketCreated"
	case EventTypeStakePlaced:
		return "StakePlaced"
	case EventTypeOutcomeProposed:
		return "OutcomeProposed"
	case EventTypeProposalChallenged:
		return "ProposalChallenged"
	case EventTypeMarketResolved:
		return "MarketResolved"
	case EventTypeRewardsDistributed:
		return "RewardsDistributed"
	case EventTypeStakeClaimed:
		return "StakeClaimed"
	case EventTypeStakeRestaked:
		return "StakeRestaked"
	case EventTypeWithdrawalCompleted:
		return "WithdrawalCompleted"
	default:
		return "Unknown"
	}
}
