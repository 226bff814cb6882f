package market

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is a market's resolution state
type Outcome uint8

const (
	OutcomeUnresolved Outcome = iota
	OutcomeYes
	OutcomeNo
)

// Valid reports whether the outcome is a stakeable side (YES or NO).
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Opposite returns the other side. Only meaningful for YES/NO.
func (o Outcome) Opposite() Outcome {
	switch o {
	case OutcomeYes:
		return OutcomeNo
	case OutcomeNo:
		return OutcomeYes
	}
	return OutcomeUnresolved
}

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return "UNRESOLVED"
	}
}

// ParseOutcome maps the wire representation back to an Outcome. Only the
// stakeable sides parse.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "YES":
		return OutcomeYes, true
	case "NO":
		return OutcomeNo, true
	}
	return OutcomeUnresolved, false
}

// MarketCore holds the immutable identity of a market, fixed at creation.
type MarketCore struct {
	Question       string
	Category       string
	EndTime        time.Time // staking closes
	ResolutionTime time.Time // earliest scheduled resolution; payouts gate on this plus the challenge period
	Creator        uuid.UUID
}

// MarketState holds the mutable accounting for a market. Immutable once
// Resolved is set, except per-stake Claimed flags.
type MarketState struct {
	TotalStake     int64
	YesStake       int64
	NoStake        int64
	RewardPool     int64
	Resolved       bool
	Outcome        Outcome
	Challenged     bool
	ChallengeStake int64
	Challenger     *uuid.UUID
	TotalYesUnits  int64
	TotalNoUnits   int64
}

// Stake is one position in a market's arena. Units are fixed at purchase
// time and never recomputed. The arena index is the stake's permanent
// identity for claim and restake.
type Stake struct {
	Amount  int64 // net principal (post-fee), always refundable
	Units   int64
	Staker  uuid.UUID
	Claimed bool
}

// Proposal is a bonded outcome proposal awaiting challenge or finalization.
// At most one live proposal exists per market.
type Proposal struct {
	Outcome          Outcome
	Proposer         uuid.UUID
	Bond             int64
	LivenessDeadline time.Time
	Resolved         bool
}

// Market bundles core, state, proposal and the per-side stake arenas. The
// embedded mutex serializes every state-mutating operation on this market,
// held across any external transfer (non-reentrancy discipline).
type Market struct {
	mu sync.Mutex

	ID    int64
	Core  MarketCore
	State MarketState

	Proposal *Proposal

	yesStakes []Stake
	noStakes  []Stake
}

func (m *Market) Lock()   { m.mu.Lock() }
func (m *Market) Unlock() { m.mu.Unlock() }

// SideStake returns the staked total for one side.
func (m *Market) SideStake(outcome Outcome) int64 {
	if outcome == OutcomeYes {
		return m.State.YesStake
	}
	return m.State.NoStake
}

// TotalUnits returns the unit total for one side.
func (m *Market) TotalUnits(outcome Outcome) int64 {
	if outcome == OutcomeYes {
		return m.State.TotalYesUnits
	}
	return m.State.TotalNoUnits
}

func (m *Market) arena(outcome Outcome) *[]Stake {
	if outcome == OutcomeYes {
		return &m.yesStakes
	}
	return &m.noStakes
}

// AppendStake records a stake in the (market, outcome) arena and updates the
// side totals. Returns the stake's permanent index. Entries are never
// reordered or removed; callers retain indices across calls.
func (m *Market) AppendStake(outcome Outcome, s Stake) int64 {
	arena := m.arena(outcome)
	*arena = append(*arena, s)
	index := int64(len(*arena) - 1)

	if outcome == OutcomeYes {
		m.State.YesStake += s.Amount
		m.State.TotalYesUnits += s.Units
	} else {
		m.State.NoStake += s.Amount
		m.State.TotalNoUnits += s.Units
	}
	m.State.TotalStake += s.Amount

	return index
}

// GetStake returns a pointer into the arena so the caller can flip the
// Claimed flag in place.
func (m *Market) GetStake(outcome Outcome, index int64) (*Stake, bool) {
	arena := m.arena(outcome)
	if index < 0 || index >= int64(len(*arena)) {
		return nil, false
	}
	return &(*arena)[index], true
}

// Stakes returns a copy of one side's arena.
func (m *Market) Stakes(outcome Outcome) []Stake {
	arena := m.arena(outcome)
	out := make([]Stake, len(*arena))
	copy(out, *arena)
	return out
}

// StakeCount returns the arena length for one side.
func (m *Market) StakeCount(outcome Outcome) int64 {
	return int64(len(*m.arena(outcome)))
}
