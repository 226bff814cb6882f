package event

import "github.com/google/uuid"

// StakeClaimed is emitted when a stake is unstaked from a resolved market.
// Principal is always returned; Reward is non-zero only for the winning side.
type StakeClaimed struct {
	Market     int64     `json:"market"`
	Outcome    string    `json:"outcome"`
	StakeIndex int64     `json:"stake_index"`
	Staker     uuid.UUID `json:"staker"`
	Principal  int64     `json:"principal"`
	Reward     int64     `json:"reward"`
}

func (e *StakeClaimed) EventType() EventType { return EventTypeStakeClaimed }
func (e *StakeClaimed) MarketID() *int64     { return &e.Market }

// StakeRestaked is emitted when a winning position's principal rolls forward
// into a new market. The reward share in the source market is forfeited.
type StakeRestaked struct {
	Market        int64     `json:"market"` // source market
	NewMarket     int64     `json:"new_market"`
	Outcome       string    `json:"outcome"` // outcome backed in the new market
	StakeIndex    int64     `json:"stake_index"`
	NewStakeIndex int64     `json:"new_stake_index"`
	Staker        uuid.UUID `json:"staker"`
	Principal     int64     `json:"principal"`
}

func (e *StakeRestaked) EventType() EventType { return EventTypeStakeRestaked }
func (e *StakeRestaked) MarketID() *int64     { return &e.Market }
