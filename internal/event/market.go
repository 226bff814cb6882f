package event

import (
	"time"

	"github.com/google/uuid"
)

// MarketCreated is emitted when a market opens with its 50/50 seed absorbed.
type MarketCreated struct {
	Market         int64     `json:"market"`
	Question       string    `json:"question"`
	Category       string    `json:"category"`
	Creator        uuid.UUID `json:"creator"`
	Seed           int64     `json:"seed"`
	EndTime        time.Time `json:"end_time"`
	ResolutionTime time.Time `json:"resolution_time"`
}

func (e *MarketCreated) EventType() EventType { return EventTypeMarketCreated }
func (e *MarketCreated) MarketID() *int64     { return &e.Market }

// StakePlaced is emitted for every stake, including restake re-entries.
type StakePlaced struct {
	Market     int64     `json:"market"`
	Outcome    string    `json:"outcome"`
	StakeIndex int64     `json:"stake_index"`
	Staker     uuid.UUID `json:"staker"`
	GrossValue int64     `json:"gross_value"`
	Fee        int64     `json:"fee"`
	NetAmount  int64     `json:"net_amount"`
	Units      int64     `json:"units"`
}

func (e *StakePlaced) EventType() EventType { return EventTypeStakePlaced }
func (e *StakePlaced) MarketID() *int64     { return &e.Market }
