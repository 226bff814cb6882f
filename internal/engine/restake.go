package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"PredictLedger/internal/event"
	"PredictLedger/internal/market"
)

// Restake rolls an unclaimed winning position's principal from a resolved
// market into a fresh stake in a different, still-open market, skipping the
// withdraw/re-stake round trip. Only principal moves: the position's reward
// share in the source market is forfeited, not carried forward. The source
// stake is consumed exactly as a claim would consume it.
//
// Both markets are locked for the whole operation, in ascending id order, so
// the source stake cannot be double-spent by a concurrent claim.
func (e *Engine) Restake(caller uuid.UUID, oldMarketID, newMarketID int64, outcome market.Outcome, stakeIndex int64) (int64, error) {
	start := time.Now()

	if oldMarketID == newMarketID {
		return 0, e.reject("restake", fmt.Errorf("%w: id %d", ErrSameMarket, oldMarketID))
	}

	oldM, ok := e.registry.Get(oldMarketID)
	if !ok {
		return 0, e.reject("restake", fmt.Errorf("%w: id %d", ErrMarketNotFound, oldMarketID))
	}
	newM, ok := e.registry.Get(newMarketID)
	if !ok {
		return 0, e.reject("restake", fmt.Errorf("%w: id %d", ErrMarketNotFound, newMarketID))
	}

	first, second := oldM, newM
	if newM.ID < oldM.ID {
		first, second = newM, oldM
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	if !oldM.State.Resolved {
		return 0, e.reject("restake", fmt.Errorf("%w: market %d not resolved", ErrInvalidTiming, oldM.ID))
	}

	// The referenced stake lives on the source market's winning side.
	winning := oldM.State.Outcome
	s, ok := oldM.GetStake(winning, stakeIndex)
	if !ok {
		return 0, e.reject("restake", fmt.Errorf("%w: market %d %s index %d", ErrStakeNotFound, oldM.ID, winning, stakeIndex))
	}
	if s.Staker != caller {
		return 0, e.reject("restake", fmt.Errorf("%w: stake belongs to %s", ErrNotOwner, s.Staker))
	}
	if s.Claimed {
		return 0, e.reject("restake", fmt.Errorf("%w: market %d %s index %d", ErrAlreadyClaimed, oldM.ID, winning, stakeIndex))
	}

	// Consume the source position, then re-enter its principal through the
	// normal stake path (open-market, outcome and value guards included).
	// placeStakeLocked fails before mutating newM, so flipping the claim
	// back on failure keeps the whole operation atomic.
	s.Claimed = true
	newIndex, err := e.placeStakeLocked(newM, caller, outcome, s.Amount)
	if err != nil {
		s.Claimed = false
		return 0, e.reject("restake", err)
	}

	e.postCheckLocked(oldM)

	e.emit(&event.StakeRestaked{
		Market:        oldM.ID,
		NewMarket:     newM.ID,
		Outcome:       outcome.String(),
		StakeIndex:    stakeIndex,
		NewStakeIndex: newIndex,
		Staker:        caller,
		Principal:     s.Amount,
	})

	e.applied("restake", start)
	e.log.Info().
		Int64("market", oldM.ID).
		Int64("new_market", newM.ID).
		Str("outcome", outcome.String()).
		Int64("principal", s.Amount).
		Msg("stake rolled forward")

	return newIndex, nil
}
