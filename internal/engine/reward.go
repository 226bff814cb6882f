package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"PredictLedger/internal/event"
	"PredictLedger/internal/market"
	fpmath "PredictLedger/internal/math"
)

// distributeRewardsLocked marks the market resolved and pays the eager
// shares: 10% of the reward pool to the creator, 10% to the protocol
// account. The 80% staker share is deliberately NOT pushed here: it is
// computed per stake at claim time, so resolution never iterates an
// unbounded stake set in one call.
func (e *Engine) distributeRewardsLocked(m *market.Market) {
	m.State.Resolved = true

	creatorShare := fpmath.PercentOf(m.State.RewardPool, CreatorSharePercent)
	protocolShare := fpmath.PercentOf(m.State.RewardPool, ProtocolSharePercent)

	if creatorShare > 0 {
		if err := e.balances.Credit(m.Core.Creator, creatorShare); err != nil {
			panic(fmt.Sprintf("FATAL: creator share credit failed: %v", err))
		}
	}
	if protocolShare > 0 {
		if err := e.balances.Credit(e.resolver, protocolShare); err != nil {
			panic(fmt.Sprintf("FATAL: protocol share credit failed: %v", err))
		}
	}

	e.emit(&event.RewardsDistributed{
		Market:        m.ID,
		RewardPool:    m.State.RewardPool,
		CreatorShare:  creatorShare,
		ProtocolShare: protocolShare,
		StakerShare:   fpmath.PercentOf(m.State.RewardPool, StakerSharePercent),
	})
}

// Unstake claims a stake from a resolved market. Principal is always
// credited back (the no-loss guarantee) and a winning stake additionally
// receives its unit-weighted share of the staker pool. The stake is consumed
// exactly once; credits land on the balance ledger, never as a direct
// transfer.
func (e *Engine) Unstake(caller uuid.UUID, marketID int64, outcome market.Outcome, stakeIndex int64) error {
	start := time.Now()

	m, ok := e.registry.Get(marketID)
	if !ok {
		return e.reject("unstake", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	if !outcome.Valid() {
		return e.reject("unstake", fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome))
	}
	if !m.State.Resolved {
		return e.reject("unstake", fmt.Errorf("%w: market %d not resolved", ErrInvalidTiming, m.ID))
	}

	s, ok := m.GetStake(outcome, stakeIndex)
	if !ok {
		return e.reject("unstake", fmt.Errorf("%w: market %d %s index %d", ErrStakeNotFound, m.ID, outcome, stakeIndex))
	}
	if s.Staker != caller {
		return e.reject("unstake", fmt.Errorf("%w: stake belongs to %s", ErrNotOwner, s.Staker))
	}
	if s.Claimed {
		return e.reject("unstake", fmt.Errorf("%w: market %d %s index %d", ErrAlreadyClaimed, m.ID, outcome, stakeIndex))
	}

	var reward int64
	if outcome == m.State.Outcome {
		stakerPool := fpmath.PercentOf(m.State.RewardPool, StakerSharePercent)
		reward = fpmath.ComputeStakeReward(s.Units, stakerPool, m.TotalUnits(outcome))
	}

	s.Claimed = true
	if err := e.balances.Credit(caller, s.Amount); err != nil {
		panic(fmt.Sprintf("FATAL: principal credit failed: %v", err))
	}
	if reward > 0 {
		if err := e.balances.Credit(caller, reward); err != nil {
			panic(fmt.Sprintf("FATAL: reward credit failed: %v", err))
		}
	}

	e.postCheckLocked(m)

	e.emit(&event.StakeClaimed{
		Market:     m.ID,
		Outcome:    outcome.String(),
		StakeIndex: stakeIndex,
		Staker:     caller,
		Principal:  s.Amount,
		Reward:     reward,
	})

	e.applied("unstake", start)
	e.log.Debug().
		Int64("market", m.ID).
		Str("outcome", outcome.String()).
		Int64("index", stakeIndex).
		Int64("principal", s.Amount).
		Int64("reward", reward).
		Msg("stake claimed")

	return nil
}
