package market

import "fmt"

// InvariantValidator checks market accounting invariants. The engine runs it
// against the affected market after every mutating operation; a failure there
// means corrupted state, not a caller error.
type InvariantValidator struct{}

func NewInvariantValidator() *InvariantValidator {
	return &InvariantValidator{}
}

// Validate checks a single market. Caller must hold the market lock.
//
//	M-01: total_stake == yes_stake + no_stake
//	M-02: side stake equals the sum of stake amounts in that side's arena
//	M-03: side unit total equals the sum of stake units in that side's arena
//	M-04: outcome is UNRESOLVED until resolved; YES/NO once resolved
func (v *InvariantValidator) Validate(m *Market) error {
	if m.State.TotalStake != m.State.YesStake+m.State.NoStake {
		return fmt.Errorf("market %d M-01: total=%d, yes+no=%d",
			m.ID, m.State.TotalStake, m.State.YesStake+m.State.NoStake)
	}

	for _, side := range []Outcome{OutcomeYes, OutcomeNo} {
		var amountSum, unitSum int64
		for _, s := range *m.arena(side) {
			amountSum += s.Amount
			unitSum += s.Units
		}

		if amountSum != m.SideStake(side) {
			return fmt.Errorf("market %d M-02: %s stake=%d, arena sum=%d",
				m.ID, side, m.SideStake(side), amountSum)
		}
		if unitSum != m.TotalUnits(side) {
			return fmt.Errorf("market %d M-03: %s units=%d, arena sum=%d",
				m.ID, side, m.TotalUnits(side), unitSum)
		}
	}

	if !m.State.Resolved && m.State.Outcome != OutcomeUnresolved {
		return fmt.Errorf("market %d M-04: outcome %s set before resolution", m.ID, m.State.Outcome)
	}
	if m.State.Resolved && !m.State.Outcome.Valid() {
		return fmt.Errorf("market %d M-04: resolved with outcome %s", m.ID, m.State.Outcome)
	}

	return nil
}
