package projection

import (
	"context"
	"database/sql"
	"log"

	"PredictLedger/internal/event"
)

// Worker maintains queryable read models (projections.markets and
// projections.stakes) from the emitted event stream. Projections are
// derived state: updates are best-effort, and a projection that falls
// behind can always be rebuilt from event_log.events.
type Worker struct {
	db        *sql.DB
	inputChan <-chan event.Envelope
}

func NewWorker(db *sql.DB, inputChan <-chan event.Envelope) *Worker {
	return &Worker{db: db, inputChan: inputChan}
}

// Run consumes envelopes until ctx is cancelled. Individual update failures
// are logged and skipped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.apply(ctx, env); err != nil {
				log.Printf("WARN: projection update failed seq=%d type=%s: %v",
					env.Sequence, env.Type, err)
			}
		}
	}
}

func (w *Worker) apply(ctx context.Context, env event.Envelope) error {
	switch p := env.Payload.(type) {
	case *event.MarketCreated:
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO projections.markets
				(market_id, question, category, creator, end_time, resolution_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (market_id) DO NOTHING`,
			p.Market, p.Question, p.Category, p.Creator, p.EndTime, p.ResolutionTime,
		)
		return err

	case *event.StakePlaced:
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO projections.stakes
				(market_id, outcome, stake_index, staker, amount, units)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (market_id, outcome, stake_index) DO NOTHING`,
			p.Market, p.Outcome, p.StakeIndex, p.Staker, p.NetAmount, p.Units,
		)
		return err

	case *event.ProposalChallenged:
		_, err := w.db.ExecContext(ctx, `
			UPDATE projections.markets SET challenged = TRUE WHERE market_id = $1`,
			p.Market,
		)
		return err

	case *event.MarketResolved:
		_, err := w.db.ExecContext(ctx, `
			UPDATE projections.markets SET resolved = TRUE, outcome = $2, challenged = $3
			WHERE market_id = $1`,
			p.Market, p.Outcome, p.Challenged,
		)
		return err

	case *event.StakeClaimed:
		_, err := w.db.ExecContext(ctx, `
			UPDATE projections.stakes SET claimed = TRUE
			WHERE market_id = $1 AND outcome = $2 AND stake_index = $3`,
			p.Market, p.Outcome, p.StakeIndex,
		)
		return err

	case *event.StakeRestaked:
		// The source stake sits on the source market's winning side; the
		// resolved outcome is already projected on the markets row.
		_, err := w.db.ExecContext(ctx, `
			UPDATE projections.stakes SET claimed = TRUE
			WHERE market_id = $1 AND stake_index = $2
			  AND outcome = (SELECT outcome FROM projections.markets WHERE market_id = $1)`,
			p.Market, p.StakeIndex,
		)
		return err
	}

	// Other event types carry no projected state.
	return nil
}
