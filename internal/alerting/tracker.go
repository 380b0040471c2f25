package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

// Event records one INACTIVE -> TRIGGERED transition that was durably
// persisted and handed to the notifier.
type Event struct {
	Product     storage.Product
	Rule        Rule
	Price       decimal.Decimal
	TriggeredAt time.Time
	Evidence    Evidence
}

// Tracker reconciles evaluated candidates against persisted alert state.
// It guarantees at most one notification per (product, rule) transition:
// re-evaluating an already-triggered rule while it is still met emits
// nothing, and a rule only re-arms after an evaluation with met=false.
type Tracker struct {
	states   storage.AlertStateStore
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTracker constructs a Tracker. The notifier may be nil, in which case
// transitions are persisted but nothing is emitted.
func NewTracker(states storage.AlertStateStore, notifier Notifier, logger zerolog.Logger) *Tracker {
	return &Tracker{
		states:   states,
		notifier: notifier,
		logger:   logger.With().Str("component", "alert_tracker").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies the candidates for one product. The state write comes
// before the notification: a failed write aborts the emission for that rule
// and the evaluation is retried on the next cycle (marking an already
// triggered rule again is an idempotent upsert). Notifier failures are
// logged and do not roll the state back; delivery is outside this state
// machine. Candidates reporting insufficient data cause no transition.
func (t *Tracker) Reconcile(ctx context.Context, product storage.Product, candidates []Candidate) ([]Event, error) {
	states, err := t.states.GetAlertStates(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	var (
		events []Event
		errs   []error
	)

	for _, cand := range candidates {
		if cand.Insufficient {
			continue
		}

		key := cand.Rule.Key()
		state, known := states[key]

		switch {
		case cand.Met && known && state.IsTriggered:
			// Still met, already notified. Nothing to do.

		case cand.Met:
			at := t.now()
			if err := t.states.MarkTriggered(ctx, product.ID, key, cand.Evidence.Current, at); err != nil {
				t.logger.Error().Err(err).
					Int64("product_id", product.ID).
					Str("rule", key).
					Msg("failed to persist trigger; notification withheld")
				errs = append(errs, err)
				continue
			}

			event := Event{
				Product:     product,
				Rule:        cand.Rule,
				Price:       cand.Evidence.Current,
				TriggeredAt: at,
				Evidence:    cand.Evidence,
			}
			events = append(events, event)

			if t.notifier != nil {
				note := Notification{
					Product:     product,
					Rule:        cand.Rule,
					Price:       cand.Evidence.Current,
					TriggeredAt: at,
					Evidence:    cand.Evidence,
				}
				if err := t.notifier.Notify(ctx, note); err != nil {
					t.logger.Error().Err(err).
						Int64("product_id", product.ID).
						Str("rule", key).
						Msg("failed to dispatch alert")
				}
			}

		case known && state.IsTriggered:
			if err := t.states.ResetAlertState(ctx, product.ID, key); err != nil {
				errs = append(errs, err)
				continue
			}
			t.logger.Debug().
				Int64("product_id", product.ID).
				Str("rule", key).
				Msg("alert reset; rule may trigger again")
		}
	}

	return events, errors.Join(errs...)
}
