package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

type fakeStateStore struct {
	states   map[string]storage.AlertState
	failMark bool
	marks    int
	resets   int
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]storage.AlertState)}
}

func (f *fakeStateStore) GetAlertStates(_ context.Context, productID int64) (map[string]storage.AlertState, error) {
	out := make(map[string]storage.AlertState, len(f.states))
	for k, v := range f.states {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStateStore) MarkTriggered(_ context.Context, productID int64, ruleKey string, price decimal.Decimal, at time.Time) error {
	if f.failMark {
		return errors.New("write failed")
	}
	f.marks++
	f.states[ruleKey] = storage.AlertState{
		ProductID:      productID,
		RuleKey:        ruleKey,
		IsTriggered:    true,
		TriggeredPrice: &price,
		TriggeredAt:    &at,
		IsActive:       true,
	}
	return nil
}

func (f *fakeStateStore) ResetAlertState(_ context.Context, _ int64, ruleKey string) error {
	state := f.states[ruleKey]
	state.IsTriggered = false
	state.TriggeredPrice = nil
	state.TriggeredAt = nil
	f.states[ruleKey] = state
	f.resets++
	return nil
}

func (f *fakeStateStore) ListTriggered(_ context.Context) ([]storage.TriggeredAlert, error) {
	return nil, nil
}

type fakeNotifier struct {
	notes []Notification
}

func (f *fakeNotifier) Notify(_ context.Context, note Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

func targetCandidate(current string, met bool) Candidate {
	return Candidate{
		Rule:     Rule{Kind: KindTargetReached},
		Met:      met,
		Evidence: Evidence{Current: dec(current), Target: decPtr("50.00")},
	}
}

func testProduct() storage.Product {
	return storage.Product{ID: 7, Store: "zaffari", SKU: "12345", Title: "Leite UHT Integral 1L"}
}

func TestTrackerTriggersOncePerTransition(t *testing.T) {
	store := newFakeStateStore()
	notifier := &fakeNotifier{}
	tracker := NewTracker(store, notifier, zerolog.Nop())

	// 49.99 against a 50.00 target: trigger and notify once.
	events, err := tracker.Reconcile(context.Background(), testProduct(), []Candidate{targetCandidate("49.99", true)})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(events) != 1 || len(notifier.notes) != 1 {
		t.Fatalf("expected one event and one notification, got %d/%d", len(events), len(notifier.notes))
	}

	// Still met on the next run: no additional notification.
	events, err = tracker.Reconcile(context.Background(), testProduct(), []Candidate{targetCandidate("49.50", true)})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(events) != 0 || len(notifier.notes) != 1 {
		t.Fatalf("re-evaluation while triggered must emit nothing, got %d/%d", len(events), len(notifier.notes))
	}
	if store.marks != 1 {
		t.Fatalf("expected a single state write, got %d", store.marks)
	}
}

func TestTrackerResetsAndRetriggers(t *testing.T) {
	store := newFakeStateStore()
	notifier := &fakeNotifier{}
	tracker := NewTracker(store, notifier, zerolog.Nop())

	ctx := context.Background()
	product := testProduct()

	if _, err := tracker.Reconcile(ctx, product, []Candidate{targetCandidate("49.99", true)}); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	// Price recovers to 52.00: reset, no notification.
	if _, err := tracker.Reconcile(ctx, product, []Candidate{targetCandidate("52.00", false)}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if store.resets != 1 {
		t.Fatalf("expected one reset, got %d", store.resets)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("reset must not notify, got %d notifications", len(notifier.notes))
	}

	// Drops again to 49.50: exactly one new notification.
	if _, err := tracker.Reconcile(ctx, product, []Candidate{targetCandidate("49.50", true)}); err != nil {
		t.Fatalf("re-trigger failed: %v", err)
	}
	if len(notifier.notes) != 2 {
		t.Fatalf("expected exactly two notifications across the cycle, got %d", len(notifier.notes))
	}
}

func TestTrackerWithholdsNotificationOnPersistFailure(t *testing.T) {
	store := newFakeStateStore()
	store.failMark = true
	notifier := &fakeNotifier{}
	tracker := NewTracker(store, notifier, zerolog.Nop())

	events, err := tracker.Reconcile(context.Background(), testProduct(), []Candidate{targetCandidate("49.99", true)})
	if err == nil {
		t.Fatal("persist failure must surface an error")
	}
	if len(events) != 0 {
		t.Fatal("no event without a durable state write")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("notification must be withheld when the state write fails")
	}

	// Next cycle succeeds and delivers exactly once.
	store.failMark = false
	if _, err := tracker.Reconcile(context.Background(), testProduct(), []Candidate{targetCandidate("49.99", true)}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("retry must deliver exactly once, got %d", len(notifier.notes))
	}
}

func TestTrackerIgnoresInsufficientCandidates(t *testing.T) {
	store := newFakeStateStore()
	notifier := &fakeNotifier{}
	tracker := NewTracker(store, notifier, zerolog.Nop())

	ctx := context.Background()
	product := testProduct()

	stdRule := Rule{Kind: KindStdDev, Window: 30, K: 1}
	met := Candidate{Rule: stdRule, Met: true, Evidence: Evidence{Current: dec("7.80")}}
	if _, err := tracker.Reconcile(ctx, product, []Candidate{met}); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	// Insufficient data later (history purged below two observations) must
	// not reset the triggered state.
	insufficient := Candidate{Rule: stdRule, Insufficient: true, Evidence: Evidence{Current: dec("9.00")}}
	if _, err := tracker.Reconcile(ctx, product, []Candidate{insufficient}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if store.resets != 0 {
		t.Fatal("insufficient data must not reset a triggered rule")
	}
	if !store.states[stdRule.Key()].IsTriggered {
		t.Fatal("state must remain triggered")
	}
}

var _ storage.AlertStateStore = (*fakeStateStore)(nil)
