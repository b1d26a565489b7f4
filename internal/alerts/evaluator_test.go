package alerts

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	trackererrors "cryptotracker/internal/errors"
	"cryptotracker/internal/market"
	"cryptotracker/internal/models"
	"cryptotracker/internal/store"
)

type notification struct {
	title, body string
}

type recordingSink struct {
	mu       sync.Mutex
	notes    []notification
	vibrates []time.Duration
	err      error
}

func (s *recordingSink) Notify(_ context.Context, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, notification{title, body})
	return s.err
}

func (s *recordingSink) Vibrate(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vibrates = append(s.vibrates, d)
	return nil
}

func (s *recordingSink) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.notes))
	for i, n := range s.notes {
		out[i] = n.body
	}
	return out
}

func newSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func setAlert(t *testing.T, s store.DataStore, id, name, target string, dir models.AlertDirection) {
	t.Helper()
	ctx := context.Background()
	if err := s.AddFavorite(ctx, &models.Favorite{ID: id, Name: name, Symbol: id[:3], Price: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("AddFavorite(%s): %v", id, err)
	}
	a := &models.Alert{CoinID: id, CoinName: name, TargetPrice: decimal.RequireFromString(target), Direction: dir}
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatalf("UpsertAlert(%s): %v", id, err)
	}
}

func snapshotOf(prices map[string]string) SnapshotFunc {
	quotes := make([]models.Quote, 0, len(prices))
	for id, p := range prices {
		quotes = append(quotes, models.Quote{ID: id, Name: id, Price: decimal.RequireFromString(p)})
	}
	snap := market.NewSnapshot(quotes, time.Now())
	return func() market.Snapshot { return snap }
}

func TestRunCycleScenario(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	setAlert(t, s, "bitcoin", "Bitcoin", "50000", models.DirectionAbove)
	setAlert(t, s, "ethereum", "Ethereum", "2000", models.DirectionBelow)
	setAlert(t, s, "dogecoin", "Dogecoin", "0.1", models.DirectionAbove)

	sink := &recordingSink{}
	var hooked []string
	e := NewEvaluator(s, snapshotOf(map[string]string{
		"bitcoin":  "50000.00",
		"ethereum": "2000.01",
	}), sink, zerolog.Nop(), WithOnFired(func(a models.Alert, q models.Quote) {
		hooked = append(hooked, a.CoinID+"@"+q.Price.String())
	}))

	res := e.RunCycle(ctx)
	if res.Err != nil {
		t.Fatalf("RunCycle: %v", res.Err)
	}
	if res.Checked != 3 || len(res.Fired) != 1 || res.Deferred != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if got := sink.bodies(); len(got) != 1 || got[0] != "Bitcoin is above 50000.00" {
		t.Fatalf("notifications = %v", got)
	}
	if sink.notes[0].title != "Crypto Alert" {
		t.Errorf("title = %q", sink.notes[0].title)
	}
	if len(sink.vibrates) != 1 || sink.vibrates[0] != 500*time.Millisecond {
		t.Errorf("vibrates = %v", sink.vibrates)
	}
	if len(hooked) != 1 || hooked[0] != "bitcoin@50000" {
		t.Errorf("hook calls = %v", hooked)
	}

	remaining, err := s.GetAllAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 || remaining[0].CoinID != "ethereum" || remaining[1].CoinID != "dogecoin" {
		t.Fatalf("remaining alerts = %+v", remaining)
	}

	// Same quotes again: nothing new fires.
	res = e.RunCycle(ctx)
	if res.Err != nil || len(res.Fired) != 0 {
		t.Fatalf("second cycle: %+v", res)
	}
	if len(sink.bodies()) != 1 {
		t.Error("a consumed alert must not fire twice")
	}
}

func TestRunCycleBelowBoundary(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	setAlert(t, s, "ethereum", "Ethereum", "2000", models.DirectionBelow)

	sink := &recordingSink{}
	e := NewEvaluator(s, snapshotOf(map[string]string{"ethereum": "2000"}), sink, zerolog.Nop())

	res := e.RunCycle(ctx)
	if res.Err != nil || len(res.Fired) != 1 {
		t.Fatalf("result: %+v", res)
	}
	if got := sink.bodies(); got[0] != "Ethereum is below 2000.00" {
		t.Errorf("body = %q", got[0])
	}
}

func TestRunCycleZeroPriceDefers(t *testing.T) {
	s := newSQLiteStore(t)
	setAlert(t, s, "ethereum", "Ethereum", "2000", models.DirectionBelow)

	sink := &recordingSink{}
	e := NewEvaluator(s, snapshotOf(map[string]string{"ethereum": "0"}), sink, zerolog.Nop())

	res := e.RunCycle(context.Background())
	if res.Err != nil || len(res.Fired) != 0 || res.Deferred != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestRunCycleEmptySnapshot(t *testing.T) {
	s := newSQLiteStore(t)
	setAlert(t, s, "bitcoin", "Bitcoin", "1", models.DirectionAbove)

	e := NewEvaluator(s, SnapshotFunc(func() market.Snapshot { return market.Snapshot{} }), nil, zerolog.Nop())
	res := e.RunCycle(context.Background())
	if res.Err != nil || res.Deferred != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestRunCycleSinkFailureStillConsumes(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	setAlert(t, s, "bitcoin", "Bitcoin", "100", models.DirectionAbove)

	sink := &recordingSink{err: errors.New("offline")}
	e := NewEvaluator(s, snapshotOf(map[string]string{"bitcoin": "200"}), sink, zerolog.Nop())

	res := e.RunCycle(ctx)
	if res.Err != nil || len(res.Fired) != 1 {
		t.Fatalf("result: %+v", res)
	}
	if _, err := s.GetAlertForCoin(ctx, "bitcoin"); !trackererrors.Is(err, trackererrors.ErrAlertNotFound) {
		t.Errorf("alert should be gone, got %v", err)
	}
}

func TestRunCycleClosedStoreIsFatal(t *testing.T) {
	s := newSQLiteStore(t)
	s.Close()

	e := NewEvaluator(s, snapshotOf(nil), nil, zerolog.Nop())
	res := e.RunCycle(context.Background())

	var ce *trackererrors.CycleError
	if !trackererrors.As(res.Err, &ce) {
		t.Fatalf("expected CycleError, got %v", res.Err)
	}
	if ce.Severity != trackererrors.Fatal {
		t.Errorf("severity = %v", ce.Severity)
	}
}

// fakeStore is an in-memory AlertStore with injectable failures.
type fakeStore struct {
	mu         sync.Mutex
	alerts     []models.Alert
	readErr    error
	consumeErr error
	// beforeConsume runs inside ConsumeAlert before the revision check.
	beforeConsume func(f *fakeStore)
	consumed      []string
	nextID        int64
}

func (f *fakeStore) GetAllAlerts(context.Context) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]models.Alert, len(f.alerts))
	copy(out, f.alerts)
	return out, nil
}

func (f *fakeStore) GetAlertForCoin(_ context.Context, coinID string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.CoinID == coinID {
			a := a
			return &a, nil
		}
	}
	return nil, trackererrors.ErrAlertNotFound
}

func (f *fakeStore) UpsertAlert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.alerts {
		if a.CoinID == alert.CoinID {
			alert.ID = a.ID
			alert.Revision = a.Revision + 1
			f.alerts[i] = *alert
			return nil
		}
	}
	f.nextID++
	alert.ID = 1000 + f.nextID
	alert.Revision = 1
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeStore) DeleteAlertForCoin(_ context.Context, coinID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteLocked(models.Alert{CoinID: coinID}, false)
	return nil
}

func (f *fakeStore) ConsumeAlert(_ context.Context, alert models.Alert) (bool, error) {
	if f.beforeConsume != nil {
		f.beforeConsume(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return false, f.consumeErr
	}
	if f.deleteLocked(alert, true) {
		f.consumed = append(f.consumed, alert.CoinID)
		return true, nil
	}
	return false, nil
}

// deleteLocked removes the alert for target.CoinID. With exact set, the stored
// row must also match target's id and revision.
func (f *fakeStore) deleteLocked(target models.Alert, exact bool) bool {
	for i, a := range f.alerts {
		if a.CoinID != target.CoinID {
			continue
		}
		if !exact || (a.ID == target.ID && a.Revision == target.Revision) {
			f.alerts = append(f.alerts[:i], f.alerts[i+1:]...)
			return true
		}
	}
	return false
}

func alert(id, target string, dir models.AlertDirection) models.Alert {
	return models.Alert{CoinID: id, CoinName: id, TargetPrice: decimal.RequireFromString(target), Direction: dir, Revision: 1}
}

func TestRunCycleReadErrorIsRecoverable(t *testing.T) {
	f := &fakeStore{readErr: errors.New("database is locked")}
	e := NewEvaluator(f, snapshotOf(nil), nil, zerolog.Nop())

	res := e.RunCycle(context.Background())
	var ce *trackererrors.CycleError
	if !trackererrors.As(res.Err, &ce) || ce.Severity != trackererrors.Recoverable {
		t.Fatalf("expected recoverable CycleError, got %v", res.Err)
	}
	if trackererrors.IsFatal(res.Err) {
		t.Error("locked database should not be fatal")
	}
}

func TestRunCycleConsumeErrorAbortsCycle(t *testing.T) {
	f := &fakeStore{
		alerts: []models.Alert{
			alert("bitcoin", "100", models.DirectionAbove),
			alert("ethereum", "100", models.DirectionAbove),
		},
		consumeErr: sql.ErrConnDone,
	}
	sink := &recordingSink{}
	e := NewEvaluator(f, snapshotOf(map[string]string{"bitcoin": "150", "ethereum": "150"}), sink, zerolog.Nop())

	res := e.RunCycle(context.Background())
	if !trackererrors.IsFatal(res.Err) {
		t.Fatalf("expected fatal error, got %v", res.Err)
	}
	if len(sink.bodies()) != 0 {
		t.Error("nothing should be notified when consume fails")
	}
	if len(res.Fired) != 0 {
		t.Errorf("fired = %v", res.Fired)
	}
}

func TestRunCycleEditedAlertIsNotConsumed(t *testing.T) {
	f := &fakeStore{alerts: []models.Alert{alert("bitcoin", "100", models.DirectionAbove)}}
	// The user raises the target between the read and the consume.
	f.beforeConsume = func(f *fakeStore) {
		edited := alert("bitcoin", "500", models.DirectionAbove)
		f.UpsertAlert(context.Background(), &edited)
		f.beforeConsume = nil
	}
	sink := &recordingSink{}
	e := NewEvaluator(f, snapshotOf(map[string]string{"bitcoin": "150"}), sink, zerolog.Nop())

	res := e.RunCycle(context.Background())
	if res.Err != nil || res.Stale != 1 || len(res.Fired) != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(sink.bodies()) != 0 {
		t.Error("stale alert must not notify")
	}

	a, err := f.GetAlertForCoin(context.Background(), "bitcoin")
	if err != nil {
		t.Fatal(err)
	}
	if !a.TargetPrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("edited alert lost, target = %s", a.TargetPrice)
	}
}

func TestRunCycleRecreatedAlertIsNotConsumed(t *testing.T) {
	f := &fakeStore{alerts: []models.Alert{alert("bitcoin", "100", models.DirectionAbove)}}
	// The user removes the alert and sets a new one at the same revision.
	f.beforeConsume = func(f *fakeStore) {
		ctx := context.Background()
		f.DeleteAlertForCoin(ctx, "bitcoin")
		recreated := alert("bitcoin", "900", models.DirectionAbove)
		f.UpsertAlert(ctx, &recreated)
		f.beforeConsume = nil
	}
	sink := &recordingSink{}
	e := NewEvaluator(f, snapshotOf(map[string]string{"bitcoin": "150"}), sink, zerolog.Nop())

	res := e.RunCycle(context.Background())
	if res.Err != nil || res.Stale != 1 || len(res.Fired) != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(sink.bodies()) != 0 {
		t.Error("replaced alert must not notify")
	}

	a, err := f.GetAlertForCoin(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("re-created alert lost: %v", err)
	}
	if a.Revision != 1 || !a.TargetPrice.Equal(decimal.NewFromInt(900)) {
		t.Errorf("alert = %+v, want the re-created 900 target", a)
	}
}

func TestRunCycleCancelledContext(t *testing.T) {
	f := &fakeStore{alerts: []models.Alert{alert("bitcoin", "100", models.DirectionAbove)}}
	e := NewEvaluator(f, snapshotOf(map[string]string{"bitcoin": "150"}), nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.RunCycle(ctx)
	if res.Err == nil || trackererrors.IsFatal(res.Err) {
		t.Fatalf("expected recoverable error, got %v", res.Err)
	}
	if len(f.consumed) != 0 {
		t.Error("cancelled cycle should not consume")
	}
}
