package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campaigner/internal/carrier"
	"campaigner/internal/store"
)

type settled struct {
	attempts int
	errMsg   string
}

type fakeStore struct {
	items []store.ClaimedItem

	sent     []int64
	requeued map[int64]settled
	failed   map[int64]settled
	messages []store.MessageInsert

	insertErr error
}

func newFakeStore(items ...store.ClaimedItem) *fakeStore {
	return &fakeStore{
		items:    items,
		requeued: map[int64]settled{},
		failed:   map[int64]settled{},
	}
}

func (f *fakeStore) ClaimQueueBatch(ctx context.Context, limit int, now time.Time) ([]store.ClaimedItem, error) {
	if len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeStore) MarkItemSent(ctx context.Context, itemID int64, now time.Time) error {
	f.sent = append(f.sent, itemID)
	return nil
}

func (f *fakeStore) RequeueItem(ctx context.Context, itemID int64, attempts int, errMsg string) error {
	f.requeued[itemID] = settled{attempts: attempts, errMsg: errMsg}
	return nil
}

func (f *fakeStore) FailItem(ctx context.Context, itemID int64, attempts int, errMsg string) error {
	f.failed[itemID] = settled{attempts: attempts, errMsg: errMsg}
	return nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, in store.MessageInsert) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.messages = append(f.messages, in)
	return nil
}

type fakeGateway struct {
	errs  map[string]error // keyed by destination phone
	sends int
}

func (g *fakeGateway) Send(ctx context.Context, to, body, callbackURL string) (carrier.Submission, error) {
	g.sends++
	if err, ok := g.errs[to]; ok {
		return carrier.Submission{}, err
	}
	return carrier.Submission{ExternalID: fmt.Sprintf("SM%s", to), Status: "queued"}, nil
}

func (g *fakeGateway) FetchStatus(ctx context.Context, externalID string) (carrier.DeliveryStatus, error) {
	return carrier.DeliveryStatus{ExternalID: externalID, Status: "delivered"}, nil
}

func (g *fakeGateway) Sender() string { return "+15550001111" }

func newDispatcher(fs *fakeStore, gw carrier.Gateway) *Dispatcher {
	n := 0
	return &Dispatcher{
		Store:       fs,
		Gateway:     gw,
		BatchSize:   100,
		MaxAttempts: 3,
		CallbackURL: "https://hooks.example.com/v1/webhooks/twilio/status",
		IDGen: func() string {
			n++
			return fmt.Sprintf("msg_%04d", n)
		},
	}
}

func TestDispatchSuccess(t *testing.T) {
	fs := newFakeStore(store.ClaimedItem{ID: 1, CampaignID: 7, ContactID: 11, ListID: 4, Phone: "+14155552671", Body: "hello"})
	gw := &fakeGateway{}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(fs.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(fs.messages))
	}
	m := fs.messages[0]
	if m.Status != "sent" {
		t.Fatalf("message status %q, want sent (carrier said queued)", m.Status)
	}
	if m.ExternalID != "SM+14155552671" || m.Sender != "+15550001111" {
		t.Fatalf("message identity wrong: %+v", m)
	}
	if m.CampaignID != 7 || m.ContactID != 11 || m.ListID != 4 {
		t.Fatalf("message foreign keys wrong: %+v", m)
	}
	if len(fs.sent) != 1 || fs.sent[0] != 1 {
		t.Fatalf("item not marked sent: %v", fs.sent)
	}
	if len(fs.requeued) != 0 || len(fs.failed) != 0 {
		t.Fatal("successful item was also settled as a failure")
	}
}

func TestTransientErrorRequeues(t *testing.T) {
	fs := newFakeStore(store.ClaimedItem{ID: 1, Phone: "+14155552671", Attempts: 0})
	gw := &fakeGateway{errs: map[string]error{
		"+14155552671": &carrier.TransientError{Err: errors.New("429 from carrier")},
	}}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, ok := fs.requeued[1]
	if !ok {
		t.Fatal("item was not requeued")
	}
	if got.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.attempts)
	}
	if len(fs.failed) != 0 || len(fs.sent) != 0 || len(fs.messages) != 0 {
		t.Fatal("transient failure below the ceiling must only requeue")
	}
}

func TestTransientErrorExhaustsBudget(t *testing.T) {
	fs := newFakeStore(store.ClaimedItem{ID: 1, Phone: "+14155552671", Attempts: 2})
	gw := &fakeGateway{errs: map[string]error{
		"+14155552671": &carrier.TransientError{Err: errors.New("timeout")},
	}}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, ok := fs.failed[1]
	if !ok {
		t.Fatal("item at the retry ceiling was not failed")
	}
	if got.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", got.attempts)
	}
	if len(fs.requeued) != 0 {
		t.Fatal("exhausted item must not be requeued")
	}
}

func TestUnexpectedErrorFailsImmediately(t *testing.T) {
	fs := newFakeStore(store.ClaimedItem{ID: 1, Phone: "+14155552671", Attempts: 0})
	gw := &fakeGateway{errs: map[string]error{
		"+14155552671": errors.New("invalid To number"),
	}}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, ok := fs.failed[1]
	if !ok {
		t.Fatal("item was not failed")
	}
	if got.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.attempts)
	}
	if len(fs.requeued) != 0 {
		t.Fatal("non-transient errors must never requeue")
	}
}

func TestBatchContinuesPastFailure(t *testing.T) {
	fs := newFakeStore(
		store.ClaimedItem{ID: 1, Phone: "+14155550001", Body: "a"},
		store.ClaimedItem{ID: 2, Phone: "+14155550002", Body: "b"},
		store.ClaimedItem{ID: 3, Phone: "+14155550003", Body: "c"},
	)
	gw := &fakeGateway{errs: map[string]error{
		"+14155550002": &carrier.TransientError{Err: errors.New("flaky")},
	}}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if gw.sends != 3 {
		t.Fatalf("gateway saw %d sends, want 3", gw.sends)
	}
	if len(fs.sent) != 2 {
		t.Fatalf("%d items marked sent, want 2", len(fs.sent))
	}
	if _, ok := fs.requeued[2]; !ok {
		t.Fatal("failing item was not requeued")
	}
}

func TestInsertFailureSettlesItem(t *testing.T) {
	fs := newFakeStore(store.ClaimedItem{ID: 1, Phone: "+14155552671"})
	fs.insertErr = errors.New("unique violation")
	d := newDispatcher(fs, &fakeGateway{})

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(fs.sent) != 0 {
		t.Fatal("item marked sent despite unrecorded message")
	}
	if _, ok := fs.failed[1]; !ok {
		t.Fatal("item with unrecorded message was not failed")
	}
}

func TestEmptyBatch(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{}
	d := newDispatcher(fs, gw)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if gw.sends != 0 {
		t.Fatal("gateway called on an empty batch")
	}
}

func TestBatchSizeCapsClaim(t *testing.T) {
	fs := newFakeStore(
		store.ClaimedItem{ID: 1, Phone: "+14155550001"},
		store.ClaimedItem{ID: 2, Phone: "+14155550002"},
	)
	gw := &fakeGateway{}
	d := newDispatcher(fs, gw)
	d.BatchSize = 1

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if gw.sends != 1 {
		t.Fatalf("gateway saw %d sends, want 1", gw.sends)
	}
}
