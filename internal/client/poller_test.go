package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedFetcher replays a fixed status sequence and counts calls. After the
// script runs out it keeps returning the final entry.
type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []string
	errs     []error
	calls    int
}

func (f *scriptedFetcher) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.calls++
	if f.errs != nil && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	return f.statuses[idx], nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStatusPollLatchesOnVerified(t *testing.T) {
	fetch := &scriptedFetcher{
		// The fourth answer would flip back to pending; the latch must have
		// stopped polling before it is ever requested.
		statuses: []string{StatusPending, StatusPending, StatusVerified, StatusPending},
	}

	poll := startStatusPoll(context.Background(), fetch, "pay-1",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(time.Second),
	)

	select {
	case <-poll.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	outcome := poll.Outcome()
	if outcome.Status != StatusVerified {
		t.Fatalf("expected verified outcome, got %+v", outcome)
	}
	if outcome.TimedOut {
		t.Fatal("expected no timeout")
	}

	calls := fetch.callCount()
	if calls != 3 {
		t.Fatalf("expected exactly 3 status fetches, got %d", calls)
	}

	// The outcome never changes after the latch.
	time.Sleep(20 * time.Millisecond)
	if got := poll.Outcome(); got != outcome {
		t.Fatalf("outcome changed after latch: %+v vs %+v", got, outcome)
	}
	if fetch.callCount() != calls {
		t.Fatalf("poll kept fetching after the latch: %d calls", fetch.callCount())
	}
}

func TestStatusPollTimesOut(t *testing.T) {
	fetch := &scriptedFetcher{statuses: []string{StatusPending}}

	poll := startStatusPoll(context.Background(), fetch, "pay-1",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(30*time.Millisecond),
	)

	select {
	case <-poll.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	outcome := poll.Outcome()
	if !outcome.TimedOut || outcome.Status != StatusPending {
		t.Fatalf("expected a pending timeout outcome, got %+v", outcome)
	}

	// No further requests once the poll gave up.
	calls := fetch.callCount()
	time.Sleep(30 * time.Millisecond)
	if fetch.callCount() != calls {
		t.Fatalf("poll kept fetching after timeout: %d calls", fetch.callCount())
	}
}

func TestStatusPollSurvivesTransientErrors(t *testing.T) {
	transient := errors.New("connection reset")
	fetch := &scriptedFetcher{
		statuses: []string{"", StatusPending, StatusVerified},
		errs:     []error{transient, nil, nil},
	}

	poll := startStatusPoll(context.Background(), fetch, "pay-1",
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(time.Second),
	)

	select {
	case <-poll.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	if outcome := poll.Outcome(); outcome.Status != StatusVerified || outcome.TimedOut {
		t.Fatalf("expected verified despite the transient error, got %+v", outcome)
	}
}

func TestStatusPollCancel(t *testing.T) {
	fetch := &scriptedFetcher{statuses: []string{StatusPending}}

	poll := startStatusPoll(context.Background(), fetch, "pay-1",
		WithPollInterval(10*time.Millisecond),
		WithPollTimeout(time.Minute),
	)
	poll.Cancel()

	select {
	case <-poll.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancel")
	}

	if outcome := poll.Outcome(); outcome.Status != StatusPending || outcome.TimedOut {
		t.Fatalf("expected a plain pending outcome after cancel, got %+v", outcome)
	}
}
