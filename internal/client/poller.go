package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPollTimeout  = time.Hour
)

// Terminal intent statuses as reported by the status endpoint.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusExpired  = "expired"
	StatusRejected = "rejected"
)

// statusFetcher is the slice of Client the poller needs.
type statusFetcher interface {
	PaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// PollOutcome is the final word of a status poll. Status holds the last
// observed intent status; TimedOut is set when the poll gave up while the
// intent was still pending.
type PollOutcome struct {
	Status   string
	TimedOut bool
}

// PollOption customizes a status poll.
type PollOption func(*StatusPoll)

// WithPollInterval overrides the poll cadence.
func WithPollInterval(interval time.Duration) PollOption {
	return func(p *StatusPoll) {
		p.interval = interval
	}
}

// WithPollTimeout overrides how long the poll keeps trying.
func WithPollTimeout(timeout time.Duration) PollOption {
	return func(p *StatusPoll) {
		p.timeout = timeout
	}
}

// WithPollLogger attaches a logger for transient fetch failures.
func WithPollLogger(logger *slog.Logger) PollOption {
	return func(p *StatusPoll) {
		p.logger = logger
	}
}

// StatusPoll watches a payment intent until it reaches a terminal status or
// the timeout elapses. The outcome is a one-way latch: once a terminal
// status has been observed no further requests are made and the recorded
// outcome never changes.
type StatusPoll struct {
	fetch     statusFetcher
	paymentID string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	latched bool
	outcome PollOutcome
}

// StartStatusPoll begins polling the intent's status in the background.
func (c *Client) StartStatusPoll(ctx context.Context, paymentID string, opts ...PollOption) *StatusPoll {
	return startStatusPoll(ctx, c, paymentID, opts...)
}

func startStatusPoll(ctx context.Context, fetch statusFetcher, paymentID string, opts ...PollOption) *StatusPoll {
	poll := &StatusPoll{
		fetch:     fetch,
		paymentID: paymentID,
		interval:  defaultPollInterval,
		timeout:   defaultPollTimeout,
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(poll)
	}

	ctx, poll.cancel = context.WithCancel(ctx)
	go poll.run(ctx)
	return poll
}

func (p *StatusPoll) run(ctx context.Context) {
	defer close(p.done)
	defer p.cancel()

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First check happens immediately, not one interval in.
	if p.check(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			p.latch(PollOutcome{Status: StatusPending})
			return
		case <-deadline.C:
			p.latch(PollOutcome{Status: StatusPending, TimedOut: true})
			return
		case <-ticker.C:
			if p.check(ctx) {
				return
			}
		}
	}
}

// check performs a single status fetch. It returns true once the poll has
// latched a terminal outcome. Transient fetch errors are logged and the
// poll keeps going; the intent may still settle on a later attempt.
func (p *StatusPoll) check(ctx context.Context) bool {
	status, err := p.fetch.PaymentStatus(ctx, p.paymentID)
	if err != nil {
		if ctx.Err() != nil {
			p.latch(PollOutcome{Status: StatusPending})
			return true
		}
		p.logger.Warn("payment status poll failed", "payment_id", p.paymentID, "error", err)
		return false
	}
	switch status {
	case StatusVerified, StatusExpired, StatusRejected:
		p.latch(PollOutcome{Status: status})
		return true
	default:
		return false
	}
}

func (p *StatusPoll) latch(outcome PollOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latched {
		return
	}
	p.latched = true
	p.outcome = outcome
}

// Cancel stops the poll. The outcome stays pending unless a terminal status
// was already latched.
func (p *StatusPoll) Cancel() {
	p.cancel()
}

// Done is closed when the poll has finished for any reason.
func (p *StatusPoll) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the latched result. It is only meaningful after Done is
// closed.
func (p *StatusPoll) Outcome() PollOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}
