package poller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Default polling options.
const (
	DefaultPollingInterval      = 2 * time.Second
	DefaultMaxPollingAttempts   = 150
	DefaultTimeoutDuration      = 5 * time.Minute
	DefaultMaxConsecutiveErrors = 3
	DefaultBackoffFactor        = 1.5
	DefaultMaxBackoff           = 30 * time.Second
)

// Outcome is the terminal result of one polling session.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeStopped  Outcome = "stopped"
)

// Callbacks receive poll results. Nil members are skipped. Exactly one of
// OnComplete, OnError or OnTimeout fires per session, and none fire after
// StopPolling.
type Callbacks struct {
	// OnStatusUpdate fires on every successful poll.
	OnStatusUpdate func(*StatusResult)
	// OnProgress fires on every successful poll with overall progress.
	OnProgress func(float64)
	// OnComplete fires once when the job reports completed.
	OnComplete func(*StatusResult)
	// OnError fires once on a business failure, an unknown job, or an
	// exhausted transport error budget.
	OnError func(error)
	// OnTimeout fires once when the wall-clock or attempt budget runs out
	// without a terminal server response.
	OnTimeout func()
}

// Options configures a polling session. Zero values select the defaults.
type Options struct {
	PollingInterval      time.Duration
	MaxPollingAttempts   int
	TimeoutDuration      time.Duration
	MaxConsecutiveErrors int
	BackoffFactor        float64
	MaxBackoff           time.Duration
}

func (o *Options) applyDefaults() {
	if o.PollingInterval <= 0 {
		o.PollingInterval = DefaultPollingInterval
	}
	if o.MaxPollingAttempts <= 0 {
		o.MaxPollingAttempts = DefaultMaxPollingAttempts
	}
	if o.TimeoutDuration <= 0 {
		o.TimeoutDuration = DefaultTimeoutDuration
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if o.BackoffFactor <= 1 {
		o.BackoffFactor = DefaultBackoffFactor
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
}

// State is a snapshot of a polling session.
type State struct {
	JobID             string
	Polling           bool
	Attempts          int
	ConsecutiveErrors int
	StartedAt         time.Time
	LastStatus        *StatusResult
	Outcome           Outcome
}

// Poller drives a single-timer polling loop per job. At most one request is
// outstanding at a time; the next tick is scheduled only after the previous
// one resolves.
type Poller struct {
	client *Client

	mu       sync.Mutex
	state    State
	opts     Options
	cb       Callbacks
	stopped  bool
	terminal bool
	session  int
	cancel   context.CancelFunc
}

// NewPoller creates a poller over the given status client.
func NewPoller(client *Client) *Poller {
	return &Poller{client: client}
}

// StartPolling begins a session for jobID. It fails if a session is already
// running; call Reset after a finished session to reuse the poller.
func (p *Poller) StartPolling(jobID string, cb Callbacks, opts Options) error {
	opts.applyDefaults()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Polling {
		return fmt.Errorf("already polling job %s", p.state.JobID)
	}
	if p.state.Outcome != OutcomeNone {
		return fmt.Errorf("poller finished with outcome %q, call Reset first", p.state.Outcome)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.cb = cb
	p.opts = opts
	p.stopped = false
	p.terminal = false
	p.session++
	p.state = State{
		JobID:     jobID,
		Polling:   true,
		StartedAt: time.Now(),
	}

	go p.loop(ctx, jobID, p.session)
	return nil
}

// StopPolling cancels the session. Idempotent. No callbacks fire afterwards,
// including for an in-flight request whose response arrives late.
func (p *Poller) StopPolling() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || !p.state.Polling {
		return
	}
	p.stopped = true
	p.state.Polling = false
	p.state.Outcome = OutcomeStopped
	if p.cancel != nil {
		p.cancel()
	}
}

// GetState returns a copy of the session state.
func (p *Poller) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset clears a finished session so the poller can be reused. It fails
// while a session is running.
func (p *Poller) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Polling {
		return errors.New("cannot reset while polling")
	}
	p.state = State{}
	p.stopped = false
	p.terminal = false
	p.cb = Callbacks{}
	return nil
}

func (p *Poller) loop(ctx context.Context, jobID string, session int) {
	delay := p.opts.PollingInterval
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		p.mu.Lock()
		elapsed := time.Since(p.state.StartedAt)
		attempts := p.state.Attempts
		p.mu.Unlock()

		// Dual budget: wall clock and attempt count both bound the session.
		if elapsed > p.opts.TimeoutDuration || attempts >= p.opts.MaxPollingAttempts {
			p.finish(session, OutcomeTimeout, func(cb Callbacks) {
				if cb.OnTimeout != nil {
					cb.OnTimeout()
				}
			})
			return
		}

		p.mu.Lock()
		p.state.Attempts++
		p.mu.Unlock()

		result, err := p.client.GetStatus(ctx, jobID)
		if ctx.Err() != nil {
			// Stopped while the request was in flight; suppress everything.
			return
		}

		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				p.finish(session, OutcomeError, func(cb Callbacks) {
					if cb.OnError != nil {
						cb.OnError(err)
					}
				})
				return
			}

			lastErr = err
			p.mu.Lock()
			p.state.ConsecutiveErrors++
			consecutive := p.state.ConsecutiveErrors
			p.mu.Unlock()

			if consecutive >= p.opts.MaxConsecutiveErrors {
				finalErr := fmt.Errorf("polling failed after %d consecutive errors: %w", consecutive, lastErr)
				p.finish(session, OutcomeError, func(cb Callbacks) {
					if cb.OnError != nil {
						cb.OnError(finalErr)
					}
				})
				return
			}

			delay = backoffDelay(p.opts, consecutive)
			continue
		}

		p.mu.Lock()
		p.state.ConsecutiveErrors = 0
		p.state.LastStatus = result
		p.mu.Unlock()

		switch {
		case result.Completed:
			p.finish(session, OutcomeComplete, func(cb Callbacks) {
				if cb.OnComplete != nil {
					cb.OnComplete(result)
				}
			})
			return
		case result.Failed:
			failErr := fmt.Errorf("job failed: %s", errorText(result))
			p.finish(session, OutcomeError, func(cb Callbacks) {
				if cb.OnError != nil {
					cb.OnError(failErr)
				}
			})
			return
		}

		if !p.notify(session, result) {
			return
		}
		delay = p.opts.PollingInterval
	}
}

// notify fires the non-terminal callbacks. Returns false when the session
// was stopped and the loop should exit silently.
func (p *Poller) notify(session int, result *StatusResult) bool {
	p.mu.Lock()
	if p.stopped || session != p.session {
		p.mu.Unlock()
		return false
	}
	cb := p.cb
	p.mu.Unlock()

	if cb.OnStatusUpdate != nil {
		cb.OnStatusUpdate(result)
	}
	if cb.OnProgress != nil {
		cb.OnProgress(result.Progress)
	}
	return true
}

// finish records the outcome and fires fn at most once per session, never
// after StopPolling and never into a later session.
func (p *Poller) finish(session int, outcome Outcome, fn func(Callbacks)) {
	p.mu.Lock()
	if p.stopped || p.terminal || session != p.session {
		p.mu.Unlock()
		return
	}
	p.terminal = true
	p.state.Polling = false
	p.state.Outcome = outcome
	cb := p.cb
	p.mu.Unlock()

	fn(cb)
}

func backoffDelay(opts Options, consecutiveErrors int) time.Duration {
	d := time.Duration(float64(opts.PollingInterval) * math.Pow(opts.BackoffFactor, float64(consecutiveErrors)))
	if d > opts.MaxBackoff {
		d = opts.MaxBackoff
	}
	return d
}

func errorText(result *StatusResult) string {
	if result.Error != nil && *result.Error != "" {
		return *result.Error
	}
	if result.Message != "" {
		return result.Message
	}
	return "unknown error"
}
