package poller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		PollingInterval:      10 * time.Millisecond,
		MaxPollingAttempts:   100,
		TimeoutDuration:      5 * time.Second,
		MaxConsecutiveErrors: 3,
		BackoffFactor:        1.5,
		MaxBackoff:           50 * time.Millisecond,
	}
}

func statusBody(status string, progress float64, completed, failed bool, errMsg string) []byte {
	resp := StatusResult{
		JobID:     "j1",
		Status:    status,
		Progress:  progress,
		Completed: completed,
		Failed:    failed,
	}
	if errMsg != "" {
		resp.Error = &errMsg
	}
	body, _ := json.Marshal(resp)
	return body
}

// A terminal outcome waiter shared by the tests below.
type outcomes struct {
	progress  atomic.Int32
	updates   atomic.Int32
	completes atomic.Int32
	errors    atomic.Int32
	timeouts  atomic.Int32
	done      chan struct{}
	lastErr   atomic.Value
}

func newOutcomes() *outcomes {
	return &outcomes{done: make(chan struct{})}
}

func (o *outcomes) callbacks() Callbacks {
	return Callbacks{
		OnStatusUpdate: func(*StatusResult) { o.updates.Add(1) },
		OnProgress:     func(float64) { o.progress.Add(1) },
		OnComplete: func(*StatusResult) {
			o.completes.Add(1)
			close(o.done)
		},
		OnError: func(err error) {
			o.errors.Add(1)
			o.lastErr.Store(err)
			close(o.done)
		},
		OnTimeout: func() {
			o.timeouts.Add(1)
			close(o.done)
		},
	}
}

func (o *outcomes) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal callback fired")
	}
}

func TestPollerCompletes(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 3 {
			w.Write(statusBody("processing", float64(n)*0.2, false, false, ""))
			return
		}
		w.Write(statusBody("completed", 1.0, true, false, ""))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))
	o.wait(t)

	assert.Equal(t, int32(3), o.progress.Load(), "one progress callback per processing poll")
	assert.Equal(t, int32(3), o.updates.Load())
	assert.Equal(t, int32(1), o.completes.Load())
	assert.Equal(t, int32(0), o.errors.Load())
	assert.Equal(t, int32(0), o.timeouts.Load())
	assert.Equal(t, OutcomeComplete, p.GetState().Outcome)
}

func TestPollerBusinessFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(statusBody("failed", 0.2, false, true, "bad file"))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))
	o.wait(t)

	assert.Equal(t, int32(1), o.errors.Load())
	assert.Equal(t, int32(0), o.completes.Load())
	err, _ := o.lastErr.Load().(error)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad file")
}

func TestPollerTransportErrorBudget(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))
	o.wait(t)

	assert.Equal(t, int32(1), o.errors.Load(), "error fires exactly once")
	assert.Equal(t, int32(0), o.timeouts.Load())

	seen := requests.Load()
	assert.Equal(t, int32(3), seen, "no requests after the error budget is exhausted")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, requests.Load())
}

func TestPollerNotFoundIsImmediateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Job not found"}`))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("ghost", o.callbacks(), fastOptions()))
	o.wait(t)

	assert.Equal(t, int32(1), o.errors.Load())
	err, _ := o.lastErr.Load().(error)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPollerAttemptBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(statusBody("processing", 0.1, false, false, ""))
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.MaxPollingAttempts = 2

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), opts))
	o.wait(t)

	assert.Equal(t, int32(1), o.timeouts.Load())
	assert.Equal(t, int32(0), o.errors.Load())
	assert.Equal(t, OutcomeTimeout, p.GetState().Outcome)
}

func TestPollerWallClockBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(statusBody("processing", 0.1, false, false, ""))
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.TimeoutDuration = 40 * time.Millisecond

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), opts))
	o.wait(t)

	assert.Equal(t, int32(1), o.timeouts.Load())
}

func TestPollerStopSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write(statusBody("completed", 1.0, true, false, ""))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))

	// Let the first request get in flight, then cancel while it hangs.
	time.Sleep(30 * time.Millisecond)
	p.StopPolling()
	p.StopPolling()
	close(release)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), o.updates.Load())
	assert.Equal(t, int32(0), o.completes.Load())
	assert.Equal(t, int32(0), o.errors.Load())
	assert.Equal(t, int32(0), o.timeouts.Load())
	assert.Equal(t, OutcomeStopped, p.GetState().Outcome)
}

func TestPollerNeverOverlapsRequests(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if cur <= old || maxInFlight.CompareAndSwap(old, cur) {
				break
			}
		}

		// Respond slower than the polling interval.
		time.Sleep(30 * time.Millisecond)
		if polls.Add(1) >= 5 {
			w.Write(statusBody("completed", 1.0, true, false, ""))
			return
		}
		w.Write(statusBody("processing", 0.5, false, false, ""))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))
	o.wait(t)

	assert.Equal(t, int32(1), maxInFlight.Load(), "at most one outstanding request")
}

func TestPollerStartTwiceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(statusBody("processing", 0.1, false, false, ""))
	}))
	defer srv.Close()

	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", Callbacks{}, fastOptions()))
	defer p.StopPolling()

	assert.Error(t, p.StartPolling("j2", Callbacks{}, fastOptions()))
}

func TestPollerReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(statusBody("completed", 1.0, true, false, ""))
	}))
	defer srv.Close()

	o := newOutcomes()
	p := NewPoller(NewClient(srv.URL, nil))
	require.NoError(t, p.StartPolling("j1", o.callbacks(), fastOptions()))
	o.wait(t)

	// Finished sessions must be reset before reuse.
	assert.Error(t, p.StartPolling("j2", Callbacks{}, fastOptions()))
	require.NoError(t, p.Reset())
	assert.Equal(t, OutcomeNone, p.GetState().Outcome)

	o2 := newOutcomes()
	require.NoError(t, p.StartPolling("j2", o2.callbacks(), fastOptions()))
	o2.wait(t)
	assert.Equal(t, int32(1), o2.completes.Load())
}

func TestBackoffDelay(t *testing.T) {
	opts := Options{
		PollingInterval: 100 * time.Millisecond,
		BackoffFactor:   1.5,
		MaxBackoff:      300 * time.Millisecond,
	}

	assert.Equal(t, 150*time.Millisecond, backoffDelay(opts, 1))
	assert.Equal(t, 225*time.Millisecond, backoffDelay(opts, 2))
	assert.Equal(t, 300*time.Millisecond, backoffDelay(opts, 3), "delay is capped")
	assert.Equal(t, 300*time.Millisecond, backoffDelay(opts, 10))
}
