package status

import (
	"context"
	"sync"
	"time"

	"github.com/docuflow/docuflow/internal/logger"
)

// DefaultTimeoutCheckInterval is how often the monitor scans for stale jobs.
const DefaultTimeoutCheckInterval = 30 * time.Second

// TimeoutMonitor periodically fails jobs that have gone without an update
// for longer than their timeout budget. It reuses Tracker.Fail, so the
// single-path-to-failed invariant holds for timeouts too.
type TimeoutMonitor struct {
	tracker       *Tracker
	checkInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewTimeoutMonitor creates a monitor over the tracker. A non-positive
// interval selects the default.
func NewTimeoutMonitor(tracker *Tracker, checkInterval time.Duration) *TimeoutMonitor {
	if checkInterval <= 0 {
		checkInterval = DefaultTimeoutCheckInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TimeoutMonitor{
		tracker:       tracker,
		checkInterval: checkInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the background scan loop.
func (m *TimeoutMonitor) Start() {
	logger.Logger.Info().Dur("check_interval", m.checkInterval).Msg("Starting timeout monitor")
	m.wg.Add(1)
	go m.run()
}

// Stop cancels the loop and waits for it to exit.
func (m *TimeoutMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
	logger.Logger.Info().Msg("Timeout monitor stopped")
}

func (m *TimeoutMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweepStale()
		}
	}
}

func (m *TimeoutMonitor) sweepStale() {
	now := time.Now()
	for _, r := range m.tracker.store.ListActive() {
		if now.Sub(r.UpdatedAt) <= r.Timeout {
			continue
		}

		log := logger.WithJobID(r.JobID)
		log.Warn().
			Dur("timeout", r.Timeout).
			Time("last_update", r.UpdatedAt).
			Msg("Job stale, failing")

		if _, err := m.tracker.Fail(r.JobID, TimeoutError, "job timed out waiting for progress"); err != nil {
			// The job reached a terminal state between scan and fail;
			// losing that race is fine.
			log.Debug().Err(err).Msg("Stale job already terminal")
		}
	}
}
