package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/tasksync/internal/logging"
)

// DefaultProbeInterval is how often the Monitor checks the server.
const DefaultProbeInterval = 15 * time.Second

// probeTimeout bounds a single health probe.
const probeTimeout = 5 * time.Second

// Prober reports whether the server is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Target receives connectivity changes. *Engine implements it.
type Target interface {
	Online() bool
	SetOnline(online bool)
}

// Monitor polls a Prober and feeds the result to a Target.
type Monitor struct {
	prober   Prober
	target   Target
	interval time.Duration
	logger   *log.Logger

	mu      gosync.Mutex
	running bool
	stopCh  chan struct{}
	wg      gosync.WaitGroup
}

// NewMonitor creates a Monitor. interval <= 0 uses DefaultProbeInterval.
func NewMonitor(p Prober, target Target, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Monitor{
		prober:   p,
		target:   target,
		interval: interval,
		logger:   logger.With("component", "connectivity"),
	}
}

// Reachable pings p once with a short timeout.
func Reachable(ctx context.Context, p Prober) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return p.Ping(ctx)
}

// Probe pings the server once without touching the Target.
func (m *Monitor) Probe(ctx context.Context) bool {
	if err := Reachable(ctx, m.prober); err != nil {
		m.logger.Debug("health probe failed", "err", err)
		return false
	}
	return true
}

// Check probes once and reports the result to the Target.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.Probe(ctx)
	m.target.SetOnline(online)
	return online
}

// Start begins periodic checks in the background.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(stopCh)
}

// Stop halts periodic checks and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) loop(stopCh chan struct{}) {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
