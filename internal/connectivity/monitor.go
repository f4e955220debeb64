// Package connectivity tracks whether the network is reachable. The Monitor
// is the only writer of that state; everyone else reads it through Online,
// State or a subscription.
package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
)

const (
	BannerOnline  = "Online - Data syncing"
	BannerOffline = "Offline - Data will sync when connected"
)

type State struct {
	Online    bool      `json:"online"`
	ChangedAt time.Time `json:"changed_at"`
}

func (s State) Banner() string {
	if s.Online {
		return BannerOnline
	}
	return BannerOffline
}

// Source reports reachability changes. The channel is closed when ctx is
// done.
type Source interface {
	Watch(ctx context.Context) (<-chan bool, error)
}

type Monitor struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State

	subsMu sync.Mutex
	subs   map[int]chan State
	nextID int

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor starts from initial until the source reports otherwise.
func NewMonitor(source Source, initial bool, logger *slog.Logger, m *metrics.Metrics) *Monitor {
	m.SetOnline(initial)
	return &Monitor{
		source:  source,
		logger:  logging.NewComponentLogger(logger, "connectivity"),
		metrics: m,
		state:   State{Online: initial, ChangedAt: time.Now()},
		subs:    make(map[int]chan State),
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}
	if m.source == nil {
		return errors.New("connectivity source not configured")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	events, err := m.source.Watch(loopCtx)
	if err != nil {
		cancel()
		return err
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(events, m.done)

	m.logger.Info("connectivity monitor started",
		slog.String(logging.FieldEventType, "connectivity_monitor_started"),
		slog.Bool("online", m.Online()),
	)
	return nil
}

// Stop ends the event loop and closes every subscription.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.running = false
	m.runMu.Unlock()

	<-done

	m.subsMu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.subsMu.Unlock()

	m.logger.Info("connectivity monitor stopped",
		slog.String(logging.FieldEventType, "connectivity_monitor_stopped"),
	)
}

func (m *Monitor) loop(events <-chan bool, done chan struct{}) {
	defer close(done)
	for online := range events {
		m.apply(online)
	}
}

func (m *Monitor) apply(online bool) {
	m.mu.Lock()
	if m.state.Online == online {
		m.mu.Unlock()
		return
	}
	m.state = State{Online: online, ChangedAt: time.Now()}
	state := m.state
	m.mu.Unlock()

	m.metrics.SetOnline(online)
	m.logger.Info("connectivity changed",
		slog.String(logging.FieldEventType, "connectivity_changed"),
		slog.Bool("online", online),
	)
	m.publish(state)
}

func (m *Monitor) publish(state State) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		// Keep only the newest state for slow readers.
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Online
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns a channel that receives the current state and then every
// change. The returned func unsubscribes; it is safe to call more than once.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	// Seeding under subsMu orders the first value before any publish.
	m.subsMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	ch <- m.State()
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (m *Monitor) Subscribers() int {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return len(m.subs)
}
