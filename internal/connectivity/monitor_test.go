package connectivity

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
)

type chanSource struct {
	events chan bool
}

func newChanSource() *chanSource {
	return &chanSource{events: make(chan bool)}
}

func (s *chanSource) Watch(ctx context.Context) (<-chan bool, error) {
	out := make(chan bool)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-s.events:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type failingSource struct{}

func (failingSource) Watch(context.Context) (<-chan bool, error) {
	return nil, errors.New("no network stack")
}

func receive(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
	}
	return State{}
}

func TestMonitorPublishesChanges(t *testing.T) {
	src := newChanSource()
	m := NewMonitor(src, false, logging.NewNop(), metrics.New())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	sub, unsubscribe := m.Subscribe()
	defer unsubscribe()

	if st := receive(t, sub); st.Online {
		t.Fatal("expected initial offline state")
	}
	if m.Online() {
		t.Fatal("expected Online() false")
	}

	src.events <- true
	st := receive(t, sub)
	if !st.Online {
		t.Fatal("expected online state")
	}
	if !m.Online() || st.Banner() != BannerOnline {
		t.Errorf("accessor or banner out of sync: online=%v banner=%q", m.Online(), st.Banner())
	}

	src.events <- false
	if st := receive(t, sub); st.Online || st.Banner() != BannerOffline {
		t.Errorf("expected offline state with offline banner, got %+v", st)
	}
}

func TestMonitorIgnoresRepeatedState(t *testing.T) {
	src := newChanSource()
	m := NewMonitor(src, true, logging.NewNop(), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	sub, unsubscribe := m.Subscribe()
	defer unsubscribe()
	receive(t, sub)

	src.events <- true
	src.events <- false
	st := receive(t, sub)
	if st.Online {
		t.Fatal("repeated online event was published")
	}
}

func TestSubscribeDuringChangesEndsOnLatestState(t *testing.T) {
	src := newChanSource()
	m := NewMonitor(src, false, logging.NewNop(), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	const rounds = 100
	flipped := make(chan struct{})
	go func() {
		defer close(flipped)
		for i := 0; i < rounds; i++ {
			src.events <- i%2 == 0
		}
	}()

	var subs []<-chan State
	for i := 0; i < rounds; i++ {
		sub, unsubscribe := m.Subscribe()
		t.Cleanup(unsubscribe)
		subs = append(subs, sub)
	}
	<-flipped

	deadline := time.Now().Add(2 * time.Second)
	for m.Online() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never applied the final event")
		}
		time.Sleep(time.Millisecond)
	}

	// The final event is offline. Every subscriber must end on it once the
	// stream goes quiet.
	for i, sub := range subs {
		var last State
		for quiet := false; !quiet; {
			select {
			case last = <-sub:
			case <-time.After(20 * time.Millisecond):
				quiet = true
			}
		}
		if last.Online {
			t.Fatalf("subscriber %d ended on a stale online state", i)
		}
	}
}

func TestMonitorStopClosesSubscriptions(t *testing.T) {
	m := NewMonitor(newChanSource(), true, logging.NewNop(), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub, unsubscribe := m.Subscribe()
	receive(t, sub)
	if m.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", m.Subscribers())
	}

	m.Stop()
	m.Stop()
	unsubscribe()

	if _, ok := <-sub; ok {
		t.Error("expected closed subscription after Stop")
	}
	if m.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", m.Subscribers())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	m := NewMonitor(newChanSource(), false, logging.NewNop(), nil)
	_, unsubscribe := m.Subscribe()
	unsubscribe()
	unsubscribe()
	if m.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", m.Subscribers())
	}
}

func TestMonitorStartErrors(t *testing.T) {
	if err := NewMonitor(failingSource{}, true, nil, nil).Start(context.Background()); err == nil {
		t.Error("expected source error")
	}
	if err := NewMonitor(nil, true, nil, nil).Start(context.Background()); err == nil {
		t.Error("expected error without a source")
	}
}

func TestProber(t *testing.T) {
	up := &Prober{
		Address: "probe:53",
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			client, server := net.Pipe()
			server.Close()
			return client, nil
		},
	}
	if !up.Probe(context.Background()) {
		t.Error("expected reachable")
	}

	down := &Prober{
		Address: "probe:53",
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("network is unreachable")
		},
	}
	if down.Probe(context.Background()) {
		t.Error("expected unreachable")
	}
}

func TestPollSourceEmitsImmediately(t *testing.T) {
	src := &PollSource{
		Prober: &Prober{Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("down")
		}},
		Interval: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := src.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	select {
	case online := <-events:
		if online {
			t.Error("expected offline probe result")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial probe")
	}

	cancel()
	for range events {
	}
}

func TestNewSourceHonoursNetlinkFlag(t *testing.T) {
	cfg := config.Default()
	cfg.Connectivity.Netlink = false
	if _, ok := NewSource(&cfg, nil).(*PollSource); !ok {
		t.Error("expected PollSource when netlink is disabled")
	}

	cfg.Connectivity.Netlink = true
	if _, ok := NewSource(&cfg, nil).(*NetlinkSource); !ok {
		t.Error("expected NetlinkSource when netlink is enabled")
	}
}
