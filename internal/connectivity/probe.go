package connectivity

import (
	"context"
	"net"
	"time"
)

// Prober checks reachability by opening a TCP connection.
type Prober struct {
	Address string
	Timeout time.Duration
	Dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewProber(address string, timeout time.Duration) *Prober {
	d := &net.Dialer{}
	return &Prober{
		Address: address,
		Timeout: timeout,
		Dial:    d.DialContext,
	}
}

func (p *Prober) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.Dial(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// PollSource probes on a fixed interval.
type PollSource struct {
	Prober   *Prober
	Interval time.Duration
}

func (s *PollSource) Watch(ctx context.Context) (<-chan bool, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if !send(ctx, out, s.Prober.Probe(ctx)) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- bool, online bool) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- online:
		return true
	case <-ctx.Done():
		return false
	}
}
