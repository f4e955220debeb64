package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"github.com/kdimtricp/breedid/internal/logging"
)

// NetlinkSource re-probes reachability whenever the kernel reports a network
// interface event, and on a slow interval to catch upstream outages. When the
// netlink socket cannot be opened it degrades to polling.
type NetlinkSource struct {
	Prober   *Prober
	Interval time.Duration
	Logger   *slog.Logger
}

func (s *NetlinkSource) Watch(ctx context.Context) (<-chan bool, error) {
	logger := logging.NewComponentLogger(s.Logger, "netlink-source")

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logger.Warn("failed to connect to netlink socket; falling back to polling",
			logging.Error(err),
			slog.String(logging.FieldEventType, "netlink_connect_failed"),
		)
		poll := &PollSource{Prober: s.Prober, Interval: s.Interval}
		return poll.Watch(ctx)
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	out := make(chan bool, 1)
	go func() {
		defer close(out)
		defer conn.Close()

		queue := make(chan netlink.UEvent)
		errs := make(chan error)
		quit := conn.Monitor(queue, errs, netMatcher())
		defer close(quit)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if !send(ctx, out, s.Prober.Probe(ctx)) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case uevent := <-queue:
				logger.Debug("network interface event",
					slog.String("action", string(uevent.Action)),
					slog.String("interface", uevent.Env["INTERFACE"]),
				)
			case err := <-errs:
				logger.Warn("netlink monitor error",
					logging.Error(err),
					slog.String(logging.FieldEventType, "netlink_monitor_error"),
				)
				continue
			case <-ticker.C:
			}
			if !send(ctx, out, s.Prober.Probe(ctx)) {
				return
			}
		}
	}()
	return out, nil
}

// netMatcher matches interface add, remove and link changes.
func netMatcher() netlink.Matcher {
	action := "add|remove|change|online|offline|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}
