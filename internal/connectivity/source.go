package connectivity

import (
	"log/slog"

	"github.com/kdimtricp/breedid/internal/config"
)

// NewSource picks the netlink source when enabled and polling otherwise.
func NewSource(cfg *config.Config, logger *slog.Logger) Source {
	prober := NewProber(cfg.Connectivity.ProbeAddress, cfg.ProbeTimeout())
	if cfg.Connectivity.Netlink {
		return &NetlinkSource{Prober: prober, Interval: cfg.PollInterval(), Logger: logger}
	}
	return &PollSource{Prober: prober, Interval: cfg.PollInterval()}
}
