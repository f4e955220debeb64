package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/breedid/internal/connectivity"
)

func newConnectivityCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "connectivity",
		Short: "Report network reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())
			out := cmd.OutOrStdout()

			prober := connectivity.NewProber(cfg.Connectivity.ProbeAddress, cfg.ProbeTimeout())
			monitor := connectivity.NewMonitor(connectivity.NewSource(cfg, logger), prober.Probe(cmd.Context()), logger, nil)
			if !watch {
				fmt.Fprintln(out, monitor.State().Banner())
				return nil
			}

			if err := monitor.Start(cmd.Context()); err != nil {
				return err
			}
			defer monitor.Stop()

			updates, unsubscribe := monitor.Subscribe()
			defer unsubscribe()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case st, ok := <-updates:
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%s  %s\n", st.ChangedAt.Format(time.RFC3339), st.Banner())
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and print every change")
	return cmd
}
