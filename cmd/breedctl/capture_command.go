package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/breedid/internal/camera"
	"github.com/kdimtricp/breedid/internal/capture"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var output string
	var facing string
	var driver string
	var warmup time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a still from the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())

			camCfg := cfg.Camera
			if d := strings.TrimSpace(driver); d != "" {
				camCfg.Driver = d
			}
			device, err := camera.NewDevice(camCfg, logger)
			if err != nil {
				return err
			}

			mode := camera.FacingMode(strings.ToLower(strings.TrimSpace(facing)))
			if mode != camera.FacingEnvironment && mode != camera.FacingUser {
				return fmt.Errorf("unknown facing mode %q (environment, user)", facing)
			}

			session := capture.NewSession("cli", capture.ModeLive, capture.Options{
				Device: device,
				Constraints: camera.Constraints{
					Facing: mode,
					Width:  camCfg.Width,
					Height: camCfg.Height,
				},
				JPEGQuality: camCfg.JPEGQuality,
				Logger:      logger,
			})
			defer session.Cancel()

			if err := session.StartStream(cmd.Context()); err != nil {
				return fmt.Errorf("start camera: %w", err)
			}

			if warmup > 0 {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(warmup):
				}
			}

			if err := session.CaptureStill(cmd.Context()); err != nil {
				return fmt.Errorf("capture: %w", err)
			}
			still := session.Still()
			if err := os.WriteFile(output, still.Data, 0o644); err != nil {
				return fmt.Errorf("write still: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Captured %dx%d still to %s\n", still.Width, still.Height, output)
			fmt.Fprintf(cmd.OutOrStdout(), "Camera released: %s\n", yesNo(!session.Streaming()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "capture.jpg", "Destination JPEG file")
	cmd.Flags().StringVar(&facing, "facing", string(camera.FacingEnvironment), "Camera facing mode (environment, user)")
	cmd.Flags().StringVar(&driver, "driver", "", "Override the configured camera driver (ffmpeg, pattern)")
	cmd.Flags().DurationVar(&warmup, "warmup", 500*time.Millisecond, "Delay before taking the still")
	return cmd
}
