package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/identification"
	"github.com/kdimtricp/breedid/internal/inference"
	"github.com/kdimtricp/breedid/internal/picker"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identify <photo>",
		Short: "Identify the breed in a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())

			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve photo path: %w", err)
			}
			p, err := picker.NewPathPicker(filepath.Dir(abs))
			if err != nil {
				return err
			}
			file, err := p.Pick(filepath.Base(abs))
			if err != nil {
				return err
			}

			session := capture.NewSession("cli", capture.ModeImport, capture.Options{
				MaxImportDimension: cfg.Imaging.MaxImportDimension,
				MaxImportPixels:    cfg.Imaging.MaxImportPixels,
				MaxImportSize:      cfg.Server.MaxUploadSize,
				Logger:             logger,
			})
			defer session.Cancel()

			if err := session.AwaitSelection(); err != nil {
				return err
			}
			if err := session.ImportFile(cmd.Context(), file); err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}

			prober := connectivity.NewProber(cfg.Connectivity.ProbeAddress, cfg.ProbeTimeout())
			monitor := connectivity.NewMonitor(nil, prober.Probe(cmd.Context()), logger, nil)

			mailbox := identification.NewMailbox()
			pipeline := identification.NewPipeline(inference.New(cfg, logger), monitor, mailbox, logger, nil)

			h, err := pipeline.Submit(cmd.Context(), session)
			if err != nil {
				return err
			}
			res := identification.ResolveEntry(mailbox.Take(h.ID))
			if res.View == nil {
				return fmt.Errorf("result %s was not delivered", h.ID)
			}

			printResult(cmd, res.View)
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, view *identification.ResultView) {
	out := cmd.OutOrStdout()
	printFields(out, [][2]string{
		{"Breed", view.Breed},
		{"Confidence", strconv.Itoa(view.Confidence) + "%"},
		{"Accuracy", view.Presentation.AccuracyLabel},
		{"Features", strings.Join(view.Features, "\n")},
		{"Learn more", view.LearnMoreURL},
	})

	if view.Presentation.Caveat != "" {
		fmt.Fprintf(out, "%s: %s\n", view.Presentation.CaveatTitle, view.Presentation.Caveat)
	}
	if view.Presentation.RetakeSuggested {
		fmt.Fprintln(out, view.Presentation.Retake)
	}
}
