package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kdimtricp/breedid/internal/camera"
	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/identification"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/inference"
	"github.com/kdimtricp/breedid/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	imagePath := flag.String("image", "", "Photo to send (defaults to a synthetic test frame)")
	flag.Parse()

	cfg, resolved, found, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	fmt.Println("🔍 Checking Breed Inference")
	fmt.Println("===========================")
	if found {
		fmt.Printf("Config: %s\n", resolved)
	} else {
		fmt.Println("Config: defaults (no file found)")
	}

	if cfg.UsesMockInference() {
		fmt.Println("⚠️  WARNING: No inference endpoint configured!")
		fmt.Println("   Set inference.endpoint or INFERENCE_ENDPOINT. Using the mock recognizer.")
	} else {
		fmt.Printf("✅ Inference endpoint: %s\n", cfg.Inference.Endpoint)
		if strings.TrimSpace(cfg.Inference.APIKey) == "" {
			fmt.Println("   - API key: not set")
		} else {
			fmt.Println("   - API key: set")
		}
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.InferenceTimeout()+cfg.ProbeTimeout())
	defer cancel()

	prober := connectivity.NewProber(cfg.Connectivity.ProbeAddress, cfg.ProbeTimeout())
	online := prober.Probe(ctx)
	fmt.Printf("🌐 %s\n", connectivity.State{Online: online}.Banner())
	if !online && !cfg.UsesMockInference() {
		fmt.Println("❌ Offline, not contacting the inference endpoint")
		os.Exit(1)
	}

	still, err := loadStill(ctx, *imagePath, cfg)
	if err != nil {
		log.Fatal("Failed to prepare image:", err)
	}
	fmt.Printf("🖼️  Sending %dx%d %s (%d bytes)\n\n", still.Width, still.Height, still.MIMEType, len(still.Data))

	svc := inference.New(cfg, logging.NewNop())
	start := time.Now()
	pred, err := svc.Identify(ctx, still)
	if err != nil {
		fmt.Printf("❌ Inference failed after %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}

	tier := identification.Classify(pred.Confidence)
	fmt.Println("📊 Prediction:")
	fmt.Println("--------------")
	fmt.Printf("   Breed:      %s\n", pred.Breed)
	fmt.Printf("   Confidence: %d%% (%s)\n", pred.Confidence, tier.Presentation().AccuracyLabel)
	for _, f := range pred.Features {
		fmt.Printf("   - %s\n", f)
	}
	fmt.Printf("\n✅ Inference is working! Answered in %s.\n", time.Since(start).Round(time.Millisecond))
}

func loadStill(ctx context.Context, path string, cfg *config.Config) (*imaging.Still, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return imaging.Decode(data, cfg.Camera.JPEGQuality, cfg.Imaging.MaxImportDimension, cfg.Imaging.MaxImportPixels)
	}

	stream, err := camera.NewPatternDevice().Open(ctx, camera.Constraints{
		Facing: camera.FacingEnvironment,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Stop()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, err
	}
	return imaging.EncodeJPEG(frame, cfg.Camera.JPEGQuality)
}
