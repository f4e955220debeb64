package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/logging"
)

func testStill() *imaging.Still {
	return &imaging.Still{
		Format:   imaging.FormatJPEG,
		MIMEType: imaging.MIMETypeJPEG,
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Width:    1280,
		Height:   720,
	}
}

func TestHTTPClientIdentify(t *testing.T) {
	var gotAuth string
	var gotReq identifyRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"breed":"Gir Cow","confidence":71.6,"features":["Lyre-shaped horns"]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", time.Second)
	pred, err := client.Identify(context.Background(), testStill())
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.MIMEType != imaging.MIMETypeJPEG || gotReq.Width != 1280 || gotReq.Image == "" {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if pred.Breed != "Gir Cow" || pred.Confidence != 72 || len(pred.Features) != 1 {
		t.Errorf("unexpected prediction %+v", pred)
	}
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "service error", status: http.StatusOK, body: `{"error":{"message":"model overloaded"}}`, wantErr: "model overloaded"},
		{name: "bad status", status: http.StatusBadGateway, body: `upstream down`, wantErr: "502"},
		{name: "no breed", status: http.StatusOK, body: `{"confidence":50}`, wantErr: "no breed"},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPClient(server.URL, "", time.Second).Identify(context.Background(), testStill())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPClientRejectsEmptyStill(t *testing.T) {
	if _, err := NewHTTPClient("http://unused", "", time.Second).Identify(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil still")
	}
}

func TestMockServiceReturnsFixedPrediction(t *testing.T) {
	mock := &MockService{Breed: "Holstein Friesian", Confidence: 92, Features: DefaultMockFeatures}

	pred, err := mock.Identify(context.Background(), testStill())
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if pred.Breed != "Holstein Friesian" || pred.Confidence != 92 || len(pred.Features) != 3 {
		t.Errorf("unexpected prediction %+v", pred)
	}

	pred.Features[0] = "changed"
	if DefaultMockFeatures[0] != "Black and white markings" {
		t.Error("prediction aliases the mock features")
	}
}

func TestMockServiceHonoursContext(t *testing.T) {
	mock := &MockService{Breed: "Jersey", Confidence: 80, MinLatency: time.Second, MaxLatency: 3 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mock.Identify(ctx, testStill()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMockLatencyWithinBounds(t *testing.T) {
	mock := &MockService{MinLatency: time.Second, MaxLatency: 3 * time.Second}
	for i := 0; i < 100; i++ {
		d := mock.latency()
		if d < time.Second || d >= 3*time.Second {
			t.Fatalf("latency %v out of bounds", d)
		}
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	cfg := config.Default()
	if _, ok := New(&cfg, logging.NewNop()).(*MockService); !ok {
		t.Error("expected mock without endpoint")
	}

	cfg.Inference.Endpoint = "https://inference.example.com/identify"
	if _, ok := New(&cfg, logging.NewNop()).(*HTTPClient); !ok {
		t.Error("expected HTTP client with endpoint")
	}
}

func TestNewLogsMockSelectionOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := config.Default()

	New(&cfg, logger)

	if got := strings.Count(buf.String(), "using mock service"); got != 1 {
		t.Fatalf("expected one mock selection log line, got %d:\n%s", got, buf.String())
	}
}
