package capture

import (
	"context"
	"testing"
	"time"

	"github.com/kdimtricp/breedid/internal/camera"
)

func TestRegistryCreateGetRemove(t *testing.T) {
	dev := camera.NewPatternDevice()
	r := NewRegistry(testOptions(dev))

	s := r.Create(ModeLive)
	if s.ID == "" {
		t.Fatal("expected a session ID")
	}
	got, ok := r.Get(s.ID)
	if !ok || got != s {
		t.Fatal("expected to find the session")
	}

	if err := s.StartStream(context.Background()); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := r.Remove(s.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := r.Get(s.ID); ok {
		t.Error("session still registered")
	}
	if s.State() != StateClosed || dev.Active() != 0 {
		t.Errorf("removed session not released: %s active=%d", s.State(), dev.Active())
	}
	if err := r.Remove(s.ID); err == nil {
		t.Error("expected error removing unknown session")
	}
}

func TestRegistrySweepExpiresIdleSessions(t *testing.T) {
	dev := camera.NewPatternDevice()
	r := NewRegistry(testOptions(dev))

	streaming := r.Create(ModeLive)
	if err := streaming.StartStream(context.Background()); err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	submitting := r.Create(ModeLive)
	if err := submitting.StartStream(context.Background()); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := submitting.CaptureStill(context.Background()); err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	if _, err := submitting.BeginSubmission(); err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}

	if n := r.Sweep(time.Hour); n != 0 {
		t.Fatalf("expected nothing expired, got %d", n)
	}

	time.Sleep(5 * time.Millisecond)
	if n := r.Sweep(time.Millisecond); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, ok := r.Get(streaming.ID); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := r.Get(submitting.ID); !ok {
		t.Error("session with a pending submission was swept")
	}
	if dev.Active() != 0 {
		t.Errorf("expired session kept the camera, %d active", dev.Active())
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(testOptions(camera.NewPatternDevice()))
	a := r.Create(ModeLive)
	b := r.Create(ModeImport)

	r.Close()

	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	if a.State() != StateClosed || b.State() != StateClosed {
		t.Error("expected all sessions closed")
	}
}
