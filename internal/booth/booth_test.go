package booth

import (
	"context"
	"errors"
	"testing"

	"photobooth/internal/camera"
)

func TestBooth_OpenReplacesSession(t *testing.T) {
	ctx := context.Background()
	cam := newFakeCamera(red)
	b := New(testOptions(t, cam, transparentLoader()))
	defer b.Close(ctx)

	if _, err := b.Current(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Expected ErrNoSession, got %v", err)
	}

	first, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if cam.Status() != camera.StatusActive {
		t.Errorf("Expected camera active, got %s", cam.Status())
	}

	second, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if first.ID() == second.ID() {
		t.Error("Expected a new session id")
	}
	if err := first.SelectFrame(ctx, 1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected previous session to be closed, got %v", err)
	}

	current, err := b.Current()
	if err != nil || current != second {
		t.Errorf("Expected current to be the new session, got %v (%v)", current, err)
	}
	if cam.Status() != camera.StatusActive {
		t.Errorf("Expected camera active for new session, got %s", cam.Status())
	}

	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := b.Current(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession after close, got %v", err)
	}
	if cam.Status() != camera.StatusInactive {
		t.Errorf("Expected camera released, got %s", cam.Status())
	}
}

func TestBooth_CurrentAfterEnd(t *testing.T) {
	ctx := context.Background()
	b := New(testOptions(t, newFakeCamera(red), transparentLoader()))

	s, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.End(ctx); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	<-s.Done()

	if _, err := b.Current(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession after End, got %v", err)
	}
}
