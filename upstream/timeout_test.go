package upstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutReturnsResult(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, "op", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("WithTimeout = (%d, %v), want (42, nil)", got, err)
	}
}

func TestWithTimeoutPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := WithTimeout(context.Background(), time.Second, "op", func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	start := time.Now()
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, "kapa_callTool", func(context.Context) (int, error) {
		<-release
		close(finished)
		return 1, nil
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WithTimeout waited %v", elapsed)
	}

	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if ue.Kind != KindTimeout || ue.Op != "kapa_callTool" {
		t.Errorf("got kind=%v op=%q, want timeout/kapa_callTool", ue.Kind, ue.Op)
	}
	if !errors.Is(err, ErrDeadline) {
		t.Error("timeout error does not wrap ErrDeadline")
	}

	// The abandoned operation still runs to completion.
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned operation never finished")
	}
}

func TestWithTimeoutCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithTimeout(ctx, time.Second, "op", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if Classify(err).Transient() {
		t.Error("caller cancellation classified as transient")
	}
}

func TestWithTimeoutRecoversPanic(t *testing.T) {
	_, err := WithTimeout(context.Background(), time.Second, "kapa_callTool", func(context.Context) (int, error) {
		panic("nil session")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if pe.Value != "nil session" {
		t.Errorf("panic value = %v", pe.Value)
	}
	if Classify(err).Transient() {
		t.Error("panic classified as transient")
	}
}
