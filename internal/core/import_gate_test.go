package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportGate_AcquireRelease(t *testing.T) {
	gate := NewImportGate(time.Second)

	if gate.Busy() {
		t.Error("new gate is busy")
	}

	ctx := context.Background()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !gate.Busy() {
		t.Error("gate not busy after Acquire")
	}
	if gate.TryAcquire() {
		t.Error("TryAcquire succeeded while held")
	}

	gate.Release()
	if gate.Busy() {
		t.Error("gate busy after Release")
	}
	if !gate.TryAcquire() {
		t.Error("TryAcquire failed on a free gate")
	}
	gate.Release()
}

func TestImportGate_BusyTimeout(t *testing.T) {
	gate := NewImportGate(100 * time.Millisecond)
	ctx := context.Background()

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	start := time.Now()
	err := gate.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrImportBusy) {
		t.Errorf("expected ErrImportBusy, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestImportGate_ContextCancelled(t *testing.T) {
	gate := NewImportGate(time.Second)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gate.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestImportGate_WaiterGetsSlot(t *testing.T) {
	gate := NewImportGate(time.Second)
	ctx := context.Background()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- gate.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	gate.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter Acquire failed: %v", err)
		}
		gate.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the gate")
	}
}

func TestImportGate_WaitForDrain(t *testing.T) {
	gate := NewImportGate(time.Second)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		gate.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}

func TestImportGate_WaitForDrainTimeout(t *testing.T) {
	gate := NewImportGate(time.Second)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := gate.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
