package core

// import_gate.go serializes import batches.
//
// A workspace processes one batch at a time: parsing, reconciliation and the
// commit that follows all assume nothing else mutates the dataset meanwhile.
// The gate is a one-slot semaphore. A second batch waits up to maxWait for
// the slot and then fails with ErrImportBusy.

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultImportWait is how long a batch waits for the gate before giving up.
const DefaultImportWait = 30 * time.Second

// ImportGate admits one import batch at a time.
type ImportGate struct {
	slot    chan struct{}
	maxWait time.Duration
	busy    atomic.Bool
}

// NewImportGate creates a gate whose waiters give up after maxWait.
func NewImportGate(maxWait time.Duration) *ImportGate {
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the gate. The caller must Release it when the batch is done.
// Returns ErrImportBusy on timeout, or ctx.Err() if ctx ends first.
func (g *ImportGate) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		g.busy.Store(true)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrImportBusy
	}
}

// TryAcquire takes the gate without waiting.
func (g *ImportGate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		g.busy.Store(true)
		return true
	default:
		return false
	}
}

// Release frees the gate. Must be called once per successful Acquire.
func (g *ImportGate) Release() {
	g.busy.Store(false)
	<-g.slot
}

// Busy reports whether a batch currently holds the gate.
func (g *ImportGate) Busy() bool {
	return g.busy.Load()
}

// WaitForDrain blocks until the running batch finishes or ctx ends.
// Used during shutdown.
func (g *ImportGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
