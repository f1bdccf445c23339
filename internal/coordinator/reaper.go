package coordinator

import (
	"context"
	"log"
	"sync"
	"time"
)

// Reaper periodically expires shuffle rounds that have waited longer than
// the barrier's deadline for their remaining reports.
// Thread-safe: Start and Stop may be called from different goroutines.
type Reaper struct {
	barrier   *Barrier
	onExpired func(fileID string) // Invoked once per expired round
	ctx       context.Context     // Context for cancellation
	cancel    context.CancelFunc  // Cancel function for shutdown
	interval  time.Duration       // How often to sweep
	wg        sync.WaitGroup      // Wait group for graceful shutdown
}

// NewReaper creates a reaper that sweeps barrier every interval.
//
// Example:
//
//	reaper := NewReaper(barrier, 30*time.Second)
//	go reaper.Start(ctx)
//	defer reaper.Stop()
func NewReaper(barrier *Barrier, interval time.Duration) *Reaper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reaper{
		barrier:  barrier,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnExpired sets the callback invoked for every round the reaper expires.
func (r *Reaper) SetOnExpired(callback func(fileID string)) {
	r.onExpired = callback
}

// Start sweeps on every tick until ctx or the reaper itself is canceled.
// It blocks; run it in its own goroutine.
func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()

	if ctx == nil {
		ctx = r.ctx
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("shuffle reaper started with interval %v", r.interval)

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-ctx.Done():
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reaper) sweep() {
	for _, id := range r.barrier.Expire() {
		if r.onExpired != nil {
			r.onExpired(id)
		}
	}
}
