/*
scheduler.go - Background overdue sweep

Runs the overdue scanner on a configurable interval so entries past their
due date are promoted even when nobody hits the /overdue endpoint. The
sweep is idempotent, so overlapping a manual trigger is harmless.
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/barrel-register/register"
)

// OverdueScheduler periodically runs the overdue sweep.
type OverdueScheduler struct {
	Scanner       *register.OverdueScanner
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a scheduler with the given check interval.
func NewOverdueScheduler(scanner *register.OverdueScanner, interval time.Duration) *OverdueScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueScheduler{
		Scanner:       scanner,
		CheckInterval: interval,
		stop:          make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (sc *OverdueScheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.ticker = time.NewTicker(sc.CheckInterval)
	sc.wg.Add(1)
	go sc.run()

	log.Printf("[Scheduler] Started with check interval: %v", sc.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (sc *OverdueScheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker != nil {
		sc.ticker.Stop()
		close(sc.stop)
		sc.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (sc *OverdueScheduler) run() {
	defer sc.wg.Done()

	// Run immediately on start
	sc.sweep()

	for {
		select {
		case <-sc.ticker.C:
			sc.sweep()
		case <-sc.stop:
			return
		}
	}
}

func (sc *OverdueScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := sc.Scanner.Sweep(ctx); err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
	}
}
