// Package flush drives deliveries: periodically on an interval, immediately
// when the buffer asks, and once more when stopped.
package flush

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/arkilian/beacon/internal/delivery"
	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// State is the scheduler lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Deliverer performs one drain-and-send.
type Deliverer interface {
	Deliver(ctx context.Context) (delivery.Result, error)
}

// Config holds scheduler construction parameters.
type Config struct {
	Interval time.Duration
	// MaxBackground caps concurrent fire-and-forget deliveries
	MaxBackground int
	// FinalTimeout bounds the delivery performed on Stop
	FinalTimeout time.Duration
	Logger       *log.Logger
}

// Scheduler owns the periodic loop. Ticks and immediate requests are never
// coalesced: each one is its own Deliver call.
type Scheduler struct {
	deliverer    Deliverer
	interval     time.Duration
	finalTimeout time.Duration
	sem          *semaphore.Weighted
	logger       *log.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	loopDone chan struct{}

	background sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(d Deliverer, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxBackground <= 0 {
		cfg.MaxBackground = 4
	}
	if cfg.FinalTimeout <= 0 {
		cfg.FinalTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Scheduler{
		deliverer:    d,
		interval:     cfg.Interval,
		finalTimeout: cfg.FinalTimeout,
		sem:          semaphore.NewWeighted(int64(cfg.MaxBackground)),
		logger:       cfg.Logger,
	}
}

// Start begins the periodic loop. ctx only gates the start itself: once
// running, the loop ends on Stop alone.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return beaconerrors.New(beaconerrors.ErrCategoryInternal, beaconerrors.CodeAlreadyStarted, "flush scheduler already running")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.state = StateRunning

	go s.run(loopCtx, s.loopDone)
	return nil
}

// run is the periodic loop. On cancellation it performs the final blocking
// delivery before closing done.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), s.finalTimeout)
			// Errors are already logged by the delivery client.
			_, _ = s.deliverer.Deliver(finalCtx)
			cancel()
			return
		case <-ticker.C:
			s.deliverAsync()
		}
	}
}

// Stop cancels the loop and waits for its final delivery and for any
// background deliveries still in flight. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	waited := make(chan struct{})
	go func() {
		s.background.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestImmediateFlush asks for a delivery now. Rejected while stopped.
// A blocking request returns after its delivery finished; a non-blocking one
// returns at once.
func (s *Scheduler) RequestImmediateFlush(blocking bool) error {
	if s.State() != StateRunning {
		return beaconerrors.New(beaconerrors.ErrCategoryInternal, beaconerrors.CodeNotStarted, "flush scheduler is stopped")
	}
	if !blocking {
		if !s.deliverAsync() {
			return beaconerrors.New(beaconerrors.ErrCategoryInternal, beaconerrors.CodeNotStarted, "flush scheduler is stopped")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.finalTimeout)
	defer cancel()
	_, err := s.deliverer.Deliver(ctx)
	return err
}

// Flush delivers synchronously on behalf of the host.
func (s *Scheduler) Flush(ctx context.Context) (delivery.Result, error) {
	if s.State() != StateRunning {
		return delivery.Result{}, beaconerrors.New(beaconerrors.ErrCategoryInternal, beaconerrors.CodeNotStarted, "flush scheduler is stopped")
	}
	return s.deliverer.Deliver(ctx)
}

// Wait blocks until every background delivery started so far has finished.
func (s *Scheduler) Wait() {
	s.background.Wait()
}

// deliverAsync runs one delivery in the background. At most MaxBackground
// run at once; the rest queue on the semaphore. It reports false, starting
// nothing, once Stop has begun: the state check and the WaitGroup Add share
// s.mu so Stop's Wait never races a late Add.
func (s *Scheduler) deliverAsync() bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}
	s.background.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.finalTimeout)
		defer cancel()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.Printf("[WARN] flush: background delivery skipped: %v", err)
			return
		}
		defer s.sem.Release(1)

		_, _ = s.deliverer.Deliver(ctx)
	}()
	return true
}
