package identifier

import (
	"context"
	"fmt"
	"log"
	"time"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/pkg/types"
)

// State is a step of the acquisition state machine.
type State int

const (
	StateIdle State = iota
	StateCacheCheck
	StateKeyFetch
	StateFingerprintAttempt
	StateCacheWrite
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCacheCheck:
		return "cache-check"
	case StateKeyFetch:
		return "key-fetch"
	case StateFingerprintAttempt:
		return "fingerprint-attempt"
	case StateCacheWrite:
		return "cache-write"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recorder receives the events acquisition produces.
type Recorder interface {
	Record(e types.Event)
}

// Outcome is the result of one run. State is the last step reached before
// Done: cache-check on a hit, key-fetch when the exchange failed,
// fingerprint-attempt when every attempt failed, cache-write on success.
type Outcome struct {
	State    State
	ID       string
	Cached   bool
	Attempts int
	Err      error
}

// Config holds Acquirer parameters.
type Config struct {
	KeyAttempts int
	MaxRetries  int
	RetryDelay  time.Duration
	TTL         time.Duration

	// OnIdentity is called with every identifier found, cached or fresh.
	OnIdentity func(id string)
	Logger     *log.Logger

	// Now and Sleep are replaceable in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Acquirer walks the acquisition state machine. It never returns an error to
// its caller; failures become LOG events and Outcome.Err.
type Acquirer struct {
	cache    *Cache
	keys     KeyFetcher
	provider FingerprintProvider
	recorder Recorder
	cfg      Config
}

// NewAcquirer creates an acquirer.
func NewAcquirer(cache *Cache, keys KeyFetcher, provider FingerprintProvider, recorder Recorder, cfg Config) *Acquirer {
	if cfg.KeyAttempts <= 0 {
		cfg.KeyAttempts = 3
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Acquirer{cache: cache, keys: keys, provider: provider, recorder: recorder, cfg: cfg}
}

// Go runs the acquisition on its own goroutine. The channel yields exactly
// one Outcome and is then closed.
func (a *Acquirer) Go(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- a.Run(ctx)
	}()
	return ch
}

// Run executes the state machine to completion.
func (a *Acquirer) Run(ctx context.Context) Outcome {
	if id, ok := a.cachedID(ctx); ok {
		return Outcome{State: StateCacheCheck, ID: id, Cached: true}
	}
	return a.remoteID(ctx)
}

// cachedID checks the persisted entry and records a cached result on a hit.
func (a *Acquirer) cachedID(ctx context.Context) (string, bool) {
	entry, err := a.cache.Load(ctx)
	if err != nil {
		a.cfg.Logger.Printf("[WARN] identifier: cache read failed, treating as miss: %v", err)
		return "", false
	}
	if !entry.Valid(a.cfg.Now()) {
		return "", false
	}

	a.recorder.Record(types.NewIdentifierEvent(entry.Key, true))
	a.identify(entry.Key)
	return entry.Key, true
}

// remoteID fetches the access key and then calls the provider with retries.
func (a *Acquirer) remoteID(ctx context.Context) Outcome {
	out := Outcome{State: StateKeyFetch}

	key, err := a.fetchKey(ctx)
	if err != nil {
		out.Err = err
		a.recorder.Record(types.NewLogEvent(types.LevelError, err.Error()))
		return out
	}

	out.State = StateFingerprintAttempt
	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		out.Attempts = attempt
		id, err := a.provider.Identify(ctx, key)
		if err == nil {
			return a.store(ctx, out, id)
		}
		lastErr = err

		if attempt == a.cfg.MaxRetries {
			break
		}
		if err := a.cfg.Sleep(ctx, a.cfg.RetryDelay); err != nil {
			out.Err = err
			return out
		}
	}

	out.Err = beaconerrors.NewAcquisitionError(beaconerrors.CodeMaxRetries,
		fmt.Sprintf("fingerprint reached maximum retries (%d)", a.cfg.MaxRetries), lastErr).
		WithDetails(map[string]interface{}{"max_retries": a.cfg.MaxRetries})
	a.recorder.Record(types.NewLogEvent(types.LevelError,
		fmt.Sprintf("fingerprint reached maximum retries (%d): %v", a.cfg.MaxRetries, lastErr)))
	return out
}

// fetchKey runs up to KeyAttempts exchanges back to back.
func (a *Acquirer) fetchKey(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.cfg.KeyAttempts; attempt++ {
		key, err := a.keys.FetchKey(ctx)
		if err == nil {
			return key, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("key exchange failed after %d attempts: %w", a.cfg.KeyAttempts, lastErr)
}

// store records the fresh identifier and persists it.
func (a *Acquirer) store(ctx context.Context, out Outcome, id string) Outcome {
	a.recorder.Record(types.NewIdentifierEvent(id, false))
	a.identify(id)

	out.State = StateCacheWrite
	out.ID = id
	entry := CacheEntry{Key: id, Exp: a.cfg.Now().Add(a.cfg.TTL).UnixMilli()}
	if err := a.cache.Save(ctx, entry); err != nil {
		a.cfg.Logger.Printf("[WARN] identifier: failed to persist identifier: %v", err)
	}
	return out
}

func (a *Acquirer) identify(id string) {
	if a.cfg.OnIdentity != nil {
		a.cfg.OnIdentity(id)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
