// Package sdk wires the telemetry pipeline together and exposes the surface
// the host application calls.
package sdk

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/arkilian/beacon/internal/buffer"
	"github.com/arkilian/beacon/internal/config"
	"github.com/arkilian/beacon/internal/delivery"
	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/internal/flush"
	"github.com/arkilian/beacon/internal/identifier"
	"github.com/arkilian/beacon/internal/kvstore"
	"github.com/arkilian/beacon/internal/observability"
	"github.com/arkilian/beacon/internal/sensor"
	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/internal/watchdog"
	"github.com/arkilian/beacon/pkg/types"
)

// SDK is one instance of the pipeline. Build it once with New; Start and
// Stop may be called repeatedly.
type SDK struct {
	cfg    *config.Config
	logger *log.Logger
	device types.SessionFields

	// Shared state
	session *session.State
	stats   *observability.PipelineStats
	sensors *sensor.Latest // nil when the host supplied its own source

	// Pipeline components
	buffer    *buffer.EventBuffer
	watchdog  *watchdog.Watchdog
	client    *delivery.Client
	scheduler *flush.Scheduler
	monitor   *buffer.MemoryMonitor
	acquirer  *identifier.Acquirer
	store     kvstore.Store

	// Lifecycle
	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	acquisition <-chan identifier.Outcome
	wg          sync.WaitGroup
}

// New validates cfg and builds every component. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*SDK, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, beaconerrors.Wrap(beaconerrors.ErrCategoryValidation, beaconerrors.CodeInvalidConfig, "invalid configuration", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	s := &SDK{
		cfg:     cfg,
		logger:  o.logger,
		device:  o.device,
		session: session.New(),
		stats:   observability.NewPipelineStats(),
	}

	sensors := o.sensors
	if sensors == nil {
		s.sensors = sensor.NewLatest()
		sensors = s.sensors
	}

	s.buffer = buffer.New(s.session, buffer.Config{
		MaxEvents: cfg.Buffer.MaxEvents,
		Sensors:   sensors,
		Stats:     s.stats,
		Logger:    s.logger,
	})
	s.watchdog = watchdog.New(s.buffer, cfg.Inactivity.Timeout)
	s.monitor = buffer.NewMemoryMonitor(s.buffer, cfg.Buffer.LowMemoryHeapBytes, cfg.Buffer.MemoryCheckInterval)

	transport := o.transport
	if transport == nil {
		var err error
		transport, err = delivery.NewTransport(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transport: %w", err)
		}
	}
	s.client = delivery.NewClient(s.buffer, s.session, transport, delivery.ClientConfig{
		Metadata: delivery.Metadata{
			SiteID:      cfg.SiteID,
			Environment: cfg.Environment,
			JSVersion:   cfg.JSVersion,
			SDKVersion:  delivery.SDKVersion,
		},
		Timeout: cfg.Delivery.Timeout,
		Stats:   s.stats,
		Logger:  s.logger,
	})
	s.scheduler = flush.NewScheduler(s.client, flush.Config{
		Interval:      cfg.Flush.Interval,
		MaxBackground: cfg.Flush.MaxBackground,
		FinalTimeout:  cfg.Delivery.Timeout,
		Logger:        s.logger,
	})

	s.buffer.SetActivityObserver(s.watchdog)
	s.buffer.SetFlushRequester(s.scheduler)

	if cfg.Identifier.Enabled {
		if err := s.initAcquirer(o); err != nil {
			transport.Close()
			return nil, err
		}
	}

	return s, nil
}

// initAcquirer opens the cache store and builds the identifier acquirer.
func (s *SDK) initAcquirer(o *options) error {
	store := o.store
	if store == nil {
		switch s.cfg.Store.Type {
		case config.StoreMemory:
			store = kvstore.NewMemoryStore()
		default:
			sqlite, err := kvstore.NewSQLiteStore(s.cfg.Store.Path)
			if err != nil {
				return beaconerrors.NewStorageError(beaconerrors.CodeReadFailed, "failed to open identifier cache", err)
			}
			store = sqlite
		}
	}
	s.store = store

	ic := s.cfg.Identifier
	keys := o.keys
	if keys == nil {
		keys = identifier.NewKeyExchange(ic.KeyExchangeURL, s.cfg.SiteKey, nil, ic.RequestTimeout)
	}
	provider := o.provider
	if provider == nil {
		provider = identifier.NewHTTPProvider(ic.ProviderURL, nil, ic.RequestTimeout)
	}

	acfg := identifier.Config{
		KeyAttempts: ic.KeyExchangeAttempts,
		MaxRetries:  ic.MaxRetries,
		RetryDelay:  ic.RetryDelay,
		TTL:         ic.CacheTTL,
		OnIdentity:  s.session.SetIdentity,
		Logger:      s.logger,
	}
	if o.acquireCfg != nil {
		o.acquireCfg(&acfg)
	}
	s.acquirer = identifier.NewAcquirer(identifier.NewCache(store), keys, provider, s.buffer, acfg)
	return nil
}

// Start opens a session and starts the watchdog, the scheduler and the
// memory monitor. Identifier acquisition runs in the background; its
// failures never reach the caller.
func (s *SDK) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return beaconerrors.New(beaconerrors.ErrCategoryInternal, beaconerrors.CodeAlreadyStarted, "sdk is already running")
	}

	sessionID := s.session.Start()
	s.watchdog.Start()
	if err := s.scheduler.Start(ctx); err != nil {
		s.watchdog.Stop()
		s.session.Reset()
		return fmt.Errorf("failed to start flush scheduler: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitor.Run(runCtx)
	}()

	fields := s.device
	fields.SessionID = sessionID
	fields.ClientID = s.session.ClientID()
	s.buffer.Record(types.NewSessionStartEvent(fields))

	if s.acquirer != nil {
		// Not tied to ctx or Stop: a late result is dropped by the stopped buffer.
		s.acquisition = s.acquirer.Go(context.Background())
	} else {
		done := make(chan identifier.Outcome)
		close(done)
		s.acquisition = done
	}

	s.running = true
	s.logger.Printf("beacon: session %s started (site=%s, transport=%s)", sessionID, s.cfg.SiteID, s.cfg.Delivery.Transport)
	return nil
}

// Record validates e and hands it to the buffer. Only validation fails;
// capacity and delivery problems are absorbed by the pipeline.
func (s *SDK) Record(e types.Event) error {
	if err := e.Validate(); err != nil {
		s.stats.RecordDropped(observability.DropInvalid)
		return beaconerrors.Wrap(beaconerrors.ErrCategoryValidation, beaconerrors.CodeInvalidEvent, "invalid event", err)
	}
	s.buffer.Record(e)
	return nil
}

// SetUserID sets the host user identity shipped with every batch.
func (s *SDK) SetUserID(id string) error {
	return s.session.SetUserID(id)
}

// SetScreen records the current screen name.
func (s *SDK) SetScreen(name string) {
	s.session.SetScreen(name)
}

// Exclude stops recording events that target id.
func (s *SDK) Exclude(id string) {
	s.buffer.AddExclusion(id)
}

// Include re-admits id.
func (s *SDK) Include(id string) {
	s.buffer.RemoveExclusion(id)
}

// OnLowMemory is the host memory-pressure hook.
func (s *SDK) OnLowMemory() {
	s.buffer.SignalLowMemory()
}

// Flush delivers everything buffered now and waits for the result.
func (s *SDK) Flush(ctx context.Context) (delivery.Result, error) {
	return s.scheduler.Flush(ctx)
}

// Close ends the session: SESSION_CLOSE is recorded, which blocks on its own
// delivery, and then the SDK stops.
func (s *SDK) Close(ctx context.Context) error {
	if s.Running() {
		s.buffer.Record(types.NewEvent(types.EventSessionEnd, ""))
	}
	return s.Stop(ctx)
}

// Stop makes later Record calls no-ops, cancels the watchdog and performs
// exactly one final blocking delivery. An in-flight acquisition is left to
// finish on its own.
func (s *SDK) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.session.Stop()
	s.watchdog.Stop()
	if cancel != nil {
		cancel()
	}

	err := s.scheduler.Stop(ctx)
	if err != nil {
		s.logger.Printf("[WARN] beacon: flush scheduler stop: %v", err)
	}
	s.wg.Wait()
	s.session.Reset()

	snap := s.stats.Snapshot()
	s.logger.Printf("beacon: stopped (%d events delivered, %d lost)", snap.EventsDelivered, snap.EventsLost)
	return err
}

// Shutdown stops the SDK and releases the transport and the cache store.
// The SDK cannot be started again afterwards.
func (s *SDK) Shutdown(ctx context.Context) error {
	err := s.Close(ctx)
	if cerr := s.client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Running reports whether Start has been called without a matching Stop.
func (s *SDK) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the pipeline counters.
func (s *SDK) Stats() observability.Snapshot {
	return s.stats.Snapshot()
}

// AcquisitionDone yields the outcome of the acquisition launched by the most
// recent Start. With acquisition disabled the channel is already closed;
// before the first Start it is nil.
func (s *SDK) AcquisitionDone() <-chan identifier.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquisition
}

// Sensors returns the built-in sensor holder sensor producers update, or nil
// when WithSensorSource was used.
func (s *SDK) Sensors() *sensor.Latest {
	return s.sensors
}

// Session exposes the shared session state to lifecycle producers.
func (s *SDK) Session() *session.State {
	return s.session
}
