package delivery

import (
	"context"
	"log"
	"time"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/internal/observability"
	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

// Drainer is the buffer side of a delivery.
type Drainer interface {
	DrainAndNormalize() []types.Event
}

// Result describes one Deliver call.
type Result struct {
	Events     int
	ResponseID string
	Sent       bool
}

// ClientConfig holds Client construction parameters.
type ClientConfig struct {
	Metadata Metadata
	// Timeout bounds each Send; 0 leaves the caller's deadline alone
	Timeout time.Duration
	Stats   *observability.PipelineStats
	Logger  *log.Logger
}

// Client drains the buffer and sends each batch exactly once. A failed batch
// is logged and discarded; events are never put back.
type Client struct {
	drainer   Drainer
	session   *session.State
	transport Transport
	meta      Metadata
	timeout   time.Duration
	ids       *types.BatchIDGenerator
	stats     *observability.PipelineStats
	logger    *log.Logger
}

// NewClient creates a delivery client.
func NewClient(drainer Drainer, sess *session.State, transport Transport, cfg ClientConfig) *Client {
	if cfg.Stats == nil {
		cfg.Stats = observability.NewPipelineStats()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{
		drainer:   drainer,
		session:   sess,
		transport: transport,
		meta:      cfg.Metadata,
		timeout:   cfg.Timeout,
		ids:       types.NewBatchIDGenerator(),
		stats:     cfg.Stats,
		logger:    cfg.Logger,
	}
}

// Deliver drains the buffer and sends one batch. An empty drain makes no
// network call.
func (c *Client) Deliver(ctx context.Context) (Result, error) {
	events := c.drainer.DrainAndNormalize()
	if len(events) == 0 {
		c.stats.RecordBatch(0, nil)
		return Result{}, nil
	}

	id, err := c.ids.Next()
	if err != nil {
		err = beaconerrors.NewInternalError("failed to generate response id", err)
		c.stats.RecordBatch(len(events), err)
		c.logger.Printf("[ERROR] delivery: dropping %d events: %v", len(events), err)
		return Result{Events: len(events)}, err
	}

	payload := BuildPayload(c.meta, c.session.Snapshot(), id, events)
	result := Result{Events: len(events), ResponseID: payload.ResponseID}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err = c.transport.Send(ctx, payload)
	c.stats.RecordBatch(len(events), err)
	if err != nil {
		c.logger.Printf("[ERROR] delivery: batch %s with %d events discarded: %v", payload.ResponseID, len(events), err)
		return result, err
	}

	result.Sent = true
	return result, nil
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
