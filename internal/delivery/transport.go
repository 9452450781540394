package delivery

import (
	"context"
	"fmt"

	"github.com/arkilian/beacon/internal/config"
)

// Transport sends one encoded batch to the collector. A Transport is used by
// at most one Client but must tolerate concurrent Send calls, since
// background and blocking deliveries can overlap.
type Transport interface {
	Send(ctx context.Context, p *Payload) error
	Close() error
}

// NewTransport builds the transport named by cfg.Delivery.Transport.
func NewTransport(ctx context.Context, cfg *config.Config) (Transport, error) {
	d := cfg.Delivery
	switch d.Transport {
	case config.TransportHTTP, "":
		return NewHTTPTransport(d.Endpoint, HTTPOptions{
			Compression: d.Compression,
			Timeout:     d.Timeout,
		})
	case config.TransportGRPC:
		return NewGRPCTransport(d.Endpoint, d.GRPCInsecure)
	case config.TransportS3:
		return NewS3Transport(ctx, S3Options{
			Bucket:       d.S3.Bucket,
			Prefix:       d.S3.Prefix,
			Region:       d.S3.Region,
			Endpoint:     d.S3.Endpoint,
			UsePathStyle: d.S3.UsePathStyle,
		})
	case config.TransportFile:
		return NewFileTransport(d.Dir)
	default:
		return nil, fmt.Errorf("unknown delivery transport: %s", d.Transport)
	}
}
