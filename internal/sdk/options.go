package sdk

import (
	"log"

	"github.com/arkilian/beacon/internal/buffer"
	"github.com/arkilian/beacon/internal/delivery"
	"github.com/arkilian/beacon/internal/identifier"
	"github.com/arkilian/beacon/internal/kvstore"
	"github.com/arkilian/beacon/pkg/types"
)

// Option customizes New.
type Option func(*options)

type options struct {
	transport  delivery.Transport
	store      kvstore.Store
	provider   identifier.FingerprintProvider
	keys       identifier.KeyFetcher
	sensors    buffer.SensorSource
	logger     *log.Logger
	device     types.SessionFields
	acquireCfg func(*identifier.Config)
}

// WithTransport replaces the transport built from config.
func WithTransport(t delivery.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithStore replaces the identifier cache store built from config.
func WithStore(s kvstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithFingerprintProvider replaces the HTTP fingerprint provider.
func WithFingerprintProvider(p identifier.FingerprintProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithKeyExchange replaces the HTTP key exchange.
func WithKeyExchange(k identifier.KeyFetcher) Option {
	return func(o *options) { o.keys = k }
}

// WithSensorSource replaces the built-in sensor holder.
func WithSensorSource(s buffer.SensorSource) Option {
	return func(o *options) { o.sensors = s }
}

// WithLogger routes every component's log lines to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDeviceInfo sets the device fields carried by each session start event.
// SessionID and ClientID are filled in by the SDK.
func WithDeviceInfo(fields types.SessionFields) Option {
	return func(o *options) { o.device = fields }
}

// withAcquirerConfig lets tests swap the clock and sleep of the acquirer.
func withAcquirerConfig(fn func(*identifier.Config)) Option {
	return func(o *options) { o.acquireCfg = fn }
}
