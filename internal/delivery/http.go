package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// HTTPOptions configures HTTPTransport.
type HTTPOptions struct {
	Compression string
	Timeout     time.Duration
	Client      *http.Client
}

// HTTPTransport POSTs the JSON batch to the collector endpoint.
type HTTPTransport struct {
	endpoint    string
	compression string
	client      *http.Client
}

// NewHTTPTransport creates an HTTP transport for endpoint.
func NewHTTPTransport(endpoint string, opts HTTPOptions) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("delivery: collector endpoint is empty")
	}
	if _, _, err := compress(nil, opts.Compression); err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{
		endpoint:    endpoint,
		compression: opts.Compression,
		client:      client,
	}, nil
}

// Send posts p once. Non-2xx responses are errors.
func (t *HTTPTransport) Send(ctx context.Context, p *Payload) error {
	body, err := p.Marshal()
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeEncodeFailed, "failed to encode batch", err)
	}
	body, encoding, err := compress(body, t.compression)
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeEncodeFailed, "failed to compress batch", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Beacon-Site", p.SiteID)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "collector request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeBadStatus,
			fmt.Sprintf("collector returned %d", resp.StatusCode), nil).
			WithDetails(map[string]interface{}{"status": resp.StatusCode, "response_id": p.ResponseID})
	}
	return nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
