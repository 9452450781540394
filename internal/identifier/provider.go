package identifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// FingerprintProvider returns a device identifier for the given access key.
// One call is one attempt; retries belong to the Acquirer.
type FingerprintProvider interface {
	Identify(ctx context.Context, apiKey string) (string, error)
}

// ProviderFunc adapts a function to FingerprintProvider.
type ProviderFunc func(ctx context.Context, apiKey string) (string, error)

// Identify calls f.
func (f ProviderFunc) Identify(ctx context.Context, apiKey string) (string, error) {
	return f(ctx, apiKey)
}

// HTTPProvider calls GET {endpoint}?apiKey=... and reads {"visitorId": "..."}.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

// NewHTTPProvider creates an HTTP fingerprint provider.
func NewHTTPProvider(endpoint string, client *http.Client, timeout time.Duration) *HTTPProvider {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{endpoint: endpoint, client: client}
}

// Identify performs one provider call.
func (p *HTTPProvider) Identify(ctx context.Context, apiKey string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "invalid provider endpoint", err)
	}
	q := u.Query()
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "failed to build provider request", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "provider request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "failed to read provider response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed,
			fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	}

	var out struct {
		VisitorID string `json:"visitorId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "malformed provider response", err)
	}
	if out.VisitorID == "" {
		return "", beaconerrors.NewAcquisitionError(beaconerrors.CodeFingerprintFailed, "provider returned an empty visitorId", nil)
	}
	return out.VisitorID, nil
}
