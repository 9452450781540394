package identifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// KeyFetcher obtains the provider access key. One call is one attempt.
type KeyFetcher interface {
	FetchKey(ctx context.Context) (string, error)
}

// keyResponse is the SDK backend reply.
type keyResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// KeyExchange calls GET {baseURL}/a/{siteKey}.
type KeyExchange struct {
	baseURL string
	siteKey string
	client  *http.Client
}

// NewKeyExchange creates a key exchange client. A nil client gets a default
// with the given timeout.
func NewKeyExchange(baseURL, siteKey string, client *http.Client, timeout time.Duration) *KeyExchange {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &KeyExchange{
		baseURL: strings.TrimRight(baseURL, "/"),
		siteKey: siteKey,
		client:  client,
	}
}

// FetchKey performs one exchange. Transport errors, non-200 responses, a
// status other than "OK" and an undecodable key all fail the attempt.
func (k *KeyExchange) FetchKey(ctx context.Context) (string, error) {
	endpoint := k.baseURL + "/a/" + url.PathEscape(k.siteKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyFetchFailed, "failed to build key request", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyFetchFailed, "key request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyFetchFailed, "failed to read key response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyFetchFailed,
			fmt.Sprintf("key endpoint returned %d", resp.StatusCode), nil)
	}

	var kr keyResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyRejected, "malformed key response", err)
	}
	if kr.Status != "OK" {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyRejected,
			fmt.Sprintf("key endpoint status %q", kr.Status), nil)
	}
	key, err := base64.StdEncoding.DecodeString(kr.Key)
	if err != nil || len(key) == 0 {
		return "", beaconerrors.NewKeyExchangeError(beaconerrors.CodeKeyRejected, "key is not valid base64", err)
	}
	return string(key), nil
}
