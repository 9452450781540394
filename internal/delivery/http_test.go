package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/beacon/internal/config"
	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/pkg/types"
)

type capturedRequest struct {
	header http.Header
	body   []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{header: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func samplePayload(t *testing.T) *Payload {
	t.Helper()
	id, err := types.NewBatchIDGenerator().Next()
	require.NoError(t, err)
	return BuildPayload(Metadata{SiteID: "site-1"}, testSnapshot(), id, []types.Event{
		types.NewEvent(types.EventTouch, "a"),
		types.NewEvent(types.EventBlur, "b"),
	})
}

func decodePayload(t *testing.T, body []byte) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func TestHTTPTransport_PlainJSON(t *testing.T) {
	srv, captured := newCollector(t, http.StatusOK)
	tr, err := NewHTTPTransport(srv.URL, HTTPOptions{})
	require.NoError(t, err)
	defer tr.Close()

	p := samplePayload(t)
	require.NoError(t, tr.Send(context.Background(), p))

	reqs := captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].header.Get("Content-Type"))
	assert.Equal(t, "site-1", reqs[0].header.Get("X-Beacon-Site"))
	assert.Empty(t, reqs[0].header.Get("Content-Encoding"))

	got := decodePayload(t, reqs[0].body)
	assert.Equal(t, p.ResponseID, got.ResponseID)
	require.Len(t, got.Events, 2)
	assert.Equal(t, types.EventBlur, got.Events[1].Type)
}

func TestHTTPTransport_Compression(t *testing.T) {
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	tests := []struct {
		compression string
		encoding    string
		decode      func([]byte) ([]byte, error)
	}{
		{config.CompressionSnappy, "snappy", func(b []byte) ([]byte, error) { return snappy.Decode(nil, b) }},
		{config.CompressionZstd, "zstd", func(b []byte) ([]byte, error) { return dec.DecodeAll(b, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.compression, func(t *testing.T) {
			srv, captured := newCollector(t, http.StatusAccepted)
			tr, err := NewHTTPTransport(srv.URL, HTTPOptions{Compression: tt.compression})
			require.NoError(t, err)

			p := samplePayload(t)
			require.NoError(t, tr.Send(context.Background(), p))

			reqs := captured()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.encoding, reqs[0].header.Get("Content-Encoding"))

			plain, err := tt.decode(reqs[0].body)
			require.NoError(t, err)
			assert.Equal(t, p.ResponseID, decodePayload(t, plain).ResponseID)
		})
	}
}

func TestHTTPTransport_BadStatus(t *testing.T) {
	srv, _ := newCollector(t, http.StatusServiceUnavailable)
	tr, err := NewHTTPTransport(srv.URL, HTTPOptions{})
	require.NoError(t, err)

	err = tr.Send(context.Background(), samplePayload(t))
	require.Error(t, err)
	assert.Equal(t, beaconerrors.ErrCategoryDelivery, beaconerrors.GetCategory(err))
	assert.Equal(t, beaconerrors.CodeBadStatus, beaconerrors.GetCode(err))
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(url, HTTPOptions{})
	require.NoError(t, err)

	err = tr.Send(context.Background(), samplePayload(t))
	require.Error(t, err)
	assert.Equal(t, beaconerrors.CodeTransportFailed, beaconerrors.GetCode(err))
	assert.True(t, beaconerrors.IsRetryable(err))
}

func TestNewHTTPTransport_Validation(t *testing.T) {
	_, err := NewHTTPTransport("", HTTPOptions{})
	assert.Error(t, err)

	_, err = NewHTTPTransport("http://localhost", HTTPOptions{Compression: "brotli"})
	assert.Error(t, err)
}
