package identifier

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
	"github.com/arkilian/beacon/internal/kvstore"
)

func TestKeyExchange_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/a/site%20key", r.URL.EscapedPath())
		w.Write([]byte(`{"status":"OK","key":"` + base64.StdEncoding.EncodeToString([]byte("secret")) + `"}`))
	}))
	defer srv.Close()

	key, err := NewKeyExchange(srv.URL+"/", "site key", nil, time.Second).FetchKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
}

func TestKeyExchange_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"non-200", http.StatusInternalServerError, `{"status":"OK","key":"c2VjcmV0"}`, beaconerrors.CodeKeyFetchFailed},
		{"status not OK", http.StatusOK, `{"status":"DENIED"}`, beaconerrors.CodeKeyRejected},
		{"bad base64", http.StatusOK, `{"status":"OK","key":"***"}`, beaconerrors.CodeKeyRejected},
		{"malformed json", http.StatusOK, `{`, beaconerrors.CodeKeyRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewKeyExchange(srv.URL, "k", nil, time.Second).FetchKey(context.Background())
			require.Error(t, err)
			assert.Equal(t, beaconerrors.ErrCategoryKeyExchange, beaconerrors.GetCategory(err))
			assert.Equal(t, tt.wantCode, beaconerrors.GetCode(err))
		})
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"visitorId":"v-123"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/identify", nil, time.Second)
	id, err := p.Identify(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "v-123", id)

	_, err = p.Identify(context.Background(), "wrong")
	require.Error(t, err)
	assert.Equal(t, beaconerrors.CodeFingerprintFailed, beaconerrors.GetCode(err))
	assert.True(t, beaconerrors.IsRetryable(err))
}

func TestHTTPProvider_EmptyVisitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"visitorId":""}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, nil, time.Second).Identify(context.Background(), "k")
	assert.Error(t, err)
}

func TestAcquirer_EndToEndOverHTTP(t *testing.T) {
	var providerCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/a/site-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","key":"` + base64.StdEncoding.EncodeToString([]byte("fp-key")) + `"}`))
	})
	mux.HandleFunc("/identify", func(w http.ResponseWriter, r *http.Request) {
		providerCalls.Add(1)
		w.Write([]byte(`{"visitorId":"device-42"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := kvstore.NewMemoryStore()
	sink := &eventSink{}
	a := NewAcquirer(NewCache(store),
		NewKeyExchange(srv.URL, "site-1", srv.Client(), 0),
		NewHTTPProvider(srv.URL+"/identify", srv.Client(), 0),
		sink, Config{})

	out := <-a.Go(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, "device-42", out.ID)

	second := a.Run(context.Background())
	assert.True(t, second.Cached, "second start hits the cache")
	assert.Equal(t, int32(1), providerCalls.Load())
	assert.Len(t, sink.all(), 2)
}
