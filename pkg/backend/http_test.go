package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAdapterChatCompletionShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	a, err := NewHTTPAdapter(HTTPConfig{BackendID: "x", BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	text, err := a.Invoke(context.Background(), "hi", "some-model", InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestHTTPAdapterReasoningSchemaSelectedByModelPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":"reasoned answer"}`))
	}))
	defer srv.Close()

	a, err := NewHTTPAdapter(HTTPConfig{BackendID: "x", BaseURL: srv.URL, ReasoningModelPrefixes: []string{"o1-"}})
	require.NoError(t, err)

	text, err := a.Invoke(context.Background(), "hi", "o1-preview", InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "reasoned answer", text)
}

func TestHTTPAdapterRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("overloaded, try again"))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok on retry"}}]}`))
	}))
	defer srv.Close()

	a, err := NewHTTPAdapter(HTTPConfig{BackendID: "x", BaseURL: srv.URL})
	require.NoError(t, err)
	a.cfg.MaxRetries = 1

	text, err := a.Invoke(context.Background(), "hi", "m", InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok on retry", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAdapterFailsImmediatelyOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request: missing field"))
	}))
	defer srv.Close()

	a, err := NewHTTPAdapter(HTTPConfig{BackendID: "x", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), "hi", "m", InvokeOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewHTTPAdapterRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPAdapter(HTTPConfig{BackendID: "x"})
	require.Error(t, err)
}
