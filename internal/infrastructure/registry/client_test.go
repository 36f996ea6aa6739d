package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.RegistryConfig{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		Timeout:         2 * time.Second,
		RequestInterval: 0, // no pacing in unit tests
		MaxSynonyms:     10,
	}
	return NewClient(cfg, nil, prometheus.New(), logging.NewNopLogger()), srv
}

func registryHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		if r.URL.Query().Get("q") == "GLYCERINE" {
			w.Write([]byte(`{"count":1,"results":[{"rn":"56-81-5"}]}`))
			return
		}
		w.Write([]byte(`{"count":0,"results":[]}`))
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "56-81-5", r.URL.Query().Get("cas_rn"))
		w.Write([]byte(`{"synonyms":["Glycerol","GLYCERIN","1,2,3-Propanetriol"]}`))
	})
	return mux
}

func TestSearchAndDetail_Found(t *testing.T) {
	c, _ := newTestClient(t, registryHandler(t))

	res, err := c.SearchAndDetail(context.Background(), "GLYCERINE")
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "Glycerol|GLYCERIN|1,2,3-Propanetriol", res.Synonyms)
}

func TestSearchAndDetail_NoMatch(t *testing.T) {
	c, _ := newTestClient(t, registryHandler(t))

	res, err := c.SearchAndDetail(context.Background(), "UNOBTAINIUM")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestSearchAndDetail_ShortTermSkipped(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	res, err := c.SearchAndDetail(context.Background(), "AB")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSearchAndDetail_SynonymCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":1,"results":[{"rn":"50-00-0"}]}`))
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"synonyms":["a","b","c","d","e","f","g","h","i","j","k","l"]}`))
	})
	c, _ := newTestClient(t, mux)

	res, err := c.SearchAndDetail(context.Background(), "FORMALDEHYDE")
	require.NoError(t, err)
	assert.Equal(t, "a|b|c|d|e|f|g|h|i|j", res.Synonyms)
}

func TestSearchAndDetail_UpstreamErrorIsReturned(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.SearchAndDetail(context.Background(), "GLYCERINE")
	assert.Error(t, err)
}

func TestSearchAndDetail_DetailFailureDegradesToIdentifierOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":1,"results":[{"rn":"56-81-5"}]}`))
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c, _ := newTestClient(t, mux)

	res, err := c.SearchAndDetail(context.Background(), "GLYCERINE")
	require.NoError(t, err)
	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "N/A", res.Synonyms)
}

func TestRateGate_SpacesCalls(t *testing.T) {
	g := &rateGate{interval: 50 * time.Millisecond}
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.wait(ctx))
	require.NoError(t, g.wait(ctx))
	require.NoError(t, g.wait(ctx))
	elapsed := time.Since(start)

	// First call passes immediately; the next two each wait one interval.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestRateGate_ContextCancellation(t *testing.T) {
	g := &rateGate{interval: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, g.wait(ctx))
	cancel()
	assert.ErrorIs(t, g.wait(ctx), context.Canceled)
}
