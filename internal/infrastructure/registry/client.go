// Package registry implements the client for the upstream chemical registry
// search/detail API.  The upstream enforces a fair-use rate limit, so every
// request passes through a process-wide gate that spaces calls by a fixed
// interval; results are cached in Redis to avoid repeat lookups entirely.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/infrastructure/database/redis"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/pkg/errors"
)

// minTermLength filters out terms too short to produce a meaningful match.
const minTermLength = 3

// Result is the outcome of one search-and-detail lookup.  A zero Result means
// the registry has no entry for the term.
type Result struct {
	Identifier string `json:"identifier"`
	Synonyms   string `json:"synonyms"` // "|"-joined, capped, or material.ValueNA
}

// Found reports whether the lookup matched a registry entry.
func (r Result) Found() bool { return r.Identifier != "" }

// rateGate serializes upstream calls with a fixed minimum spacing.  All
// lookups in the process share one gate, so parallel callers still respect
// the upstream contract.
type rateGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	var delay time.Duration
	if g.next.After(now) {
		delay = g.next.Sub(now)
		g.next = g.next.Add(g.interval)
	} else {
		g.next = now.Add(g.interval)
	}
	g.mu.Unlock()

	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client performs registry lookups.  Safe for concurrent use.
type Client struct {
	cfg     config.RegistryConfig
	httpc   *http.Client
	gate    *rateGate
	cache   redis.Cache // optional; nil disables caching
	metrics *prometheus.Metrics
	log     logging.Logger
}

// NewClient constructs a registry client.  cache may be nil.
func NewClient(cfg config.RegistryConfig, cache redis.Cache, metrics *prometheus.Metrics, log logging.Logger) *Client {
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		gate:    &rateGate{interval: cfg.RequestInterval},
		cache:   cache,
		metrics: metrics,
		log:     log.Named("registry"),
	}
}

type searchResponse struct {
	Count   int `json:"count"`
	Results []struct {
		RN string `json:"rn"`
	} `json:"results"`
}

type detailResponse struct {
	Synonyms []string `json:"synonyms"`
}

// SearchAndDetail resolves a search term to a registry identifier and its
// synonym list.  A term with no registry match returns a zero Result and nil
// error; transport and payload failures return an error the caller treats as
// "no result for this trial".
func (c *Client) SearchAndDetail(ctx context.Context, term string) (Result, error) {
	term = strings.TrimSpace(term)
	if len(term) < minTermLength {
		return Result{}, nil
	}

	if c.cache == nil {
		return c.lookup(ctx, term)
	}

	key := "registry:" + strings.ToLower(term)
	var cached Result
	loaded := false
	err := c.cache.GetOrSet(ctx, key, &cached, 0, func(ctx context.Context) (interface{}, error) {
		loaded = true
		c.metrics.RegistryCacheMisses.Inc()
		res, lookupErr := c.lookup(ctx, term)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if !res.Found() {
			// Negative results get the cache's short null TTL.
			return nil, nil
		}
		return res, nil
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return Result{}, nil
		}
		return Result{}, err
	}
	if !loaded {
		c.metrics.RegistryCacheHits.Inc()
	}
	return cached, nil
}

// lookup performs the two upstream calls: search for the identifier, then
// fetch its synonym list.  Both pass the rate gate.
func (c *Client) lookup(ctx context.Context, term string) (Result, error) {
	if err := c.gate.wait(ctx); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeTimeout, "registry rate gate interrupted")
	}

	var search searchResponse
	if err := c.getJSON(ctx, "/search", url.Values{"q": {term}}, &search); err != nil {
		c.metrics.RegistryRequestsTotal.WithLabelValues("search", "error").Inc()
		return Result{}, err
	}
	if search.Count == 0 || len(search.Results) == 0 {
		c.metrics.RegistryRequestsTotal.WithLabelValues("search", "miss").Inc()
		return Result{}, nil
	}
	c.metrics.RegistryRequestsTotal.WithLabelValues("search", "hit").Inc()
	rn := search.Results[0].RN

	if err := c.gate.wait(ctx); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeTimeout, "registry rate gate interrupted")
	}

	synonyms := material.ValueNA
	var detail detailResponse
	if err := c.getJSON(ctx, "/detail", url.Values{"cas_rn": {rn}}, &detail); err != nil {
		// The identifier alone is still useful; degrade to no synonyms.
		c.metrics.RegistryRequestsTotal.WithLabelValues("detail", "error").Inc()
		c.log.Warn("registry detail fetch failed", logging.String("rn", rn), logging.Err(err))
	} else {
		c.metrics.RegistryRequestsTotal.WithLabelValues("detail", "hit").Inc()
		if len(detail.Synonyms) > 0 {
			capped := detail.Synonyms
			if len(capped) > c.cfg.MaxSynonyms {
				capped = capped[:c.cfg.MaxSynonyms]
			}
			synonyms = strings.Join(capped, "|")
		}
	}

	return Result{Identifier: rn, Synonyms: synonyms}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRegistryUnavailable, "building registry request")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRegistryUnavailable, "registry request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeRegistryUnavailable,
			fmt.Sprintf("registry returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeRegistryBadPayload, "decoding registry response")
	}
	return nil
}
