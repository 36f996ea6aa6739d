// Package synonyms implements the secondary compound-synonym lookup used when
// the primary registry detail carries no usable descriptive name.
package synonyms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/pkg/errors"
)

// maxScanned caps how many synonyms are examined per compound.
const maxScanned = 50

// Client queries the PubChem PUG REST API for compound synonyms by registry
// identifier.
type Client struct {
	cfg     config.SynonymsConfig
	httpc   *http.Client
	metrics *prometheus.Metrics
	log     logging.Logger
}

// NewClient constructs a synonym lookup client.
func NewClient(cfg config.SynonymsConfig, metrics *prometheus.Metrics, log logging.Logger) *Client {
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
		log:     log.Named("synonyms"),
	}
}

type synonymsResponse struct {
	InformationList struct {
		Information []struct {
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

// DescriptiveName looks up an INCI-style descriptive name for a registry
// identifier.  Returns material.ValueNA when the service is disabled, the
// compound is unknown, or no synonym passes the descriptive-name heuristics.
func (c *Client) DescriptiveName(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if !c.cfg.Enabled || identifier == "" || identifier == material.IdentifierNotFound {
		return material.ValueNA, nil
	}

	u := fmt.Sprintf("%s/compound/name/%s/synonyms/JSON",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return material.ValueNA, errors.Wrap(err, errors.ErrCodeSynonymLookupFailed, "building synonym request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.metrics.SynonymLookupsTotal.WithLabelValues("error").Inc()
		return material.ValueNA, errors.Wrap(err, errors.ErrCodeSynonymLookupFailed, "synonym request failed")
	}
	defer resp.Body.Close()

	// PubChem answers 404 for unknown compounds; that is a miss, not a fault.
	if resp.StatusCode == http.StatusNotFound {
		c.metrics.SynonymLookupsTotal.WithLabelValues("miss").Inc()
		return material.ValueNA, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.SynonymLookupsTotal.WithLabelValues("error").Inc()
		return material.ValueNA, errors.New(errors.ErrCodeSynonymLookupFailed,
			fmt.Sprintf("synonym service returned status %d", resp.StatusCode))
	}

	var payload synonymsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.SynonymLookupsTotal.WithLabelValues("error").Inc()
		return material.ValueNA, errors.Wrap(err, errors.ErrCodeSynonymLookupFailed, "decoding synonym response")
	}

	for _, info := range payload.InformationList.Information {
		syns := info.Synonym
		if len(syns) > maxScanned {
			syns = syns[:maxScanned]
		}
		for _, syn := range syns {
			if material.LikelyDescriptiveName(syn) {
				c.metrics.SynonymLookupsTotal.WithLabelValues("hit").Inc()
				return syn, nil
			}
		}
	}
	c.metrics.SynonymLookupsTotal.WithLabelValues("miss").Inc()
	return material.ValueNA, nil
}
