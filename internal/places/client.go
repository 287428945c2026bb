// Package places looks up points of interest for a located city through
// the Google Places text search API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/config"
	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/pkg/circuitbreaker"
)

const defaultPlaceType = "tourist_attraction"

// Client queries the Places text search endpoint. Lookups run behind a
// circuit breaker so a failing places API degrades fast.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxResults int
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
}

// NewClient creates a places client from configuration.
func NewClient(cfg config.PlacesConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults < 1 {
		maxResults = 15
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:         "places",
			FailureLimit: 5,
			Cooldown:     30 * time.Second,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		logger: logger,
	}
}

type searchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           float64  `json:"rating"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// LookupPlaces finds tourist attractions in the located city. Satisfies
// the pipeline's place provider contract.
func (c *Client) LookupPlaces(ctx context.Context, city, country string) ([]domain.Place, error) {
	target := city
	if country != "" {
		target = city + ", " + country
	}
	query := defaultPlaceType + " in " + target

	return circuitbreaker.Do(ctx, c.breaker, func() ([]domain.Place, error) {
		return c.search(ctx, query)
	})
}

func (c *Client) search(ctx context.Context, query string) ([]domain.Place, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/textsearch/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build places request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read places response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode places response: %w", err)
	}
	// ZERO_RESULTS is a valid empty answer, not a failure.
	if decoded.Status != "OK" && decoded.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places returned status %s: %s", decoded.Status, decoded.ErrorMessage)
	}

	places := make([]domain.Place, 0, len(decoded.Results))
	for i, r := range decoded.Results {
		if i >= c.maxResults {
			break
		}
		places = append(places, domain.Place{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Rating:  r.Rating,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Types:   r.Types,
		})
	}

	c.logger.Debug("places lookup completed",
		zap.String("query", query),
		zap.Int("results", len(places)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return places, nil
}
