// Package websearch looks up troubleshooting pages through the SerpAPI
// Google search endpoint.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
)

const (
	DefaultEndpoint = "https://serpapi.com/search.json"
	DefaultResults  = 5
	DefaultTimeout  = 10 * time.Second

	queryPrefix = "how to fix "
	querySuffix = " troubleshooting solution"
)

// ErrNoAPIKey is returned when the client is built without an API key.
var ErrNoAPIKey = errors.New("SerpAPI key is required")

// Config holds configuration for the search client.
type Config struct {
	APIKey   string
	Endpoint string
	Results  int
	Timeout  time.Duration
}

// Client queries SerpAPI.
type Client struct {
	apiKey     string
	endpoint   string
	results    int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a search client. Zero values fall back to the defaults.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Results <= 0 {
		cfg.Results = DefaultResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		results:    cfg.Results,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// SearchWeb returns up to the configured number of organic results for a problem.
func (c *Client) SearchWeb(ctx context.Context, problem string) ([]models.WebResult, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return []models.WebResult{}, nil
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", searchQuery(problem))
	params.Set("num", strconv.Itoa(c.results))
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed search response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("search error: %s", parsed.Error)
	}

	results := make([]models.WebResult, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		if len(results) == c.results {
			break
		}
		results = append(results, models.WebResult{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.Link,
		})
	}

	c.logger.Debug("web search completed",
		zap.String("query", problem),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// searchQuery frames a problem as a fix-seeking web query.
func searchQuery(problem string) string {
	return queryPrefix + problem + querySuffix
}
