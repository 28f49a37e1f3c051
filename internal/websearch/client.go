// internal/websearch/client.go
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/database"
	httpclient "insurance-assistant/internal/common/http"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/metrics"
	"insurance-assistant/internal/models"
)

const (
	searchPath        = "/v1/search"
	defaultMaxResults = 10
	defaultCacheTTL   = 5 * time.Minute
)

var (
	ErrWebSearchTimeout = errors.New("WEB_SEARCH_TIMEOUT")
	ErrWebSearchFailed  = errors.New("WEB_SEARCH_FAILED")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Client queries the external web-search provider. Results are a pure
// augmentation of dataset answers, so every failure path degrades to an
// empty list instead of surfacing to the caller. Responses are cached in
// Redis when a client is provided and caching is enabled.
type Client struct {
	cfg    config.WebSearchConfig
	http   *httpclient.Client
	redis  *database.RedisClient
	logger logger.Logger
}

// NewClient builds a web-search client. redis may be nil, which disables
// the response cache regardless of configuration.
func NewClient(cfg config.WebSearchConfig, redis *database.RedisClient, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		redis:  redis,
		logger: log.WithFields(map[string]interface{}{"component": "websearch"}),
	}
}

// Search runs the provider query built from the raw text plus collected
// profile qualifiers. It never returns an error: timeouts and provider
// failures are logged and yield an empty result list so the turn proceeds
// with dataset results only.
func (c *Client) Search(ctx context.Context, queryText string, entities map[string]interface{}, intent models.Intent) []models.WebResult {
	query := buildQuery(queryText, entities, intent)

	if cached, ok := c.cachedResults(ctx, query); ok {
		metrics.WebSearchRequests.WithLabelValues("cache_hit").Inc()
		return cached
	}

	results, err := c.fetch(ctx, query)
	if err != nil {
		outcome := "failure"
		if errors.Is(err, ErrWebSearchTimeout) {
			outcome = "timeout"
		}
		metrics.WebSearchRequests.WithLabelValues(outcome).Inc()
		c.logger.Warn("web search failed, continuing with dataset results only", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil
	}

	metrics.WebSearchRequests.WithLabelValues("success").Inc()
	c.storeResults(ctx, query, results)

	c.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
	})
	return results
}

func (c *Client) fetch(ctx context.Context, query string) ([]models.WebResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrWebSearchFailed, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrWebSearchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned %d", ErrWebSearchFailed, resp.StatusCode)
	}

	// The provider nests hits under results.web alongside news and metadata
	// blocks we do not consume.
	var apiResponse struct {
		Results struct {
			Web []models.WebResult `json:"web"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrWebSearchFailed, err)
	}

	results := apiResponse.Results.Web
	max := c.cfg.MaxResults
	if max <= 0 {
		max = defaultMaxResults
	}
	if len(results) > max {
		results = results[:max]
	}
	return results, nil
}

func (c *Client) searchURL(query string) string {
	params := url.Values{}
	params.Add("query", query)

	base, err := url.Parse(c.cfg.BaseURL + searchPath)
	if err != nil {
		// a malformed base URL still produces a request; the transport
		// rejects it and the turn degrades to dataset results
		c.logger.Warn("web search base URL is malformed", map[string]interface{}{
			"baseUrl": c.cfg.BaseURL,
			"error":   err.Error(),
		})
		return c.cfg.BaseURL + searchPath + "?" + params.Encode()
	}
	base.RawQuery = params.Encode()
	return base.String()
}

func (c *Client) cachedResults(ctx context.Context, query string) ([]models.WebResult, bool) {
	if !c.cfg.CacheEnabled || c.redis == nil {
		return nil, false
	}
	val, err := c.redis.Get(ctx, cacheKeyFor(query))
	if err != nil {
		return nil, false
	}
	var results []models.WebResult
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *Client) storeResults(ctx context.Context, query string, results []models.WebResult) {
	if !c.cfg.CacheEnabled || c.redis == nil || len(results) == 0 {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	ttl := time.Duration(c.cfg.CacheTTL) * time.Millisecond
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := c.redis.Set(ctx, cacheKeyFor(query), data, ttl); err != nil {
		c.logger.Debug("web search cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func cacheKeyFor(query string) string {
	return "websearch:" + query
}

// buildQuery appends profile qualifiers to the raw query for the intents
// where personal context sharpens provider results. Other intents search
// on the raw text alone.
func buildQuery(queryText string, entities map[string]interface{}, intent models.Intent) string {
	query := queryText

	switch intent {
	case models.IntentPlanInfo, models.IntentComparison, models.IntentProviderNetwork:
		if age := entityText(entities, "age"); age != "" {
			query += " for " + age + " year old"
		}
		if income := entityText(entities, "income"); income != "" {
			query += " with annual income $" + income
		}
		if county := entityText(entities, "county"); county != "" {
			query += " in " + county + " county"
		}
	}

	return whitespacePattern.ReplaceAllString(strings.TrimSpace(query), " ")
}

// entityText renders an entity value the way it reads in a sentence.
// Whole-number floats drop their fractional part so an age of 35 does not
// search as "35.0".
func entityText(entities map[string]interface{}, key string) string {
	v, ok := entities[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
