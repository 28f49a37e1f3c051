// internal/nlu/client.go
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"insurance-assistant/internal/common/config"
	httpclient "insurance-assistant/internal/common/http"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/metrics"
	"insurance-assistant/internal/models"
)

var (
	ErrIntentParsingFailed   = errors.New("INTENT_PARSING_FAILED")
	ErrIntentAPITimeout      = errors.New("INTENT_API_TIMEOUT")
	ErrClassifierUnavailable = errors.New("CLASSIFICATION_UNAVAILABLE")
)

const (
	classifyPath = "/api/nlu/classify"

	breakerMaxFailures  = 3
	breakerOpenTimeout  = 30 * time.Second
	breakerHalfOpenMax  = 2
	defaultCacheEntries = 128
)

// Client calls the external NLU oracle. Every call carries an explicit
// timeout and runs behind a circuit breaker; responses are validated against
// the closed intent enum before anything downstream sees them. Identical
// (query, context) pairs within a process are served from an LRU cache.
type Client struct {
	cfg     config.NLUConfig
	http    *httpclient.Client
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, models.Classification]
	logger  logger.Logger
}

// Context is the conversation state forwarded with each classification so
// the oracle can resolve bare answers ("35", "Travis") to the slot being
// asked for.
type Context struct {
	CollectedEntities map[string]interface{} `json:"collected_entities,omitempty"`
	PendingEntity     string                 `json:"pending_entity,omitempty"`
	IntentHint        string                 `json:"intent_hint,omitempty"`
}

// NewClient builds an oracle client. onCircuitOpen, which may be nil, runs
// whenever the breaker trips open.
func NewClient(cfg config.NLUConfig, log logger.Logger, onCircuitOpen func()) (*Client, error) {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheEntries
	}
	cache, err := lru.New[string, models.Classification](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: cache: %v", ErrIntentParsingFailed, err)
	}

	c := &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "nlu"}),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nlu-oracle",
		MaxRequests: breakerHalfOpenMax,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("oracle circuit state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
			if to == gobreaker.StateOpen && onCircuitOpen != nil {
				onCircuitOpen()
			}
		},
	})

	return c, nil
}

// Classify sends the turn text plus conversation context to the oracle and
// returns a validated classification. Timeout and transport failures are
// reported distinctly so callers can apply their fallback policy; a
// successful response with no entities is not an error.
func (c *Client) Classify(ctx context.Context, query string, convCtx Context) (*models.Classification, error) {
	key := cacheKey(query, convCtx)
	if cached, ok := c.cache.Get(key); ok {
		metrics.OracleRequests.WithLabelValues("cache_hit").Inc()
		result := cached
		return &result, nil
	}

	response, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, query, convCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.OracleRequests.WithLabelValues("circuit_open").Inc()
			return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
		if errors.Is(err, ErrIntentAPITimeout) {
			metrics.OracleRequests.WithLabelValues("timeout").Inc()
		} else {
			metrics.OracleRequests.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	classification := response.(*models.Classification)
	metrics.OracleRequests.WithLabelValues("success").Inc()

	c.cache.Add(key, *classification)
	return classification, nil
}

func (c *Client) call(ctx context.Context, query string, convCtx Context) (*models.Classification, error) {
	requestBody := map[string]interface{}{
		"query": query,
	}
	if convCtx.CollectedEntities != nil || convCtx.PendingEntity != "" || convCtx.IntentHint != "" {
		requestBody["context"] = convCtx
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+classifyPath, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.DoWithRetry(ctx, req, c.cfg.MaxRetries)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrIntentAPITimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrIntentParsingFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Intent     string                 `json:"intent"`
		Entities   map[string]interface{} `json:"entities"`
		Confidence float64                `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrIntentParsingFailed, err)
	}

	intent, ok := models.ParseIntent(apiResponse.Intent)
	if !ok {
		c.logger.Warn("oracle returned unknown intent, using fallback", map[string]interface{}{
			"intent": apiResponse.Intent,
			"query":  query,
		})
		intent = models.FallbackIntent
	}

	entities := apiResponse.Entities
	if entities == nil {
		entities = make(map[string]interface{})
	}

	classification := &models.Classification{
		Intent:     intent,
		Entities:   entities,
		Confidence: apiResponse.Confidence,
	}

	c.logger.Info("query classified", map[string]interface{}{
		"intent":      intent,
		"confidence":  apiResponse.Confidence,
		"entityCount": len(entities),
	})

	return classification, nil
}

// IntentHint runs the cheap keyword pre-filter over the turn text. The
// result is only a bias forwarded to the oracle, never a classification by
// itself.
func IntentHint(query string) string {
	lowered := strings.ToLower(query)

	newsWords := []string{"news", "latest", "update", "recent", "what's new", "breaking"}
	for _, word := range newsWords {
		if strings.Contains(lowered, word) {
			return string(models.IntentNews)
		}
	}

	faqPhrases := []string{"what is", "explain", "define", "how does", "tell me about", "what are"}
	for _, phrase := range faqPhrases {
		if strings.Contains(lowered, phrase) {
			return string(models.IntentFAQ)
		}
	}

	return ""
}

// cacheKey folds the context into the key; json map keys marshal in sorted
// order, so equal contexts produce equal keys.
func cacheKey(query string, convCtx Context) string {
	ctxJSON, _ := json.Marshal(convCtx)
	return query + "|" + string(ctxJSON)
}
