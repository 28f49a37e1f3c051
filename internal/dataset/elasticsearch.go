// internal/dataset/elasticsearch.go
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/database"
	"insurance-assistant/internal/models"
)

// ElasticsearchLoader pulls the three collections from their indices with a
// match_all query. FetchSize bounds each request; the corpus is small enough
// that one page per index covers it.
type ElasticsearchLoader struct {
	client *database.ElasticsearchClient
	cfg    config.DatasetElasticsearchConfig
	logger Logger
}

func NewElasticsearchLoader(client *database.ElasticsearchClient, cfg config.DatasetElasticsearchConfig, logger Logger) *ElasticsearchLoader {
	return &ElasticsearchLoader{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// searchEnvelope is the slice of the ES response body we care about.
type searchEnvelope struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (l *ElasticsearchLoader) Load(ctx context.Context) (*Index, error) {
	var plans []models.PlanRecord
	if err := l.fetchAll(ctx, l.cfg.PlansIndex, func(source json.RawMessage) error {
		var rec models.PlanRecord
		if err := json.Unmarshal(source, &rec); err != nil {
			return err
		}
		plans = append(plans, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: plans: %v", ErrDatasetLoad, err)
	}

	var coverage []models.CoverageRecord
	if err := l.fetchAll(ctx, l.cfg.CoverageIndex, func(source json.RawMessage) error {
		var rec models.CoverageRecord
		if err := json.Unmarshal(source, &rec); err != nil {
			return err
		}
		coverage = append(coverage, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: coverage: %v", ErrDatasetLoad, err)
	}

	var providers []models.ProviderRecord
	if err := l.fetchAll(ctx, l.cfg.ProvidersIndex, func(source json.RawMessage) error {
		var rec models.ProviderRecord
		if err := json.Unmarshal(source, &rec); err != nil {
			return err
		}
		providers = append(providers, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: providers: %v", ErrDatasetLoad, err)
	}

	l.logger.Info("Dataset loaded from elasticsearch", map[string]interface{}{
		"plans":     len(plans),
		"coverage":  len(coverage),
		"providers": len(providers),
	})

	return NewIndex(plans, coverage, providers), nil
}

func (l *ElasticsearchLoader) fetchAll(ctx context.Context, index string, collect func(json.RawMessage) error) error {
	size := l.cfg.FetchSize
	if size <= 0 {
		size = 500
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
		"size": size,
	})
	if err != nil {
		return err
	}

	var envelope searchEnvelope
	if err := l.client.Search(ctx, index, bytes.NewReader(body), &envelope); err != nil {
		return err
	}

	for _, hit := range envelope.Hits.Hits {
		if err := collect(hit.Source); err != nil {
			return fmt.Errorf("index %s: %v", index, err)
		}
	}

	return nil
}
