// internal/dataset/index.go
package dataset

import (
	"context"
	"errors"

	"insurance-assistant/internal/models"
)

var ErrDatasetLoad = errors.New("DATASET_LOAD_FAILED")

// Logger defines the minimal logging interface for this package
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Loader populates an Index from one backing source. The index built is
// identical regardless of which source produced it.
type Loader interface {
	Load(ctx context.Context) (*Index, error)
}

// Index holds the three record collections in memory. It is immutable after
// load, so concurrent searches need no locking.
type Index struct {
	plans     []models.PlanRecord
	coverage  []models.CoverageRecord
	providers []models.ProviderRecord
}

// NewIndex builds an index over the given collections.
func NewIndex(plans []models.PlanRecord, coverage []models.CoverageRecord, providers []models.ProviderRecord) *Index {
	return &Index{
		plans:     plans,
		coverage:  coverage,
		providers: providers,
	}
}

// Plans returns the plan collection.
func (i *Index) Plans() []models.PlanRecord {
	return i.plans
}

// Coverage returns the coverage collection.
func (i *Index) Coverage() []models.CoverageRecord {
	return i.coverage
}

// Providers returns the provider collection.
func (i *Index) Providers() []models.ProviderRecord {
	return i.providers
}

// Counts reports the collection sizes for startup logging.
func (i *Index) Counts() (plans, coverage, providers int) {
	return len(i.plans), len(i.coverage), len(i.providers)
}
