// internal/dataset/file.go
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/models"
)

// FileLoader reads the three collections from JSON files on disk.
type FileLoader struct {
	cfg    config.DatasetFilesConfig
	logger Logger
}

func NewFileLoader(cfg config.DatasetFilesConfig, logger Logger) *FileLoader {
	return &FileLoader{
		cfg:    cfg,
		logger: logger,
	}
}

func (l *FileLoader) Load(ctx context.Context) (*Index, error) {
	var plans []models.PlanRecord
	if err := readJSONFile(l.cfg.Plans, &plans); err != nil {
		return nil, fmt.Errorf("%w: plans: %v", ErrDatasetLoad, err)
	}

	var coverage []models.CoverageRecord
	if err := readJSONFile(l.cfg.Coverage, &coverage); err != nil {
		return nil, fmt.Errorf("%w: coverage: %v", ErrDatasetLoad, err)
	}

	var providers []models.ProviderRecord
	if err := readJSONFile(l.cfg.Providers, &providers); err != nil {
		return nil, fmt.Errorf("%w: providers: %v", ErrDatasetLoad, err)
	}

	l.logger.Info("Dataset loaded from files", map[string]interface{}{
		"plans":     len(plans),
		"coverage":  len(coverage),
		"providers": len(providers),
	})

	return NewIndex(plans, coverage, providers), nil
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %v", path, err)
	}
	return nil
}
