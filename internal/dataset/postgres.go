// internal/dataset/postgres.go
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/models"
)

// PostgresLoader reads the three collections from relational tables. JSONB
// columns carry the nested maps (premiums, copays, network memberships) and
// coverage items are a text array.
type PostgresLoader struct {
	db     *sql.DB
	tables config.DatasetTablesConfig
	logger Logger
}

func NewPostgresLoader(db *sql.DB, tables config.DatasetTablesConfig, logger Logger) *PostgresLoader {
	return &PostgresLoader{
		db:     db,
		tables: tables,
		logger: logger,
	}
}

func (l *PostgresLoader) Load(ctx context.Context) (*Index, error) {
	plans, err := l.loadPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: plans: %v", ErrDatasetLoad, err)
	}

	coverage, err := l.loadCoverage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: coverage: %v", ErrDatasetLoad, err)
	}

	providers, err := l.loadProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: providers: %v", ErrDatasetLoad, err)
	}

	l.logger.Info("Dataset loaded from postgres", map[string]interface{}{
		"plans":     len(plans),
		"coverage":  len(coverage),
		"providers": len(providers),
	})

	return NewIndex(plans, coverage, providers), nil
}

func (l *PostgresLoader) loadPlans(ctx context.Context) ([]models.PlanRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, plan_id, name, insurer, state, county, metal_level,
		       plan_type, year, monthly_premiums, deductible,
		       out_of_pocket_max, copays
		FROM %s`, pq.QuoteIdentifier(l.tables.Plans))

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []models.PlanRecord
	for rows.Next() {
		var rec models.PlanRecord
		var premiums, copays []byte

		err := rows.Scan(
			&rec.ID, &rec.PlanID, &rec.Name, &rec.Insurer,
			&rec.State, &rec.County, &rec.MetalLevel,
			&rec.PlanType, &rec.Year, &premiums,
			&rec.Deductible, &rec.OutOfPocketMax, &copays,
		)
		if err != nil {
			return nil, err
		}

		if len(premiums) > 0 {
			if err := json.Unmarshal(premiums, &rec.MonthlyPremiums); err != nil {
				return nil, fmt.Errorf("plan %s premiums: %v", rec.ID, err)
			}
		}
		if len(copays) > 0 {
			if err := json.Unmarshal(copays, &rec.Copays); err != nil {
				return nil, fmt.Errorf("plan %s copays: %v", rec.ID, err)
			}
		}

		plans = append(plans, rec)
	}

	return plans, rows.Err()
}

func (l *PostgresLoader) loadCoverage(ctx context.Context) ([]models.CoverageRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, plan_id, plan_name, insurer, state, coverage,
		       description, source_url
		FROM %s`, pq.QuoteIdentifier(l.tables.Coverage))

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CoverageRecord
	for rows.Next() {
		var rec models.CoverageRecord

		err := rows.Scan(
			&rec.ID, &rec.PlanID, &rec.PlanName, &rec.Insurer,
			&rec.State, pq.Array(&rec.Coverage),
			&rec.Description, &rec.SourceURL,
		)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (l *PostgresLoader) loadProviders(ctx context.Context) ([]models.ProviderRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, name, specialty, networks, location
		FROM %s`, pq.QuoteIdentifier(l.tables.Providers))

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []models.ProviderRecord
	for rows.Next() {
		var rec models.ProviderRecord
		var networks []byte

		err := rows.Scan(&rec.ID, &rec.Name, &rec.Specialty, &networks, &rec.Location)
		if err != nil {
			return nil, err
		}

		if len(networks) > 0 {
			if err := json.Unmarshal(networks, &rec.Networks); err != nil {
				return nil, fmt.Errorf("provider %s networks: %v", rec.ID, err)
			}
		}

		providers = append(providers, rec)
	}

	return providers, rows.Err()
}
