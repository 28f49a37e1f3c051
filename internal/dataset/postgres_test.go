package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-assistant/internal/common/config"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestTables() config.DatasetTablesConfig {
	return config.DatasetTablesConfig{
		Plans:     "plans",
		Coverage:  "coverage",
		Providers: "providers",
	}
}

func expectPlansQuery(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT id, plan_id, name, insurer, state, county, metal_level, plan_type, year, monthly_premiums, deductible, out_of_pocket_max, copays FROM "plans"`)
}

func expectCoverageQuery(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT id, plan_id, plan_name, insurer, state, coverage, description, source_url FROM "coverage"`)
}

func expectProvidersQuery(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT id, name, specialty, networks, location FROM "providers"`)
}

func planRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "plan_id", "name", "insurer", "state", "county", "metal_level",
		"plan_type", "year", "monthly_premiums", "deductible",
		"out_of_pocket_max", "copays",
	}).AddRow(
		"plan-001", "OSC-GOLD-2024", "Oscar Classic Gold", "Oscar", "NY",
		"Kings", "Gold", "EPO", 2024,
		[]byte(`{"21": 310.5, "40": 420.0}`), 1500.0, 8700.0,
		[]byte(`{"primary_care": 25, "specialist": 50}`),
	).AddRow(
		"plan-002", "BCBS-SILVER-2024", "BlueCare Direct Silver",
		"Blue Cross Blue Shield", "TX", "Travis", "Silver", "HMO", 2024,
		nil, 4500.0, 9100.0, nil,
	)
}

func coverageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "plan_id", "plan_name", "insurer", "state", "coverage",
		"description", "source_url",
	}).AddRow(
		"cov-001", "OSC-GOLD-2024", "Oscar Classic Gold", "Oscar", "NY",
		[]byte(`{"Dental","Emergency Care",Maternity}`),
		"Comprehensive gold tier coverage", "https://example.com/osc-gold",
	)
}

func providerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "specialty", "networks", "location",
	}).AddRow(
		"prov-001", "Dr. Sarah Chen", "Cardiology",
		[]byte(`[{"plan_id":"OSC-GOLD-2024","insurer":"Oscar","in_network":true}]`),
		"Brooklyn, NY",
	)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestPostgresLoader_Load_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPlansQuery(mock).WillReturnRows(planRows())
	expectCoverageQuery(mock).WillReturnRows(coverageRows())
	expectProvidersQuery(mock).WillReturnRows(providerRows())

	loader := NewPostgresLoader(db, createTestTables(), createTestLogger(t))

	idx, err := loader.Load(context.Background())
	require.NoError(t, err)

	plans, coverage, providers := idx.Counts()
	assert.Equal(t, 2, plans)
	assert.Equal(t, 1, coverage)
	assert.Equal(t, 1, providers)

	first := idx.Plans()[0]
	assert.Equal(t, "Oscar Classic Gold", first.Name)
	assert.Equal(t, 310.5, first.MonthlyPremiums["21"])
	assert.Equal(t, 50.0, first.Copays["specialist"])

	second := idx.Plans()[1]
	assert.Nil(t, second.MonthlyPremiums)
	assert.Equal(t, 4500.0, second.Deductible)

	assert.Equal(t, []string{"Dental", "Emergency Care", "Maternity"}, idx.Coverage()[0].Coverage)

	prov := idx.Providers()[0]
	require.Len(t, prov.Networks, 1)
	assert.Equal(t, "OSC-GOLD-2024", prov.Networks[0].PlanID)
	assert.True(t, prov.Networks[0].InNetwork)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoader_Load_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPlansQuery(mock).WillReturnError(errors.New("connection refused"))

	loader := NewPostgresLoader(db, createTestTables(), createTestLogger(t))

	_, err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetLoad))
	assert.Contains(t, err.Error(), "plans")
}

func TestPostgresLoader_Load_MalformedJSONColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "plan_id", "name", "insurer", "state", "county", "metal_level",
		"plan_type", "year", "monthly_premiums", "deductible",
		"out_of_pocket_max", "copays",
	}).AddRow(
		"plan-001", "OSC-GOLD-2024", "Oscar Classic Gold", "Oscar", "NY",
		"Kings", "Gold", "EPO", 2024,
		[]byte(`{not valid json`), 1500.0, 8700.0, nil,
	)
	expectPlansQuery(mock).WillReturnRows(rows)

	loader := NewPostgresLoader(db, createTestTables(), createTestLogger(t))

	_, err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetLoad))
	assert.Contains(t, err.Error(), "premiums")
}

func TestPostgresLoader_Load_SecondCollectionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPlansQuery(mock).WillReturnRows(planRows())
	expectCoverageQuery(mock).WillReturnError(errors.New("relation does not exist"))

	loader := NewPostgresLoader(db, createTestTables(), createTestLogger(t))

	_, err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetLoad))
	assert.Contains(t, err.Error(), "coverage")
}
