package models

// SourceKind tags which dataset collection a record came from.
type SourceKind string

const (
	SourcePlan     SourceKind = "plan"
	SourceCoverage SourceKind = "coverage"
	SourceProvider SourceKind = "provider"
)

// PlanRecord is one marketplace plan offering. Records are read-only after
// load; ID is unique within the plan collection, PlanID is the identifier
// shared with coverage records for the same plan.
type PlanRecord struct {
	ID              string             `json:"id"`
	PlanID          string             `json:"plan_id"`
	Name            string             `json:"name"`
	Insurer         string             `json:"insurer"`
	State           string             `json:"state"`
	County          string             `json:"county,omitempty"`
	MetalLevel      string             `json:"metal_level"`
	PlanType        string             `json:"plan_type"`
	Year            int                `json:"year,omitempty"`
	MonthlyPremiums map[string]float64 `json:"monthly_premiums,omitempty"` // age bracket -> premium
	Deductible      float64            `json:"deductible,omitempty"`
	OutOfPocketMax  float64            `json:"out_of_pocket_max,omitempty"`
	Copays          map[string]float64 `json:"copays,omitempty"` // service -> copay
}

// CoverageRecord describes what a plan's policy documents say it covers.
type CoverageRecord struct {
	ID          string   `json:"id"`
	PlanID      string   `json:"plan_id,omitempty"`
	PlanName    string   `json:"plan_name"`
	Insurer     string   `json:"insurer"`
	State       string   `json:"state,omitempty"`
	Coverage    []string `json:"coverage"`
	Description string   `json:"description,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
}

// NetworkMembership records a provider's participation in one plan network.
type NetworkMembership struct {
	PlanID    string `json:"plan_id"`
	Insurer   string `json:"insurer"`
	InNetwork bool   `json:"in_network"`
}

// ProviderRecord is one entry from the provider directory.
type ProviderRecord struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Specialty string              `json:"specialty"`
	Networks  []NetworkMembership `json:"networks,omitempty"`
	Location  string              `json:"location,omitempty"`
}
