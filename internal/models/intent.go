package models

// Intent is the classified purpose of a user query. The set is closed: the
// NLU oracle may only return one of these values, anything else is rejected
// and replaced by the fallback intent.
type Intent string

const (
	IntentPlanInfo        Intent = "PlanInfo"
	IntentCoverageDetail  Intent = "CoverageDetail"
	IntentProviderNetwork Intent = "ProviderNetwork"
	IntentComparison      Intent = "Comparison"
	IntentFAQ             Intent = "FAQ"
	IntentNews            Intent = "News"
)

// FallbackIntent is used when classification fails, times out, or returns an
// intent outside the closed set.
const FallbackIntent = IntentFAQ

// ValidIntents returns every accepted intent in a stable order.
func ValidIntents() []Intent {
	return []Intent{
		IntentPlanInfo,
		IntentCoverageDetail,
		IntentProviderNetwork,
		IntentComparison,
		IntentFAQ,
		IntentNews,
	}
}

// ParseIntent validates a raw intent name against the closed set.
func ParseIntent(raw string) (Intent, bool) {
	for _, intent := range ValidIntents() {
		if string(intent) == raw {
			return intent, true
		}
	}
	return "", false
}

// Canonical entity names shared by the schema registry, the dialogue machine
// and the search engine. The registry config declares which of these each
// intent requires; the search engine ignores keys it has no rule for.
const (
	EntityPlanName     = "plan_name"
	EntityInsurer      = "insurer"
	EntityCounty       = "county"
	EntityYear         = "year"
	EntityAge          = "age"
	EntityCoverageItem = "coverage_item"
	EntitySubtype      = "subtype"
	EntityProviderName = "provider_name"
	EntitySpecialty    = "specialty"
	EntityFeatures     = "features"
	EntityTopic        = "topic"
	EntityState        = "state"
	EntityIncome       = "income"
	EntityFamilySize   = "family_size"
	EntityZipCode      = "zip_code"
	EntityMetalLevel   = "metal_level"
	EntityPlanType     = "plan_type"
)

// SemanticType describes how a raw entity answer is coerced before storage.
type SemanticType string

const (
	TypeString  SemanticType = "string"
	TypeInteger SemanticType = "integer"
)
