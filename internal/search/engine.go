// internal/search/engine.go
package search

import (
	"fmt"
	"sort"
	"strings"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/dataset"
	"insurance-assistant/internal/models"
)

// Rule weights. These are a contract with callers, not tuning knobs:
// relative ranking between sources depends on the exact values.
const (
	scoreExactName     = 10
	scoreInsurer       = 8
	scoreSpecialty     = 8
	scoreCoverageItem  = 7
	scoreInNetwork     = 6
	scoreState         = 5
	scoreTierOrType    = 4
	scoreKeyword       = 3
	scoreDefaultRegion = 2
)

const defaultTopN = 5

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
}

// Engine ranks dataset records against collected entities and free-text
// keywords. It holds no mutable state; concurrent Search calls need no
// coordination.
type Engine struct {
	index         *dataset.Index
	topN          int
	defaultRegion string
	logger        Logger
}

func NewEngine(index *dataset.Index, cfg config.SearchConfig, logger Logger) *Engine {
	topN := cfg.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	return &Engine{
		index:         index,
		topN:          topN,
		defaultRegion: cfg.DefaultRegion,
		logger:        logger,
	}
}

// filters is the subset of collected entities the rule set can score.
// Unscored entities (age, county, year, ...) still count as filters for the
// default-region bonus: the bonus fires only on a completely empty map.
type filters struct {
	planName     string
	insurer      string
	state        string
	metalLevel   string
	planType     string
	coverageItem string
	providerName string
	specialty    string
	none         bool
}

// Search scores every record against the query, merges the three variants,
// deduplicates by shared plan identifier and returns the top matches ranked
// by score. Deterministic for a fixed index and inputs; an empty result is
// a valid outcome, not an error.
func (e *Engine) Search(queryText string, entities map[string]interface{}) []models.ScoredMatch {
	keywords := ExtractKeywords(queryText)
	f := buildFilters(entities)

	matches := make([]models.ScoredMatch, 0, 16)

	for _, rec := range e.index.Plans() {
		if score, reasons := e.scorePlan(rec, f, keywords); score > 0 {
			matches = append(matches, models.ScoredMatch{
				Source:       models.SourcePlan,
				RecordID:     rec.ID,
				PlanID:       rec.PlanID,
				Record:       rec,
				Score:        score,
				MatchReasons: reasons,
			})
		}
	}

	for _, rec := range e.index.Coverage() {
		if score, reasons := e.scoreCoverage(rec, f, keywords); score > 0 {
			matches = append(matches, models.ScoredMatch{
				Source:       models.SourceCoverage,
				RecordID:     rec.ID,
				PlanID:       rec.PlanID,
				Record:       rec,
				Score:        score,
				MatchReasons: reasons,
			})
		}
	}

	for _, rec := range e.index.Providers() {
		if score, reasons := e.scoreProvider(rec, f, keywords); score > 0 {
			matches = append(matches, models.ScoredMatch{
				Source:       models.SourceProvider,
				RecordID:     rec.ID,
				Record:       rec,
				Score:        score,
				MatchReasons: reasons,
			})
		}
	}

	matches = dedupeByPlan(matches)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > e.topN {
		matches = matches[:e.topN]
	}

	e.logger.Debug("search completed", map[string]interface{}{
		"keywords": keywords,
		"results":  len(matches),
	})

	return matches
}

func (e *Engine) scorePlan(rec models.PlanRecord, f filters, keywords []string) (int, []string) {
	score := 0
	var reasons []string

	if f.planName != "" && strings.EqualFold(f.planName, rec.Name) {
		score += scoreExactName
		reasons = append(reasons, fmt.Sprintf("Exact plan name match: %s", rec.Name))
	}
	if f.insurer != "" && strings.EqualFold(f.insurer, rec.Insurer) {
		score += scoreInsurer
		reasons = append(reasons, fmt.Sprintf("Insurer match: %s", rec.Insurer))
	}
	if f.state != "" && strings.EqualFold(f.state, rec.State) {
		score += scoreState
		reasons = append(reasons, fmt.Sprintf("State match: %s", rec.State))
	}
	if f.metalLevel != "" && strings.EqualFold(f.metalLevel, rec.MetalLevel) {
		score += scoreTierOrType
		reasons = append(reasons, fmt.Sprintf("Metal tier match: %s", rec.MetalLevel))
	}
	if f.planType != "" && strings.EqualFold(f.planType, rec.PlanType) {
		score += scoreTierOrType
		reasons = append(reasons, fmt.Sprintf("Plan type match: %s", rec.PlanType))
	}

	score, reasons = applyKeywords(score, reasons, keywords, rec.Name, rec.Insurer)

	if f.none && e.defaultRegion != "" && strings.EqualFold(rec.State, e.defaultRegion) {
		score += scoreDefaultRegion
		reasons = append(reasons, fmt.Sprintf("Default region: %s", e.defaultRegion))
	}

	return score, reasons
}

func (e *Engine) scoreCoverage(rec models.CoverageRecord, f filters, keywords []string) (int, []string) {
	score := 0
	var reasons []string

	if f.planName != "" && strings.EqualFold(f.planName, rec.PlanName) {
		score += scoreExactName
		reasons = append(reasons, fmt.Sprintf("Exact plan name match: %s", rec.PlanName))
	}
	if f.insurer != "" && strings.EqualFold(f.insurer, rec.Insurer) {
		score += scoreInsurer
		reasons = append(reasons, fmt.Sprintf("Insurer match: %s", rec.Insurer))
	}
	if f.coverageItem != "" && coverageContains(rec.Coverage, f.coverageItem) {
		score += scoreCoverageItem
		reasons = append(reasons, fmt.Sprintf("Coverage includes: %s", f.coverageItem))
	}
	if f.state != "" && strings.EqualFold(f.state, rec.State) {
		score += scoreState
		reasons = append(reasons, fmt.Sprintf("State match: %s", rec.State))
	}

	// coverage records carry no tier or type field of their own; the plan
	// name is the only place those show up
	loweredName := strings.ToLower(rec.PlanName)
	if f.metalLevel != "" && strings.Contains(loweredName, strings.ToLower(f.metalLevel)) {
		score += scoreTierOrType
		reasons = append(reasons, fmt.Sprintf("Metal tier in plan name: %s", f.metalLevel))
	}
	if f.planType != "" && strings.Contains(loweredName, strings.ToLower(f.planType)) {
		score += scoreTierOrType
		reasons = append(reasons, fmt.Sprintf("Plan type in plan name: %s", f.planType))
	}

	score, reasons = applyKeywords(score, reasons, keywords, rec.PlanName, rec.Insurer)

	if f.none && e.defaultRegion != "" && strings.EqualFold(rec.State, e.defaultRegion) {
		score += scoreDefaultRegion
		reasons = append(reasons, fmt.Sprintf("Default region: %s", e.defaultRegion))
	}

	return score, reasons
}

func (e *Engine) scoreProvider(rec models.ProviderRecord, f filters, keywords []string) (int, []string) {
	score := 0
	var reasons []string

	if f.providerName != "" && strings.EqualFold(f.providerName, rec.Name) {
		score += scoreExactName
		reasons = append(reasons, fmt.Sprintf("Exact provider name match: %s", rec.Name))
	}
	if f.specialty != "" && strings.EqualFold(f.specialty, rec.Specialty) {
		score += scoreSpecialty
		reasons = append(reasons, fmt.Sprintf("Specialty match: %s", rec.Specialty))
	}
	if f.insurer != "" {
		for _, membership := range rec.Networks {
			if membership.InNetwork && strings.EqualFold(membership.Insurer, f.insurer) {
				score += scoreInNetwork
				reasons = append(reasons, fmt.Sprintf("In-network with %s", membership.Insurer))
				break
			}
		}
	}

	score, reasons = applyKeywords(score, reasons, keywords, rec.Name, rec.Specialty)

	return score, reasons
}

// applyKeywords awards one hit per extracted keyword found in any of the
// record's text fields. Keywords arrive in vocabulary order, which keeps the
// appended reasons deterministic.
func applyKeywords(score int, reasons []string, keywords []string, fields ...string) (int, []string) {
	if len(keywords) == 0 {
		return score, reasons
	}

	lowered := make([]string, len(fields))
	for i, field := range fields {
		lowered[i] = strings.ToLower(field)
	}

	for _, keyword := range keywords {
		for _, field := range lowered {
			if strings.Contains(field, keyword) {
				score += scoreKeyword
				reasons = append(reasons, fmt.Sprintf("Keyword match: %s", keyword))
				break
			}
		}
	}

	return score, reasons
}

func coverageContains(items []string, want string) bool {
	lowered := strings.ToLower(strings.TrimSpace(want))
	for _, item := range items {
		li := strings.ToLower(item)
		if li == lowered || strings.Contains(li, lowered) {
			return true
		}
	}
	return false
}

func buildFilters(entities map[string]interface{}) filters {
	return filters{
		planName:     stringEntity(entities, models.EntityPlanName),
		insurer:      stringEntity(entities, models.EntityInsurer),
		state:        stringEntity(entities, models.EntityState),
		metalLevel:   stringEntity(entities, models.EntityMetalLevel),
		planType:     stringEntity(entities, models.EntityPlanType),
		coverageItem: stringEntity(entities, models.EntityCoverageItem),
		providerName: stringEntity(entities, models.EntityProviderName),
		specialty:    stringEntity(entities, models.EntitySpecialty),
		none:         len(entities) == 0,
	}
}

func stringEntity(entities map[string]interface{}, key string) string {
	value, ok := entities[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// dedupeByPlan collapses matches that share a plan identifier across
// variants, keeping the higher score. Ties keep the match encountered first
// in variant evaluation order (plan, coverage, provider). Matches without a
// plan identifier are always kept.
func dedupeByPlan(matches []models.ScoredMatch) []models.ScoredMatch {
	seen := make(map[string]int, len(matches))
	out := make([]models.ScoredMatch, 0, len(matches))

	for _, match := range matches {
		if match.PlanID == "" {
			out = append(out, match)
			continue
		}
		if at, ok := seen[match.PlanID]; ok {
			if match.Score > out[at].Score {
				out[at] = match
			}
			continue
		}
		seen[match.PlanID] = len(out)
		out = append(out, match)
	}

	return out
}
