package models

// ScoredMatch pairs a dataset record with its relevance score and the
// ordered list of rules that contributed to it. Produced fresh per query;
// never persisted beyond a session's last results.
type ScoredMatch struct {
	Source       SourceKind  `json:"source"`
	RecordID     string      `json:"record_id"`
	PlanID       string      `json:"plan_id,omitempty"` // cross-variant identity used for dedup
	Record       interface{} `json:"record"`
	Score        int         `json:"score"`
	MatchReasons []string    `json:"match_reasons"`
}
