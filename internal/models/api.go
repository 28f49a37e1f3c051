package models

import "time"

// Status values reported by the conversational endpoint.
const (
	StatusCollecting = "collecting"
	StatusComplete   = "complete"
)

// ChatRequest is the conversational endpoint payload. SessionID is optional
// on the first turn; the system mints one and the caller echoes it back.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// ChatResponse describes the outcome of one conversational turn.
type ChatResponse struct {
	SessionID         string                 `json:"session_id"`
	Response          string                 `json:"response"`
	RequiresInput     bool                   `json:"requires_input"`
	NextQuestion      string                 `json:"next_question,omitempty"`
	CollectedEntities map[string]interface{} `json:"collected_entities"`
	SearchResults     []ScoredMatch          `json:"search_results,omitempty"`
	Status            string                 `json:"status"`
}

// SearchRequest is the direct search endpoint payload, bypassing the
// dialogue machine.
type SearchRequest struct {
	Query    string                 `json:"query"`
	Entities map[string]interface{} `json:"entities"`
}

// SearchResponse carries a ranked result list.
type SearchResponse struct {
	Results []ScoredMatch `json:"results"`
	Count   int           `json:"count"`
}

// SessionSnapshot is the redacted session view returned by the sessions
// endpoint; turn texts and raw results stay server-side.
type SessionSnapshot struct {
	SessionID         string                 `json:"session_id"`
	State             DialogueState          `json:"state"`
	DetectedIntent    Intent                 `json:"detected_intent,omitempty"`
	CollectedEntities map[string]interface{} `json:"collected_entities"`
	PendingEntity     string                 `json:"pending_entity,omitempty"`
	Turns             int                    `json:"turns"`
	CreatedAt         time.Time              `json:"created_at"`
	LastActivity      time.Time              `json:"last_activity"`
}

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Classification is the validated result of one NLU oracle call.
type Classification struct {
	Intent     Intent                 `json:"intent"`
	Entities   map[string]interface{} `json:"entities"`
	Confidence float64                `json:"confidence"`
}

// WebResult is one hit returned by the external web-search provider.
type WebResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Snippets    []string `json:"snippets,omitempty"`
}
