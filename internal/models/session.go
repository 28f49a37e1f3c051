package models

import (
	"strings"
	"time"
)

// DialogueState names the slot-filling phase a session is in.
type DialogueState string

const (
	StateNew         DialogueState = "NEW"
	StateClassifying DialogueState = "CLASSIFYING"
	StateCollecting  DialogueState = "COLLECTING"
	StateReady       DialogueState = "READY"
	StateSearching   DialogueState = "SEARCHING"
	StateAnswered    DialogueState = "ANSWERED"
)

// Turn is one request/response exchange, kept on the session as context for
// re-classification and for building the accumulated search query.
type Turn struct {
	Query     string        `json:"query"`
	Response  string        `json:"response"`
	Results   []ScoredMatch `json:"results,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Session holds the dialogue state for one conversation. State is
// process-lifetime only; the store evicts sessions idle beyond the TTL.
type Session struct {
	ID                string                 `json:"session_id"`
	State             DialogueState          `json:"state"`
	DetectedIntent    Intent                 `json:"detected_intent,omitempty"`
	CollectedEntities map[string]interface{} `json:"collected_entities"`
	PendingEntity     string                 `json:"pending_entity,omitempty"` // slot currently being asked
	TurnHistory       []Turn                 `json:"turn_history"`
	LastResults       []ScoredMatch          `json:"last_results,omitempty"`
	SearchAttempted   bool                   `json:"search_attempted"`
	CreatedAt         time.Time              `json:"created_at"`
	LastActivity      time.Time              `json:"last_activity"`
}

// NewSession creates an empty session in the NEW state.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                id,
		State:             StateNew,
		CollectedEntities: make(map[string]interface{}),
		CreatedAt:         now,
		LastActivity:      now,
	}
}

// SetEntity stores a typed entity value. A value that is already set is
// never overwritten; returns false when the write was skipped.
func (s *Session) SetEntity(name string, value interface{}) bool {
	if _, exists := s.CollectedEntities[name]; exists {
		return false
	}
	s.CollectedEntities[name] = value
	return true
}

// RecordTurn appends one exchange to the history and bumps activity.
func (s *Session) RecordTurn(query, response string, results []ScoredMatch) {
	now := time.Now().UTC()
	s.TurnHistory = append(s.TurnHistory, Turn{
		Query:     query,
		Response:  response,
		Results:   results,
		Timestamp: now,
	})
	s.LastActivity = now
}

// TurnCount returns the number of completed exchanges.
func (s *Session) TurnCount() int {
	return len(s.TurnHistory)
}

// IdleFor reports whether the session has seen no activity for at least ttl.
func (s *Session) IdleFor(ttl time.Duration) bool {
	return time.Since(s.LastActivity) >= ttl
}

// AccumulatedQuery joins all user turn texts plus the current one, oldest
// first, for keyword extraction over the whole dialogue.
func (s *Session) AccumulatedQuery(current string) string {
	parts := make([]string, 0, len(s.TurnHistory)+1)
	for _, turn := range s.TurnHistory {
		if turn.Query != "" {
			parts = append(parts, turn.Query)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return strings.Join(parts, " ")
}

// Clone returns a copy safe to read after the store's lock is released.
// Records inside results are immutable, so slice elements are shared.
func (s *Session) Clone() *Session {
	cp := *s
	cp.CollectedEntities = make(map[string]interface{}, len(s.CollectedEntities))
	for k, v := range s.CollectedEntities {
		cp.CollectedEntities[k] = v
	}
	cp.TurnHistory = append([]Turn(nil), s.TurnHistory...)
	cp.LastResults = append([]ScoredMatch(nil), s.LastResults...)
	return &cp
}

// Snapshot builds the redacted view served by the sessions endpoint.
func (s *Session) Snapshot() SessionSnapshot {
	entities := make(map[string]interface{}, len(s.CollectedEntities))
	for k, v := range s.CollectedEntities {
		entities[k] = v
	}
	return SessionSnapshot{
		SessionID:         s.ID,
		State:             s.State,
		DetectedIntent:    s.DetectedIntent,
		CollectedEntities: entities,
		PendingEntity:     s.PendingEntity,
		Turns:             len(s.TurnHistory),
		CreatedAt:         s.CreatedAt,
		LastActivity:      s.LastActivity,
	}
}
