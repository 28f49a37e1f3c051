// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"insurance-assistant/internal/common/errors"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/validation"
	"insurance-assistant/internal/models"
	"insurance-assistant/internal/schema"
	"insurance-assistant/internal/session"
)

// TurnProcessor runs one conversational turn. Every failure mode produces an
// in-band conversational response, so there is no error return.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req models.ChatRequest) *models.ChatResponse
}

// SearchEngine answers direct search requests, bypassing the dialogue
// machine.
type SearchEngine interface {
	Search(queryText string, entities map[string]interface{}) []models.ScoredMatch
}

// Handler carries the API endpoints' dependencies.
type Handler struct {
	manager  TurnProcessor
	engine   SearchEngine
	sessions *session.Store
	registry *schema.Registry
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(manager TurnProcessor, engine SearchEngine, sessions *session.Store, registry *schema.Registry, log logger.Logger) *Handler {
	return &Handler{
		manager:  manager,
		engine:   engine,
		sessions: sessions,
		registry: registry,
		errors:   errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Chat handles POST /api/chat, one conversational turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError(fmt.Sprintf("parse request body: %v", err)))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError("query must not be empty"))
		return
	}

	resp := h.manager.ProcessTurn(r.Context(), req)
	respondJSON(w, http.StatusOK, resp)
}

// DirectSearch handles POST /api/search: a ranked search over the loaded
// dataset without touching any session. Entity filters are checked against
// their declared types before the search runs.
func (h *Handler) DirectSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError(fmt.Sprintf("parse request body: %v", err)))
		return
	}
	if strings.TrimSpace(req.Query) == "" && len(req.Entities) == 0 {
		h.errors.HandleHTTPError(w, r, errors.NewInvalidRequestError("query or entities must be provided"))
		return
	}

	types := h.registry.EntityTypes()
	if result := validation.ValidateEntities(req.Entities, types); !result.Valid {
		bad := result.Errors[0]
		h.errors.HandleHTTPError(w, r, errors.NewEntityTypeMismatchError(bad.Field, types[bad.Field], req.Entities[bad.Field]))
		return
	}

	results := h.engine.Search(req.Query, req.Entities)
	if results == nil {
		results = []models.ScoredMatch{}
	}
	respondJSON(w, http.StatusOK, models.SearchResponse{
		Results: results,
		Count:   len(results),
	})
}

// GetSession handles GET /api/sessions/{id}, a redacted session snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		h.errors.HandleHTTPError(w, r, errors.NewSessionNotFoundError(id))
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.sessions.Delete(id) {
		h.errors.HandleHTTPError(w, r, errors.NewSessionNotFoundError(id))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}

// GetSchema handles GET /api/schema, the active intent/entity document.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Document())
}

// respondJSON writes a JSON response with the given status code. Encode
// failures are unrecoverable here since the headers are already sent.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
