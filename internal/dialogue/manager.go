// internal/dialogue/manager.go
package dialogue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/metrics"
	"insurance-assistant/internal/common/validation"
	"insurance-assistant/internal/models"
	"insurance-assistant/internal/nlu"
	"insurance-assistant/internal/schema"
	"insurance-assistant/internal/session"
)

// Classifier is the NLU oracle surface the manager consumes.
type Classifier interface {
	Classify(ctx context.Context, query string, convCtx nlu.Context) (*models.Classification, error)
}

// Searcher ranks dataset records for a query and entity filters.
type Searcher interface {
	Search(queryText string, entities map[string]interface{}) []models.ScoredMatch
}

// WebSearcher augments answered turns with external results. Implementations
// degrade to an empty list on failure.
type WebSearcher interface {
	Search(ctx context.Context, queryText string, entities map[string]interface{}, intent models.Intent) []models.WebResult
}

// TurnObserver records turn-level telemetry. *observability.Observability
// satisfies it.
type TurnObserver interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordTurnProcessed(ctx context.Context, status string)
	RecordTurnDuration(ctx context.Context, duration time.Duration, status string)
}

// Manager drives the slot-filling state machine. A turn classifies the
// query, merges extracted entities into the session, then either asks for
// the first missing required slot or runs the search and answers.
type Manager struct {
	store      *session.Store
	registry   *schema.Registry
	classifier Classifier
	engine     Searcher
	web        WebSearcher
	observer   TurnObserver
	logger     logger.Logger
}

// NewManager wires the dialogue machine. web may be nil, which disables
// answer augmentation.
func NewManager(store *session.Store, registry *schema.Registry, classifier Classifier, engine Searcher, web WebSearcher, log logger.Logger) *Manager {
	return &Manager{
		store:      store,
		registry:   registry,
		classifier: classifier,
		engine:     engine,
		web:        web,
		logger:     log.WithFields(map[string]interface{}{"component": "dialogue"}),
	}
}

// Observe attaches turn-level telemetry. A nil observer disables it.
func (m *Manager) Observe(observer TurnObserver) {
	m.observer = observer
}

// turnOutcome is everything one turn computed before it is written back to
// the live session.
type turnOutcome struct {
	intent        models.Intent
	state         models.DialogueState
	pending       string
	accepted      map[string]interface{}
	collected     map[string]interface{}
	response      string
	nextQuestion  string
	requiresInput bool
	status        string
	results       []models.ScoredMatch
	searched      bool
}

// ProcessTurn handles one chat exchange. It never fails: oracle outages,
// web-search outages, and unparseable answers all degrade to a valid
// conversational response. An unknown or expired session id silently starts
// a fresh session under a new id.
func (m *Manager) ProcessTurn(ctx context.Context, req models.ChatRequest) *models.ChatResponse {
	start := time.Now()
	if m.observer != nil {
		var span trace.Span
		ctx, span = m.observer.StartSpan(ctx, "dialogue.turn")
		defer span.End()
	}
	sess := m.store.Acquire(req.SessionID)

	turn := m.runTurn(ctx, sess, req.Query)

	response := &models.ChatResponse{
		SessionID:         sess.ID,
		Response:          turn.response,
		RequiresInput:     turn.requiresInput,
		NextQuestion:      turn.nextQuestion,
		CollectedEntities: turn.collected,
		SearchResults:     turn.results,
		Status:            turn.status,
	}

	final, ok := m.store.Update(sess.ID, func(live *models.Session) {
		accepted := turn.accepted
		if live.DetectedIntent == "" {
			live.DetectedIntent = turn.intent
		} else if live.DetectedIntent != turn.intent {
			// a concurrent first turn locked a different intent; keep only
			// the slots that intent declares
			accepted = m.filterAllowed(live.DetectedIntent, accepted)
		}
		live.State = turn.state
		live.PendingEntity = turn.pending
		for name, value := range accepted {
			live.SetEntity(name, value)
		}
		if turn.searched {
			live.LastResults = turn.results
			live.SearchAttempted = true
		}
		live.RecordTurn(req.Query, turn.response, turn.results)
	})
	if ok {
		// concurrent turns may have landed more slots; answer with the union
		response.CollectedEntities = final.CollectedEntities
	} else {
		m.logger.Debug("session evicted mid-turn, state update discarded", map[string]interface{}{
			"sessionId": sess.ID,
		})
	}

	metrics.TurnsProcessed.WithLabelValues(string(turn.intent), turn.status).Inc()
	metrics.TurnDuration.WithLabelValues(string(turn.intent)).Observe(time.Since(start).Seconds())
	if m.observer != nil {
		m.observer.RecordTurnProcessed(ctx, turn.status)
		m.observer.RecordTurnDuration(ctx, time.Since(start), turn.status)
	}

	m.logger.Info("turn processed", map[string]interface{}{
		"sessionId": sess.ID,
		"intent":    string(turn.intent),
		"status":    turn.status,
		"pending":   turn.pending,
	})
	return response
}

func (m *Manager) runTurn(ctx context.Context, sess *models.Session, query string) turnOutcome {
	classification := m.classify(ctx, sess, query)

	// the conversation's intent locks on first classification
	intent := sess.DetectedIntent
	if intent == "" {
		intent = m.registry.ResolveIntent(string(classification.Intent))
	}

	collected := cloneEntities(sess.CollectedEntities)
	accepted := make(map[string]interface{})

	m.mergeExtracted(intent, classification.Entities, collected, accepted)

	// the raw turn text answers the slot we asked for when extraction
	// did not already fill it
	if sess.State == models.StateCollecting && sess.PendingEntity != "" {
		if _, filled := collected[sess.PendingEntity]; !filled {
			m.fillPendingFromText(sess.PendingEntity, query, collected, accepted)
		}
	}

	intent, missing := m.missingForIntent(intent, collected)

	if len(missing) > 0 {
		return m.collectingOutcome(intent, missing[0], collected, accepted)
	}
	return m.answeredOutcome(ctx, sess, query, intent, collected, accepted)
}

// classify calls the oracle with the session's conversational context. A
// failed or timed-out oracle falls back to the FAQ intent with no entities
// so the turn still completes.
func (m *Manager) classify(ctx context.Context, sess *models.Session, query string) *models.Classification {
	convCtx := nlu.Context{
		PendingEntity: sess.PendingEntity,
	}
	if len(sess.CollectedEntities) > 0 {
		convCtx.CollectedEntities = sess.CollectedEntities
	}
	if sess.DetectedIntent != "" {
		convCtx.IntentHint = string(sess.DetectedIntent)
	} else {
		convCtx.IntentHint = nlu.IntentHint(query)
	}

	classification, err := m.classifier.Classify(ctx, query, convCtx)
	if err != nil {
		m.logger.Warn("classifier unavailable, falling back with no entities", map[string]interface{}{
			"error": err.Error(),
		})
		return &models.Classification{
			Intent:   models.FallbackIntent,
			Entities: map[string]interface{}{},
		}
	}
	return classification
}

// mergeExtracted folds oracle entities into the collected set. Keys outside
// the intent's required and optional lists are dropped, already-set slots
// are never overwritten, and values that fail their declared type are
// skipped rather than stored.
func (m *Manager) mergeExtracted(intent models.Intent, extracted map[string]interface{}, collected, accepted map[string]interface{}) {
	if len(extracted) == 0 {
		return
	}
	allowed, err := m.registry.AllowedEntities(intent)
	if err != nil {
		return
	}
	for name, value := range extracted {
		if !allowed[name] || value == nil || value == "" {
			continue
		}
		if _, exists := collected[name]; exists {
			continue
		}
		coerced, ok := m.coerce(name, value)
		if !ok {
			continue
		}
		collected[name] = coerced
		accepted[name] = coerced
	}
}

// filterAllowed drops slots outside an intent's required and optional
// entity lists.
func (m *Manager) filterAllowed(intent models.Intent, entities map[string]interface{}) map[string]interface{} {
	allowed, err := m.registry.AllowedEntities(intent)
	if err != nil {
		return nil
	}
	out := make(map[string]interface{}, len(entities))
	for name, value := range entities {
		if allowed[name] {
			out[name] = value
		}
	}
	return out
}

func (m *Manager) fillPendingFromText(pending, query string, collected, accepted map[string]interface{}) {
	coerced, ok := m.coerce(pending, query)
	if !ok {
		return
	}
	collected[pending] = coerced
	accepted[pending] = coerced
}

func (m *Manager) coerce(entity string, value interface{}) (interface{}, bool) {
	entityType, err := m.registry.EntityType(entity)
	if err != nil {
		return nil, false
	}
	coerced, err := validation.CoerceValue(value, entityType)
	if err != nil {
		m.logger.Debug("entity value fails its declared type", map[string]interface{}{
			"entity": entity,
			"error":  err.Error(),
		})
		return nil, false
	}
	return coerced, true
}

// missingForIntent recomputes the missing required slots in schema order.
// An intent no longer present in the active schema (removed by a reload)
// falls back to FAQ instead of failing the turn.
func (m *Manager) missingForIntent(intent models.Intent, collected map[string]interface{}) (models.Intent, []string) {
	missing, err := m.registry.MissingEntities(intent, collected)
	if err == nil {
		return intent, missing
	}
	m.logger.Warn("intent not in active schema, falling back", map[string]interface{}{
		"intent": string(intent),
	})
	missing, err = m.registry.MissingEntities(models.FallbackIntent, collected)
	if err != nil {
		return models.FallbackIntent, nil
	}
	return models.FallbackIntent, missing
}

func (m *Manager) collectingOutcome(intent models.Intent, next string, collected, accepted map[string]interface{}) turnOutcome {
	question := m.question(next)

	response := question
	if name := m.ackEntity(intent, accepted); name != "" {
		response = acknowledgment(name, accepted[name], len(collected)) + "\n\n" + question
	}

	return turnOutcome{
		intent:        intent,
		state:         models.StateCollecting,
		pending:       next,
		accepted:      accepted,
		collected:     collected,
		response:      response,
		nextQuestion:  question,
		requiresInput: true,
		status:        models.StatusCollecting,
	}
}

func (m *Manager) answeredOutcome(ctx context.Context, sess *models.Session, query string, intent models.Intent, collected, accepted map[string]interface{}) turnOutcome {
	results := m.engine.Search(sess.AccumulatedQuery(query), collected)
	metrics.SearchesExecuted.WithLabelValues(string(intent)).Inc()
	metrics.SearchResultCount.WithLabelValues(string(intent)).Observe(float64(len(results)))

	var webResults []models.WebResult
	if m.web != nil && (intent == models.IntentNews || intent == models.IntentFAQ || len(results) == 0) {
		webResults = m.web.Search(ctx, originalQuery(sess, query), collected, intent)
	}

	text := summary(intent, collected, len(results)+len(webResults))
	text = appendWebSources(text, webResults)

	return turnOutcome{
		intent:    intent,
		state:     models.StateAnswered,
		accepted:  accepted,
		collected: collected,
		response:  text,
		status:    models.StatusComplete,
		results:   results,
		searched:  true,
	}
}

func (m *Manager) question(entity string) string {
	question, err := m.registry.Question(entity)
	if err != nil {
		return fmt.Sprintf("Could you please provide: %s?", entity)
	}
	return question
}

// ackEntity picks which freshly accepted slot to acknowledge: the earliest
// in the intent's declared order, so a turn that volunteered several slots
// confirms the most significant one.
func (m *Manager) ackEntity(intent models.Intent, accepted map[string]interface{}) string {
	if len(accepted) == 0 {
		return ""
	}
	required, _ := m.registry.RequiredEntities(intent)
	optional, _ := m.registry.OptionalEntities(intent)
	for _, name := range required {
		if _, ok := accepted[name]; ok {
			return name
		}
	}
	for _, name := range optional {
		if _, ok := accepted[name]; ok {
			return name
		}
	}

	names := make([]string, 0, len(accepted))
	for name := range accepted {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0]
}

// originalQuery returns the first user query of the conversation, which is
// what the web provider searches on.
func originalQuery(sess *models.Session, current string) string {
	if len(sess.TurnHistory) > 0 && sess.TurnHistory[0].Query != "" {
		return sess.TurnHistory[0].Query
	}
	return current
}

func cloneEntities(entities map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(entities))
	for k, v := range entities {
		out[k] = v
	}
	return out
}
