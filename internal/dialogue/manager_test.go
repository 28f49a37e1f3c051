// internal/dialogue/manager_test.go
package dialogue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/models"
	"insurance-assistant/internal/nlu"
	"insurance-assistant/internal/schema"
	"insurance-assistant/internal/session"
)

// ==========================
// Test Fakes
// ==========================

type classifyCall struct {
	query   string
	convCtx nlu.Context
}

type classifyFunc func(query string, convCtx nlu.Context) (*models.Classification, error)

type fakeClassifier struct {
	mu    sync.Mutex
	fn    classifyFunc
	calls []classifyCall
}

func (f *fakeClassifier) Classify(_ context.Context, query string, convCtx nlu.Context) (*models.Classification, error) {
	f.mu.Lock()
	f.calls = append(f.calls, classifyCall{query: query, convCtx: convCtx})
	f.mu.Unlock()
	if f.fn == nil {
		return classified(models.FallbackIntent, nil), nil
	}
	return f.fn(query, convCtx)
}

func (f *fakeClassifier) call(i int) classifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type fakeSearcher struct {
	mu           sync.Mutex
	results      []models.ScoredMatch
	calls        int
	lastQuery    string
	lastEntities map[string]interface{}
}

func (f *fakeSearcher) Search(queryText string, entities map[string]interface{}) []models.ScoredMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery = queryText
	f.lastEntities = entities
	return f.results
}

type fakeWebSearcher struct {
	mu         sync.Mutex
	results    []models.WebResult
	calls      int
	lastQuery  string
	lastIntent models.Intent
}

func (f *fakeWebSearcher) Search(_ context.Context, queryText string, _ map[string]interface{}, intent models.Intent) []models.WebResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery = queryText
	f.lastIntent = intent
	return f.results
}

func (f *fakeWebSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ==========================
// Test Helper Functions
// ==========================

const dialogueTestSchema = `{
	"version": "1.0",
	"entities": {
		"plan_name": {"type": "string", "question": "Which insurance plan are you interested in?", "examples": ["Molina Silver 1 HMO", "Aetna Gold"]},
		"insurer": {"type": "string", "question": "Which insurance company or insurer are you asking about?", "examples": ["Molina", "Aetna", "UnitedHealthcare"]},
		"year": {"type": "integer", "question": "Which year are you interested in?", "examples": ["2024", "2025"]},
		"county": {"type": "string", "question": "Perfect! Which county do you live in? This will help us find plans available in your area."},
		"age": {"type": "integer", "question": "To help you find the best insurance options, could you please tell me your age?"},
		"income": {"type": "integer", "question": "Great! Now, could you share your approximate annual income? This helps us find plans that fit your budget."},
		"coverage_item": {"type": "string", "question": "Which coverage item would you like to know about?", "examples": ["dental", "vision", "prescription drugs"]},
		"subtype": {"type": "string", "question": "Could you specify the subtype or specific aspect of this coverage you're interested in?"},
		"provider_name": {"type": "string", "question": "Which doctor or healthcare provider are you asking about?"},
		"specialty": {"type": "string", "question": "What medical specialty are you looking for?", "examples": ["cardiology", "pediatrics", "dermatology"]},
		"topic": {"type": "string", "question": "What specific topic or question do you have about health insurance?"},
		"state": {"type": "string", "question": "Which state are you located in?"},
		"metal_level": {"type": "string", "question": "Which metal tier are you interested in?"},
		"plan_type": {"type": "string", "question": "Which plan type do you prefer?"},
		"features": {"type": "string", "question": "Which features or aspects would you like to compare?", "examples": ["premiums", "deductibles", "coverage"]}
	},
	"intents": [
		{"name": "PlanInfo", "requiredEntities": ["plan_name", "insurer", "year", "county", "age"], "optionalEntities": ["metal_level", "plan_type", "state", "income"]},
		{"name": "CoverageDetail", "requiredEntities": ["plan_name", "insurer", "year", "county", "coverage_item", "subtype"], "optionalEntities": ["metal_level", "state"]},
		{"name": "ProviderNetwork", "requiredEntities": ["provider_name", "specialty", "county", "plan_name", "insurer"], "optionalEntities": ["state"]},
		{"name": "Comparison", "requiredEntities": ["plan_name", "insurer", "year", "county"], "optionalEntities": ["features", "metal_level", "income", "age"]},
		{"name": "FAQ", "requiredEntities": ["topic"]},
		{"name": "News", "requiredEntities": ["topic", "year"]}
	]
}`

type managerFixture struct {
	manager    *Manager
	store      *session.Store
	registry   *schema.Registry
	classifier *fakeClassifier
	searcher   *fakeSearcher
	web        *fakeWebSearcher
	schemaPath string
}

func newManagerFixture(t *testing.T, fn classifyFunc) *managerFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "intent_schema.json")
	require.NoError(t, os.WriteFile(path, []byte(dialogueTestSchema), 0o644))

	log := logger.NewTestLogger(t)
	registry, err := schema.NewRegistry(path, log)
	require.NoError(t, err)

	store := session.NewStore(config.SessionConfig{TTL: 60_000, ReaperInterval: 60_000}, log)
	classifier := &fakeClassifier{fn: fn}
	searcher := &fakeSearcher{}
	web := &fakeWebSearcher{}

	return &managerFixture{
		manager:    NewManager(store, registry, classifier, searcher, web, log),
		store:      store,
		registry:   registry,
		classifier: classifier,
		searcher:   searcher,
		web:        web,
		schemaPath: path,
	}
}

func classified(intent models.Intent, entities map[string]interface{}) *models.Classification {
	if entities == nil {
		entities = map[string]interface{}{}
	}
	return &models.Classification{Intent: intent, Entities: entities, Confidence: 0.9}
}

// scriptedClassifier answers exact queries from the script and returns an
// entity-free fallback for everything else, which is how raw slot answers
// like "2024" read to the oracle.
func scriptedClassifier(script map[string]*models.Classification) classifyFunc {
	return func(query string, _ nlu.Context) (*models.Classification, error) {
		if c, ok := script[query]; ok {
			return c, nil
		}
		return classified(models.FallbackIntent, nil), nil
	}
}

func turn(t *testing.T, fix *managerFixture, sessionID, query string) *models.ChatResponse {
	t.Helper()
	resp := fix.manager.ProcessTurn(context.Background(), models.ChatRequest{
		SessionID: sessionID,
		Query:     query,
	})
	require.NotNil(t, resp)
	return resp
}

func planMatch() models.ScoredMatch {
	return models.ScoredMatch{
		Source:       models.SourcePlan,
		RecordID:     "plan-001",
		PlanID:       "MOL-SILVER-2024",
		Score:        12,
		MatchReasons: []string{"Insurer match: Molina", "Metal tier match: Silver"},
	}
}

// ==========================
// Slot-Filling Flow Tests
// ==========================

func TestManager_FirstTurn_CollectsAndAsksNextSlot(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare Molina plans": classified(models.IntentComparison, map[string]interface{}{"insurer": "Molina"}),
	}))

	resp := turn(t, fix, "", "compare Molina plans")

	assert.Len(t, resp.SessionID, 36)
	assert.Equal(t, models.StatusCollecting, resp.Status)
	assert.True(t, resp.RequiresInput)
	assert.Equal(t, "Which insurance plan are you interested in? (e.g., Molina Silver 1 HMO, Aetna Gold)", resp.NextQuestion,
		"insurer alone leaves plan_name as the first missing slot")
	assert.Equal(t, "Understood! Looking at Molina's offerings.\n\n"+resp.NextQuestion, resp.Response)
	assert.Equal(t, "Molina", resp.CollectedEntities["insurer"])
	assert.Empty(t, resp.SearchResults)
}

func TestManager_SlotFilling_ProgressesToAnswer(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare Molina plans": classified(models.IntentComparison, map[string]interface{}{"insurer": "Molina"}),
		"Molina Silver 1 HMO":  classified(models.IntentComparison, map[string]interface{}{"plan_name": "Molina Silver 1 HMO"}),
	}))
	fix.searcher.results = []models.ScoredMatch{planMatch()}

	first := turn(t, fix, "", "compare Molina plans")
	id := first.SessionID

	second := turn(t, fix, id, "Molina Silver 1 HMO")
	assert.Equal(t, models.StatusCollecting, second.Status)
	assert.Equal(t, "Which year are you interested in? (e.g., 2024, 2025)", second.NextQuestion)
	assert.Contains(t, second.Response, "Got it! Looking into Molina Silver 1 HMO for you.")

	// the second call carried the conversation context to the oracle
	ctx2 := fix.classifier.call(1).convCtx
	assert.Equal(t, "plan_name", ctx2.PendingEntity)
	assert.Equal(t, "Comparison", ctx2.IntentHint)
	assert.Equal(t, "Molina", ctx2.CollectedEntities["insurer"])

	third := turn(t, fix, id, "2024")
	assert.Equal(t, models.StatusCollecting, third.Status)
	assert.Equal(t, "Perfect! Which county do you live in? This will help us find plans available in your area.", third.NextQuestion)
	assert.Equal(t, 2024, third.CollectedEntities["year"], "raw answers are typed by the slot's declared type")

	fourth := turn(t, fix, id, "Travis")
	assert.Equal(t, models.StatusComplete, fourth.Status)
	assert.False(t, fourth.RequiresInput)
	assert.Empty(t, fourth.NextQuestion)
	require.Len(t, fourth.SearchResults, 1)
	assert.Equal(t, "MOL-SILVER-2024", fourth.SearchResults[0].PlanID)
	assert.Contains(t, fourth.Response, "Based on your profile (County: Travis), I found 1 insurance options for you:")

	assert.Equal(t, "compare Molina plans Molina Silver 1 HMO 2024 Travis", fix.searcher.lastQuery,
		"search runs over the accumulated dialogue text")
	assert.Equal(t, "Molina", fix.searcher.lastEntities["insurer"])
	assert.Equal(t, 2024, fix.searcher.lastEntities["year"])
	assert.Equal(t, "Travis", fix.searcher.lastEntities["county"])

	t.Logf("✅ Slot filling completed in 4 turns for 4 required entities")
}

func TestManager_UnparseableTypedAnswer_ReasksSameSlot(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"find me a plan": classified(models.IntentPlanInfo, map[string]interface{}{
			"plan_name": "Oscar Classic Gold",
			"insurer":   "Oscar",
			"year":      float64(2024),
			"county":    "Travis",
		}),
	}))
	fix.searcher.results = []models.ScoredMatch{planMatch()}

	first := turn(t, fix, "", "find me a plan")
	id := first.SessionID
	ageQuestion := "To help you find the best insurance options, could you please tell me your age?"
	require.Equal(t, ageQuestion, first.NextQuestion)

	second := turn(t, fix, id, "thirty five")
	assert.Equal(t, models.StatusCollecting, second.Status)
	assert.Equal(t, ageQuestion, second.NextQuestion, "the same slot is asked again")
	assert.Equal(t, ageQuestion, second.Response, "no acknowledgment when nothing was accepted")
	_, hasAge := second.CollectedEntities["age"]
	assert.False(t, hasAge, "the unparseable value is never stored")

	third := turn(t, fix, id, "35")
	assert.Equal(t, models.StatusComplete, third.Status)
	assert.Equal(t, 35, third.CollectedEntities["age"])
}

func TestManager_OracleFailure_FallsBackOpen(t *testing.T) {
	fix := newManagerFixture(t, func(string, nlu.Context) (*models.Classification, error) {
		return nil, errors.New("INTENT_API_TIMEOUT: context deadline exceeded")
	})

	resp := turn(t, fix, "", "what is a deductible")

	assert.Equal(t, models.StatusCollecting, resp.Status)
	assert.Equal(t, "What specific topic or question do you have about health insurance?", resp.NextQuestion,
		"a dead oracle degrades to the FAQ intent")
	assert.Empty(t, resp.CollectedEntities)
}

func TestManager_OracleFailureMidDialogue_RawAnswersStillFillSlots(t *testing.T) {
	oracleDown := false
	fix := newManagerFixture(t, func(query string, _ nlu.Context) (*models.Classification, error) {
		if oracleDown {
			return nil, errors.New("INTENT_API_TIMEOUT")
		}
		return classified(models.IntentFAQ, map[string]interface{}{}), nil
	})
	fix.searcher.results = nil

	first := turn(t, fix, "", "help me out")
	require.Equal(t, models.StatusCollecting, first.Status)

	oracleDown = true
	second := turn(t, fix, first.SessionID, "open enrollment")

	assert.Equal(t, models.StatusComplete, second.Status,
		"slot filling keeps working from raw text while the oracle is down")
	assert.Equal(t, "open enrollment", second.CollectedEntities["topic"])
}

// ==========================
// Entity Rule Tests
// ==========================

func TestManager_EntitiesOutsideIntentAreDropped(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"what is open enrollment": classified(models.IntentFAQ, map[string]interface{}{
			"topic":   "open enrollment",
			"insurer": "Molina",
			"bogus":   "value",
		}),
	}))

	resp := turn(t, fix, "", "what is open enrollment")

	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Equal(t, map[string]interface{}{"topic": "open enrollment"}, resp.CollectedEntities,
		"collected keys stay inside the intent's required and optional sets")
}

func TestManager_CollectedValueNeverOverwritten(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare Molina plans": classified(models.IntentComparison, map[string]interface{}{"insurer": "Molina"}),
		"actually Aetna Gold": classified(models.IntentComparison, map[string]interface{}{
			"insurer":   "Aetna",
			"plan_name": "Aetna Gold",
		}),
	}))

	first := turn(t, fix, "", "compare Molina plans")
	second := turn(t, fix, first.SessionID, "actually Aetna Gold")

	assert.Equal(t, "Molina", second.CollectedEntities["insurer"], "re-extraction never replaces a set slot")
	assert.Equal(t, "Aetna Gold", second.CollectedEntities["plan_name"])
}

func TestManager_MistypedExtractionSkipped(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"plans next year": classified(models.IntentComparison, map[string]interface{}{
			"insurer": "Molina",
			"year":    "next year",
		}),
	}))

	resp := turn(t, fix, "", "plans next year")

	_, hasYear := resp.CollectedEntities["year"]
	assert.False(t, hasYear, "extracted values that fail their declared type are skipped")
	assert.Equal(t, "Molina", resp.CollectedEntities["insurer"])
}

// ==========================
// Answer & Augmentation Tests
// ==========================

func TestManager_FAQAnswer_WebAugmented(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"what is open enrollment": classified(models.IntentFAQ, map[string]interface{}{"topic": "open enrollment"}),
	}))
	fix.web.results = []models.WebResult{
		{Title: "Open Enrollment Guide", Description: "Dates and deadlines", URL: "https://example.com/oe"},
		{Title: "Enrollment FAQ", Description: "Common questions", URL: "https://example.com/faq"},
	}

	resp := turn(t, fix, "", "what is open enrollment")

	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Contains(t, resp.Response, "I found 2 results for you:")
	assert.Contains(t, resp.Response, "Here is what I found on the web:")
	assert.Contains(t, resp.Response, "Open Enrollment Guide: Dates and deadlines (https://example.com/oe)")
	assert.Empty(t, resp.SearchResults)
	assert.Equal(t, 1, fix.web.callCount())
	assert.Equal(t, "what is open enrollment", fix.web.lastQuery)
	assert.Equal(t, models.IntentFAQ, fix.web.lastIntent)
}

func TestManager_DatasetHitsSkipWebForPlanIntents(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare plans": classified(models.IntentComparison, map[string]interface{}{
			"plan_name": "Molina Silver 1 HMO",
			"insurer":   "Molina",
			"year":      float64(2024),
			"county":    "Austin",
		}),
	}))
	fix.searcher.results = []models.ScoredMatch{planMatch()}

	resp := turn(t, fix, "", "compare plans")

	assert.Equal(t, models.StatusComplete, resp.Status)
	require.Len(t, resp.SearchResults, 1)
	assert.Equal(t, 0, fix.web.callCount(), "web augmentation only fires for News, FAQ, or empty dataset results")
	assert.Contains(t, resp.Response, "Based on your profile (County: Austin), I found 1 insurance options for you:")
}

func TestManager_EmptyDatasetResultsTriggerWeb(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare plans": classified(models.IntentComparison, map[string]interface{}{
			"plan_name": "Molina Silver 1 HMO",
			"insurer":   "Molina",
			"year":      float64(2024),
			"county":    "Austin",
		}),
	}))
	fix.web.results = []models.WebResult{
		{Title: "Plan Finder", URL: "https://example.com/finder"},
	}

	resp := turn(t, fix, "", "compare plans")

	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Equal(t, 1, fix.web.callCount())
	assert.Contains(t, resp.Response, "I found 1 insurance options for you:")
	assert.Contains(t, resp.Response, "Plan Finder")
}

func TestManager_ZeroMatchesAndFailedWeb_StillComplete(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"what is coinsurance": classified(models.IntentFAQ, map[string]interface{}{"topic": "coinsurance"}),
	}))
	// web client degrades to nil on provider failure

	resp := turn(t, fix, "", "what is coinsurance")

	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Empty(t, resp.SearchResults)
	assert.Contains(t, resp.Response, "I found 0 results for you:")
}

// ==========================
// Session & Intent Lifecycle Tests
// ==========================

func TestManager_UnknownSessionIDStartsFresh(t *testing.T) {
	fix := newManagerFixture(t, nil)

	resp := turn(t, fix, "ghost-session", "hello")

	assert.NotEqual(t, "ghost-session", resp.SessionID)
	assert.Len(t, resp.SessionID, 36)
	assert.Equal(t, 1, fix.store.Len())
}

func TestManager_IntentLocksOnFirstTurn(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"latest insurance news": classified(models.IntentNews, map[string]interface{}{"topic": "premium changes"}),
		"2024":                  classified(models.IntentFAQ, map[string]interface{}{"year": float64(2024)}),
	}))

	first := turn(t, fix, "", "latest insurance news")
	require.Equal(t, "Which year are you interested in? (e.g., 2024, 2025)", first.NextQuestion)

	second := turn(t, fix, first.SessionID, "2024")

	assert.Equal(t, models.StatusComplete, second.Status)
	assert.Contains(t, second.Response, "I found 0 results for you:")
	assert.Equal(t, models.IntentNews, fix.web.lastIntent,
		"a later classification never replaces the locked intent")
}

func TestManager_RacingFirstTurns_LockedIntentFiltersLateSlots(t *testing.T) {
	fix := newManagerFixture(t, nil)
	sess := fix.store.Acquire("")

	// a competing first turn locks PlanInfo while this turn is off at the
	// oracle, so this turn's FAQ slots must not land on the session
	fix.classifier.fn = func(query string, _ nlu.Context) (*models.Classification, error) {
		_, ok := fix.store.Update(sess.ID, func(live *models.Session) {
			live.DetectedIntent = models.IntentPlanInfo
			live.State = models.StateCollecting
			live.SetEntity("insurer", "Molina")
		})
		require.True(t, ok)
		return classified(models.IntentFAQ, map[string]interface{}{"topic": "deductibles"}), nil
	}

	turn(t, fix, sess.ID, "what are deductibles")

	final, ok := fix.store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, models.IntentPlanInfo, final.DetectedIntent)
	assert.Equal(t, "Molina", final.CollectedEntities["insurer"])
	assert.NotContains(t, final.CollectedEntities, "topic",
		"slots from the losing classification stay off the session")
}

func TestManager_IntentRemovedByReload_FallsBackToFAQ(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"latest insurance news": classified(models.IntentNews, map[string]interface{}{"topic": "premium changes"}),
	}))

	first := turn(t, fix, "", "latest insurance news")
	require.Equal(t, models.StatusCollecting, first.Status)

	narrowed := `{
		"version": "2.0",
		"entities": {
			"topic": {"type": "string", "question": "What specific topic or question do you have about health insurance?"}
		},
		"intents": [
			{"name": "FAQ", "requiredEntities": ["topic"]}
		]
	}`
	require.NoError(t, os.WriteFile(fix.schemaPath, []byte(narrowed), 0o644))
	require.NoError(t, fix.registry.Reload())

	second := turn(t, fix, first.SessionID, "2024")

	assert.Equal(t, models.StatusComplete, second.Status,
		"an intent dropped by a schema reload degrades to FAQ with the slots already collected")
}

func TestManager_ConcurrentTurnsMergeEntities(t *testing.T) {
	fix := newManagerFixture(t, scriptedClassifier(map[string]*models.Classification{
		"compare Molina plans": classified(models.IntentComparison, map[string]interface{}{"insurer": "Molina"}),
		"Molina Silver 1 HMO":  classified(models.IntentComparison, map[string]interface{}{"plan_name": "Molina Silver 1 HMO"}),
		"Molina Silver 1 HMO for 2024": classified(models.IntentComparison, map[string]interface{}{
			"plan_name": "Molina Silver 1 HMO",
			"year":      float64(2024),
		}),
	}))

	first := turn(t, fix, "", "compare Molina plans")
	id := first.SessionID

	var wg sync.WaitGroup
	queries := []string{"Molina Silver 1 HMO", "Molina Silver 1 HMO for 2024"}
	for _, q := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			fix.manager.ProcessTurn(context.Background(), models.ChatRequest{SessionID: id, Query: query})
		}(q)
	}
	wg.Wait()

	final, ok := fix.store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Molina", final.CollectedEntities["insurer"])
	assert.Equal(t, "Molina Silver 1 HMO", final.CollectedEntities["plan_name"])
	assert.Equal(t, 2024, final.CollectedEntities["year"], "concurrent turns union their accepted slots")
	assert.Equal(t, 3, final.TurnCount())
}
