// internal/schema/registry.go
package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"insurance-assistant/internal/common/metrics"
	"insurance-assistant/internal/common/validation"
	"insurance-assistant/internal/models"
	"insurance-assistant/pkg/schemaconfig"
)

// Sentinel errors for schema loading and lookups.
var (
	ErrSchemaLoad    = errors.New("SCHEMA_LOAD_FAILED")
	ErrUnknownIntent = errors.New("UNKNOWN_INTENT")
	ErrUnknownEntity = errors.New("UNKNOWN_ENTITY")
)

// Logger defines the minimal logging interface for this package
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Registry holds the active intent/entity schema. Reads are lock-free; a
// reload swaps the whole document atomically so in-flight turns keep the
// version they started with.
type Registry struct {
	path   string
	logger Logger
	active atomic.Pointer[schemaconfig.Document]
}

// NewRegistry loads the schema document at path. A load failure here is
// returned to the caller and should abort startup.
func NewRegistry(path string, logger Logger) (*Registry, error) {
	r := &Registry{
		path:   path,
		logger: logger,
	}

	doc, err := schemaconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	if err := checkFallback(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}

	r.active.Store(doc)
	logger.Info("Intent schema loaded", map[string]interface{}{
		"path":    path,
		"version": doc.Version,
		"intents": len(doc.Intents),
	})

	return r, nil
}

// checkFallback ensures the fallback intent is always resolvable.
func checkFallback(doc *schemaconfig.Document) error {
	if _, ok := doc.Intent(string(models.FallbackIntent)); !ok {
		return fmt.Errorf("fallback intent %q is not defined", models.FallbackIntent)
	}
	return nil
}

// Reload re-reads the document and swaps it in. On any failure the previous
// schema stays active and the error is returned.
func (r *Registry) Reload() error {
	doc, err := schemaconfig.Load(r.path)
	if err == nil {
		err = checkFallback(doc)
	}
	if err != nil {
		metrics.SchemaReloads.WithLabelValues("failure").Inc()
		r.logger.Error("Schema reload failed, keeping previous schema", map[string]interface{}{
			"path":  r.path,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}

	r.active.Store(doc)
	metrics.SchemaReloads.WithLabelValues("success").Inc()
	r.logger.Info("Intent schema reloaded", map[string]interface{}{
		"path":    r.path,
		"version": doc.Version,
		"intents": len(doc.Intents),
	})
	return nil
}

// Document returns the active schema document.
func (r *Registry) Document() *schemaconfig.Document {
	return r.active.Load()
}

// Path returns the watched document path.
func (r *Registry) Path() string {
	return r.path
}

// Version returns the active document version.
func (r *Registry) Version() string {
	return r.active.Load().Version
}

// ResolveIntent maps a raw classifier label to a schema intent. Labels not in
// the active schema fall back to the FAQ intent instead of failing the turn.
func (r *Registry) ResolveIntent(raw string) models.Intent {
	if _, ok := r.active.Load().Intent(raw); ok {
		return models.Intent(raw)
	}
	r.logger.Warn("Unknown intent from classifier, using fallback", map[string]interface{}{
		"intent":   raw,
		"fallback": string(models.FallbackIntent),
	})
	return models.FallbackIntent
}

// RequiredEntities returns the required slots for an intent in ask order.
func (r *Registry) RequiredEntities(intent models.Intent) ([]string, error) {
	def, ok := r.active.Load().Intent(string(intent))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}
	return def.RequiredEntities, nil
}

// OptionalEntities returns the optional slots for an intent.
func (r *Registry) OptionalEntities(intent models.Intent) ([]string, error) {
	def, ok := r.active.Load().Intent(string(intent))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}
	return def.OptionalEntities, nil
}

// AllowedEntities returns the set of slots an intent may carry, required and
// optional combined.
func (r *Registry) AllowedEntities(intent models.Intent) (map[string]bool, error) {
	def, ok := r.active.Load().Intent(string(intent))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}

	allowed := make(map[string]bool, len(def.RequiredEntities)+len(def.OptionalEntities))
	for _, name := range def.RequiredEntities {
		allowed[name] = true
	}
	for _, name := range def.OptionalEntities {
		allowed[name] = true
	}
	return allowed, nil
}

// MissingEntities recomputes which required slots are still absent from the
// collected set, preserving schema order.
func (r *Registry) MissingEntities(intent models.Intent, collected map[string]interface{}) ([]string, error) {
	required, err := r.RequiredEntities(intent)
	if err != nil {
		return nil, err
	}

	return validation.ValidateRequiredEntities(collected, required).MissingEntities(), nil
}

// EntityType returns the declared semantic type for an entity.
func (r *Registry) EntityType(entity string) (string, error) {
	def, ok := r.active.Load().Entities[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return def.Type, nil
}

// EntityTypes returns the declared semantic type of every entity in the
// active schema.
func (r *Registry) EntityTypes() map[string]string {
	doc := r.active.Load()
	types := make(map[string]string, len(doc.Entities))
	for name, def := range doc.Entities {
		types[name] = def.Type
	}
	return types
}

// Question renders the clarifying question for an entity, appending up to
// three example answers when the schema provides them.
func (r *Registry) Question(entity string) (string, error) {
	def, ok := r.active.Load().Entities[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	examples := def.Examples
	if len(examples) > 3 {
		examples = examples[:3]
	}
	if len(examples) == 0 {
		return def.Question, nil
	}
	return fmt.Sprintf("%s (e.g., %s)", def.Question, strings.Join(examples, ", ")), nil
}
