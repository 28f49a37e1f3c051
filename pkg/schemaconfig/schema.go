// pkg/schemaconfig/schema.go
package schemaconfig

// Document is the on-disk intent/entity schema the dialogue engine runs from.
type Document struct {
	Version     string                      `json:"version"`
	LastUpdated string                      `json:"lastUpdated"`
	Entities    map[string]EntityDefinition `json:"entities"`
	Intents     []IntentDefinition          `json:"intents"`
}

// EntityDefinition declares one slot: its semantic type, the question asked
// when the slot is missing and example answers shown with the question.
type EntityDefinition struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Examples []string `json:"examples,omitempty"`
}

// IntentDefinition declares one intent and the entities it collects.
// RequiredEntities order is the order missing slots are asked in.
type IntentDefinition struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	RequiredEntities []string `json:"requiredEntities"`
	OptionalEntities []string `json:"optionalEntities,omitempty"`
}

// Intent returns the definition with the given name.
func (d *Document) Intent(name string) (IntentDefinition, bool) {
	for _, intent := range d.Intents {
		if intent.Name == name {
			return intent, true
		}
	}
	return IntentDefinition{}, false
}

// IntentNames returns the declared intent names in document order.
func (d *Document) IntentNames() []string {
	names := make([]string, 0, len(d.Intents))
	for _, intent := range d.Intents {
		names = append(names, intent.Name)
	}
	return names
}
