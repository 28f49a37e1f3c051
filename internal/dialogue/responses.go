// internal/dialogue/responses.go
package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"insurance-assistant/internal/models"
)

// acknowledgmentBank holds the rotating confirmations played back after a
// slot is filled. The {value} token is replaced with the collected value;
// the variant is picked by total collected count so consecutive answers do
// not read canned.
var acknowledgmentBank = map[string][]string{
	"age": {
		"Thank you! I found quite a few insurance options for someone who is {value} years old.",
		"Excellent! There are several plans available for your age group ({value}).",
	},
	"income": {
		"Perfect! Based on an income of ${value}, I can see there are multiple affordable options.",
		"Great! With that income level, you may qualify for some excellent plans.",
	},
	"county": {
		"Wonderful! {value} county has many insurance providers to choose from.",
		"Thanks! There are several quality insurance plans available in {value} county.",
	},
	"plan_name": {
		"Got it! Looking into {value} for you.",
		"Perfect! Let me find details about {value}.",
	},
	"insurer": {
		"Great! I'll search for plans from {value}.",
		"Understood! Looking at {value}'s offerings.",
	},
	"year": {
		"Perfect! I'll focus on {value} plans.",
		"Got it! Searching for {value} coverage options.",
	},
	"provider_name": {
		"Thank you! Looking up information for {value}.",
		"Got it! Checking network coverage for {value}.",
	},
	"specialty": {
		"Perfect! Searching for {value} providers.",
		"Understood! Finding {value} specialists for you.",
	},
	"topic": {
		"Great question about {value}! Let me help you with that.",
		"I understand you want to know about {value}.",
	},
}

// acknowledgment picks the confirmation for a freshly filled slot. Entities
// without a curated list get a plain confirmation.
func acknowledgment(entity string, value interface{}, collectedCount int) string {
	bank, ok := acknowledgmentBank[entity]
	if !ok {
		return fmt.Sprintf("Got it, %s: %s", entity, entityText(value))
	}
	phrase := bank[collectedCount%len(bank)]
	return strings.ReplaceAll(phrase, "{value}", entityText(value))
}

// summary renders the answer headline. News and FAQ answers are generic;
// everything else leads with the profile slots that shaped the search.
func summary(intent models.Intent, entities map[string]interface{}, resultCount int) string {
	if intent == models.IntentNews || intent == models.IntentFAQ {
		return fmt.Sprintf("I found %d results for you:", resultCount)
	}

	var profile []string
	if v, ok := entities["age"]; ok {
		profile = append(profile, "Age: "+entityText(v))
	}
	if v, ok := entities["income"]; ok {
		profile = append(profile, "Income: $"+entityText(v))
	}
	if v, ok := entities["county"]; ok {
		profile = append(profile, "County: "+entityText(v))
	}

	if len(profile) > 0 {
		return fmt.Sprintf("Based on your profile (%s), I found %d insurance options for you:",
			strings.Join(profile, ", "), resultCount)
	}
	return fmt.Sprintf("I found %d insurance options for you:", resultCount)
}

// appendWebSources tacks external hits onto the answer text as source lines.
func appendWebSources(text string, results []models.WebResult) string {
	if len(results) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nHere is what I found on the web:")
	for _, r := range results {
		b.WriteString("\n- ")
		b.WriteString(r.Title)
		if r.Description != "" {
			b.WriteString(": ")
			b.WriteString(r.Description)
		}
		if r.URL != "" {
			b.WriteString(" (")
			b.WriteString(r.URL)
			b.WriteString(")")
		}
	}
	return b.String()
}

// entityText renders a collected value the way it reads in a sentence.
// Whole-number floats drop the fractional part so an age of 35 never prints
// as 35.0.
func entityText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
