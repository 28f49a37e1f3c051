// internal/search/keywords.go
package search

import "strings"

// domainVocabulary is the closed lookup table mined from query text. Only
// insurer names, metal tiers, plan types and coverage categories count as
// keywords; anything else in the query contributes nothing. Kept sorted so
// extraction order, and therefore reason order, is stable across runs.
var domainVocabulary = []string{
	"aetna",
	"ambetter",
	"anthem",
	"blue cross",
	"blue shield",
	"bronze",
	"catastrophic",
	"chiropractic",
	"cigna",
	"dental",
	"emergency",
	"epo",
	"gold",
	"hdhp",
	"hmo",
	"humana",
	"kaiser",
	"lab work",
	"maternity",
	"mental health",
	"molina",
	"oscar",
	"physical therapy",
	"platinum",
	"pos",
	"ppo",
	"prescription",
	"preventive",
	"primary care",
	"silver",
	"specialist",
	"telehealth",
	"unitedhealthcare",
	"urgent care",
	"vision",
	"wellcare",
}

// ExtractKeywords returns every vocabulary word present in the query text as
// a substring, in vocabulary order. Substring presence is intentional: "ppo
// plans in texas" hits "ppo" without tokenization.
func ExtractKeywords(queryText string) []string {
	lowered := strings.ToLower(queryText)

	var found []string
	for _, word := range domainVocabulary {
		if strings.Contains(lowered, word) {
			found = append(found, word)
		}
	}
	return found
}
