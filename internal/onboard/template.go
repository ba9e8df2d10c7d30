package onboard

import "strings"

// TemplateOption is one entry of the console's replication-template
// selector, scraped live per run. Template lists change on the console
// side, so options are never cached.
type TemplateOption struct {
	Value string
	Text  string
}

// qualifierWords are decorative tokens template names carry that carry no
// identity ("Acme AI 1:1 Copy Trading" should still match "Acme").
var qualifierWords = []string{"ai", "1:1", "copy", "trading"}

// minStrippedLen guards tier 3: a template whose name shrinks to 3 or
// fewer characters after stripping qualifiers would match almost any
// organization by containment.
const minStrippedLen = 3

// MatchTemplate selects the template best matching the organization name.
// Three tiers, first hit wins:
//  1. exact case-insensitive equality
//  2. template text contains the organization name
//  3. organization name contains the template text with qualifier words
//     stripped, if the remainder is long enough
//
// Returns nil when no tier matches.
func MatchTemplate(organization string, options []TemplateOption) *TemplateOption {
	org := strings.ToLower(strings.TrimSpace(organization))
	if org == "" {
		return nil
	}

	for i := range options {
		if strings.ToLower(strings.TrimSpace(options[i].Text)) == org {
			return &options[i]
		}
	}

	for i := range options {
		if strings.Contains(strings.ToLower(options[i].Text), org) {
			return &options[i]
		}
	}

	for i := range options {
		stripped := stripQualifiers(options[i].Text)
		if len(stripped) > minStrippedLen && strings.Contains(org, stripped) {
			return &options[i]
		}
	}

	return nil
}

func stripQualifiers(text string) string {
	words := strings.Fields(strings.ToLower(text))
	kept := words[:0]
	for _, w := range words {
		if !isQualifier(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func isQualifier(w string) bool {
	for _, q := range qualifierWords {
		if w == q {
			return true
		}
	}
	return false
}
