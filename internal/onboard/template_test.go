package onboard

import "testing"

func opts(names ...string) []TemplateOption {
	var o []TemplateOption
	for i, n := range names {
		o = append(o, TemplateOption{Value: string(rune('a' + i)), Text: n})
	}
	return o
}

func TestMatchTemplateExactBeatsContainment(t *testing.T) {
	m := MatchTemplate("Acme", opts("Acme AI", "Acme", "Beta"))
	if m == nil {
		t.Fatalf("expected a match")
	}
	if m.Text != "Acme" {
		t.Fatalf("expected the exact match, got %q", m.Text)
	}
}

func TestMatchTemplateExactIsCaseInsensitive(t *testing.T) {
	m := MatchTemplate("ACME", opts("acme"))
	if m == nil || m.Text != "acme" {
		t.Fatalf("expected case-insensitive exact match, got %#v", m)
	}
}

func TestMatchTemplateOrganizationInsideTemplate(t *testing.T) {
	m := MatchTemplate("Acme", opts("Beta", "Acme AI Copy"))
	if m == nil || m.Text != "Acme AI Copy" {
		t.Fatalf("expected containment match, got %#v", m)
	}
}

func TestMatchTemplateStrippedTemplateInsideOrganization(t *testing.T) {
	// "Acme" is not equal to and does not contain "Acme Capital", so tiers
	// 1 and 2 miss; tier 3 strips nothing here and finds "acme" inside
	// "acme capital".
	m := MatchTemplate("Acme Capital", opts("Acme"))
	if m == nil || m.Text != "Acme" {
		t.Fatalf("expected tier-3 match, got %#v", m)
	}
}

func TestMatchTemplateStripsQualifierWords(t *testing.T) {
	m := MatchTemplate("Northwind Capital", opts("Northwind AI 1:1 Copy Trading"))
	if m == nil || m.Text != "Northwind AI 1:1 Copy Trading" {
		t.Fatalf("expected qualifier-stripped match, got %#v", m)
	}
}

func TestMatchTemplateShortRemainderRejected(t *testing.T) {
	// After stripping qualifiers "AI Copy Trading" leaves nothing long
	// enough to match by containment.
	if m := MatchTemplate("Acme Capital", opts("AI Copy Trading")); m != nil {
		t.Fatalf("expected no match for short remainder, got %#v", m)
	}
}

func TestMatchTemplateNoMatch(t *testing.T) {
	if m := MatchTemplate("Zephyr", opts("Acme", "Beta")); m != nil {
		t.Fatalf("expected nil, got %#v", m)
	}
}

func TestMatchTemplateEmptyOrganization(t *testing.T) {
	if m := MatchTemplate("", opts("Acme")); m != nil {
		t.Fatalf("expected nil for empty organization, got %#v", m)
	}
}
