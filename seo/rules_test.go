package seo

import (
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/sitelens/models"
)

func strPtr(s string) *string { return &s }

// healthySignals returns a signal set that fires no rules.
func healthySignals() *models.SignalSet {
	return &models.SignalSet{
		Title: strPtr("Acme Widgets"),
		Meta: models.MetaSignals{
			Description: strPtr("Quality widgets since 1999."),
			Canonical:   strPtr("https://example.com/"),
			Hreflang: []models.HreflangEntry{
				{Lang: "en", Href: "https://example.com/en"},
				{Lang: "de", Href: "https://example.com/de"},
			},
		},
		Headings:    models.HeadingSet{H1: []string{"Welcome"}},
		SchemaTypes: []string{"Organization"},
	}
}

func TestEvaluate_HealthyPage(t *testing.T) {
	issues := Evaluate(healthySignals())
	if issues == nil {
		t.Fatal("issues must be an empty slice, not nil")
	}
	if len(issues) != 0 {
		t.Errorf("healthy page produced issues: %v", issues)
	}
}

func TestEvaluate_MissingDescriptionAndMultipleH1(t *testing.T) {
	s := healthySignals()
	s.Meta.Description = nil
	s.Headings.H1 = []string{"Welcome", "Also Welcome"}

	issues := Evaluate(s)

	want := []string{"missing meta description", "multiple h1 headings"}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues = %v, want %v", issues, want)
	}
}

func TestEvaluate_EmptyPage(t *testing.T) {
	issues := Evaluate(&models.SignalSet{})

	want := []string{
		"missing title",
		"missing meta description",
		"missing canonical URL",
		"missing h1 heading",
		"missing structured data",
	}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues = %v, want %v", issues, want)
	}
}

func TestEvaluate_DescriptionTooLong(t *testing.T) {
	s := healthySignals()
	s.Meta.Description = strPtr(strings.Repeat("x", metaDescriptionMaxLen+1))

	issues := Evaluate(s)
	if len(issues) != 1 || !strings.HasPrefix(issues[0], "meta description too long") {
		t.Errorf("issues = %v, want single too-long issue", issues)
	}
}

func TestEvaluate_DescriptionAtLimit(t *testing.T) {
	s := healthySignals()
	s.Meta.Description = strPtr(strings.Repeat("x", metaDescriptionMaxLen))

	if issues := Evaluate(s); len(issues) != 0 {
		t.Errorf("description at exactly the limit should not fire: %v", issues)
	}
}

func TestEvaluate_HreflangRules(t *testing.T) {
	tests := []struct {
		name     string
		hreflang []models.HreflangEntry
		want     []string
	}{
		{
			name: "duplicate language case-insensitive",
			hreflang: []models.HreflangEntry{
				{Lang: "en", Href: "https://example.com/en"},
				{Lang: "EN", Href: "https://example.com/en-us"},
			},
			want: []string{"duplicate hreflang language entries"},
		},
		{
			name: "missing href",
			hreflang: []models.HreflangEntry{
				{Lang: "en", Href: "https://example.com/en"},
				{Lang: "fr"},
			},
			want: []string{"hreflang entry missing href"},
		},
		{
			name: "both at once",
			hreflang: []models.HreflangEntry{
				{Lang: "en"},
				{Lang: "en"},
			},
			want: []string{"duplicate hreflang language entries", "hreflang entry missing href"},
		},
		{
			name:     "no entries is fine",
			hreflang: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := healthySignals()
			s.Meta.Hreflang = tt.hreflang
			if got := Evaluate(s); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("issues = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_ImageAltCoverage(t *testing.T) {
	tests := []struct {
		name   string
		images models.ImageStats
		want   []string
	}{
		{"no images", models.ImageStats{}, []string{}},
		{"full coverage", models.ImageStats{Total: 5}, []string{}},
		{
			"coverage at threshold",
			models.ImageStats{Total: 5, MissingAlt: 1},
			[]string{},
		},
		{
			"coverage below threshold",
			models.ImageStats{Total: 5, MissingAlt: 2},
			[]string{"low image alt coverage (2 of 5 images missing alt text)"},
		},
		{
			"all missing",
			models.ImageStats{Total: 3, MissingAlt: 3},
			[]string{"low image alt coverage (3 of 3 images missing alt text)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := healthySignals()
			s.Images = tt.images
			if got := Evaluate(s); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("issues = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	s := &models.SignalSet{
		Headings: models.HeadingSet{H1: []string{"a", "b"}},
	}
	first := Evaluate(s)
	for i := 0; i < 10; i++ {
		if got := Evaluate(s); !reflect.DeepEqual(got, first) {
			t.Fatalf("evaluation order changed between runs: %v vs %v", got, first)
		}
	}
}
