package seo

import (
	"fmt"
	"strings"

	"github.com/use-agent/sitelens/models"
)

// metaDescriptionMaxLen is the length above which a meta description is
// flagged as too long.
const metaDescriptionMaxLen = 160

// altCoverageMinPercent is the share of images that must carry alt text
// before the coverage rule fires.
const altCoverageMinPercent = 80

// Rule is one declarative check over an extracted signal set. Check
// returns the human-readable issue and true when the rule fires. Rules
// never mutate the signals they inspect.
type Rule struct {
	Name  string
	Check func(s *models.SignalSet) (string, bool)
}

// Rules is the ordered rule set. Evaluation order is the slice order, so
// issue lists are deterministic for identical signals.
var Rules = []Rule{
	{
		Name: "title_missing",
		Check: func(s *models.SignalSet) (string, bool) {
			if s.Title == nil || strings.TrimSpace(*s.Title) == "" {
				return "missing title", true
			}
			return "", false
		},
	},
	{
		Name: "meta_description_missing",
		Check: func(s *models.SignalSet) (string, bool) {
			if s.Meta.Description == nil || strings.TrimSpace(*s.Meta.Description) == "" {
				return "missing meta description", true
			}
			return "", false
		},
	},
	{
		Name: "meta_description_too_long",
		Check: func(s *models.SignalSet) (string, bool) {
			if s.Meta.Description == nil {
				return "", false
			}
			if n := len([]rune(*s.Meta.Description)); n > metaDescriptionMaxLen {
				return fmt.Sprintf("meta description too long (%d chars, max %d)",
					n, metaDescriptionMaxLen), true
			}
			return "", false
		},
	},
	{
		Name: "canonical_missing",
		Check: func(s *models.SignalSet) (string, bool) {
			if s.Meta.Canonical == nil || strings.TrimSpace(*s.Meta.Canonical) == "" {
				return "missing canonical URL", true
			}
			return "", false
		},
	},
	{
		Name: "h1_missing",
		Check: func(s *models.SignalSet) (string, bool) {
			if len(s.Headings.H1) == 0 {
				return "missing h1 heading", true
			}
			return "", false
		},
	},
	{
		Name: "h1_multiple",
		Check: func(s *models.SignalSet) (string, bool) {
			if len(s.Headings.H1) > 1 {
				return "multiple h1 headings", true
			}
			return "", false
		},
	},
	{
		Name: "structured_data_missing",
		Check: func(s *models.SignalSet) (string, bool) {
			if len(s.SchemaTypes) == 0 {
				return "missing structured data", true
			}
			return "", false
		},
	},
	{
		Name: "hreflang_duplicate_lang",
		Check: func(s *models.SignalSet) (string, bool) {
			seen := make(map[string]struct{}, len(s.Meta.Hreflang))
			for _, e := range s.Meta.Hreflang {
				lang := strings.ToLower(e.Lang)
				if _, dup := seen[lang]; dup {
					return "duplicate hreflang language entries", true
				}
				seen[lang] = struct{}{}
			}
			return "", false
		},
	},
	{
		Name: "hreflang_missing_href",
		Check: func(s *models.SignalSet) (string, bool) {
			for _, e := range s.Meta.Hreflang {
				if strings.TrimSpace(e.Href) == "" {
					return "hreflang entry missing href", true
				}
			}
			return "", false
		},
	},
	{
		Name: "image_alt_coverage_low",
		Check: func(s *models.SignalSet) (string, bool) {
			if s.Images.Total == 0 {
				return "", false
			}
			covered := s.Images.Total - s.Images.MissingAlt
			if 100*covered/s.Images.Total < altCoverageMinPercent {
				return fmt.Sprintf("low image alt coverage (%d of %d images missing alt text)",
					s.Images.MissingAlt, s.Images.Total), true
			}
			return "", false
		},
	},
}

// Evaluate runs every rule against the signal set and returns the issues
// that fired, in rule order. The result is never nil so an issue-free
// page serializes as an empty array.
func Evaluate(s *models.SignalSet) []string {
	issues := []string{}
	for _, r := range Rules {
		if msg, ok := r.Check(s); ok {
			issues = append(issues, msg)
		}
	}
	return issues
}
