package descriptor

import (
	"strings"

	"github.com/kalambet/tonegate/internal/profile"
)

// Survey answers that count as habitual use. Emoticons qualify at one more
// frequency than abbreviations.
var (
	abbreviationFrequent = map[string]bool{
		"very_often": true,
		"often":      true,
	}
	emoticonFrequent = map[string]bool{
		"very_often": true,
		"often":      true,
		"sometimes":  true,
	}
)

// Constraints are the generation constraints derived from a profile.
type Constraints struct {
	UsesAbbreviations    bool                 `json:"uses_abbreviations"`
	UsesEmoticons        bool                 `json:"uses_emoticons"`
	PreferredExpressions PreferredExpressions `json:"preferred_expressions"`
}

// PreferredExpressions are the stock phrases the organization reaches for.
type PreferredExpressions struct {
	Gratitude []string `json:"gratitude"`
	Request   []string `json:"request"`
	Closing   []string `json:"closing"`
	Agreement []string `json:"agreement"`
}

// DeriveConstraints reads the survey answers of p. Missing answers yield
// false or empty lists, never an error.
func DeriveConstraints(p *profile.ToneProfile) Constraints {
	c := Constraints{
		PreferredExpressions: PreferredExpressions{
			Gratitude: []string{},
			Request:   []string{},
			Closing:   []string{},
			Agreement: []string{},
		},
	}
	if p == nil {
		return c
	}

	r := p.Responses
	c.UsesAbbreviations = abbreviationFrequent[normalizeFrequency(r.AbbreviationUsage)]
	c.UsesEmoticons = emoticonFrequent[normalizeFrequency(r.EmoticonUsage)]
	c.PreferredExpressions = PreferredExpressions{
		Gratitude: cleanPhrases(r.GratitudeExpressions),
		Request:   cleanPhrases(r.RequestExpressions),
		Closing:   cleanPhrases(r.ClosingExpressions),
		Agreement: cleanPhrases(r.AgreementExpressions),
	}
	return c
}

// normalizeFrequency folds "Very often", "very-often" and "very_often" together.
func normalizeFrequency(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func cleanPhrases(in profile.Phrases) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
