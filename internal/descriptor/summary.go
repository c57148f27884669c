package descriptor

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/tonegate/internal/profile"
)

// maxSummaryChars caps the tone brief to roughly 500 tokens.
const maxSummaryChars = 2000

// Summary renders a compact tone brief for the generation backend.
// The output is deterministic for a given profile.
func Summary(p *profile.ToneProfile) string {
	if p == nil {
		return "Tone profile: not yet configured."
	}

	dims := p.Effective()
	c := DeriveConstraints(p)

	parts := []string{
		fmt.Sprintf("Formality: %s.", Formality(dims.Formality)),
		fmt.Sprintf("Friendliness: %s.", Friendliness(dims.Friendliness)),
		fmt.Sprintf("Emotion: %s.", Emotion(dims.Emotion)),
		fmt.Sprintf("Directness: %g/10.", dims.Directness),
	}

	var habits []string
	if c.UsesAbbreviations {
		habits = append(habits, "uses abbreviations")
	} else {
		habits = append(habits, "avoids abbreviations")
	}
	if c.UsesEmoticons {
		habits = append(habits, "uses emoticons")
	} else {
		habits = append(habits, "avoids emoticons")
	}
	parts = append(parts, fmt.Sprintf("Style: %s.", strings.Join(habits, ", ")))

	pe := c.PreferredExpressions
	for _, g := range []struct {
		name    string
		phrases []string
	}{
		{"Gratitude", pe.Gratitude},
		{"Requests", pe.Request},
		{"Closings", pe.Closing},
		{"Agreement", pe.Agreement},
	} {
		if len(g.phrases) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s.", g.name, quoteJoin(g.phrases)))
		}
	}

	if len(p.Responses.Situational) > 0 {
		ids := make([]string, 0, len(p.Responses.Situational))
		for id := range p.Responses.Situational {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if a := strings.TrimSpace(p.Responses.Situational[id]); a != "" {
				parts = append(parts, fmt.Sprintf("When %s: %s.", strings.ReplaceAll(id, "_", " "), a))
			}
		}
	}

	return truncate(strings.Join(parts, " "), maxSummaryChars)
}

func quoteJoin(phrases []string) string {
	q := make([]string, len(phrases))
	for i, p := range phrases {
		q[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(q, ", ")
}

// truncate cuts s at a word boundary without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	end := max
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	if idx := strings.LastIndex(s[:end], " "); idx > 0 {
		return s[:idx]
	}
	return s[:end]
}
