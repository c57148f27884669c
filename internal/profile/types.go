package profile

import (
	"encoding/json"
	"strings"
	"time"
)

// ToneProfile is the canonical representation of an organization's
// communication style: four numeric dimensions on [0,10], optional session
// overrides, and the raw survey answers the profile was built from.
type ToneProfile struct {
	UserID       string `json:"user_id"`
	Formality    Score  `json:"formality"`
	Friendliness Score  `json:"friendliness"`
	Emotion      Score  `json:"emotion"`
	Directness   Score  `json:"directness"`

	// Session overrides are ephemeral and win over the base values when set.
	SessionFormality    *Score `json:"session_formality,omitempty"`
	SessionFriendliness *Score `json:"session_friendliness,omitempty"`
	SessionEmotion      *Score `json:"session_emotion,omitempty"`
	SessionDirectness   *Score `json:"session_directness,omitempty"`

	Responses   Responses `json:"responses"`
	CompletedAt time.Time `json:"completed_at"`
}

// Responses captures the survey answers behind a profile.
type Responses struct {
	AbbreviationUsage    string            `json:"abbreviation_usage,omitempty"`
	EmoticonUsage        string            `json:"emoticon_usage,omitempty"`
	GratitudeExpressions Phrases           `json:"gratitude_expressions,omitempty"`
	RequestExpressions   Phrases           `json:"request_expressions,omitempty"`
	ClosingExpressions   Phrases           `json:"closing_expressions,omitempty"`
	AgreementExpressions Phrases           `json:"agreement_expressions,omitempty"`
	Situational          map[string]string `json:"situational,omitempty"`
}

// Dimensions holds the clamped values actually used for description and generation.
type Dimensions struct {
	Formality    float64 `json:"formality"`
	Friendliness float64 `json:"friendliness"`
	Emotion      float64 `json:"emotion"`
	Directness   float64 `json:"directness"`
}

// Usable reports whether the profile carries the minimum survey answers
// (abbreviation and emoticon usage). Unusable profiles are discarded, never
// patched up with partial data.
func (p *ToneProfile) Usable() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.Responses.AbbreviationUsage) != "" &&
		strings.TrimSpace(p.Responses.EmoticonUsage) != ""
}

// Effective resolves session overrides against the base dimensions and clamps
// every value into [0,10].
func (p *ToneProfile) Effective() Dimensions {
	if p == nil {
		return Dimensions{Formality: DefaultScore, Friendliness: DefaultScore, Emotion: DefaultScore, Directness: DefaultScore}
	}
	return Dimensions{
		Formality:    pick(p.SessionFormality, p.Formality),
		Friendliness: pick(p.SessionFriendliness, p.Friendliness),
		Emotion:      pick(p.SessionEmotion, p.Emotion),
		Directness:   pick(p.SessionDirectness, p.Directness),
	}
}

func pick(session *Score, base Score) float64 {
	if session != nil && session.Valid {
		return session.Clamped()
	}
	return base.Clamped()
}

// Override names accepted by WithSession.
const (
	OverrideFormality    = "formality"
	OverrideFriendliness = "friendliness"
	OverrideEmotion      = "emotion"
	OverrideDirectness   = "directness"
)

// WithSession returns a copy of p carrying the given session overrides.
// Unknown names are ignored.
func (p *ToneProfile) WithSession(overrides map[string]float64) *ToneProfile {
	cp := p.Clone()
	if cp == nil || len(overrides) == 0 {
		return cp
	}
	for name, v := range overrides {
		sc := ScoreOf(v)
		switch name {
		case OverrideFormality:
			cp.SessionFormality = &sc
		case OverrideFriendliness:
			cp.SessionFriendliness = &sc
		case OverrideEmotion:
			cp.SessionEmotion = &sc
		case OverrideDirectness:
			cp.SessionDirectness = &sc
		}
	}
	return cp
}

// ClearSession drops all session overrides.
func (p *ToneProfile) ClearSession() {
	p.SessionFormality = nil
	p.SessionFriendliness = nil
	p.SessionEmotion = nil
	p.SessionDirectness = nil
}

// Clone returns a deep copy of p.
func (p *ToneProfile) Clone() *ToneProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.SessionFormality = cloneScore(p.SessionFormality)
	cp.SessionFriendliness = cloneScore(p.SessionFriendliness)
	cp.SessionEmotion = cloneScore(p.SessionEmotion)
	cp.SessionDirectness = cloneScore(p.SessionDirectness)

	cp.Responses.GratitudeExpressions = clonePhrases(p.Responses.GratitudeExpressions)
	cp.Responses.RequestExpressions = clonePhrases(p.Responses.RequestExpressions)
	cp.Responses.ClosingExpressions = clonePhrases(p.Responses.ClosingExpressions)
	cp.Responses.AgreementExpressions = clonePhrases(p.Responses.AgreementExpressions)
	if p.Responses.Situational != nil {
		cp.Responses.Situational = make(map[string]string, len(p.Responses.Situational))
		for k, v := range p.Responses.Situational {
			cp.Responses.Situational[k] = v
		}
	}
	return &cp
}

func cloneScore(s *Score) *Score {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func clonePhrases(p Phrases) Phrases {
	if p == nil {
		return nil
	}
	out := make(Phrases, len(p))
	copy(out, p)
	return out
}

// Phrases is a list of stock expressions. Survey backends send either a JSON
// array or a single comma/newline separated string; both decode to a list.
type Phrases []string

func (p *Phrases) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = SplitPhrases(s)
	return nil
}

// SplitPhrases splits a free-form answer on commas and newlines, dropping blanks.
func SplitPhrases(s string) Phrases {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	var out Phrases
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
