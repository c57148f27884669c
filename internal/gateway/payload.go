package gateway

import (
	"github.com/kalambet/tonegate/internal/descriptor"
	"github.com/kalambet/tonegate/internal/profile"
)

// wireProfile is the user_profile object sent with every tone-aware call:
// clamped dimensions, their labels, the derived constraints and the raw
// survey answers.
type wireProfile struct {
	UserID       string  `json:"user_id,omitempty"`
	Formality    float64 `json:"formality"`
	Friendliness float64 `json:"friendliness"`
	Emotion      float64 `json:"emotion"`
	Directness   float64 `json:"directness"`

	FormalityDescription    string `json:"formality_description"`
	FriendlinessDescription string `json:"friendliness_description"`
	EmotionDescription      string `json:"emotion_description"`

	Constraints descriptor.Constraints `json:"constraints"`
	ToneSummary string                 `json:"tone_summary"`
	Responses   profile.Responses      `json:"responses"`
}

func newWireProfile(p *profile.ToneProfile) wireProfile {
	if p == nil {
		return wireProfile{Constraints: descriptor.DeriveConstraints(nil)}
	}
	d := p.Effective()
	return wireProfile{
		UserID:                  p.UserID,
		Formality:               d.Formality,
		Friendliness:            d.Friendliness,
		Emotion:                 d.Emotion,
		Directness:              d.Directness,
		FormalityDescription:    descriptor.Formality(d.Formality),
		FriendlinessDescription: descriptor.Friendliness(d.Friendliness),
		EmotionDescription:      descriptor.Emotion(d.Emotion),
		Constraints:             descriptor.DeriveConstraints(p),
		ToneSummary:             descriptor.Summary(p),
		Responses:               p.Responses,
	}
}

type convertPayload struct {
	Text                string                       `json:"text"`
	UserProfile         wireProfile                  `json:"user_profile"`
	Context             ConversionContext            `json:"context"`
	NegativePreferences descriptor.NegativePromptSet `json:"negative_preferences"`
}

type finetunePayload struct {
	Text         string            `json:"text"`
	UserProfile  wireProfile       `json:"user_profile"`
	Context      ConversionContext `json:"context,omitempty"`
	ForceConvert bool              `json:"force_convert,omitempty"`
}

type ragPayload struct {
	Query       string       `json:"query"`
	Context     RAGContext   `json:"context"`
	UseStyles   bool         `json:"use_styles,omitempty"`
	UserProfile *wireProfile `json:"user_profile,omitempty"`
}

type qualityPayload struct {
	Text        string            `json:"text"`
	UserProfile wireProfile       `json:"user_profile"`
	Context     ConversionContext `json:"context,omitempty"`
}
