// Package descriptor maps numeric tone dimensions to qualitative labels and
// negative-prompt constraints. Everything here is pure and deterministic.
package descriptor

import "github.com/kalambet/tonegate/internal/profile"

// Level is one of the five bands shared by every dimension.
type Level int

const (
	VeryLow Level = iota
	Low
	Moderate
	High
	VeryHigh
)

func (l Level) String() string {
	switch l {
	case VeryLow:
		return "very_low"
	case Low:
		return "low"
	case Moderate:
		return "moderate"
	case High:
		return "high"
	case VeryHigh:
		return "very_high"
	}
	return "unknown"
}

// Band clamps v into [0,10] and returns its band. Lower edges are inclusive:
// [8,10] very high, [6,8) high, [4,6) moderate, [2,4) low, [0,2) very low.
func Band(v float64) Level {
	v = profile.Clamp(v)
	switch {
	case v >= 8:
		return VeryHigh
	case v >= 6:
		return High
	case v >= 4:
		return Moderate
	case v >= 2:
		return Low
	default:
		return VeryLow
	}
}

// Dimension names a describable profile dimension.
type Dimension string

const (
	DimFormality    Dimension = "formality"
	DimFriendliness Dimension = "friendliness"
	DimEmotion      Dimension = "emotion"
)

// Labels are indexed by Level.
var (
	formalityLabels = [5]string{
		VeryLow:  "very casual, relaxed everyday speech",
		Low:      "casual but polite",
		Moderate: "moderately formal, polite and neutral",
		High:     "formal and businesslike",
		VeryHigh: "very formal, strict honorific register",
	}
	friendlinessLabels = [5]string{
		VeryLow:  "detached and strictly businesslike",
		Low:      "reserved and matter-of-fact",
		Moderate: "approachable and courteous",
		High:     "warm and friendly",
		VeryHigh: "very warm, personal and encouraging",
	}
	emotionLabels = [5]string{
		VeryLow:  "emotionally neutral, purely factual",
		Low:      "restrained, little emotional language",
		Moderate: "measured emotional expression",
		High:     "expressive, shows feelings openly",
		VeryHigh: "highly expressive and enthusiastic",
	}
)

// Formality describes a formality value.
func Formality(v float64) string { return formalityLabels[Band(v)] }

// Friendliness describes a friendliness value.
func Friendliness(v float64) string { return friendlinessLabels[Band(v)] }

// Emotion describes an emotional expressiveness value.
func Emotion(v float64) string { return emotionLabels[Band(v)] }

// Describe returns the label for dim at value v. ok is false for dimensions
// without qualitative labels (directness is passed through numerically).
func Describe(dim Dimension, v float64) (label string, ok bool) {
	switch dim {
	case DimFormality:
		return Formality(v), true
	case DimFriendliness:
		return Friendliness(v), true
	case DimEmotion:
		return Emotion(v), true
	}
	return "", false
}
