package profile

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	MinScore = 0
	MaxScore = 10

	// DefaultScore is used for any dimension that is missing or unparseable.
	DefaultScore = 5
)

// Score is a single profile dimension as it arrived from a survey, a cache
// entry or a remote record. Valid is false when the value was absent or could
// not be parsed; Clamped then yields DefaultScore.
type Score struct {
	Value float64
	Valid bool
}

// ScoreOf returns a valid Score holding v.
func ScoreOf(v float64) Score {
	return Score{Value: v, Valid: true}
}

// Clamped returns the score bounded to [0,10].
func (s Score) Clamped() float64 {
	if !s.Valid {
		return DefaultScore
	}
	return Clamp(s.Value)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to an invalid Score instead of failing the whole profile.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = Score{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = ScoreOf(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if f, ok := parseNumber(str); ok {
			*s = ScoreOf(f)
		}
	}
	return nil
}

// Clamp maps a dimension value from any source into [0,10]. Numbers are
// bounded, numeric strings are parsed first. Missing, unparseable and
// non-finite values yield DefaultScore.
func Clamp(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return DefaultScore
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return DefaultScore
		}
		f = n
	case string:
		n, ok := parseNumber(x)
		if !ok {
			return DefaultScore
		}
		f = n
	case Score:
		return x.Clamped()
	case *Score:
		if x == nil {
			return DefaultScore
		}
		return x.Clamped()
	default:
		return DefaultScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultScore
	}
	return math.Max(MinScore, math.Min(MaxScore, f))
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
