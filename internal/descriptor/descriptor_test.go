package descriptor

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tonegate/internal/profile"
)

var profileTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestBand_Edges(t *testing.T) {
	tests := []struct {
		v    float64
		want Level
	}{
		{-1, VeryLow},
		{0, VeryLow},
		{1.99, VeryLow},
		{2, Low},
		{3.99, Low},
		{4, Moderate},
		{5.99, Moderate},
		{6, High},
		{7.99, High},
		{8, VeryHigh},
		{10, VeryHigh},
		{15, VeryHigh},
		{math.NaN(), Moderate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Band(tt.v), "Band(%v)", tt.v)
	}
}

func TestDescribe_DimensionSpecificLabels(t *testing.T) {
	label, ok := Describe(DimFormality, 6)
	require.True(t, ok)
	assert.Equal(t, "formal and businesslike", label)

	f, _ := Describe(DimFriendliness, 6)
	e, _ := Describe(DimEmotion, 6)
	assert.NotEqual(t, label, f)
	assert.NotEqual(t, f, e)

	_, ok = Describe(Dimension("directness"), 6)
	assert.False(t, ok)
}

func TestDescribe_AllBandsDistinct(t *testing.T) {
	for _, fn := range []func(float64) string{Formality, Friendliness, Emotion} {
		seen := map[string]bool{}
		for _, v := range []float64{0, 2, 4, 6, 8} {
			l := fn(v)
			assert.NotEmpty(t, l)
			assert.False(t, seen[l], "duplicate label %q", l)
			seen[l] = true
		}
	}
}

func TestDeriveConstraints(t *testing.T) {
	tests := []struct {
		name          string
		abbreviation  string
		emoticon      string
		wantAbbrev    bool
		wantEmoticons bool
	}{
		{"very often", "very_often", "very_often", true, true},
		{"often", "often", "often", true, true},
		{"sometimes qualifies only emoticons", "sometimes", "sometimes", false, true},
		{"rarely", "rarely", "rarely", false, false},
		{"spelled with spaces", "Very often", "Very-Often", true, true},
		{"missing", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &profile.ToneProfile{Responses: profile.Responses{
				AbbreviationUsage: tt.abbreviation,
				EmoticonUsage:     tt.emoticon,
			}}
			c := DeriveConstraints(p)
			assert.Equal(t, tt.wantAbbrev, c.UsesAbbreviations)
			assert.Equal(t, tt.wantEmoticons, c.UsesEmoticons)
		})
	}
}

func TestDeriveConstraints_Expressions(t *testing.T) {
	p := &profile.ToneProfile{Responses: profile.Responses{
		GratitudeExpressions: profile.Phrases{" Thanks ", ""},
		ClosingExpressions:   profile.Phrases{"Best"},
	}}
	c := DeriveConstraints(p)
	assert.Equal(t, []string{"Thanks"}, c.PreferredExpressions.Gratitude)
	assert.Equal(t, []string{"Best"}, c.PreferredExpressions.Closing)
	assert.NotNil(t, c.PreferredExpressions.Request)
	assert.Empty(t, c.PreferredExpressions.Request)

	nilC := DeriveConstraints(nil)
	assert.False(t, nilC.UsesAbbreviations)
	assert.NotNil(t, nilC.PreferredExpressions.Agreement)
}

func TestNegativePrompts_StaticAndIndependent(t *testing.T) {
	a := NegativePrompts()
	require.NotEmpty(t, a.LLMGeneric)
	require.NotEmpty(t, a.FormalHonorifics)
	require.NotEmpty(t, a.Hedging)

	a.LLMGeneric[0] = "mutated"
	b := NegativePrompts()
	assert.NotEqual(t, "mutated", b.LLMGeneric[0])

	custom := WithCustom([]string{"synergy", ""})
	assert.Equal(t, []string{"synergy"}, custom.Custom)
	assert.Len(t, custom.All(), len(b.All())+1)
}

func TestSummary(t *testing.T) {
	p := profile.Default("u-1", profileTime)
	s := Summary(p)

	assert.Contains(t, s, "Formality: casual but polite.")
	assert.Contains(t, s, "avoids abbreviations")
	assert.Contains(t, s, `"Thank you."`)
	assert.Equal(t, s, Summary(p), "summary must be deterministic")

	assert.Equal(t, "Tone profile: not yet configured.", Summary(nil))
}

func TestSummary_Truncated(t *testing.T) {
	p := profile.Default("u-1", profileTime)
	p.Responses.Situational = map[string]string{"long": strings.Repeat("word ", 1000)}
	s := Summary(p)
	assert.LessOrEqual(t, len(s), maxSummaryChars)
}
