package profile

import (
	"strconv"
	"strings"
	"time"
)

// Question ids with a dedicated place in the profile. Every other answered
// question lands in Responses.Situational.
const (
	QuestionFormality    = "formality"
	QuestionFriendliness = "friendliness"
	QuestionEmotion      = "emotion"
	QuestionDirectness   = "directness"
	QuestionAbbreviation = "abbreviation_usage"
	QuestionEmoticon     = "emoticon_usage"
	QuestionGratitude    = "gratitude_expressions"
	QuestionRequest      = "request_expressions"
	QuestionClosing      = "closing_expressions"
	QuestionAgreement    = "agreement_expressions"
)

// ResponsesFromAnswers maps questionnaire answers onto the responses bag.
// Blank answers are ignored; dimension answers are not part of the bag.
func ResponsesFromAnswers(answers map[string]string) Responses {
	var r Responses
	for id, answer := range answers {
		answer = strings.TrimSpace(answer)
		if answer == "" {
			continue
		}
		switch id {
		case QuestionFormality, QuestionFriendliness, QuestionEmotion, QuestionDirectness:
		case QuestionAbbreviation:
			r.AbbreviationUsage = answer
		case QuestionEmoticon:
			r.EmoticonUsage = answer
		case QuestionGratitude:
			r.GratitudeExpressions = SplitPhrases(answer)
		case QuestionRequest:
			r.RequestExpressions = SplitPhrases(answer)
		case QuestionClosing:
			r.ClosingExpressions = SplitPhrases(answer)
		case QuestionAgreement:
			r.AgreementExpressions = SplitPhrases(answer)
		default:
			if r.Situational == nil {
				r.Situational = make(map[string]string)
			}
			r.Situational[id] = answer
		}
	}
	return r
}

// FromAnswers builds a profile from a completed questionnaire. Dimension
// answers are parsed like any other score source; unparseable ones stay
// invalid and resolve to DefaultScore when used.
func FromAnswers(userID string, answers map[string]string, now time.Time) *ToneProfile {
	p := &ToneProfile{
		UserID:      userID,
		Responses:   ResponsesFromAnswers(answers),
		CompletedAt: now.UTC(),
	}
	p.Formality = scoreFromAnswer(answers[QuestionFormality])
	p.Friendliness = scoreFromAnswer(answers[QuestionFriendliness])
	p.Emotion = scoreFromAnswer(answers[QuestionEmotion])
	p.Directness = scoreFromAnswer(answers[QuestionDirectness])
	return p
}

func scoreFromAnswer(s string) Score {
	f, ok := parseNumber(s)
	if !ok {
		return Score{}
	}
	return ScoreOf(f)
}

// Answers maps the profile back onto questionnaire answers. Dimensions
// without a valid score and empty responses are omitted.
func (p *ToneProfile) Answers() map[string]string {
	out := make(map[string]string)
	if p == nil {
		return out
	}
	for id, s := range map[string]Score{
		QuestionFormality:    p.Formality,
		QuestionFriendliness: p.Friendliness,
		QuestionEmotion:      p.Emotion,
		QuestionDirectness:   p.Directness,
	} {
		if s.Valid {
			out[id] = strconv.FormatFloat(s.Clamped(), 'g', -1, 64)
		}
	}
	r := p.Responses
	for id, v := range map[string]string{
		QuestionAbbreviation: r.AbbreviationUsage,
		QuestionEmoticon:     r.EmoticonUsage,
		QuestionGratitude:    strings.Join(r.GratitudeExpressions, ", "),
		QuestionRequest:      strings.Join(r.RequestExpressions, ", "),
		QuestionClosing:      strings.Join(r.ClosingExpressions, ", "),
		QuestionAgreement:    strings.Join(r.AgreementExpressions, ", "),
	} {
		if strings.TrimSpace(v) != "" {
			out[id] = v
		}
	}
	for id, v := range r.Situational {
		if strings.TrimSpace(v) != "" {
			out[id] = v
		}
	}
	return out
}
