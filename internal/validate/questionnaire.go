package validate

import (
	"math"
	"strings"

	"github.com/kalambet/tonegate/internal/profile"
)

// Questionnaire is the tone survey, grouped into categories.
type Questionnaire struct {
	Categories []Category `json:"categories"`
}

type Category struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID     string   `json:"id"`
	Prompt string   `json:"prompt"`
	Scale  bool     `json:"scale,omitempty"`
	Hints  []string `json:"hints,omitempty"`
}

func answered(answers map[string]string, id string) bool {
	return strings.TrimSpace(answers[id]) != ""
}

// CategoryProgress returns the answered share of cat as a rounded
// percentage. A category without questions reports 0.
func CategoryProgress(cat Category, answers map[string]string) int {
	if len(cat.Questions) == 0 {
		return 0
	}
	n := 0
	for _, q := range cat.Questions {
		if answered(answers, q.ID) {
			n++
		}
	}
	return int(math.Round(float64(n) / float64(len(cat.Questions)) * 100))
}

// Progress maps category id to CategoryProgress.
func Progress(q Questionnaire, answers map[string]string) map[string]int {
	out := make(map[string]int, len(q.Categories))
	for _, c := range q.Categories {
		out[c.ID] = CategoryProgress(c, answers)
	}
	return out
}

// IsComplete reports whether every question has a non-blank answer.
func IsComplete(q Questionnaire, answers map[string]string) bool {
	return len(Missing(q, answers)) == 0
}

// Missing lists unanswered question ids in questionnaire order.
func Missing(q Questionnaire, answers map[string]string) []string {
	var out []string
	for _, c := range q.Categories {
		for _, qq := range c.Questions {
			if !answered(answers, qq.ID) {
				out = append(out, qq.ID)
			}
		}
	}
	return out
}

var frequencyHints = []string{"very_often", "often", "sometimes", "rarely", "never"}

// DefaultQuestionnaire is the built-in tone survey.
func DefaultQuestionnaire() Questionnaire {
	return Questionnaire{Categories: []Category{
		{
			ID:    "tone",
			Title: "Overall tone",
			Questions: []Question{
				{ID: profile.QuestionFormality, Prompt: "How formal is your usual writing? (0 casual, 10 very formal)", Scale: true},
				{ID: profile.QuestionFriendliness, Prompt: "How warm or friendly do you sound? (0 detached, 10 very warm)", Scale: true},
				{ID: profile.QuestionEmotion, Prompt: "How much emotion do you show in writing? (0 none, 10 a lot)", Scale: true},
				{ID: profile.QuestionDirectness, Prompt: "How direct are you when asking for things? (0 indirect, 10 blunt)", Scale: true},
			},
		},
		{
			ID:    "habits",
			Title: "Writing habits",
			Questions: []Question{
				{ID: profile.QuestionAbbreviation, Prompt: "How often do you use abbreviations?", Hints: frequencyHints},
				{ID: profile.QuestionEmoticon, Prompt: "How often do you use emoticons or emoji?", Hints: frequencyHints},
			},
		},
		{
			ID:    "expressions",
			Title: "Preferred expressions",
			Questions: []Question{
				{ID: profile.QuestionGratitude, Prompt: "How do you usually say thank you?"},
				{ID: profile.QuestionRequest, Prompt: "How do you usually ask for something?"},
				{ID: profile.QuestionClosing, Prompt: "How do you usually close a message?"},
				{ID: profile.QuestionAgreement, Prompt: "How do you usually agree with someone?"},
			},
		},
		{
			ID:    "situations",
			Title: "Situations",
			Questions: []Question{
				{ID: "late_reply", Prompt: "How do you respond when you reply late?"},
				{ID: "declining_request", Prompt: "How do you decline a request?"},
				{ID: "reporting_to_manager", Prompt: "How do you write a status update to your manager?"},
			},
		},
	}}
}
