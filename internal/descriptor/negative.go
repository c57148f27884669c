package descriptor

// NegativePromptSet groups phrases the generation backend is told to avoid.
type NegativePromptSet struct {
	LLMGeneric       []string `json:"llm_generic"`
	FormalHonorifics []string `json:"formal_honorifics"`
	Hedging          []string `json:"hedging"`
	Custom           []string `json:"custom,omitempty"`
}

var (
	llmGenericPhrases = []string{
		"I hope this helps",
		"As an AI language model",
		"Certainly!",
		"Great question",
		"I'd be happy to help",
		"Feel free to reach out",
		"delve into",
	}
	formalHonorificPhrases = []string{
		"It is with the utmost respect",
		"I humbly request",
		"Esteemed",
		"Your kind consideration would be deeply appreciated",
		"We sincerely beg your pardon",
	}
	hedgingPhrases = []string{
		"In conclusion",
		"To summarize",
		"In summary",
		"Overall",
		"It is worth noting that",
		"It could be argued that",
		"Perhaps",
	}
)

// NegativePrompts returns the static negative-prompt groups. Each call
// returns fresh slices.
func NegativePrompts() NegativePromptSet {
	return NegativePromptSet{
		LLMGeneric:       append([]string(nil), llmGenericPhrases...),
		FormalHonorifics: append([]string(nil), formalHonorificPhrases...),
		Hedging:          append([]string(nil), hedgingPhrases...),
	}
}

// WithCustom returns the static groups plus caller-supplied phrases.
func WithCustom(custom []string) NegativePromptSet {
	set := NegativePrompts()
	for _, c := range custom {
		if c != "" {
			set.Custom = append(set.Custom, c)
		}
	}
	return set
}

// All flattens every group into one list.
func (s NegativePromptSet) All() []string {
	out := make([]string, 0, len(s.LLMGeneric)+len(s.FormalHonorifics)+len(s.Hedging)+len(s.Custom))
	out = append(out, s.LLMGeneric...)
	out = append(out, s.FormalHonorifics...)
	out = append(out, s.Hedging...)
	out = append(out, s.Custom...)
	return out
}
