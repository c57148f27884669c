package gateway

import (
	"github.com/kalambet/tonegate/internal/descriptor"
	"github.com/kalambet/tonegate/internal/profile"
)

// ConversionContext is the document kind a rewrite targets.
type ConversionContext string

const (
	ContextGeneral        ConversionContext = "general"
	ContextReport         ConversionContext = "report"
	ContextMeetingMinutes ConversionContext = "meeting-minutes"
	ContextEmail          ConversionContext = "email"
	ContextAnnouncement   ConversionContext = "announcement"
	ContextMessage        ConversionContext = "message"
	ContextEducation      ConversionContext = "education"
)

// RAGContext is the domain a knowledge-base query belongs to. It shares the
// "general" member with ConversionContext but is a separate taxonomy.
type RAGContext string

const (
	RAGGeneral  RAGContext = "general"
	RAGBusiness RAGContext = "business"
	RAGAcademic RAGContext = "academic"
	RAGSocial   RAGContext = "social"
	RAGPersonal RAGContext = "personal"
)

// Request is implemented by every dispatchable request record.
type Request interface {
	Capability() Capability
	input() string
	payload() any
	normalize() Request
}

// ConvertRequest asks for the three tone variants of Text.
type ConvertRequest struct {
	Text                string               `json:"text" validate:"required"`
	Profile             *profile.ToneProfile `json:"profile" validate:"required"`
	Context             ConversionContext    `json:"context" validate:"required,oneof=general report meeting-minutes email announcement message education"`
	NegativePreferences []string             `json:"negative_preferences,omitempty"`
}

func (ConvertRequest) Capability() Capability { return CapConvert }
func (r ConvertRequest) input() string { return r.Text }

func (r ConvertRequest) normalize() Request {
	if r.Context == "" {
		r.Context = ContextGeneral
	}
	return r
}

func (r ConvertRequest) payload() any {
	return convertPayload{
		Text:                r.Text,
		UserProfile:         newWireProfile(r.Profile),
		Context:             r.Context,
		NegativePreferences: descriptor.WithCustom(r.NegativePreferences),
	}
}

// FinetuneRequest asks for a model-specific rewrite. ForceConvert asks the
// backend to convert even when it judges the text already matches.
type FinetuneRequest struct {
	Text         string               `json:"text" validate:"required"`
	Profile      *profile.ToneProfile `json:"profile" validate:"required"`
	Context      ConversionContext    `json:"context,omitempty" validate:"omitempty,oneof=general report meeting-minutes email announcement message education"`
	ForceConvert bool                 `json:"force_convert,omitempty"`
}

func (FinetuneRequest) Capability() Capability { return CapFinetuneConvert }
func (r FinetuneRequest) input() string { return r.Text }
func (r FinetuneRequest) normalize() Request { return r }

func (r FinetuneRequest) payload() any {
	return finetunePayload{
		Text:         r.Text,
		UserProfile:  newWireProfile(r.Profile),
		Context:      r.Context,
		ForceConvert: r.ForceConvert,
	}
}

// RAGRequest is a knowledge-base query. Kind selects ask, grammar analysis
// or expression suggestions.
type RAGRequest struct {
	Kind      Capability           `json:"kind" validate:"required,oneof=ragAsk ragAnalyzeGrammar ragSuggestExpressions"`
	Query     string               `json:"query" validate:"required"`
	Context   RAGContext           `json:"context" validate:"required,oneof=general business academic social personal"`
	UseStyles bool                 `json:"use_styles,omitempty"`
	Profile   *profile.ToneProfile `json:"profile,omitempty"`
}

func (r RAGRequest) Capability() Capability { return r.Kind }
func (r RAGRequest) input() string { return r.Query }

func (r RAGRequest) normalize() Request {
	if r.Kind == "" {
		r.Kind = CapRAGAsk
	}
	if r.Context == "" {
		r.Context = RAGGeneral
	}
	return r
}

func (r RAGRequest) payload() any {
	p := ragPayload{
		Query:     r.Query,
		Context:   r.Context,
		UseStyles: r.UseStyles,
	}
	if r.Profile != nil {
		wp := newWireProfile(r.Profile)
		p.UserProfile = &wp
	}
	return p
}

// QualityRequest asks for a quality analysis of Text against the profile.
type QualityRequest struct {
	Text    string               `json:"text" validate:"required"`
	Profile *profile.ToneProfile `json:"profile" validate:"required"`
	Context ConversionContext    `json:"context,omitempty" validate:"omitempty,oneof=general report meeting-minutes email announcement message education"`
}

func (QualityRequest) Capability() Capability { return CapQualityAnalyze }
func (r QualityRequest) input() string { return r.Text }
func (r QualityRequest) normalize() Request { return r }

func (r QualityRequest) payload() any {
	return qualityPayload{
		Text:        r.Text,
		UserProfile: newWireProfile(r.Profile),
		Context:     r.Context,
	}
}

// IngestRequest registers an uploaded file with the knowledge base.
type IngestRequest struct {
	CompanyID  string `json:"company_id" validate:"required"`
	FolderPath string `json:"folder_path" validate:"required"`
}
