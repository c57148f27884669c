package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kalambet/tonegate/internal/descriptor"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/validate"
)

// ProfileView is a profile together with everything derived from it.
type ProfileView struct {
	Profile     *profile.ToneProfile   `json:"profile"`
	Effective   profile.Dimensions     `json:"effective"`
	Descriptors map[string]string      `json:"descriptors"`
	Constraints descriptor.Constraints `json:"constraints"`
	Summary     string                 `json:"summary"`
}

// NewProfileView derives descriptors, constraints and the summary for p.
func NewProfileView(p *profile.ToneProfile) ProfileView {
	dims := p.Effective()
	return ProfileView{
		Profile:   p,
		Effective: dims,
		Descriptors: map[string]string{
			string(descriptor.DimFormality):    descriptor.Formality(dims.Formality),
			string(descriptor.DimFriendliness): descriptor.Friendliness(dims.Friendliness),
			string(descriptor.DimEmotion):      descriptor.Emotion(dims.Emotion),
		},
		Constraints: descriptor.DeriveConstraints(p),
		Summary:     descriptor.Summary(p),
	}
}

// putProfileRequest accepts either raw questionnaire answers or a full profile.
type putProfileRequest struct {
	Answers map[string]string    `json:"answers"`
	Profile *profile.ToneProfile `json:"profile"`
}

// ProgressView reports questionnaire completion for the current profile.
type ProgressView struct {
	Categories map[string]int `json:"categories"`
	Complete   bool           `json:"complete"`
	Missing    []string       `json:"missing"`
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := currentProfile(r.Context(), deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, NewProfileView(p))
	}
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req putProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		userID, err := deps.Identity.UserID()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve user id: %v", err)
			return
		}

		var p *profile.ToneProfile
		switch {
		case req.Profile != nil:
			p = req.Profile
			p.UserID = userID
			if p.CompletedAt.IsZero() {
				p.CompletedAt = time.Now().UTC()
			}
		case len(req.Answers) > 0:
			p = profile.FromAnswers(userID, req.Answers, time.Now())
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of answers or profile is required")
			return
		}

		if err := deps.Profiles.Save(r.Context(), p); err != nil {
			if errors.Is(err, profile.ErrUnusable) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, NewProfileView(p))
	}
}

func handleDefaultProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := deps.Identity.UserID()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve user id: %v", err)
			return
		}
		p, err := deps.Profiles.CreateDefault(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create default profile: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, NewProfileView(p))
	}
}

func handleProfileProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := currentProfile(r.Context(), deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, Progress(p))
	}
}

// Progress scores p's answers against the built-in questionnaire.
func Progress(p *profile.ToneProfile) ProgressView {
	q := validate.DefaultQuestionnaire()
	answers := p.Answers()
	return ProgressView{
		Categories: validate.Progress(q, answers),
		Complete:   validate.IsComplete(q, answers),
		Missing:    validate.Missing(q, answers),
	}
}
