package api

import (
	"encoding/json"
	"net/http"

	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/profile"
)

type convertBody struct {
	Text                string                    `json:"text"`
	Context             gateway.ConversionContext `json:"context"`
	NegativePreferences []string                  `json:"negative_preferences"`
	ForceConvert        bool                      `json:"force_convert"`
	Session             map[string]float64        `json:"session"`
}

type ragBody struct {
	Query     string             `json:"query"`
	Context   gateway.RAGContext `json:"context"`
	UseStyles bool               `json:"use_styles"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// sessionProfile resolves the current profile and applies per-request
// overrides to a copy.
func sessionProfile(w http.ResponseWriter, r *http.Request, deps Deps, overrides map[string]float64) (*profile.ToneProfile, bool) {
	p, err := currentProfile(r.Context(), deps)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
		return nil, false
	}
	return p.WithSession(overrides), true
}

func handleConvert(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body convertBody
		if !decodeBody(w, r, &body) {
			return
		}
		p, ok := sessionProfile(w, r, deps, body.Session)
		if !ok {
			return
		}
		_, res, err := deps.Router.Convert(r.Context(), gateway.ConvertRequest{
			Text:                body.Text,
			Profile:             p,
			Context:             body.Context,
			NegativePreferences: body.NegativePreferences,
		})
		writeResult(w, res, err)
	}
}

func handleFinetune(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body convertBody
		if !decodeBody(w, r, &body) {
			return
		}
		p, ok := sessionProfile(w, r, deps, body.Session)
		if !ok {
			return
		}
		_, res, err := deps.Router.FinetuneConvert(r.Context(), gateway.FinetuneRequest{
			Text:         body.Text,
			Profile:      p,
			Context:      body.Context,
			ForceConvert: body.ForceConvert,
		})
		writeResult(w, res, err)
	}
}

func handleRAG(deps Deps, kind gateway.Capability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ragBody
		if !decodeBody(w, r, &body) {
			return
		}
		p, ok := sessionProfile(w, r, deps, nil)
		if !ok {
			return
		}
		res, err := deps.Router.Dispatch(r.Context(), gateway.RAGRequest{
			Kind:      kind,
			Query:     body.Query,
			Context:   body.Context,
			UseStyles: body.UseStyles,
			Profile:   p,
		})
		writeResult(w, res, err)
	}
}

func handleQuality(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body convertBody
		if !decodeBody(w, r, &body) {
			return
		}
		p, ok := sessionProfile(w, r, deps, body.Session)
		if !ok {
			return
		}
		_, res, err := deps.Router.AnalyzeQuality(r.Context(), gateway.QualityRequest{
			Text:    body.Text,
			Profile: p,
			Context: body.Context,
		})
		writeResult(w, res, err)
	}
}
