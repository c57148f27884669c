package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/reconcile"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/validate"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Identity yields the local user id.
type Identity interface {
	UserID() (string, error)
}

// Deps holds everything the HTTP API and the MCP server call into.
type Deps struct {
	Router    *gateway.Router
	Profiles  *profile.Store
	Identity  Identity
	Store     *storage.Store
	Token     string // bearer token; empty disables auth
	CompanyID string // default company for ingestion
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewHandler returns the local HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/profile", handleGetProfile(deps))
		r.Put("/profile", handlePutProfile(deps))
		r.Post("/profile/default", handleDefaultProfile(deps))
		r.Get("/profile/progress", handleProfileProgress(deps))

		r.Post("/convert", handleConvert(deps))
		r.Post("/finetune", handleFinetune(deps))
		r.Post("/rag/ask", handleRAG(deps, gateway.CapRAGAsk))
		r.Post("/rag/grammar", handleRAG(deps, gateway.CapRAGAnalyzeGrammar))
		r.Post("/rag/expressions", handleRAG(deps, gateway.CapRAGSuggestExpressions))
		r.Post("/quality", handleQuality(deps))

		r.Post("/ingest", handleIngest(deps))
		r.Get("/ingest/{batch}", handleIngestStatus(deps))
		r.Get("/history", handleListHistory(deps))
		r.Get("/history/{id}", handleGetHistory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// currentProfile resolves the local user's profile, creating the default
// one when none exists anywhere.
func currentProfile(ctx context.Context, deps Deps) (*profile.ToneProfile, error) {
	userID, err := deps.Identity.UserID()
	if err != nil {
		return nil, fmt.Errorf("resolving user id: %w", err)
	}
	return deps.Profiles.Ensure(ctx, userID)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeResult maps a dispatch outcome onto the HTTP response. Validation
// errors are the caller's fault, an unreachable backend is 503 and any other
// backend failure is 502 with the backend's message passed through.
func writeResult(w http.ResponseWriter, res reconcile.Result, err error) {
	var ve *validate.Error
	switch {
	case errors.As(err, &ve):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", ve.Error())
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	case !res.OK && res.Failure != nil:
		code := http.StatusBadGateway
		if res.Failure.Kind == reconcile.Unreachable {
			code = http.StatusServiceUnavailable
		}
		httpError(w, code, res.Failure.Kind.String(), "%s", res.Failure.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
