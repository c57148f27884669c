package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tonegate/internal/reconcile"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/validate"
)

// maxResponseBytes bounds how much of a backend reply is read.
const maxResponseBytes = 8 << 20

// DefaultIngestConcurrency is the number of files ingested in parallel when
// Options.IngestConcurrency is unset.
const DefaultIngestConcurrency = 4

// History receives successful tone calls. Implemented by storage.Store.
type History interface {
	SaveConversion(c storage.Conversion) error
}

// StatusRecorder receives every ingestion status transition. Implemented
// by storage.Store.
type StatusRecorder interface {
	RecordIngestStatus(f storage.IngestFile) error
}

// Options configures a Router. Zero values are valid.
type Options struct {
	HTTPClient        *http.Client
	Logger            *slog.Logger
	History           History
	Ledger            StatusRecorder
	IngestConcurrency int
}

// Router is the single entry point to the tone backend.
type Router struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	history     History
	ledger      StatusRecorder
	ingestLimit int
	newID       func() string
	now         func() time.Time
}

// New creates a Router targeting baseURL.
func New(baseURL string, opts Options) *Router {
	r := &Router{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		history:     opts.History,
		ledger:      opts.Ledger,
		ingestLimit: opts.IngestConcurrency,
		newID:       uuid.NewString,
		now:         time.Now,
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.ingestLimit <= 0 {
		r.ingestLimit = DefaultIngestConcurrency
	}
	return r
}

// BaseURL returns the backend base URL without a trailing slash.
func (r *Router) BaseURL() string { return r.baseURL }

// Dispatch validates req, attaches the profile-derived payload and issues
// exactly one backend call. A non-nil error means the request was rejected
// locally and nothing was sent; every remote outcome is in the Result.
func (r *Router) Dispatch(ctx context.Context, req Request) (reconcile.Result, error) {
	req = req.normalize()
	if err := validate.Text(req.input()); err != nil {
		return reconcile.Result{}, err
	}
	if err := validate.Struct(req); err != nil {
		return reconcile.Result{}, err
	}

	capability := req.Capability()
	res, err := r.callJSON(ctx, capability, "", req.payload())
	if err != nil {
		return reconcile.Result{}, err
	}
	if res.OK {
		r.record(req, res)
	} else {
		r.logger.Warn("backend call failed",
			"capability", capability,
			"kind", res.Failure.Kind.String(),
			"status", res.Failure.Status,
			"message", res.Failure.Message,
		)
	}
	return res, nil
}

// callJSON sends body as JSON to the capability's endpoint. suffix is
// appended to the endpoint path. The error is reserved for local failures
// building the request.
func (r *Router) callJSON(ctx context.Context, capability Capability, suffix string, body any) (reconcile.Result, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return reconcile.Result{}, fmt.Errorf("marshalling %s request: %w", capability, err)
		}
		reader = bytes.NewReader(data)
	}
	return r.call(ctx, capability, suffix, reader, "application/json")
}

func (r *Router) call(ctx context.Context, capability Capability, suffix string, body io.Reader, contentType string) (reconcile.Result, error) {
	ep, ok := capabilities[capability]
	if !ok {
		return reconcile.Result{}, fmt.Errorf("unknown capability %q", capability)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, r.baseURL+ep.Path+suffix, body)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("creating %s request: %w", capability, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return reconcile.FromTransportError(string(capability), err), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return reconcile.FromTransportError(string(capability), fmt.Errorf("reading response: %w", err)), nil
	}

	r.logger.Debug("backend call",
		"capability", capability,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return reconcile.FromResponse(string(capability), ep.Shape, resp.StatusCode, data), nil
}

func (r *Router) record(req Request, res reconcile.Result) {
	if r.history == nil {
		return
	}
	out, err := json.Marshal(res.Value)
	if err != nil {
		r.logger.Warn("encoding history entry", "error", err)
		return
	}
	var reqContext string
	switch v := req.(type) {
	case ConvertRequest:
		reqContext = string(v.Context)
	case FinetuneRequest:
		reqContext = string(v.Context)
	case RAGRequest:
		reqContext = string(v.Context)
	case QualityRequest:
		reqContext = string(v.Context)
	}
	err = r.history.SaveConversion(storage.Conversion{
		ID:         r.newID(),
		CreatedAt:  r.now().UTC(),
		Capability: string(req.Capability()),
		Context:    reqContext,
		InputText:  req.input(),
		OutputJSON: string(out),
	})
	if err != nil {
		r.logger.Warn("saving history entry", "error", err)
	}
}

// --- Typed helpers ---

// Convert returns the three tone variants of req.Text.
func (r *Router) Convert(ctx context.Context, req ConvertRequest) (reconcile.Variants, reconcile.Result, error) {
	res, err := r.Dispatch(ctx, req)
	if err != nil || !res.OK {
		return reconcile.Variants{}, res, err
	}
	v, _ := res.Value.(reconcile.Variants)
	return v, res, nil
}

// FinetuneConvert returns the model-specific rewrite of req.Text.
func (r *Router) FinetuneConvert(ctx context.Context, req FinetuneRequest) (reconcile.FinetuneText, reconcile.Result, error) {
	res, err := r.Dispatch(ctx, req)
	if err != nil || !res.OK {
		return reconcile.FinetuneText{}, res, err
	}
	v, _ := res.Value.(reconcile.FinetuneText)
	return v, res, nil
}

// Ask queries the knowledge base.
func (r *Router) Ask(ctx context.Context, req RAGRequest) (reconcile.Answer, reconcile.Result, error) {
	req.Kind = CapRAGAsk
	return r.answer(ctx, req)
}

// AnalyzeGrammar runs a grammar analysis of req.Query.
func (r *Router) AnalyzeGrammar(ctx context.Context, req RAGRequest) (reconcile.Answer, reconcile.Result, error) {
	req.Kind = CapRAGAnalyzeGrammar
	return r.answer(ctx, req)
}

// SuggestExpressions asks for alternative expressions for req.Query.
func (r *Router) SuggestExpressions(ctx context.Context, req RAGRequest) (reconcile.Answer, reconcile.Result, error) {
	req.Kind = CapRAGSuggestExpressions
	return r.answer(ctx, req)
}

func (r *Router) answer(ctx context.Context, req RAGRequest) (reconcile.Answer, reconcile.Result, error) {
	res, err := r.Dispatch(ctx, req)
	if err != nil || !res.OK {
		return reconcile.Answer{}, res, err
	}
	v, _ := res.Value.(reconcile.Answer)
	return v, res, nil
}

// AnalyzeQuality returns the opaque quality findings for req.Text.
func (r *Router) AnalyzeQuality(ctx context.Context, req QualityRequest) (reconcile.QualityReport, reconcile.Result, error) {
	res, err := r.Dispatch(ctx, req)
	if err != nil || !res.OK {
		return reconcile.QualityReport{}, res, err
	}
	v, _ := res.Value.(reconcile.QualityReport)
	return v, res, nil
}
