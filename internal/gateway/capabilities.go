// Package gateway dispatches validated requests to the tone backend and
// reconciles the replies.
package gateway

import (
	"net/http"

	"github.com/kalambet/tonegate/internal/reconcile"
)

// Capability names one backend operation.
type Capability string

const (
	CapConvert               Capability = "convert"
	CapFinetuneConvert       Capability = "finetuneConvert"
	CapRAGAsk                Capability = "ragAsk"
	CapRAGAnalyzeGrammar     Capability = "ragAnalyzeGrammar"
	CapRAGSuggestExpressions Capability = "ragSuggestExpressions"
	CapQualityAnalyze        Capability = "qualityAnalyze"
	CapRAGUpload             Capability = "ragUpload"
	CapRAGIngest             Capability = "ragIngest"
	CapProfileGet            Capability = "profileGet"
	CapProfileCreate         Capability = "profileCreate"
)

type endpoint struct {
	Method string
	Path   string
	Shape  reconcile.Shape
}

// capabilities is the dispatch table. Every call is a single exchange with
// no retry.
var capabilities = map[Capability]endpoint{
	CapConvert:               {http.MethodPost, "/conversion/convert", reconcile.ShapeVariants},
	CapFinetuneConvert:       {http.MethodPost, "/finetune/convert", reconcile.ShapeFinetune},
	CapRAGAsk:                {http.MethodPost, "/rag/ask", reconcile.ShapeAnswer},
	CapRAGAnalyzeGrammar:     {http.MethodPost, "/rag/analyze-grammar", reconcile.ShapeAnswer},
	CapRAGSuggestExpressions: {http.MethodPost, "/rag/suggest-expressions", reconcile.ShapeAnswer},
	CapQualityAnalyze:        {http.MethodPost, "/quality/analyze", reconcile.ShapeQuality},
	CapRAGUpload:             {http.MethodPost, "/upload", reconcile.ShapeUpload},
	CapRAGIngest:             {http.MethodPost, "/rag/ingest", reconcile.ShapeIngest},
	CapProfileGet:            {http.MethodGet, "/profile/", reconcile.ShapeProfile},
	CapProfileCreate:         {http.MethodPost, "/profile", reconcile.ShapeProfile},
}

// Capabilities lists every known capability in dispatch-table order.
func Capabilities() []Capability {
	return []Capability{
		CapConvert, CapFinetuneConvert, CapRAGAsk, CapRAGAnalyzeGrammar,
		CapRAGSuggestExpressions, CapQualityAnalyze, CapRAGUpload, CapRAGIngest,
		CapProfileGet, CapProfileCreate,
	}
}

// Route returns the HTTP method and path of c. Path is relative to the
// router's base URL; profileGet takes the user id appended.
func Route(c Capability) (method, path string, ok bool) {
	e, ok := capabilities[c]
	return e.Method, e.Path, ok
}
