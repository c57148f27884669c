// Package reconcile normalizes backend responses into a single result union.
package reconcile

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies a failed backend exchange.
type FailureKind int

const (
	Unreachable FailureKind = iota + 1
	Rejected
	MalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	case MalformedResponse:
		return "malformed_response"
	}
	return "unknown"
}

func (k FailureKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Failure describes why a capability call did not produce a value.
// Status is the HTTP status when one was received.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Status  int         `json:"status,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is the outcome of one capability call. Exactly one of Value and
// Failure is set, matching OK.
type Result struct {
	OK         bool           `json:"ok"`
	Capability string         `json:"capability"`
	Value      Value          `json:"value,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Failure    *Failure       `json:"failure,omitempty"`
}

// Err returns the failure as an error, or nil for a successful result.
func (r Result) Err() error {
	if r.OK || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Fail builds a failed result.
func Fail(capability string, kind FailureKind, status int, msg string) Result {
	return Result{
		Capability: capability,
		Failure:    &Failure{Kind: kind, Message: msg, Status: status},
	}
}

func succeed(capability string, v Value, meta map[string]any) Result {
	return Result{OK: true, Capability: capability, Value: v, Meta: meta}
}

// Value is implemented by every successful payload shape.
type Value interface {
	isValue()
}

// Variants are the three tone rewrites of a style conversion.
type Variants struct {
	Direct  string `json:"direct"`
	Gentle  string `json:"gentle"`
	Neutral string `json:"neutral"`
}

func (Variants) isValue() {}

func (v Variants) complete() bool {
	return v.Direct != "" && v.Gentle != "" && v.Neutral != ""
}

// Source is a retrieval citation.
type Source struct {
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
	Path    string  `json:"path,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// UnmarshalJSON accepts either a bare string or an object.
func (s *Source) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Source{Title: str}
		return nil
	}
	type plain Source
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Source(p)
	return nil
}

// Answer is a retrieval-augmented response.
type Answer struct {
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence,omitempty"`
	Variants   *Variants `json:"variants,omitempty"`
}

func (Answer) isValue() {}

// FinetuneText is a model-specific rewrite.
type FinetuneText struct {
	ConvertedText string         `json:"converted_text"`
	Method        string         `json:"method"`
	Reason        string         `json:"reason,omitempty"`
	Forced        bool           `json:"forced"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (FinetuneText) isValue() {}

// QualityReport carries findings that are opaque to this layer.
type QualityReport struct {
	Findings json.RawMessage `json:"findings"`
}

func (QualityReport) isValue() {}

// IngestReceipt is the registration outcome of an uploaded document.
type IngestReceipt struct {
	DocumentsProcessed int    `json:"documents_processed"`
	Message            string `json:"message"`
}

func (IngestReceipt) isValue() {}

// UploadReceipt is the temporary location of uploaded bytes.
type UploadReceipt struct {
	FilePath string `json:"file_path"`
}

func (UploadReceipt) isValue() {}

// ProfileRecord is a raw profile document from the backend.
type ProfileRecord struct {
	Raw json.RawMessage `json:"raw"`
}

func (ProfileRecord) isValue() {}
