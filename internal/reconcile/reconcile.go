package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Shape identifies the response body layout of a capability.
type Shape int

const (
	ShapeVariants Shape = iota + 1
	ShapeAnswer
	ShapeFinetune
	ShapeQuality
	ShapeIngest
	ShapeUpload
	ShapeProfile
)

// FromTransportError classifies a failure to complete the HTTP exchange.
func FromTransportError(capability string, err error) Result {
	return Fail(capability, Unreachable, 0, err.Error())
}

// envelope holds the fields shared by every JSON response.
type envelope struct {
	Success  *bool           `json:"success"`
	Error    json.RawMessage `json:"error"`
	Detail   json.RawMessage `json:"detail"`
	Message  string          `json:"message"`
	Metadata map[string]any  `json:"metadata"`
}

// FromResponse converts an HTTP status and body into a Result for the given
// capability. Remote error text is passed through unchanged.
func FromResponse(capability string, shape Shape, status int, body []byte) Result {
	if status < 200 || status > 299 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return Fail(capability, Rejected, status, msg)
	}

	if shape == ShapeProfile && len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return Fail(capability, MalformedResponse, status, "response body is not valid JSON")
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil && shape != ShapeQuality {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding response: %v", err))
	}
	if env.Success != nil && !*env.Success {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return Fail(capability, Rejected, status, msg)
	}

	switch shape {
	case ShapeVariants:
		return variants(capability, status, body, env.Metadata)
	case ShapeAnswer:
		return answer(capability, status, body, env.Metadata)
	case ShapeFinetune:
		return finetune(capability, status, body, env.Metadata)
	case ShapeQuality:
		return quality(capability, body, env.Metadata)
	case ShapeIngest:
		return ingest(capability, status, body, env)
	case ShapeUpload:
		return upload(capability, status, body)
	case ShapeProfile:
		return succeed(capability, ProfileRecord{Raw: unwrapProfile(body)}, nil)
	}
	return Fail(capability, MalformedResponse, status, fmt.Sprintf("unknown response shape %d", shape))
}

// errorMessage extracts a diagnostic from a JSON error body. It looks at
// "error", then "detail", then "message". The text is passed through as sent.
func errorMessage(body []byte) string {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	if m := rawMessage(env.Error); m != "" {
		return m
	}
	if m := rawMessage(env.Detail); m != "" {
		return m
	}
	return nonBlank(env.Message)
}

// rawMessage accepts a string, an object with "message" or "msg", or a list
// of either (FastAPI validation errors). Anything else is returned as raw
// JSON.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return nonBlank(s)
	}
	if m, ok := itemMessage(raw); ok {
		return m
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if json.Unmarshal(item, &s) == nil && nonBlank(s) != "" {
				msgs = append(msgs, s)
			} else if m, ok := itemMessage(item); ok {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(raw)
}

func itemMessage(raw json.RawMessage) (string, bool) {
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return "", false
	}
	if m := nonBlank(obj.Message); m != "" {
		return m, true
	}
	if m := nonBlank(obj.Msg); m != "" {
		return m, true
	}
	return "", false
}

func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func variants(capability string, status int, body []byte, meta map[string]any) Result {
	var resp struct {
		ConvertedTexts *Variants `json:"converted_texts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding converted_texts: %v", err))
	}
	if resp.ConvertedTexts == nil || !resp.ConvertedTexts.complete() {
		return Fail(capability, MalformedResponse, status, "converted_texts must contain direct, gentle and neutral")
	}
	return succeed(capability, *resp.ConvertedTexts, meta)
}

func answer(capability string, status int, body []byte, meta map[string]any) Result {
	var resp struct {
		Answer         string    `json:"answer"`
		Sources        []Source  `json:"sources"`
		Confidence     *float64  `json:"confidence"`
		ConvertedTexts *Variants `json:"converted_texts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding answer: %v", err))
	}

	a := Answer{Answer: resp.Answer, Sources: resp.Sources}
	if a.Sources == nil {
		a.Sources = []Source{}
	}
	switch {
	case resp.Confidence != nil:
		a.Confidence = *resp.Confidence
	case meta != nil:
		if c, ok := meta["confidence"].(float64); ok {
			a.Confidence = c
		}
	}
	if resp.ConvertedTexts != nil && resp.ConvertedTexts.complete() {
		v := *resp.ConvertedTexts
		a.Variants = &v
	}
	if a.Answer == "" && a.Variants == nil {
		return Fail(capability, MalformedResponse, status, "response has neither answer nor converted_texts")
	}
	return succeed(capability, a, meta)
}

func finetune(capability string, status int, body []byte, meta map[string]any) Result {
	var resp struct {
		ConvertedText string `json:"converted_text"`
		LoraOutput    string `json:"lora_output"`
		Method        string `json:"method"`
		Reason        string `json:"reason"`
		Forced        bool   `json:"forced"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding finetune response: %v", err))
	}
	text := resp.ConvertedText
	if text == "" {
		text = resp.LoraOutput
	}
	if text == "" {
		return Fail(capability, MalformedResponse, status, "response has neither converted_text nor lora_output")
	}
	return succeed(capability, FinetuneText{
		ConvertedText: text,
		Method:        resp.Method,
		Reason:        resp.Reason,
		Forced:        resp.Forced,
		Metadata:      meta,
	}, meta)
}

func quality(capability string, body []byte, meta map[string]any) Result {
	var resp struct {
		Findings json.RawMessage `json:"findings"`
		Analysis json.RawMessage `json:"analysis"`
	}
	_ = json.Unmarshal(body, &resp)
	findings := resp.Findings
	if len(findings) == 0 {
		findings = resp.Analysis
	}
	if len(findings) == 0 {
		findings = json.RawMessage(bytes.TrimSpace(body))
	}
	return succeed(capability, QualityReport{Findings: findings}, meta)
}

func ingest(capability string, status int, body []byte, env envelope) Result {
	var resp struct {
		DocumentsProcessed int `json:"documents_processed"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding ingest response: %v", err))
	}
	return succeed(capability, IngestReceipt{
		DocumentsProcessed: resp.DocumentsProcessed,
		Message:            env.Message,
	}, env.Metadata)
}

func upload(capability string, status int, body []byte) Result {
	var resp struct {
		FilePath      string `json:"filePath"`
		FilePathSnake string `json:"file_path"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail(capability, MalformedResponse, status, fmt.Sprintf("decoding upload response: %v", err))
	}
	path := resp.FilePath
	if path == "" {
		path = resp.FilePathSnake
	}
	if path == "" {
		return Fail(capability, MalformedResponse, status, "upload response has no filePath")
	}
	return succeed(capability, UploadReceipt{FilePath: path}, nil)
}

// unwrapProfile accepts either a bare profile or {"profile": {...}}.
func unwrapProfile(body []byte) json.RawMessage {
	var wrapped struct {
		Profile json.RawMessage `json:"profile"`
	}
	if json.Unmarshal(body, &wrapped) == nil && len(wrapped.Profile) > 0 && string(wrapped.Profile) != "null" {
		return wrapped.Profile
	}
	return json.RawMessage(bytes.TrimSpace(body))
}
