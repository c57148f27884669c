package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/tonegate/internal/api"
	"github.com/kalambet/tonegate/internal/config"
	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func (b *testBackend) paths(prefix string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedRequest
	for _, r := range b.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body.ReadFrom(r.Body)
		}
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body.String()})
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/conversion/convert":
			io.WriteString(w, `{"success":true,"converted_texts":{"direct":"Send the numbers by Friday.","gentle":"Could you send the numbers by Friday?","neutral":"Please send the numbers by Friday."}}`)
		case "/finetune/convert":
			io.WriteString(w, `{"success":true,"lora_output":"Kindly send the numbers by Friday.","method":"lora"}`)
		case "/rag/ask", "/rag/analyze-grammar", "/rag/suggest-expressions":
			io.WriteString(w, `{"success":true,"answer":"Open with a greeting.","sources":["Style guide"]}`)
		case "/quality/analyze":
			io.WriteString(w, `{"success":true,"findings":{"score":82}}`)
		case "/profile":
			io.WriteString(w, `{"success":true}`)
		case "/upload":
			r.ParseMultipartForm(1 << 20)
			_, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"filePath": "/uploads/" + header.Filename})
		case "/rag/ingest":
			if strings.Contains(body.String(), "reject") {
				w.WriteHeader(http.StatusUnprocessableEntity)
				io.WriteString(w, `{"success":false,"error":"unsupported document layout"}`)
				return
			}
			io.WriteString(w, `{"success":true,"documents_processed":3,"message":"ok"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not found"}`)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

// useTestApp points every command at backend with a throwaway data dir.
func useTestApp(t *testing.T, backend *testBackend) {
	t.Helper()
	cfg := config.Config{
		Gateway: config.GatewayConfig{BaseURL: backend.server.URL, Timeout: "5s"},
		Server:  config.ServerConfig{Port: 4100},
		Storage: config.StorageConfig{DataDir: t.TempDir()},
		Log:     config.LogConfig{Level: "error"},
		Ingest:  config.IngestConfig{Concurrency: 2, CompanyID: "acme"},
	}

	prev := openApp
	openApp = func() (*app, error) { return newApp(cfg, http.DefaultTransport) }
	noColor = true
	t.Cleanup(func() { openApp = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	out, err := execute(t, "convert", "Please send me the numbers by Friday.", "--context", "email", "--formality", "9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Direct", "Could you send the numbers by Friday?", "Neutral"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	reqs := backend.paths("/conversion/convert")
	if len(reqs) != 1 {
		t.Fatalf("expected 1 convert request, got %d", len(reqs))
	}
	var body struct {
		Context     string `json:"context"`
		UserProfile struct {
			Formality    float64 `json:"formality"`
			Friendliness float64 `json:"friendliness"`
		} `json:"user_profile"`
	}
	if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.Context != "email" {
		t.Errorf("context = %q, want email", body.Context)
	}
	if body.UserProfile.Formality != 9 {
		t.Errorf("formality = %v, want override 9", body.UserProfile.Formality)
	}
	if body.UserProfile.Friendliness != 3 {
		t.Errorf("friendliness = %v, want default 3", body.UserProfile.Friendliness)
	}

	out, err = execute(t, "history", "list")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "convert") {
		t.Errorf("history missing conversion:\n%s", out)
	}
}

func TestConvertCommand_ValidationBlocksCall(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	_, err := execute(t, "convert", "too", "short")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "too short") {
		t.Errorf("error = %q", err)
	}
	if n := len(backend.paths("/conversion")); n != 0 {
		t.Errorf("backend received %d convert requests", n)
	}
}

func TestFinetuneCommand_Stdin(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	rootCmd.SetIn(strings.NewReader("Please send me the numbers by Friday.\n"))
	defer rootCmd.SetIn(nil)

	out, err := execute(t, "finetune")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Kindly send the numbers by Friday.") {
		t.Errorf("output = %q", out)
	}
	reqs := backend.paths("/finetune/convert")
	if len(reqs) != 1 || !strings.Contains(reqs[0].Body, "Please send me the numbers by Friday.") {
		t.Errorf("finetune requests = %+v", reqs)
	}
}

func TestRAGCommands(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	for _, name := range []string{"ask", "grammar", "expressions"} {
		out, err := execute(t, name, "How should I greet a new client?", "--context", "business")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(out, "Open with a greeting.") || !strings.Contains(out, "Style guide") {
			t.Errorf("%s output = %q", name, out)
		}
	}
	if n := len(backend.paths("/rag/")); n != 3 {
		t.Errorf("rag requests = %d, want 3", n)
	}
}

func TestQualityCommand_JSON(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	out, err := execute(t, "quality", "--json", "The report was written by the team last week.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res struct {
		OK    bool `json:"ok"`
		Value struct {
			Findings map[string]any `json:"findings"`
		} `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !res.OK || res.Value.Findings["score"] != 82.0 {
		t.Errorf("result = %+v", res)
	}
}

func TestIngestCommand(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	dir := t.TempDir()
	good := filepath.Join(dir, "handbook.txt")
	bad := filepath.Join(dir, "layout-reject.txt")
	os.WriteFile(good, []byte("style handbook"), 0o644)
	os.WriteFile(bad, []byte("odd layout"), 0o644)

	out, err := execute(t, "ingest", good, bad, "--company", "globex")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("error = %v, want partial failure", err)
	}
	if !strings.Contains(out, "✓ handbook.txt (3 documents)") {
		t.Errorf("missing success line:\n%s", out)
	}
	if !strings.Contains(out, "✗ layout-reject.txt: unsupported document layout") {
		t.Errorf("missing failure line:\n%s", out)
	}

	for _, r := range backend.paths("/rag/ingest") {
		var req gateway.IngestRequest
		json.Unmarshal([]byte(r.Body), &req)
		if req.CompanyID != "globex" {
			t.Errorf("company_id = %q, want globex", req.CompanyID)
		}
	}
}

func TestIngestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "ingest")
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}

func TestProfileCommands(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	if _, err := execute(t, "profile", "set", "formality", "8"); err != nil {
		t.Fatalf("profile set: %v", err)
	}
	if _, err := execute(t, "profile", "set", "emoticon_usage", "often"); err != nil {
		t.Fatalf("profile set: %v", err)
	}

	out, err := execute(t, "profile", "show", "--json")
	if err != nil {
		t.Fatalf("profile show: %v", err)
	}
	var view api.ProfileView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.Effective.Formality != 8 {
		t.Errorf("formality = %v, want 8", view.Effective.Formality)
	}
	if !view.Constraints.UsesEmoticons {
		t.Error("expected emoticons to be allowed")
	}
	if view.Descriptors["formality"] != "very formal, strict honorific register" {
		t.Errorf("descriptor = %q", view.Descriptors["formality"])
	}

	out, err = execute(t, "profile", "progress")
	if err != nil {
		t.Fatalf("profile progress: %v", err)
	}
	if !strings.Contains(out, "habits") || !strings.Contains(out, "Unanswered:") {
		t.Errorf("progress output = %q", out)
	}

	if _, err := execute(t, "profile", "default"); err != nil {
		t.Fatalf("profile default: %v", err)
	}
	out, _ = execute(t, "profile", "show", "--json")
	json.Unmarshal([]byte(out), &view)
	if view.Effective.Formality != 3 {
		t.Errorf("formality after reset = %v, want 3", view.Effective.Formality)
	}
}

func TestHistoryShow_Prefix(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	if _, err := execute(t, "convert", "Please send me the numbers by Friday."); err != nil {
		t.Fatalf("convert: %v", err)
	}

	a, err := openApp()
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	convs, err := a.store.ListConversions(1)
	a.Close()
	if err != nil || len(convs) != 1 {
		t.Fatalf("ListConversions: %v, %d", err, len(convs))
	}

	out, err := execute(t, "history", "show", convs[0].ID[:8])
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	var entry api.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.ID != convs[0].ID {
		t.Errorf("id = %q, want %q", entry.ID, convs[0].ID)
	}

	if _, err := execute(t, "history", "show", "ffffffff"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"serve", "stop", "status", "convert", "finetune", "ask", "grammar",
		"expressions", "quality", "ingest", "profile", "history", "config",
	}
	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}

	sub := map[string]bool{}
	for _, c := range profileCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, name := range []string{"show", "default", "set", "progress"} {
		if !sub[name] {
			t.Errorf("profile %s not registered", name)
		}
	}
}

func TestStatusCommand_ListsEndpoints(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"convert ", "POST  " + backend.server.URL + "/conversion/convert",
		"profileGet", "GET   " + backend.server.URL + "/profile/",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryList_ShortIDs(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	a, err := openApp()
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	err = a.store.SaveConversion(storage.Conversion{
		ID:         "abc",
		CreatedAt:  time.Now(),
		Capability: "convert",
		InputText:  "Imported from an older install.",
		OutputJSON: `{}`,
	})
	a.Close()
	if err != nil {
		t.Fatalf("SaveConversion: %v", err)
	}

	out, err := execute(t, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(out, "abc  ") {
		t.Errorf("output = %q", out)
	}
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
}

func TestProfileSet_BlankAnswerRejected(t *testing.T) {
	backend := newTestBackend(t)
	useTestApp(t, backend)

	_, err := execute(t, "profile", "set", "emoticon_usage", "  ")
	if err == nil || !strings.Contains(err.Error(), "must not be blank") {
		t.Fatalf("error = %v, want blank-answer error", err)
	}
}
