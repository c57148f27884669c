package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tonegate/internal/descriptor"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/reconcile"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/validate"
)

const sampleText = "Please review the attached document by Friday."

func defaultProfile() *profile.ToneProfile {
	return profile.Default("u-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

type memHistory struct {
	mu      sync.Mutex
	entries []storage.Conversion
}

func (h *memHistory) SaveConversion(c storage.Conversion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, c)
	return nil
}

func TestConvert_EndToEnd(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversion/convert", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"converted_texts":{"direct":"Review the document by Friday.","gentle":"Could you review the document by Friday?","neutral":"Please review the document by Friday."}}`)
	}))
	defer srv.Close()

	hist := &memHistory{}
	router := New(srv.URL, Options{History: hist})

	p := defaultProfile()
	c := descriptor.DeriveConstraints(p)
	assert.False(t, c.UsesAbbreviations)
	assert.False(t, c.UsesEmoticons)

	variants, res, err := router.Convert(context.Background(), ConvertRequest{
		Text:    sampleText,
		Profile: p,
		Context: ContextReport,
	})
	require.NoError(t, err)
	require.True(t, res.OK, "failure: %+v", res.Failure)
	assert.NotEmpty(t, variants.Direct)
	assert.NotEmpty(t, variants.Gentle)
	assert.NotEmpty(t, variants.Neutral)

	assert.Equal(t, sampleText, got["text"])
	assert.Equal(t, "report", got["context"])
	up := got["user_profile"].(map[string]any)
	assert.Equal(t, 3.0, up["formality"])
	assert.Equal(t, "casual but polite", up["formality_description"])
	assert.NotEmpty(t, up["tone_summary"])
	constraints := up["constraints"].(map[string]any)
	assert.Equal(t, false, constraints["uses_abbreviations"])
	assert.Equal(t, false, constraints["uses_emoticons"])
	neg := got["negative_preferences"].(map[string]any)
	assert.NotEmpty(t, neg["llm_generic"])

	require.Len(t, hist.entries, 1)
	assert.Equal(t, "convert", hist.entries[0].Capability)
	assert.Equal(t, "report", hist.entries[0].Context)
}

func TestDispatch_ValidationBlocksCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	router := New(srv.URL, Options{})

	tests := []struct {
		name string
		req  Request
		kind validate.Kind
	}{
		{"empty text", ConvertRequest{Text: " ", Profile: defaultProfile()}, validate.EmptyInput},
		{"short text", ConvertRequest{Text: "too short", Profile: defaultProfile()}, validate.TooShort},
		{"long text", QualityRequest{Text: strings.Repeat("a", 2001), Profile: defaultProfile()}, validate.TooLong},
		{"missing profile", ConvertRequest{Text: sampleText}, validate.InvalidField},
		{"rag context in conversion", ConvertRequest{Text: sampleText, Profile: defaultProfile(), Context: "business"}, validate.InvalidField},
		{"conversion context in rag", RAGRequest{Query: "How should I greet a client?", Context: "report"}, validate.InvalidField},
		{"wrong rag kind", RAGRequest{Kind: CapConvert, Query: "How should I greet a client?"}, validate.InvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := router.Dispatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, validate.Is(err, tt.kind), "got %v", err)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls), "no request may reach the backend")
}

func TestDispatch_RemoteErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/finetune/convert":
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":"LoRA adapter not loaded for this organization"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
		}
	}))
	defer srv.Close()
	router := New(srv.URL, Options{})

	_, res, err := router.FinetuneConvert(context.Background(), FinetuneRequest{Text: sampleText, Profile: defaultProfile()})
	require.NoError(t, err)
	require.False(t, res.OK)
	assert.Equal(t, reconcile.Rejected, res.Failure.Kind)
	assert.Equal(t, "LoRA adapter not loaded for this organization", res.Failure.Message)

	_, res, err = router.AnalyzeQuality(context.Background(), QualityRequest{Text: sampleText, Profile: defaultProfile()})
	require.NoError(t, err)
	assert.Equal(t, "HTTP 502", res.Failure.Message)
}

func TestDispatch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	router := New(url, Options{})
	_, res, err := router.Convert(context.Background(), ConvertRequest{Text: sampleText, Profile: defaultProfile()})
	require.NoError(t, err)
	require.False(t, res.OK)
	assert.Equal(t, reconcile.Unreachable, res.Failure.Kind)
}

func TestRAGHelpers(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		var body ragPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, RAGBusiness, body.Context)
		assert.NotNil(t, body.UserProfile)
		io.WriteString(w, `{"success":true,"answer":"Use a polite request form.","sources":[{"title":"Style guide"}],"metadata":{"confidence":0.9}}`)
	}))
	defer srv.Close()
	router := New(srv.URL, Options{})

	req := RAGRequest{Query: "How should I ask my manager for leave?", Context: RAGBusiness, Profile: defaultProfile()}
	for _, fn := range []func(context.Context, RAGRequest) (reconcile.Answer, reconcile.Result, error){
		router.Ask, router.AnalyzeGrammar, router.SuggestExpressions,
	} {
		a, res, err := fn(context.Background(), req)
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.Equal(t, "Use a polite request form.", a.Answer)
		assert.Equal(t, 0.9, a.Confidence)
	}
	assert.Equal(t, []string{"/rag/ask", "/rag/analyze-grammar", "/rag/suggest-expressions"}, paths)
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/profile/known":
			io.WriteString(w, `{"profile":{"formality":"7","friendliness":4,"emotion":null,"directness":6,"responses":{"abbreviation_usage":"often","emoticon_usage":"never"}}}`)
		case "/profile/broken":
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail":"database offline"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"profile not found"}`)
		}
	}))
	defer srv.Close()
	router := New(srv.URL, Options{})

	p, err := router.FetchProfile(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "known", p.UserID)
	assert.Equal(t, 7.0, p.Effective().Formality)
	assert.Equal(t, 5.0, p.Effective().Emotion)
	assert.True(t, p.Usable())

	_, err = router.FetchProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	_, err = router.FetchProfile(context.Background(), "broken")
	var f *reconcile.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "database offline", f.Message)
}

func TestCreateProfile(t *testing.T) {
	var received profile.ToneProfile
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	router := New(srv.URL, Options{})

	require.NoError(t, router.CreateProfile(context.Background(), defaultProfile()))
	assert.Equal(t, "u-1", received.UserID)
	assert.Equal(t, 3.0, received.Effective().Directness)
}

func TestStoreWithRouter_DefaultProfileFlow(t *testing.T) {
	var creates int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/profile" {
			atomic.AddInt32(&creates, 1)
			io.WriteString(w, `{"success":true}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	store := profile.NewStore(New(srv.URL, Options{}), cache)
	p, err := store.Ensure(context.Background(), "u-9")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int32(1), atomic.LoadInt32(&creates))

	again, err := store.Resolve(context.Background(), "u-9")
	require.NoError(t, err)
	require.NotNil(t, again, "locally persisted default must survive a remote 404")
	assert.Equal(t, p.Responses, again.Responses)
}

func TestStoreWithRouter_UnusableRemoteProfileIgnored(t *testing.T) {
	bodies := []string{`{}`, `null`, `{"profile":{"user_id":"u-9","formality":7}}`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					io.WriteString(w, `{"success":true}`)
					return
				}
				io.WriteString(w, body)
			}))
			defer srv.Close()

			cache, err := storage.Open(":memory:")
			require.NoError(t, err)
			defer cache.Close()

			store := profile.NewStore(New(srv.URL, Options{}), cache)
			p, err := store.Ensure(context.Background(), "u-9")
			require.NoError(t, err)
			assert.True(t, p.Usable())
			assert.Equal(t, "rarely", p.Responses.AbbreviationUsage)
			assert.Equal(t, 3.0, p.Effective().Formality)
		})
	}
}

func TestRoutes(t *testing.T) {
	caps := Capabilities()
	assert.Len(t, caps, len(capabilities))
	for _, c := range caps {
		method, path, ok := Route(c)
		require.True(t, ok, "capability %s has no route", c)
		assert.NotEmpty(t, method)
		assert.True(t, strings.HasPrefix(path, "/"), "path %q", path)
	}
	_, _, ok := Route("teleport")
	assert.False(t, ok)

	router := New("http://backend.test/api/", Options{})
	assert.Equal(t, "http://backend.test/api", router.BaseURL())
}
