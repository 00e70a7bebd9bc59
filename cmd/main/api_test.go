package main

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CTAG07/Markovian/pkg/corpus"
	"github.com/CTAG07/Markovian/pkg/speaker"
)

// serve sends one request through mux and returns the recorded response.
func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleIdentifyInline(t *testing.T) {
	mux, _ := setupTestAPI(t)

	rec := serve(mux, http.MethodPost, "/api/identify",
		`{"text_a": "aaaaaaaaaa", "text_b": "ababababab", "text": "aaaaaa", "order": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp IdentifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Label != speaker.SpeakerA || resp.ScoreA != 0 || math.Abs(resp.ScoreB+math.Ln2) > 1e-12 {
		t.Errorf("unexpected result: %+v", resp)
	}
	if resp.Conclusion != "Speaker A is most likely" {
		t.Errorf("Conclusion = %q", resp.Conclusion)
	}
	if resp.ID != 0 {
		t.Errorf("expected no history id without record, got %d", resp.ID)
	}
}

func TestHandleIdentifyFromCorpus(t *testing.T) {
	mux, store := setupTestAPI(t)
	ctx := context.Background()
	if err := store.AddSample(ctx, "uniform", "aaaaaaaaaa"); err != nil {
		t.Fatal(err)
	}

	// Speaker B mixes an inline text with a stored speaker A, and the order
	// falls back to the configured default of 2.
	rec := serve(mux, http.MethodPost, "/api/identify",
		`{"speaker_a": "uniform", "text_b": "ababababab", "text": "aaaaaa", "record": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp IdentifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Label != speaker.SpeakerA || resp.ID == 0 {
		t.Errorf("unexpected response: %+v", resp)
	}

	history, err := store.History(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].SpeakerA != "uniform" || history[0].SpeakerB != "inline" || history[0].Order != 2 {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestHandleIdentifyErrors(t *testing.T) {
	mux, _ := setupTestAPI(t)

	testCases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "Wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
		{name: "Malformed JSON", method: http.MethodPost, body: `{"text_a":`, status: http.StatusBadRequest},
		{name: "Empty query", method: http.MethodPost, body: `{"text_a": "abc", "text_b": "abd", "text": ""}`, status: http.StatusBadRequest},
		{name: "Bad order", method: http.MethodPost, body: `{"text_a": "abc", "text_b": "abd", "text": "x", "order": -2}`, status: http.StatusBadRequest},
		{name: "Explicit zero order", method: http.MethodPost, body: `{"text_a": "aaaaaaaaaa", "text_b": "ababababab", "text": "aaaaaa", "order": 0}`, status: http.StatusBadRequest},
		{name: "No sample for B", method: http.MethodPost, body: `{"text_a": "abc", "text": "x"}`, status: http.StatusBadRequest},
		{name: "Unknown speaker", method: http.MethodPost, body: `{"speaker_a": "ghost", "text_b": "abc", "text": "x"}`, status: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(mux, tc.method, "/api/identify", tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestHandleIdentifyBodyLimit(t *testing.T) {
	store := setupTestStore(t)
	config := DefaultConfig()
	config.Server.MaxBodyBytes = 16
	mux := http.NewServeMux()
	NewSpeakerAPI(store, config, discardLogger()).RegisterRoutes(mux)

	rec := serve(mux, http.MethodPost, "/api/identify", `{"text_a": "`+strings.Repeat("a", 64)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestSpeakerLifecycle(t *testing.T) {
	mux, _ := setupTestAPI(t)

	if rec := serve(mux, http.MethodPost, "/api/speakers", `{"name": "curie"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := serve(mux, http.MethodPost, "/api/speakers/curie/samples", "Rien n'est à craindre."); rec.Code != http.StatusCreated {
		t.Fatalf("add sample status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := serve(mux, http.MethodPost, "/api/speakers/obama/samples", "Yes we can."); rec.Code != http.StatusCreated {
		t.Fatalf("add sample to new speaker status = %d", rec.Code)
	}

	rec := serve(mux, http.MethodGet, "/api/speakers", "")
	var speakers []corpus.SpeakerInfo
	if err := json.NewDecoder(rec.Body).Decode(&speakers); err != nil {
		t.Fatal(err)
	}
	if len(speakers) != 2 || speakers[0].Name != "curie" || speakers[0].Runes != 22 || speakers[1].Samples != 1 {
		t.Errorf("unexpected speakers: %+v", speakers)
	}

	rec = serve(mux, http.MethodGet, "/api/speakers/curie", "")
	var shown SpeakerTextResponse
	if err := json.NewDecoder(rec.Body).Decode(&shown); err != nil {
		t.Fatal(err)
	}
	if shown.Text != "Rien n'est à craindre." {
		t.Errorf("speaker text = %q", shown.Text)
	}

	if rec = serve(mux, http.MethodDelete, "/api/speakers/curie", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec = serve(mux, http.MethodGet, "/api/speakers/curie", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rec.Code)
	}
	if rec = serve(mux, http.MethodDelete, "/api/speakers/curie", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestSpeakerRouteErrors(t *testing.T) {
	mux, _ := setupTestAPI(t)

	testCases := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{name: "Create without name", method: http.MethodPost, target: "/api/speakers", body: `{}`, status: http.StatusBadRequest},
		{name: "List wrong method", method: http.MethodPut, target: "/api/speakers", status: http.StatusMethodNotAllowed},
		{name: "Missing name", method: http.MethodGet, target: "/api/speakers/", status: http.StatusBadRequest},
		{name: "Unknown action", method: http.MethodPost, target: "/api/speakers/curie/train", status: http.StatusNotFound},
		{name: "Empty sample", method: http.MethodPost, target: "/api/speakers/curie/samples", status: http.StatusBadRequest},
		{name: "Samples wrong method", method: http.MethodGet, target: "/api/speakers/curie/samples", status: http.StatusMethodNotAllowed},
		{name: "Speaker wrong method", method: http.MethodPut, target: "/api/speakers/curie", status: http.StatusMethodNotAllowed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(mux, tc.method, tc.target, tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestHandleHistory(t *testing.T) {
	mux, store := setupTestAPI(t)
	ctx := context.Background()
	for i := range 3 {
		_, err := store.RecordIdentification(ctx, corpus.Identification{
			SpeakerA: "a", SpeakerB: "b", Order: i + 1,
			Result: speaker.Result{Label: speaker.SpeakerB},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rec := serve(mux, http.MethodGet, "/api/history?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var history []corpus.Identification
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Order != 3 {
		t.Errorf("expected the two newest entries, got %+v", history)
	}

	if rec = serve(mux, http.MethodGet, "/api/history?limit=many", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status for bad limit = %d, want 400", rec.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	mux, _ := setupTestAPI(t)
	rec := serve(mux, http.MethodGet, "/api/version", "")
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != Version || info.Commit != Commit {
		t.Errorf("version info = %+v", info)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	config := DefaultConfig()
	config.Server.ApiAddr = "127.0.0.1:0"
	config.Server.DatabasePath = t.TempDir() + "/serve.db"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, config, discardLogger()); err != nil {
		t.Errorf("run() error = %v after cancellation", err)
	}
}
