package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/bibleapi"
	"github.com/FocuswithJustin/VocesDelReino/internal/completion"
	"github.com/FocuswithJustin/VocesDelReino/internal/library"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

type failingLookup struct{ err error }

func (f failingLookup) Lookup(context.Context, scripture.Reference) (*verses.Passage, error) {
	return nil, f.err
}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(t, Config{Version: "1.0.0"}, nil)

	var data map[string]any
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/", nil), &data)
	if data["name"] != "Voces del Reino API" {
		t.Errorf("name = %v, want %q", data["name"], "Voces del Reino API")
	}
	if data["version"] != "1.0.0" {
		t.Errorf("version = %v, want %q", data["version"], "1.0.0")
	}

	w := doRequest(t, s.routes(), http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Success || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown path response = %+v", resp)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	var info HealthInfo
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/health", nil), &info)

	want := HealthInfo{
		Status:            "healthy",
		Version:           "dev",
		Translation:       "RVR1909",
		Verses:            5,
		Digest:            testVerses().Digest(),
		ScriptureBackend:  "dataset",
		CompletionBackend: "mock",
	}
	info.Uptime = ""
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	w := doRequest(t, s.routes(), http.MethodPost, "/health", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", w.Code)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	s := newTestServer(t, Config{}, func(d *Deps) {
		d.Store = verses.NewLazy(func() (*verses.Store, error) {
			return nil, errors.New("dataset missing")
		}, "RVR1909")
		d.Generator = nil
	})

	var info HealthInfo
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/health", nil), &info)
	if info.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", info.Status)
	}
	if info.Verses != 0 || info.Translation != "RVR1909" {
		t.Errorf("Verses, Translation = %d, %q; want 0, RVR1909", info.Verses, info.Translation)
	}
	if info.CompletionBackend != "" {
		t.Errorf("CompletionBackend = %q, want empty", info.CompletionBackend)
	}
}

func TestHandleGenerate(t *testing.T) {
	mock := completion.NewMock()
	s := newTestServer(t, Config{}, func(d *Deps) {
		d.Generator = testGenerator(d.Store, mock)
	})

	body := map[string]any{
		"topic":          "la segunda venida",
		"scriptureFocus": "1 Tesalonicenses 4:16-18",
		"key":            "D",
	}
	var res song.Result
	decodeData(t, doRequest(t, s.routes(), http.MethodPost, "/api/generate", body), &res)

	if res.Draft.Title != "Juntos con el Señor" {
		t.Errorf("Title = %q", res.Draft.Title)
	}
	if res.Backend != "mock" {
		t.Errorf("Backend = %q, want mock", res.Backend)
	}
	if res.Anchor.Passage == nil {
		t.Fatal("Anchor.Passage = nil, want the requested passage")
	}
	if got := len(res.Anchor.Passage.Verses); got != 3 {
		t.Errorf("passage verses = %d, want 3", got)
	}
	if res.Draft.ScriptureFocus != "1 Tesalonicenses 4:16-18" {
		t.Errorf("ScriptureFocus = %q", res.Draft.ScriptureFocus)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(reqs))
	}
	if !strings.Contains(reqs[0].Prompt, "Porque el mismo Señor con aclamación") {
		t.Error("prompt does not carry the passage text")
	}
}

func TestHandleGenerateErrors(t *testing.T) {
	valid := map[string]any{"topic": "gracia"}

	tests := []struct {
		name     string
		client   completion.Client
		noGen    bool
		method   string
		body     any
		ctype    string
		wantCode int
		wantErr  string
	}{
		{name: "method", method: http.MethodGet, wantCode: http.StatusMethodNotAllowed, wantErr: "METHOD_NOT_ALLOWED"},
		{name: "no generator", noGen: true, body: valid, wantCode: http.StatusServiceUnavailable, wantErr: "GENERATION_UNAVAILABLE"},
		{name: "invalid json", body: "{not json", wantCode: http.StatusBadRequest, wantErr: "INVALID_JSON"},
		{name: "content type", body: valid, ctype: "text/plain", wantCode: http.StatusUnsupportedMediaType, wantErr: "UNSUPPORTED_MEDIA_TYPE"},
		{name: "validation", body: map[string]any{"mode": "lydian"}, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "bad key", body: map[string]any{"key": "H"}, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "missing api key", client: completion.NewFailingMock(completion.ErrMissingAPIKey), body: valid, wantCode: http.StatusServiceUnavailable, wantErr: "COMPLETION_UNAVAILABLE"},
		{name: "rate limited", client: completion.NewFailingMock(completion.ErrRateLimited), body: valid, wantCode: http.StatusTooManyRequests, wantErr: "RATE_LIMITED"},
		{name: "upstream", client: completion.NewFailingMock(&completion.UpstreamError{Backend: "openai", Status: 500}), body: valid, wantCode: http.StatusBadGateway, wantErr: "UPSTREAM_ERROR"},
		{name: "invalid response", client: completion.NewFailingMock(completion.ErrResponseInvalid), body: valid, wantCode: http.StatusBadGateway, wantErr: "UPSTREAM_ERROR"},
		{name: "format", client: completion.NewMock("Lo siento, no puedo."), body: valid, wantCode: http.StatusBadGateway, wantErr: "GENERATION_FORMAT"},
		{name: "deadline", client: completion.NewFailingMock(context.DeadlineExceeded), body: valid, wantCode: http.StatusGatewayTimeout, wantErr: "TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{}, func(d *Deps) {
				switch {
				case tt.noGen:
					d.Generator = nil
				case tt.client != nil:
					d.Generator = testGenerator(d.Store, tt.client)
				}
			})

			method := tt.method
			if method == "" {
				method = http.MethodPost
			}
			var w *httptest.ResponseRecorder
			if tt.ctype != "" {
				req := httptest.NewRequest(method, "/api/generate", strings.NewReader(`{"topic":"gracia"}`))
				req.Header.Set("Content-Type", tt.ctype)
				w = httptest.NewRecorder()
				s.routes().ServeHTTP(w, req)
			} else {
				w = doRequest(t, s.routes(), method, "/api/generate", tt.body)
			}

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			resp := decodeResponse(t, w)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %q", resp.Error, tt.wantErr)
			}
			if tt.wantErr == "GENERATION_FORMAT" && strings.Contains(w.Body.String(), "no puedo") {
				t.Error("raw model text leaked into the response")
			}
		})
	}
}

func TestHandleScriptureLookup(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	var p verses.Passage
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/api/scripture/lookup?ref=1+Tesalonicenses+4:16-18", nil), &p)
	if p.Translation != "RVR1909" || len(p.Verses) != 3 {
		t.Errorf("passage = %+v", p)
	}
	if !strings.HasPrefix(p.Text, "16. Porque el mismo Señor") {
		t.Errorf("Text = %q", p.Text)
	}

	tests := []struct {
		name string
		path string
		want int
		code string
	}{
		{"unparseable", "/api/scripture/lookup?ref=mi+canci%C3%B3n", http.StatusBadRequest, "UNPARSEABLE_REFERENCE"},
		{"empty", "/api/scripture/lookup", http.StatusBadRequest, "UNPARSEABLE_REFERENCE"},
		{"not found", "/api/scripture/lookup?ref=Juan+3:17", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s.routes(), http.MethodGet, tt.path, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if resp := decodeResponse(t, w); resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want %q", resp.Error, tt.code)
			}
		})
	}
}

func TestHandleScriptureLookupUpstream(t *testing.T) {
	s := newTestServer(t, Config{}, func(d *Deps) {
		d.Lookup = failingLookup{err: bibleapi.ErrUpstreamUnavailable}
		d.ScriptureBackend = "network"
	})

	w := doRequest(t, s.routes(), http.MethodGet, "/api/scripture/lookup?ref=Juan+3:16", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	var info HealthInfo
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/health", nil), &info)
	if info.ScriptureBackend != "network" {
		t.Errorf("ScriptureBackend = %q, want network", info.ScriptureBackend)
	}
}

func TestHandleScriptureSearch(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	var matches []verses.Match
	resp := decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/api/scripture/search?q=gracia", nil), &matches)
	if len(matches) != 1 || matches[0].Book != "Efesios" {
		t.Errorf("matches = %+v, want Efesios 2:8", matches)
	}
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Errorf("meta = %+v, want total 1", resp.Meta)
	}

	w := doRequest(t, s.routes(), http.MethodGet, "/api/scripture/search?q=xyzzy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("no-hit status = %d, want 200", w.Code)
	}
	if got := string(decodeResponse(t, w).Data); got != "[]" {
		t.Errorf("no-hit data = %s, want []", got)
	}

	w = doRequest(t, s.routes(), http.MethodGet, "/api/scripture/search?q=porque&limit=2", nil)
	decodeData(t, w, &matches)
	if len(matches) != 2 {
		t.Errorf("limit=2 returned %d matches", len(matches))
	}

	for _, path := range []string{
		"/api/scripture/search",
		"/api/scripture/search?q=gracia&limit=0",
		"/api/scripture/search?q=gracia&limit=abc",
	} {
		if w := doRequest(t, s.routes(), http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, w.Code)
		}
	}
}

func TestHandleScriptureParse(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	var got ParseResult
	decodeData(t, doRequest(t, s.routes(), http.MethodGet, "/api/scripture/parse?ref=1+Tesalonicenses+4:16-18", nil), &got)
	if got.Chapter != 4 || got.VerseStart != 16 || got.VerseEnd != 18 {
		t.Errorf("parsed = %+v", got)
	}
	if got.English != "1 Thessalonians 4:16-18" {
		t.Errorf("English = %q", got.English)
	}
	if got.Label != "1 tesalonicenses 4:16-18" {
		t.Errorf("Label = %q", got.Label)
	}

	if w := doRequest(t, s.routes(), http.MethodGet, "/api/scripture/parse?ref=hola", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unparseable status = %d, want 400", w.Code)
	}
}

func TestHandleChordPitches(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	var got PitchResult
	decodeData(t, doRequest(t, s.routes(), http.MethodPost, "/api/chords/pitches",
		map[string]any{"lines": []string{"C - Santo", "[Coro]", "Am"}}), &got)
	want := [][]int{{60, 64, 67}, {69, 72, 76}}
	if diff := cmp.Diff(want, got.Pitches); diff != "" {
		t.Errorf("pitches mismatch (-want +got):\n%s", diff)
	}

	decodeData(t, doRequest(t, s.routes(), http.MethodPost, "/api/chords/pitches",
		map[string]any{"lines": []string{"C"}, "octave": 3}), &got)
	if diff := cmp.Diff([][]int{{48, 52, 55}}, got.Pitches); diff != "" {
		t.Errorf("octave 3 mismatch (-want +got):\n%s", diff)
	}

	w := doRequest(t, s.routes(), http.MethodPost, "/api/chords/pitches", map[string]any{"lines": []string{}})
	if got := string(decodeResponse(t, w).Data); got != `{"pitches":[]}` {
		t.Errorf("empty data = %s", got)
	}

	if w := doRequest(t, s.routes(), http.MethodPost, "/api/chords/pitches",
		map[string]any{"lines": []string{"C"}, "octave": 9}); w.Code != http.StatusBadRequest {
		t.Errorf("octave 9 status = %d, want 400", w.Code)
	}
	if w := doRequest(t, s.routes(), http.MethodGet, "/api/chords/pitches", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}

func TestHandleSongs(t *testing.T) {
	lib, err := library.Open(context.Background(), filepath.Join(t.TempDir(), "songs.db"), 10)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.Close() })
	s := newTestServer(t, Config{}, func(d *Deps) { d.Library = lib })
	h := s.routes()

	in := map[string]any{
		"input":  map[string]any{"topic": "gracia", "key": "G"},
		"result": map[string]any{"title": "Sublime gracia", "lyrics": "Verso 1\nSublime gracia", "chords": []string{"G - C - D"}},
	}
	w := doRequest(t, h, http.MethodPost, "/api/songs", in)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var saved library.Song
	decodeData(t, w, &saved)
	if err := ValidateID(saved.ID); err != nil {
		t.Errorf("saved ID %q: %v", saved.ID, err)
	}
	if saved.Request.Language != "es" || saved.Request.Key != "G" {
		t.Errorf("saved request not normalized: %+v", saved.Request)
	}

	var list []library.Song
	resp := decodeData(t, doRequest(t, h, http.MethodGet, "/api/songs", nil), &list)
	if len(list) != 1 || resp.Meta.Total != 1 {
		t.Fatalf("list = %d songs, total %d; want 1", len(list), resp.Meta.Total)
	}

	var got library.Song
	decodeData(t, doRequest(t, h, http.MethodGet, "/api/songs/"+saved.ID, nil), &got)
	if got.Draft.Title != "Sublime gracia" {
		t.Errorf("Title = %q", got.Draft.Title)
	}

	if w := doRequest(t, h, http.MethodDelete, "/api/songs/"+saved.ID, nil); w.Code != http.StatusOK {
		t.Errorf("DELETE status = %d, want 200", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/songs/"+saved.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", w.Code)
	}
	if w := doRequest(t, h, http.MethodDelete, "/api/songs/"+saved.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", w.Code)
	}
}

func TestHandleSongsErrors(t *testing.T) {
	lib, err := library.Open(context.Background(), filepath.Join(t.TempDir(), "songs.db"), 10)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.Close() })
	s := newTestServer(t, Config{}, func(d *Deps) { d.Library = lib })
	h := s.routes()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty song", http.MethodPost, "/api/songs", map[string]any{"input": map[string]any{}}, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/api/songs", "[", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/songs/not-a-uuid", nil, http.StatusBadRequest},
		{"empty id", http.MethodGet, "/api/songs/", nil, http.StatusBadRequest},
		{"uppercase id", http.MethodGet, "/api/songs/6BA7B810-9DAD-11D1-80B4-00C04FD430C8", nil, http.StatusBadRequest},
		{"method", http.MethodPut, "/api/songs", nil, http.StatusMethodNotAllowed},
		{"method by id", http.MethodPost, "/api/songs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(t, h, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	noLib := newTestServer(t, Config{}, nil)
	if w := doRequest(t, noLib.routes(), http.MethodGet, "/api/songs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no library status = %d, want 503", w.Code)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), http.StatusInternalServerError},
		{context.Canceled, http.StatusServiceUnavailable},
		{apperrors.NewNotFound("song", "x"), http.StatusNotFound},
		{fmt.Errorf("generate song: %w", apperrors.NewGenerationFormat("extract", "{", errors.New("eof"))), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got, _ := classifyError(tt.err); got != tt.want {
			t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
