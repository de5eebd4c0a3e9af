package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/core/chord"
	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/bibleapi"
	"github.com/FocuswithJustin/VocesDelReino/internal/completion"
	"github.com/FocuswithJustin/VocesDelReino/internal/library"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status            string `json:"status"` // healthy | degraded
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Translation       string `json:"translation"`
	Verses            int    `json:"verses"`
	Digest            string `json:"digest,omitempty"`
	ScriptureBackend  string `json:"scripture_backend"`
	CompletionBackend string `json:"completion_backend,omitempty"`
	WebSocketClients  int    `json:"websocket_clients"`
}

// ParseResult is the parse endpoint response.
type ParseResult struct {
	scripture.Reference
	Label   string `json:"label"`
	English string `json:"english"`
}

// PitchRequest is the chord pitches request body.
type PitchRequest struct {
	Lines  []string `json:"lines"`
	Octave *int     `json:"octave,omitempty"` // default 4
}

// PitchResult is the chord pitches response.
type PitchResult struct {
	Pitches [][]int `json:"pitches"`
}

// Search limits for the search endpoint.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
	defaultOctave      = 4
	maxOctave          = 8
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Voces del Reino API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"POST /api/generate",
			"GET /api/scripture/lookup?ref=",
			"GET /api/scripture/search?q=&limit=",
			"GET /api/scripture/parse?ref=",
			"POST /api/chords/pitches",
			"GET /api/songs",
			"POST /api/songs",
			"GET /api/songs/:id",
			"DELETE /api/songs/:id",
			"POST /jobs",
			"GET /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	info := HealthInfo{
		Status:           "healthy",
		Version:          s.cfg.Version,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		ScriptureBackend: s.scriptureBackend,
		WebSocketClients: s.hub.ClientCount(),
	}
	if s.generator != nil && s.generator.Completion != nil {
		info.CompletionBackend = s.generator.Completion.Name()
	}
	if s.store != nil {
		st := s.store.Store()
		info.Translation = st.Translation()
		info.Verses = st.Len()
		s.metrics.SetDatasetVerses(info.Verses)
		info.Digest = s.datasetDigest()
		if s.store.Err() != nil {
			info.Status = "degraded"
		}
	}

	respond(w, http.StatusOK, info)
}

// datasetDigest hashes the dataset once; the store never changes.
func (s *Server) datasetDigest() string {
	s.digestOnce.Do(func() {
		s.digest = s.store.Store().Digest()
	})
	return s.digest
}

// handleGenerate runs a generation synchronously.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, "GENERATION_UNAVAILABLE", "Song generation is not configured")
		return
	}

	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	var req song.Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.generator.Generate(ctx, req)
	if err != nil {
		status, apiErr := classifyError(err)
		logging.WarnContext(ctx, "generation failed",
			"status", status,
			"code", apiErr.Code,
			"error", err.Error())
		respondError(w, status, apiErr.Code, apiErr.Message)
		return
	}

	respond(w, http.StatusOK, res)
}

// classifyError maps generation and storage errors to an HTTP status and
// API error.
func classifyError(err error) (int, *APIError) {
	var (
		validation *errors.ValidationError
		notFound   *errors.NotFoundError
		upstream   *completion.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: validation.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, &APIError{Code: "NOT_FOUND", Message: notFound.Error()}
	case errors.Is(err, completion.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, &APIError{Code: "COMPLETION_UNAVAILABLE", Message: "Completion service API key is not configured"}
	case errors.Is(err, completion.ErrRateLimited):
		return http.StatusTooManyRequests, &APIError{Code: "RATE_LIMITED", Message: "Completion service rate limit reached, try again later"}
	case errors.Is(err, errors.ErrGenerationFormat):
		return http.StatusBadGateway, &APIError{Code: "GENERATION_FORMAT", Message: "The completion service returned an unusable reply"}
	case errors.As(err, &upstream), errors.Is(err, completion.ErrResponseInvalid):
		return http.StatusBadGateway, &APIError{Code: "UPSTREAM_ERROR", Message: "The completion service failed"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &APIError{Code: "TIMEOUT", Message: "Generation timed out"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, &APIError{Code: "CANCELLED", Message: "Generation was cancelled"}
	}
	return http.StatusInternalServerError, &APIError{Code: "INTERNAL_ERROR", Message: "Internal server error"}
}

func (s *Server) handleScriptureLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	raw := queryParam(r, "ref")
	ref, ok := scripture.Parse(raw)
	if !ok {
		respondError(w, http.StatusBadRequest, "UNPARSEABLE_REFERENCE", "Reference must look like \"Juan 3:16\" or \"1 Tesalonicenses 4:16-18\"")
		return
	}

	p, err := s.lookup.Lookup(r.Context(), ref)
	if err != nil {
		if errors.Is(err, bibleapi.ErrUpstreamUnavailable) {
			respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Verse service unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Lookup failed")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Passage not found: "+ref.Label())
		return
	}

	respond(w, http.StatusOK, p)
}

func (s *Server) handleScriptureSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	q := queryParam(r, "q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "MISSING_QUERY", "Query parameter q is required")
		return
	}

	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	var matches []verses.Match
	if s.store != nil {
		start := time.Now()
		matches = s.store.Search(q, limit)
		s.metrics.RecordSearch(time.Since(start))
	}
	if matches == nil {
		matches = []verses.Match{}
	}

	respondList(w, http.StatusOK, matches, len(matches))
}

func (s *Server) handleScriptureParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	ref, ok := scripture.Parse(queryParam(r, "ref"))
	if !ok {
		respondError(w, http.StatusBadRequest, "UNPARSEABLE_REFERENCE", "Not a scripture reference")
		return
	}

	respond(w, http.StatusOK, ParseResult{
		Reference: ref,
		Label:     ref.Label(),
		English:   ref.English(),
	})
}

func (s *Server) handleChordPitches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	var req PitchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	octave := defaultOctave
	if req.Octave != nil {
		octave = *req.Octave
	}
	if octave < 0 || octave > maxOctave {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "octave must be between 0 and 8")
		return
	}

	pitches := chord.ProgressionPitches(req.Lines, octave)
	if pitches == nil {
		pitches = [][]int{}
	}
	respond(w, http.StatusOK, PitchResult{Pitches: pitches})
}

// handleSongs handles GET /api/songs (list) and POST /api/songs (save).
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		respondError(w, http.StatusServiceUnavailable, "LIBRARY_UNAVAILABLE", "Song library is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		songs, err := s.library.List(r.Context())
		if err != nil {
			logging.ErrorContext(r.Context(), "list songs failed", "error", err)
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list songs")
			return
		}
		respondList(w, http.StatusOK, songs, len(songs))
	case http.MethodPost:
		s.saveSong(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) saveSong(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	var in library.Song
	if err := json.Unmarshal(body, &in); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	in.Request.Normalize()
	if strings.TrimSpace(in.Draft.Title) == "" && strings.TrimSpace(in.Draft.Lyrics) == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "result must contain a song")
		return
	}

	saved, err := s.library.Add(r.Context(), library.Song{Request: in.Request, Draft: in.Draft})
	if err != nil {
		logging.ErrorContext(r.Context(), "save song failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save song")
		return
	}
	respond(w, http.StatusCreated, saved)
}

// handleSongByID handles GET and DELETE /api/songs/{id}.
func (s *Server) handleSongByID(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		respondError(w, http.StatusServiceUnavailable, "LIBRARY_UNAVAILABLE", "Song library is not configured")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/songs/")
	if err := ValidateID(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		sg, err := s.library.Get(r.Context(), id)
		if err != nil {
			s.respondLibraryError(w, r, err)
			return
		}
		respond(w, http.StatusOK, sg)
	case http.MethodDelete:
		if err := s.library.Delete(r.Context(), id); err != nil {
			s.respondLibraryError(w, r, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Song deleted"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func (s *Server) respondLibraryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errors.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Song not found")
		return
	}
	logging.ErrorContext(r.Context(), "library error", "error", err)
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Library operation failed")
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// respondList is respond with meta.total set.
func respondList(w http.ResponseWriter, status int, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
