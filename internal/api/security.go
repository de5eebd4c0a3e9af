package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/VocesDelReino/internal/server"
)

var (
	// ErrInvalidID is returned for resource IDs that are not canonical UUIDs.
	ErrInvalidID = errors.New("invalid ID")

	// ErrBodyTooLarge is returned when a request body exceeds maxBodyBytes.
	ErrBodyTooLarge = errors.New("request body too large")
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// maxQueryLength bounds query parameters after sanitization.
const maxQueryLength = 256

// ValidateID checks that id is a canonical lowercase UUID, the only form
// the server hands out for songs and jobs.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidID)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if u.String() != id {
		return fmt.Errorf("%w: ID is not in canonical form", ErrInvalidID)
	}
	return nil
}

// readJSONBody reads a bounded request body after checking its content type.
// It writes the error response itself and reports whether to continue.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if !server.IsJSONRequest(r) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", ErrBodyTooLarge.Error())
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read request body")
		return nil, false
	}
	return body, true
}

// queryParam returns a sanitized, length-bounded query parameter.
func queryParam(r *http.Request, name string) string {
	return server.SanitizeQueryParam(r.URL.Query().Get(name), maxQueryLength)
}
