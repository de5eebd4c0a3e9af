package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"canonical", "3f2504e0-4f89-41d3-9a0c-0305e82c3301", false},
		{"generated", uuid.NewString(), false},
		{"empty", "", true},
		{"uppercase", "3F2504E0-4F89-41D3-9A0C-0305E82C3301", true},
		{"braced", "{3f2504e0-4f89-41d3-9a0c-0305e82c3301}", true},
		{"urn", "urn:uuid:3f2504e0-4f89-41d3-9a0c-0305e82c3301", true},
		{"no hyphens", "3f2504e04f8941d39a0c0305e82c3301", true},
		{"path traversal", "../../etc/passwd", true},
		{"slash", "abc/def", true},
		{"null byte", "3f2504e0-4f89-41d3-9a0c-0305e82c330\x00", true},
		{"plain word", "songs", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidID) {
				t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}

func TestReadJSONBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantOK      bool
		wantStatus  int
		wantCode    string
	}{
		{"json", "application/json", `{"scripture":"Juan 3:16"}`, true, http.StatusOK, ""},
		{"json with charset", "application/json; charset=utf-8", `{}`, true, http.StatusOK, ""},
		{"missing content type", "", `{}`, true, http.StatusOK, ""},
		{"vendor json", "application/vnd.voces+json", `{}`, true, http.StatusOK, ""},
		{"text", "text/plain", `{}`, false, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"form", "application/x-www-form-urlencoded", `a=b`, false, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"too large", "application/json", strings.Repeat("a", maxBodyBytes+1), false, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			body, ok := readJSONBody(w, req)
			if ok != tt.wantOK {
				t.Fatalf("readJSONBody() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				if string(body) != tt.body {
					t.Errorf("body = %q, want %q", body, tt.body)
				}
				return
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeResponse(t, w)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestQueryParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"plain", "q=gracia", "gracia"},
		{"trimmed", "q=%20%20amor%20", "amor"},
		{"control characters", "q=fe%00%07", "fe"},
		{"missing", "other=1", ""},
		{"unicode", "q=se%C3%B1or", "señor"},
		{"bounded", "q=" + strings.Repeat("x", maxQueryLength+50), strings.Repeat("x", maxQueryLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/scripture/search?"+tt.query, nil)
			if got := queryParam(req, "q"); got != tt.want {
				t.Errorf("queryParam() = %q, want %q", got, tt.want)
			}
		})
	}
}

func BenchmarkValidateID(b *testing.B) {
	id := uuid.NewString()
	for i := 0; i < b.N; i++ {
		_ = ValidateID(id)
	}
}
