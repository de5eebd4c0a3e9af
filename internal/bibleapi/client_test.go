package bibleapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

const thessReply = `{
  "reference": "1 Thessalonians 4:16-18",
  "verses": [
    {"book_id": "1TH", "book_name": "1 Thessalonians", "chapter": 4, "verse": 16, "text": "For the Lord himself will descend from heaven with a shout,\n"},
    {"book_id": "1TH", "book_name": "1 Thessalonians", "chapter": 4, "verse": 17, "text": "then we who are alive will be caught up together with them\n"},
    {"book_id": "1TH", "book_name": "1 Thessalonians", "chapter": 4, "verse": 18, "text": "Therefore comfort one another with these words.\n"}
  ],
  "text": "For the Lord himself...",
  "translation_id": "web",
  "translation_name": "World English Bible"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Translation: "web"})
}

func TestURL(t *testing.T) {
	c := New(Options{})
	got := c.URL(scripture.MustParse("1 tesalonicenses 4:16-18"))
	want := "https://bible-api.com/1%20Thessalonians%204:16-18?translation=web"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestLookup(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/1 Thessalonians 4:16-18" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if tr := r.URL.Query().Get("translation"); tr != "web" {
			t.Errorf("translation = %q", tr)
		}
		fmt.Fprint(w, thessReply)
	})

	ref := scripture.MustParse("1 Tes 4:16-18")
	p, err := c.Lookup(context.Background(), ref)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if p == nil {
		t.Fatal("Lookup() = nil passage")
	}
	if p.Reference != "1 tesalonicenses 4:16-18" {
		t.Errorf("Reference = %q", p.Reference)
	}
	if p.Translation != "World English Bible" {
		t.Errorf("Translation = %q", p.Translation)
	}
	if len(p.Verses) != 3 || p.Verses[0].Book != "1 Tesalonicenses" {
		t.Errorf("Verses = %+v", p.Verses)
	}
	want := "16. For the Lord himself will descend from heaven with a shout,\n" +
		"17. then we who are alive will be caught up together with them\n" +
		"18. Therefore comfort one another with these words."
	if p.Text != want {
		t.Errorf("Text = %q, want %q", p.Text, want)
	}

	// Second lookup is served from the cache.
	if _, err := c.Lookup(context.Background(), ref); err != nil {
		t.Fatalf("cached Lookup() error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestLookupNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}},
		{"no verses", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"reference":"John 3:99","verses":[]}`)
		}},
		{"out of range", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"verses":[{"chapter":3,"verse":17,"text":"x"}]}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			p, err := c.Lookup(context.Background(), scripture.MustParse("Juan 3:16"))
			if err != nil || p != nil {
				t.Errorf("Lookup() = %v, %v; want nil, nil", p, err)
			}
		})
	}
}

func TestLookupUpstreamUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"429", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Lookup(context.Background(), scripture.MustParse("Juan 3:16"))
			if !errors.Is(err, ErrUpstreamUnavailable) {
				t.Errorf("Lookup() error = %v, want ErrUpstreamUnavailable", err)
			}
		})
	}

	t.Run("transport", func(t *testing.T) {
		c := New(Options{})
		c.do = func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: refused")
		}
		_, err := c.Lookup(context.Background(), scripture.MustParse("Juan 3:16"))
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("Lookup() error = %v, want ErrUpstreamUnavailable", err)
		}
	})
}
