// Package bibleapi looks up passages from a bible-api.com style verse
// service, as an alternative to the bundled dataset.
package bibleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/cache"
)

// ErrUpstreamUnavailable is returned for transport failures and non-success
// replies other than 404.
var ErrUpstreamUnavailable = errors.New("verse API unavailable")

// Options configures a Client.
type Options struct {
	BaseURL     string
	Translation string
	Timeout     time.Duration
	CacheTTL    time.Duration
	CacheSize   int
}

// Client fetches passages over HTTP. Successful lookups are cached.
type Client struct {
	base        string
	translation string
	do          func(*http.Request) (*http.Response, error)
	cache       *cache.TTLCache[string, *verses.Passage]
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://bible-api.com"
	}
	if opts.Translation == "" {
		opts.Translation = "web"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	hc := &http.Client{Timeout: opts.Timeout}

	return &Client{
		base:        strings.TrimRight(opts.BaseURL, "/"),
		translation: opts.Translation,
		do:          hc.Do,
		cache:       cache.New[string, *verses.Passage](opts.CacheTTL, opts.CacheSize),
	}
}

// apiResponse is the service reply.
type apiResponse struct {
	Reference       string `json:"reference"`
	Text            string `json:"text"`
	TranslationName string `json:"translation_name"`
	Verses          []struct {
		BookName string `json:"book_name"`
		Chapter  int    `json:"chapter"`
		Verse    int    `json:"verse"`
		Text     string `json:"text"`
	} `json:"verses"`
}

// URL returns the request URL for ref, e.g.
// https://bible-api.com/John%203:16?translation=web.
func (c *Client) URL(ref scripture.Reference) string {
	q := url.Values{"translation": {c.translation}}
	return c.base + "/" + url.PathEscape(ref.English()) + "?" + q.Encode()
}

// Lookup fetches ref. A reply of 404 or an empty verse list is (nil, nil).
func (c *Client) Lookup(ctx context.Context, ref scripture.Reference) (*verses.Passage, error) {
	key := ref.Label() + "|" + c.translation
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}

	p := c.passage(ref, body)
	if p == nil {
		return nil, nil
	}
	c.cache.Set(key, p)
	return p, nil
}

// passage converts a reply into a Passage. Verses are stored under the
// canonical book name so labels match dataset lookups.
func (c *Client) passage(ref scripture.Reference, body apiResponse) *verses.Passage {
	book := ref.Book
	if b, ok := ref.Canon(); ok {
		book = b.Display
	}

	var vs []verses.Verse
	for _, v := range body.Verses {
		text := strings.Join(strings.Fields(v.Text), " ")
		if text == "" || v.Chapter != ref.Chapter || !ref.Contains(v.Chapter, v.Verse) {
			continue
		}
		vs = append(vs, verses.Verse{Book: book, Chapter: v.Chapter, Number: v.Verse, Text: text})
	}
	if len(vs) == 0 {
		return nil
	}

	translation := body.TranslationName
	if translation == "" {
		translation = c.translation
	}
	return verses.NewPassage(ref, translation, vs)
}
