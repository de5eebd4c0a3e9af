package completion

import (
	"context"
	"sync"
)

// DefaultMockReply is a well-formed song object, used offline and in tests.
const DefaultMockReply = `{
  "title": "Juntos con el Señor",
  "key": "D",
  "tempo": 74,
  "timeSignature": "4/4",
  "chords": ["D - Bm - G - A", "G - A - D"],
  "lyrics": "Verso 1\nCon voz de mando el Señor descenderá\nY los muertos en Cristo resucitarán\n\nCoro\nPara siempre con el Señor\nJesús, nuestra esperanza y canción",
  "bibleReferences": ["1 Thessalonians 4:16-18", "John 14:6"],
  "worshipTags": ["esperanza", "congregacional"]
}`

// Mock returns canned replies and records the requests it receives.
type Mock struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []Request
}

// NewMock returns a mock that answers every call with the given replies in
// turn, repeating the last one.
func NewMock(replies ...string) *Mock {
	if len(replies) == 0 {
		replies = []string{DefaultMockReply}
	}
	return &Mock{replies: replies}
}

// NewFailingMock returns a mock whose calls fail with err.
func NewFailingMock(err error) *Mock {
	return &Mock{err: err}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Complete returns the next canned reply.
func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.requests)
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.replies[min(n, len(m.replies)-1)], nil
}

// Requests returns a copy of the requests seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
