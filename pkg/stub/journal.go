package stub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultJournalSize is the number of requests kept when no size is configured.
const DefaultJournalSize = 1000

// LoggedRequest is a request recorded by the Journal.
type LoggedRequest struct {
	ID       string            `json:"id"`
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"body,omitempty"`
	StubID   string            `json:"stubId,omitempty"`
	Matched  bool              `json:"wasMatched"`
	LoggedAt time.Time         `json:"loggedDate"`
}

// Journal is a bounded, thread-safe log of served requests.
// When full, the oldest entry is dropped.
type Journal struct {
	mu      sync.RWMutex
	entries []LoggedRequest
	next    int
	full    bool
}

// NewJournal creates a journal holding at most size entries.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{entries: make([]LoggedRequest, size)}
}

// Record appends a request to the journal.
func (j *Journal) Record(r *http.Request, body []byte, st *Stub) LoggedRequest {
	entry := LoggedRequest{
		ID:       uuid.NewString(),
		Method:   r.Method,
		URL:      r.URL.RequestURI(),
		Headers:  firstValues(r.Header),
		Body:     string(body),
		LoggedAt: time.Now(),
	}
	if st != nil {
		entry.StubID = st.ID
		entry.Matched = true
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = entry
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return entry
}

// List returns recorded requests, newest first.
func (j *Journal) List() []LoggedRequest {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.countLocked()
	result := make([]LoggedRequest, 0, n)
	for i := 1; i <= n; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		result = append(result, j.entries[idx])
	}
	return result
}

// Count returns the number of recorded requests.
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.countLocked()
}

// Reset discards all recorded requests.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.entries)
	j.next = 0
	j.full = false
}

func (j *Journal) countLocked() int {
	if j.full {
		return len(j.entries)
	}
	return j.next
}

func firstValues(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
