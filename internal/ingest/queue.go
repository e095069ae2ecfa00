package ingest

import (
	"sort"
	"sync"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/id"
)

// Queue holds rows awaiting a manual match decision. In-memory by design:
// entries survive only for the retention window, after which unresolved rows
// must be re-imported. Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	entries   map[string]*domain.ManualMatchEntry
	retention time.Duration
	now       func() time.Time
}

// NewQueue creates a queue that drops entries older than retention.
// A zero retention keeps entries for 24 hours.
func NewQueue(retention time.Duration) *Queue {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Queue{
		entries:   make(map[string]*domain.ManualMatchEntry),
		retention: retention,
		now:       time.Now,
	}
}

// Add registers a failed row for manual resolution and returns its entry id.
func (q *Queue) Add(entry *domain.ManualMatchEntry) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.ID == "" {
		entry.ID = id.MustGenerate(id.PrefixMatchEntry)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = q.now()
	}
	q.entries[entry.ID] = entry
	return entry.ID
}

// List returns the unresolved entries ordered by batch then row number.
func (q *Queue) List() []*domain.ManualMatchEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	out := make([]*domain.ManualMatchEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if !e.IsResolved() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BatchID != out[j].BatchID {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].RowNumber < out[j].RowNumber
	})
	return out
}

// Get looks up an entry by id, resolved or not.
func (q *Queue) Get(entryID string) (*domain.ManualMatchEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	e, ok := q.entries[entryID]
	if !ok {
		return nil, apperrors.NotFoundf("manual match entry %s not found", entryID)
	}
	return e, nil
}

// MarkResolved stamps an entry as resolved. Resolving twice fails with
// ALREADY_RESOLVED; the entry is retained so the second call can be detected
// until the retention window expires.
func (q *Queue) MarkResolved(entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[entryID]
	if !ok {
		return apperrors.NotFoundf("manual match entry %s not found", entryID)
	}
	if e.IsResolved() {
		return apperrors.AlreadyResolved(entryID)
	}
	now := q.now()
	e.ResolvedAt = &now
	return nil
}

// Len reports the number of unresolved entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeLocked()

	n := 0
	for _, e := range q.entries {
		if !e.IsResolved() {
			n++
		}
	}
	return n
}

func (q *Queue) purgeLocked() {
	cutoff := q.now().Add(-q.retention)
	for id, e := range q.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(q.entries, id)
		}
	}
}
