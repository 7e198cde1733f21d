package tracking

import "time"

// Choice is one numbered search result awaiting selection.
type Choice struct {
	DisplayName string `json:"display_name"`
	SeriesID    string `json:"series_id"`
	Raw         []byte `json:"-"`
}

// Candidate is one tracked series awaiting removal confirmation.
type Candidate struct {
	SeriesID string `json:"series_id"`
	Title    string `json:"title"`
}

type session[T any] struct {
	items   []T
	created time.Time
}

// sessionTable holds at most one pending list per user. Callers hold the
// workflow mutex.
type sessionTable[T any] struct {
	ttl     time.Duration
	entries map[string]session[T]
}

func newSessionTable[T any](ttl time.Duration) *sessionTable[T] {
	return &sessionTable[T]{ttl: ttl, entries: make(map[string]session[T])}
}

// put replaces any pending list for user.
func (t *sessionTable[T]) put(user string, items []T, now time.Time) {
	t.entries[user] = session[T]{items: append([]T(nil), items...), created: now}
}

// get returns the pending list for user, evicting it when expired.
func (t *sessionTable[T]) get(user string, now time.Time) ([]T, bool) {
	s, ok := t.entries[user]
	if !ok {
		return nil, false
	}
	if t.ttl > 0 && now.Sub(s.created) > t.ttl {
		delete(t.entries, user)
		return nil, false
	}
	return s.items, true
}

func (t *sessionTable[T]) evict(user string) {
	delete(t.entries, user)
}

// prune drops every expired entry.
func (t *sessionTable[T]) prune(now time.Time) int {
	if t.ttl <= 0 {
		return 0
	}
	removed := 0
	for user, s := range t.entries {
		if now.Sub(s.created) > t.ttl {
			delete(t.entries, user)
			removed++
		}
	}
	return removed
}

func (t *sessionTable[T]) size() int { return len(t.entries) }
