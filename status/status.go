// Package status holds the most recent status value reported by the evaluator.
package status

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultStaleAfter is how long a value stays current without a refresh.
const DefaultStaleAfter = 3 * time.Second

const latestKey = "freq"

// Tracker keeps the latest status value. No history is retained.
// A value older than the tracker's TTL reads as stale, which happens when
// the evaluator stops answering polls.
type Tracker struct {
	cache    *ttlcache.Cache[string, string]
	onChange func(value string)
}

// NewTracker creates a tracker whose values go stale after staleAfter.
// onChange, if non-nil, is called synchronously from SetStatus whenever the
// value differs from the current one.
func NewTracker(staleAfter time.Duration, onChange func(value string)) *Tracker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](staleAfter),
		ttlcache.WithDisableTouchOnHit[string, string](),
		ttlcache.WithCapacity[string, string](1),
	)
	return &Tracker{cache: c, onChange: onChange}
}

// SetStatus records value as the latest status.
func (t *Tracker) SetStatus(value string) {
	prev, fresh := t.Latest()
	t.cache.Set(latestKey, value, ttlcache.DefaultTTL)
	if t.onChange != nil && (!fresh || prev != value) {
		t.onChange(value)
	}
}

// Latest returns the current value and whether it is still fresh.
// A stale value is not returned.
func (t *Tracker) Latest() (string, bool) {
	item := t.cache.Get(latestKey)
	if item == nil || item.IsExpired() {
		return "", false
	}
	return item.Value(), true
}

// UpdatedAt returns when the current value was set, or the zero time if
// there is no fresh value.
func (t *Tracker) UpdatedAt() time.Time {
	item := t.cache.Get(latestKey)
	if item == nil || item.IsExpired() {
		return time.Time{}
	}
	return item.ExpiresAt().Add(-item.TTL())
}

// Reset forgets the current value.
func (t *Tracker) Reset() {
	t.cache.DeleteAll()
}
