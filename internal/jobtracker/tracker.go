// Package jobtracker provides a bounded, TTL'd in-memory ledger used to
// dedupe notification attempts. The retry-rename and the metrics
// notification it triggers are not atomic (spec §5's non-atomicity
// note): a crash between the two can leave a consumer unsure whether a
// given (message id, run, status) triple was already reported. Ledger
// answers that question without needing a database round trip.
package jobtracker

import (
	"fmt"
	"sync"
	"time"
)

// entry is a single recorded notification.
type entry struct {
	seenAt time.Time
}

// Ledger deduplicates (id, run, status) notification triples for ttl,
// after which an entry is forgotten and the triple can be recorded
// again. maxSize bounds memory under a pathological flood of distinct
// ids; once full, new keys are silently not recorded (favoring a
// possible duplicate notification over unbounded growth).
type Ledger struct {
	mu      sync.Mutex
	seen    map[string]entry
	ttl     time.Duration
	maxSize int
}

// New creates a Ledger with entries forgotten after ttl (0 defaults to
// 30 minutes, long enough to span any single retry sequence).
func New(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	l := &Ledger{
		seen:    make(map[string]entry),
		ttl:     ttl,
		maxSize: 10000,
	}
	go l.cleanupLoop()
	return l
}

func key(id string, run int, status string) string {
	return fmt.Sprintf("%s/%d/%s", id, run, status)
}

// Record reports whether (id, run, status) has already been recorded
// within ttl. It always records the triple as seen on its first call,
// so a caller should treat a false return as "go ahead and notify" and
// a true return as "already notified, skip".
func (l *Ledger) Record(id string, run int, status string) (alreadySeen bool) {
	k := key(id, run, status)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.seen[k]; ok && now.Sub(e.seenAt) < l.ttl {
		return true
	}
	if l.maxSize > 0 && len(l.seen) >= l.maxSize {
		return false
	}
	l.seen[k] = entry{seenAt: now}
	return false
}

func (l *Ledger) cleanupLoop() {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for k, e := range l.seen {
			if now.Sub(e.seenAt) > l.ttl {
				delete(l.seen, k)
			}
		}
		l.mu.Unlock()
	}
}
