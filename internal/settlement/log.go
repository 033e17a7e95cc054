package settlement

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrOutOfOrder is returned when an entry's seq is lower than the log's
// highest seq but not already present.
var ErrOutOfOrder = errors.New("settlement out of sequence order")

// ErrSessionMismatch is returned when an entry belongs to another session.
var ErrSessionMismatch = errors.New("settlement belongs to another session")

// Log is the in-memory settlement log of one session.
// It is safe for concurrent readers while the owning session appends.
type Log struct {
	mu        sync.RWMutex
	sessionID string
	entries   []Entry
	index     map[int64]int
}

// NewLog returns an empty log for a session.
func NewLog(sessionID string) *Log {
	return &Log{sessionID: sessionID, index: map[int64]int{}}
}

// FromEntries rebuilds a log from stored entries, which may arrive unsorted.
func FromEntries(sessionID string, entries []Entry) (*Log, error) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	l := NewLog(sessionID)
	for _, e := range sorted {
		if _, err := l.Append(e); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// SessionID returns the owning session.
func (l *Log) SessionID() string {
	return l.sessionID
}

// Append adds an entry. It returns false without error when an entry with
// the same seq is already present.
func (l *Log) Append(e Entry) (bool, error) {
	if e.SessionID != l.sessionID {
		return false, fmt.Errorf("append seq %d for %s to %s: %w", e.Seq, e.SessionID, l.sessionID, ErrSessionMismatch)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[e.Seq]; ok {
		return false, nil
	}
	if err := l.checkOrderLocked(e.Seq); err != nil {
		return false, err
	}
	l.appendLocked(e)
	return true, nil
}

// AppendBatch adds the entries of one tick under a single lock, so readers
// see all of them or none. Entries already present are skipped. Nothing is
// appended when any entry is out of order or foreign.
func (l *Log) AppendBatch(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := int64(0)
	if n := len(l.entries); n > 0 {
		last = l.entries[n-1].Seq
	}
	fresh := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.SessionID != l.sessionID {
			return fmt.Errorf("append seq %d for %s to %s: %w", e.Seq, e.SessionID, l.sessionID, ErrSessionMismatch)
		}
		if _, ok := l.index[e.Seq]; ok {
			continue
		}
		if e.Seq < last {
			return fmt.Errorf("append seq %d after %d: %w", e.Seq, last, ErrOutOfOrder)
		}
		last = e.Seq
		fresh = append(fresh, e)
	}
	for _, e := range fresh {
		l.appendLocked(e)
	}
	return nil
}

func (l *Log) checkOrderLocked(seq int64) error {
	if n := len(l.entries); n > 0 && l.entries[n-1].Seq > seq {
		return fmt.Errorf("append seq %d after %d: %w", seq, l.entries[n-1].Seq, ErrOutOfOrder)
	}
	return nil
}

func (l *Log) appendLocked(e Entry) {
	l.index[e.Seq] = len(l.entries)
	l.entries = append(l.entries, e)
}

// Get returns the entry for a seq.
func (l *Log) Get(seq int64) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[seq]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Tail returns the entries with Seq > since, in seq order.
func (l *Log) Tail(since int64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Seq > since })
	return append([]Entry(nil), l.entries[i:]...)
}

// Entries returns a copy of the whole log.
func (l *Log) Entries() []Entry {
	return l.Tail(0)
}

// Batches groups entries by tick, in tick order. Replay feeds each batch
// to the solver as one tick.
func (l *Log) Batches() [][]Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var batches [][]Entry
	for i, e := range l.entries {
		if i == 0 || e.Tick != l.entries[i-1].Tick {
			batches = append(batches, nil)
		}
		batches[len(batches)-1] = append(batches[len(batches)-1], e)
	}
	return batches
}

// LastSeq returns the highest seq in the log, or 0 when empty.
func (l *Log) LastSeq() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Seq
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
