package audit

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Ledger is the in-memory append-only audit trail. Entries are kept in
// creation order; Entries returns the newest-first display view.
// Not safe for concurrent use; the control plane serializes access.
type Ledger struct {
	entries []Entry
	now     func() time.Time
	newID   func() string
	journal *Journal
	warn    io.Writer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs overrides entry id generation.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithJournal mirrors every appended entry to a JSONL journal on disk.
func WithJournal(j *Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithWarnings sets where journal failures are reported. Defaults to stderr.
func WithWarnings(w io.Writer) Option {
	return func(l *Ledger) { l.warn = w }
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:   time.Now,
		newID: func() string { return "LOG-" + uuid.NewString() },
		warn:  os.Stderr,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append stamps and records a new entry and returns it.
func (l *Ledger) Append(action, details, actor string) Entry {
	ts := l.now().UTC().Format(TimestampFormat)
	e := Entry{
		ID:        l.newID(),
		Timestamp: ts,
		Action:    action,
		Actor:     actor,
		Details:   details,
		Hash:      Stamp(ts, action, actor, details),
	}
	l.entries = append(l.entries, e)

	if l.journal != nil {
		if err := l.journal.Record(e); err != nil {
			fmt.Fprintf(l.warn, "audit: journal write failed: %v\n", err)
		}
	}
	return e
}

// Entries returns the ledger newest first.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Chronological returns the ledger in creation order.
func (l *Ledger) Chronological() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Reset empties the in-memory ledger. The journal, if any, keeps its history.
func (l *Ledger) Reset() {
	l.entries = nil
}

// Restore loads entries listed newest first, as produced by Entries.
// Every entry must carry a valid stamp; the ledger is left empty otherwise.
func (l *Ledger) Restore(newestFirst []Entry) error {
	chrono := chronological(newestFirst)
	if res := VerifyAll(chrono); !res.Valid {
		l.entries = nil
		return fmt.Errorf("audit: restore: entry %d: %s", res.ErrorIndex, res.Error)
	}
	l.entries = chrono
	return nil
}
