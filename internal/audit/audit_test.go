package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	seq := 0
	base := []Option{
		WithClock(fixedClock()),
		WithIDs(func() string { seq++; return "LOG-" + string(rune('0'+seq)) }),
	}
	return NewLedger(append(base, opts...)...)
}

func TestAppendStampsContent(t *testing.T) {
	l := newTestLedger(t)
	e := l.Append(ActionIncidentDetected, "ID: INC-1 | Trigger: 429", "engineer@google.com")

	want := Stamp("2025-01-15T10:30:01.000Z", ActionIncidentDetected, "engineer@google.com", "ID: INC-1 | Trigger: 429")
	if e.Hash != want {
		t.Fatalf("expected hash %s, got %s", want, e.Hash)
	}
	if len(e.Hash) != 64 {
		t.Fatalf("expected full 64-char stamp, got %d chars", len(e.Hash))
	}
	if !Verify(e) {
		t.Fatal("freshly appended entry must verify")
	}
}

func TestStampIsDeterministic(t *testing.T) {
	h1 := Stamp("2025-01-15T10:30:00.000Z", "Policy Change", "a", "d")
	h2 := Stamp("2025-01-15T10:30:00.000Z", "Policy Change", "a", "d")
	if h1 != h2 {
		t.Fatalf("expected identical stamps, got %s and %s", h1, h2)
	}
}

func TestStampIsSensitiveToEveryField(t *testing.T) {
	base := Stamp("ts", "action", "actor", "details")
	variants := []string{
		Stamp("ts2", "action", "actor", "details"),
		Stamp("ts", "action2", "actor", "details"),
		Stamp("ts", "action", "actor2", "details"),
		Stamp("ts", "action", "actor", "details2"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same stamp", i)
		}
	}
}

func TestVerifyDetectsEditedEntry(t *testing.T) {
	l := newTestLedger(t)
	e := l.Append(ActionPolicyChange, "Updated blockLowTrust to true", "engineer@google.com")
	e.Details = "Updated blockLowTrust to false"
	if Verify(e) {
		t.Fatal("expected edited entry to fail verification")
	}
}

func TestEntriesNewestFirstChronologicalOldestFirst(t *testing.T) {
	l := newTestLedger(t)
	l.Append("A", "", "x")
	l.Append("B", "", "x")
	l.Append("C", "", "x")

	view := l.Entries()
	if view[0].Action != "C" || view[2].Action != "A" {
		t.Fatalf("unexpected display order: %v", []string{view[0].Action, view[1].Action, view[2].Action})
	}
	chrono := l.Chronological()
	if chrono[0].Action != "A" || chrono[2].Action != "C" {
		t.Fatal("unexpected chronological order")
	}
	if !VerifyAll(chrono).Valid {
		t.Fatal("expected all entries to verify")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := newTestLedger(t)
	l.Append("A", "d", "x")
	view := l.Entries()
	view[0].Details = "tampered"
	if l.Entries()[0].Details != "d" {
		t.Fatal("ledger entries must be immutable through views")
	}
}

func TestVerifyAllReportsFirstMismatch(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		l.Append("A", "d", "x")
	}
	chrono := l.Chronological()
	chrono[1].Actor = "mallory"

	res := VerifyAll(chrono)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.ErrorIndex != 2 {
		t.Fatalf("expected error at entry 2, got %d", res.ErrorIndex)
	}
}

func TestVerifyNewestFirstIndexesCreationOrder(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		l.Append("A", "d", "x")
	}
	newest := l.Entries()
	newest[0].Details = "edited" // third entry created

	res := VerifyNewestFirst(newest)
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.ErrorIndex != 3 {
		t.Fatalf("expected error at entry 3, got %d", res.ErrorIndex)
	}
	if !VerifyNewestFirst(l.Entries()).Valid {
		t.Fatal("untouched ledger must verify")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	l.Append("A", "1", "x")
	l.Append("B", "2", "x")

	restored := NewLedger()
	if err := restored.Restore(l.Entries()); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 2 || restored.Entries()[0].Action != "B" {
		t.Fatalf("unexpected restored ledger: %+v", restored.Entries())
	}
}

func TestRestoreRejectsTamperedEntry(t *testing.T) {
	l := newTestLedger(t)
	l.Append("A", "1", "x")
	entries := l.Entries()
	entries[0].Details = "2"

	restored := NewLedger()
	if err := restored.Restore(entries); err == nil {
		t.Fatal("expected restore to reject tampered entry")
	}
	if restored.Len() != 0 {
		t.Fatal("ledger must be empty after failed restore")
	}
}

func TestResetEmptiesLedger(t *testing.T) {
	l := newTestLedger(t)
	l.Append("A", "1", "x")
	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d", l.Len())
	}
}

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "journal.jsonl")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	return j, path
}

func TestJournalMirrorsLedger(t *testing.T) {
	j, path := newTestJournal(t)
	l := newTestLedger(t, WithJournal(j))
	for i := 0; i < 5; i++ {
		l.Append(ActionIncidentDetected, "d", "x")
	}
	j.Close()

	res := VerifyJournal(path)
	if !res.Valid {
		t.Fatalf("expected valid journal, got error at line %d: %s", res.ErrorLine, res.Error)
	}
	if res.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", res.Lines)
	}

	entries, err := ReadJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 || entries[0].ID != l.Chronological()[0].ID {
		t.Fatal("journal entries do not match ledger")
	}
}

func TestJournalSurvivesLedgerReset(t *testing.T) {
	j, path := newTestJournal(t)
	l := newTestLedger(t, WithJournal(j))
	l.Append("A", "1", "x")
	l.Reset()
	l.Append(ActionSystemReset, "Demo state cleared.", "x")
	j.Close()

	res := VerifyJournal(path)
	if !res.Valid || res.Lines != 2 {
		t.Fatalf("expected 2 valid lines, got %+v", res)
	}
}

func TestVerifyJournalDetectsEditedDetails(t *testing.T) {
	j, path := newTestJournal(t)
	l := newTestLedger(t, WithJournal(j))
	l.Append("A", "allow", "x")
	l.Append("B", "allow", "x")
	j.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"allow"`, `"deny"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600)

	res := VerifyJournal(path)
	if res.Valid {
		t.Fatal("expected tampered journal to be invalid")
	}
	if res.ErrorLine != 2 {
		t.Fatalf("expected error at line 2, got %d", res.ErrorLine)
	}
}

func TestVerifyJournalDetectsDeletedLine(t *testing.T) {
	j, path := newTestJournal(t)
	l := newTestLedger(t, WithJournal(j))
	for i := 0; i < 3; i++ {
		l.Append("A", "d", "x")
	}
	j.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	os.WriteFile(path, []byte(lines[0]+"\n"+lines[2]+"\n"), 0600)

	res := VerifyJournal(path)
	if res.Valid || res.ErrorLine != 2 {
		t.Fatalf("expected chain break at line 2, got %+v", res)
	}
}

func TestReopenedJournalContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	for round := 0; round < 2; round++ {
		j, err := OpenJournal(path)
		if err != nil {
			t.Fatal(err)
		}
		l := newTestLedger(t, WithJournal(j))
		l.Append("A", "d", "x")
		l.Append("B", "d", "x")
		j.Close()
	}

	res := VerifyJournal(path)
	if !res.Valid || res.Lines != 4 {
		t.Fatalf("expected 4 valid lines after reopen, got %+v", res)
	}
}

func TestEmptyJournalPassesVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(path, []byte{}, 0600)

	res := VerifyJournal(path)
	if !res.Valid || res.Lines != 0 {
		t.Fatalf("expected empty journal to be valid, got %+v", res)
	}
}

func TestJournalFailureIsReportedNotFatal(t *testing.T) {
	j, _ := newTestJournal(t)
	j.Close()

	var warn bytes.Buffer
	l := newTestLedger(t, WithJournal(j), WithWarnings(&warn))
	e := l.Append("A", "d", "x")

	if l.Len() != 1 || !Verify(e) {
		t.Fatal("ledger must commit even when the journal is broken")
	}
	if !strings.Contains(warn.String(), "journal write failed") {
		t.Fatalf("expected journal warning, got %q", warn.String())
	}
}

func TestConcurrentJournalWritesSerialize(t *testing.T) {
	j, path := newTestJournal(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := "2025-01-15T10:30:00.000Z"
			j.Record(Entry{ID: "x", Timestamp: ts, Action: "A", Actor: "x", Details: "d", Hash: Stamp(ts, "A", "x", "d")})
		}()
	}
	wg.Wait()
	j.Close()

	res := VerifyJournal(path)
	if !res.Valid || res.Lines != 50 {
		t.Fatalf("expected 50 valid lines, got %+v", res)
	}
}

func TestHashLineFormat(t *testing.T) {
	h := HashLine([]byte("policy_v1"))
	if !strings.HasPrefix(h, "sha256:") || len(h) != 7+64 {
		t.Fatalf("unexpected hash line format %q", h)
	}
	if h == HashLine([]byte("policy_v2")) {
		t.Fatal("expected different hashes for different inputs")
	}
}
