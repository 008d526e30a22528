package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/trustplane/internal/digest"
)

// Verify reports whether the entry's stored stamp matches its content.
func Verify(e Entry) bool {
	return digest.Equal(e.Hash, e.ExpectedHash())
}

// VerifyResult holds the outcome of checking a sequence of entries.
type VerifyResult struct {
	Valid      bool   `json:"valid"`
	Entries    int    `json:"entries"`
	Error      string `json:"error,omitempty"`
	ErrorIndex int    `json:"error_index,omitempty"`
}

// VerifyAll checks entries in creation order and reports the first
// mismatch. ErrorIndex is 1-based.
func VerifyAll(chronological []Entry) VerifyResult {
	for i, e := range chronological {
		if !Verify(e) {
			return VerifyResult{
				Entries:    len(chronological),
				Error:      fmt.Sprintf("stamp mismatch for %s: expected %s, got %s", e.ID, e.ExpectedHash(), e.Hash),
				ErrorIndex: i + 1,
			}
		}
	}
	return VerifyResult{Valid: true, Entries: len(chronological)}
}

// VerifyNewestFirst is VerifyAll over entries listed newest first, as
// returned by Ledger.Entries.
func VerifyNewestFirst(newestFirst []Entry) VerifyResult {
	return VerifyAll(chronological(newestFirst))
}

func chronological(newestFirst []Entry) []Entry {
	out := make([]Entry, len(newestFirst))
	for i, e := range newestFirst {
		out[len(newestFirst)-1-i] = e
	}
	return out
}

// JournalResult holds the outcome of a journal chain verification.
type JournalResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// VerifyJournal reads a JSONL journal and validates both the prev_hash chain
// and each record's content stamp. Returns the first broken line.
func VerifyJournal(path string) JournalResult {
	f, err := os.Open(path)
	if err != nil {
		return JournalResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	var prevLine []byte

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		line := make([]byte, len(raw))
		copy(line, raw)

		var rec journalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return JournalResult{Error: fmt.Sprintf("parse error: %v", err), ErrorLine: lineNum}
		}

		expectedPrev := GenesisHash
		if lineNum > 1 {
			expectedPrev = HashLine(prevLine)
		}
		if rec.PrevHash != expectedPrev {
			return JournalResult{
				Error:     fmt.Sprintf("chain mismatch: expected prev_hash %s, got %s", expectedPrev, rec.PrevHash),
				ErrorLine: lineNum,
			}
		}
		if !Verify(rec.Entry) {
			return JournalResult{
				Error:     fmt.Sprintf("stamp mismatch for %s", rec.ID),
				ErrorLine: lineNum,
			}
		}
		prevLine = line
	}

	if err := scanner.Err(); err != nil {
		return JournalResult{Error: fmt.Sprintf("scan: %v", err)}
	}
	return JournalResult{Valid: true, Lines: lineNum}
}
