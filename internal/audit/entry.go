package audit

import "github.com/ppiankov/trustplane/internal/digest"

// Actions recorded by the control plane.
const (
	ActionIncidentDetected = "Incident Detected"
	ActionIncidentResolved = "Incident Resolved"
	ActionPolicyChange     = "Policy Change"
	ActionSystemReset      = "System Reset"
	ActionRoleChange       = "Role Change"
	ActionRequestBlocked   = "Request Blocked"
)

// TimestampFormat is the layout of Entry.Timestamp. The formatted string is
// what gets stamped, so it must round-trip exactly.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one immutable ledger record. Hash is the content stamp over
// timestamp|action|actor|details, stored in full.
type Entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Details   string `json:"details"`
	Hash      string `json:"hash"`
}

// Stamp computes the content stamp for the given fields.
func Stamp(timestamp, action, actor, details string) string {
	return digest.Sum(digest.Join(timestamp, action, actor, details))
}

// ExpectedHash recomputes the stamp from the entry's own content.
func (e Entry) ExpectedHash() string {
	return Stamp(e.Timestamp, e.Action, e.Actor, e.Details)
}

// ShortHash is the display form of the stamp.
func (e Entry) ShortHash() string {
	return digest.Short(e.Hash, 24)
}
