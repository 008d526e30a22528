// Package snapshot persists the control plane state between runs.
// Persistence is best-effort: callers log failures and carry on.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/trustplane/internal/audit"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/policy"
)

// ErrEmpty is returned by Load when nothing has been saved yet.
var ErrEmpty = errors.New("no snapshot saved")

// Snapshot is the persisted state. Incidents and AuditLogs are newest-first.
// A nil Policies means the snapshot carries none and defaults apply.
type Snapshot struct {
	Incidents []model.Incident       `json:"incidents"`
	AuditLogs []audit.Entry          `json:"auditLogs"`
	Policies  *policy.SecurityPolicy `json:"policies,omitempty"`
	Role      string                 `json:"role,omitempty"`
	Model     string                 `json:"model,omitempty"`
}

// Store is a snapshot backend.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone     = "none"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open selects a backend. target is a file path for file and sqlite, and
// a connection string for postgres.
func Open(ctx context.Context, backend, target string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		if target == "" {
			target = DefaultPath()
		}
		return NewFileStore(target), nil
	case BackendSQLite:
		if target == "" {
			target = filepath.Join(DefaultDir(), "state.db")
		}
		return OpenSQLite(ctx, target)
	case BackendPostgres:
		return OpenPostgres(ctx, target)
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", backend)
	}
}

// DefaultDir returns ~/.trustplane, falling back to the temp dir.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trustplane")
	}
	return filepath.Join(home, ".trustplane")
}

// DefaultPath is the default file backend location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "state.json")
}

// LoadOrEmpty loads a snapshot, returning the zero snapshot and false on
// any failure. Failures other than ErrEmpty are logged to warn.
func LoadOrEmpty(ctx context.Context, s Store, warn io.Writer) (Snapshot, bool) {
	snap, err := s.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrEmpty) && warn != nil {
			fmt.Fprintf(warn, "snapshot: load failed, starting from defaults: %v\n", err)
		}
		return Snapshot{}, false
	}
	return snap, true
}

func encode(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

func decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Load(context.Context) (Snapshot, error) { return Snapshot{}, ErrEmpty }
func (Nop) Save(context.Context, Snapshot) error   { return nil }
func (Nop) Clear(context.Context) error            { return nil }
func (Nop) Close() error                           { return nil }
