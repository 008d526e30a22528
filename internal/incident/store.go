// Package incident holds the incident records that feed the trust score.
package incident

import (
	"errors"
	"fmt"

	"github.com/ppiankov/trustplane/internal/model"
)

var (
	// ErrDuplicateID is returned by Add when the id is already present.
	ErrDuplicateID = errors.New("duplicate incident id")
	// ErrNotFound is returned by Resolve and Get for unknown ids.
	ErrNotFound = errors.New("incident not found")
)

// Store keeps incidents in insertion order, keyed by id.
// It is not safe for concurrent use; the control plane serializes access.
type Store struct {
	order []string
	byID  map[string]*model.Incident
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*model.Incident)}
}

// Add inserts the incident verbatim. An empty status is treated as Active.
func (s *Store) Add(inc model.Incident) error {
	if inc.Status == "" {
		inc.Status = model.StatusActive
	}
	if err := inc.Validate(); err != nil {
		return err
	}
	if _, ok := s.byID[inc.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, inc.ID)
	}
	c := inc.Clone()
	s.byID[inc.ID] = &c
	s.order = append(s.order, inc.ID)
	return nil
}

// Resolve marks the incident Resolved. Resolution is terminal: resolving an
// already-resolved incident returns changed=false and leaves state untouched.
func (s *Store) Resolve(id string) (changed bool, err error) {
	inc, ok := s.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if inc.Status == model.StatusResolved {
		return false, nil
	}
	inc.Status = model.StatusResolved
	return true, nil
}

// Get returns a copy of the incident with the given id.
func (s *Store) Get(id string) (model.Incident, error) {
	inc, ok := s.byID[id]
	if !ok {
		return model.Incident{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inc.Clone(), nil
}

// List returns every incident, most recent first.
func (s *Store) List() []model.Incident {
	out := make([]model.Incident, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byID[s.order[i]].Clone())
	}
	return out
}

// Active returns the Active incidents, most recent first.
func (s *Store) Active() []model.Incident {
	var out []model.Incident
	for i := len(s.order) - 1; i >= 0; i-- {
		if inc := s.byID[s.order[i]]; inc.IsActive() {
			out = append(out, inc.Clone())
		}
	}
	return out
}

// Len returns the number of incidents, active or resolved.
func (s *Store) Len() int {
	return len(s.order)
}

// Reset drops every incident.
func (s *Store) Reset() {
	s.order = nil
	s.byID = make(map[string]*model.Incident)
}

// Restore replaces the store contents with a snapshot listed most recent
// first, as produced by List. The store is left empty on error.
func (s *Store) Restore(newestFirst []model.Incident) error {
	s.Reset()
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if err := s.Add(newestFirst[i]); err != nil {
			s.Reset()
			return fmt.Errorf("restore incidents: %w", err)
		}
	}
	return nil
}
