// Package controlplane is the explicit state container: it owns the incident
// store, the audit ledger, the security policy and the current role, and is
// the only place where they change.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/trustplane/internal/audit"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/incident"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/penalty"
	"github.com/ppiankov/trustplane/internal/policy"
	"github.com/ppiankov/trustplane/internal/snapshot"
	"github.com/ppiankov/trustplane/internal/telemetry"
	"github.com/ppiankov/trustplane/internal/trust"
)

var (
	// ErrForbidden is returned when the capability does not allow mutation.
	ErrForbidden = errors.New("operation not permitted for role")
	// ErrNotConfirmed is returned by ResetSystem without confirmation.
	ErrNotConfirmed = errors.New("reset requires confirmation")
)

// DefaultModel is the model name attached to simulated requests.
const DefaultModel = "gemini-2.0-flash"

// View is the read-only projection of the plane.
type View struct {
	trust.State
	Incidents []model.Incident      `json:"incidents"`
	AuditLog  []audit.Entry         `json:"audit_log"`
	Policy    policy.SecurityPolicy `json:"policy"`
	Role      identity.Capability   `json:"role"`
	Model     string                `json:"model"`
}

// MutationResult is returned by every committed mutation. Telemetry is the
// best-effort mirror outcome; it never affects the local state.
type MutationResult struct {
	State     trust.State      `json:"state"`
	Entry     *audit.Entry     `json:"entry,omitempty"`
	Changed   bool             `json:"changed"`
	Telemetry telemetry.Report `json:"telemetry"`
}

// Plane serializes all mutations behind one mutex.
type Plane struct {
	mu        sync.Mutex
	incidents *incident.Store
	ledger    *audit.Ledger
	policy    policy.SecurityPolicy
	defaults  policy.SecurityPolicy
	registry  *identity.Registry
	role      identity.Capability
	model     string

	store     snapshot.Store
	telemetry atomic.Pointer[telemetry.Dispatcher]
	async     bool
	rules     penalty.Rules
	session   *identity.Session
	now       func() time.Time
	warn      io.Writer
}

// Option configures a Plane.
type Option func(*Plane)

// WithStore persists a snapshot after every mutation.
func WithStore(s snapshot.Store) Option {
	return func(p *Plane) { p.store = s }
}

// WithTelemetry sets the telemetry dispatcher.
func WithTelemetry(d *telemetry.Dispatcher) Option {
	return func(p *Plane) { p.telemetry.Store(d) }
}

// WithAsyncTelemetry sends telemetry in the background instead of waiting.
func WithAsyncTelemetry() Option {
	return func(p *Plane) { p.async = true }
}

// WithRegistry sets the role registry.
func WithRegistry(r *identity.Registry) Option {
	return func(p *Plane) { p.registry = r }
}

// WithDefaults sets the policy a fresh or reset plane starts with.
func WithDefaults(sp policy.SecurityPolicy) Option {
	return func(p *Plane) { p.defaults = sp }
}

// WithLedger replaces the default in-memory ledger.
func WithLedger(l *audit.Ledger) Option {
	return func(p *Plane) { p.ledger = l }
}

// WithRules overrides the penalty rules.
func WithRules(r penalty.Rules) Option {
	return func(p *Plane) { p.rules = r }
}

// WithClock overrides the clock used for telemetry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Plane) { p.now = now }
}

// WithWarnings sets where best-effort failures are reported. Defaults to stderr.
func WithWarnings(w io.Writer) Option {
	return func(p *Plane) { p.warn = w }
}

// WithModel sets the model name attached to simulated requests.
func WithModel(name string) Option {
	return func(p *Plane) { p.model = name }
}

// New builds a plane and restores the last snapshot, if any. A snapshot that
// fails to load or verify is discarded and the plane starts from defaults.
func New(ctx context.Context, opts ...Option) *Plane {
	p := &Plane{
		incidents: incident.NewStore(),
		defaults:  policy.Default(),
		registry:  identity.NewRegistry(nil, ""),
		model:     DefaultModel,
		store:     snapshot.Nop{},
		rules:     penalty.Default(),
		session:   identity.NewSession(),
		now:       time.Now,
		warn:      os.Stderr,
	}
	for _, o := range opts {
		o(p)
	}
	if p.ledger == nil {
		p.ledger = audit.NewLedger(audit.WithWarnings(p.warn))
	}
	p.policy = p.defaults
	p.role, _ = p.registry.Capability(identity.RoleSRE)

	if snap, ok := snapshot.LoadOrEmpty(ctx, p.store, p.warn); ok {
		if err := p.restore(snap); err != nil {
			fmt.Fprintf(p.warn, "controlplane: snapshot rejected, starting from defaults: %v\n", err)
			p.incidents.Reset()
			p.ledger.Reset()
			p.policy = p.defaults
			p.role, _ = p.registry.Capability(identity.RoleSRE)
		}
	}
	return p
}

func (p *Plane) restore(snap snapshot.Snapshot) error {
	if err := p.incidents.Restore(snap.Incidents); err != nil {
		return err
	}
	if err := p.ledger.Restore(snap.AuditLogs); err != nil {
		return err
	}
	if snap.Policies != nil {
		p.policy = *snap.Policies
	}
	if snap.Role != "" {
		role, err := identity.ParseRole(snap.Role)
		if err != nil {
			return err
		}
		if p.role, err = p.registry.Capability(role); err != nil {
			return err
		}
	}
	if snap.Model != "" {
		p.model = snap.Model
	}
	return nil
}

// SetTelemetry swaps the telemetry dispatcher. Safe to call concurrently.
func (p *Plane) SetTelemetry(d *telemetry.Dispatcher) {
	p.telemetry.Store(d)
}

// Session returns the session attached to telemetry events.
func (p *Plane) Session() *identity.Session {
	return p.session
}

// Close releases the snapshot store.
func (p *Plane) Close() error {
	return p.store.Close()
}

// View returns a consistent snapshot of the plane.
func (p *Plane) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	incidents := p.incidents.List()
	return View{
		State:     trust.Evaluate(incidents),
		Incidents: incidents,
		AuditLog:  p.ledger.Entries(),
		Policy:    p.policy,
		Role:      p.role,
		Model:     p.model,
	}
}

// Capability returns the current role's capability.
func (p *Plane) Capability() identity.Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

// AddIncident records a new incident. Duplicate ids and invalid fields are
// rejected without touching the ledger.
func (p *Plane) AddIncident(ctx context.Context, inc model.Incident) (MutationResult, error) {
	p.mu.Lock()
	res, ev, err := p.addLocked(ctx, inc)
	p.mu.Unlock()
	if err != nil {
		return MutationResult{}, err
	}
	res.Telemetry = p.emit(ctx, ev)
	return res, nil
}

func (p *Plane) addLocked(ctx context.Context, inc model.Incident) (MutationResult, telemetry.Event, error) {
	if inc.Status == "" {
		inc.Status = model.StatusActive
	}
	if inc.Timestamp == "" {
		inc.Timestamp = p.now().Format("15:04:05")
	}
	if err := p.incidents.Add(inc); err != nil {
		return MutationResult{}, telemetry.Event{}, err
	}
	entry := p.ledger.Append(audit.ActionIncidentDetected,
		fmt.Sprintf("ID: %s | Trigger: %s", inc.ID, inc.Trigger), p.role.Actor)
	state := p.commitLocked(ctx)

	ev := p.event(telemetry.KindIncident, fmt.Sprintf("Trust Score Updated: %d", state.Score), state)
	ev.Incident = details(inc)
	return MutationResult{State: state, Entry: &entry, Changed: true}, ev, nil
}

// ResolveIncident marks an incident Resolved. The capability must allow
// mutation. Resolving an already resolved incident changes nothing and is
// not audited.
func (p *Plane) ResolveIncident(ctx context.Context, c identity.Capability, id string) (MutationResult, error) {
	if !c.CanMutate {
		return MutationResult{}, fmt.Errorf("%w: %s may not resolve incidents", ErrForbidden, c.Role)
	}

	p.mu.Lock()
	changed, err := p.incidents.Resolve(id)
	if err != nil {
		p.mu.Unlock()
		return MutationResult{}, err
	}
	if !changed {
		state := trust.Evaluate(p.incidents.List())
		p.mu.Unlock()
		return MutationResult{State: state}, nil
	}
	inc, _ := p.incidents.Get(id)
	entry := p.ledger.Append(audit.ActionIncidentResolved,
		fmt.Sprintf("ID: %s resolved by %s.", id, c.Role), c.Actor)
	state := p.commitLocked(ctx)
	ev := p.event(telemetry.KindResolution, fmt.Sprintf("Incident Resolved: %s", inc.Title), state)
	ev.Incident = details(inc)
	p.mu.Unlock()

	return MutationResult{State: state, Entry: &entry, Changed: true, Telemetry: p.emit(ctx, ev)}, nil
}

// TogglePolicy flips one policy switch and audits the new value.
func (p *Plane) TogglePolicy(ctx context.Context, key string) (MutationResult, error) {
	p.mu.Lock()
	next, value, err := p.policy.Toggle(key)
	if err != nil {
		p.mu.Unlock()
		return MutationResult{}, err
	}
	p.policy = next
	entry := p.ledger.Append(audit.ActionPolicyChange,
		fmt.Sprintf("Updated %s to %t", key, value), p.role.Actor)
	state := p.commitLocked(ctx)
	ev := p.event(telemetry.KindPolicy, fmt.Sprintf("Policy %s set to %t", key, value), state)
	p.mu.Unlock()

	return MutationResult{State: state, Entry: &entry, Changed: true, Telemetry: p.emit(ctx, ev)}, nil
}

// ResetSystem clears incidents and the ledger, restores the default policy
// and leaves a single "System Reset" entry. confirm must be true.
func (p *Plane) ResetSystem(ctx context.Context, confirm bool) (MutationResult, error) {
	if !confirm {
		return MutationResult{}, ErrNotConfirmed
	}

	p.mu.Lock()
	p.incidents.Reset()
	p.ledger.Reset()
	p.policy = p.defaults
	if err := p.store.Clear(ctx); err != nil {
		fmt.Fprintf(p.warn, "controlplane: snapshot clear failed: %v\n", err)
	}
	entry := p.ledger.Append(audit.ActionSystemReset, "Demo state cleared.", p.role.Actor)
	state := p.commitLocked(ctx)
	ev := p.event(telemetry.KindReset, "System reset: Trust Score Restored", state)
	p.mu.Unlock()

	return MutationResult{State: state, Entry: &entry, Changed: true, Telemetry: p.emit(ctx, ev)}, nil
}

// SetRole switches the current role. Switching to a mutating role requires
// the registry PIN.
func (p *Plane) SetRole(ctx context.Context, role identity.Role, pin string) (MutationResult, error) {
	c, err := p.registry.Elevate(role, pin)
	if err != nil {
		return MutationResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c.Role == p.role.Role {
		return MutationResult{State: trust.Evaluate(p.incidents.List())}, nil
	}
	prev := p.role
	p.role = c
	entry := p.ledger.Append(audit.ActionRoleChange,
		fmt.Sprintf("Role changed from %s to %s", prev.Role, c.Role), c.Actor)
	state := p.commitLocked(ctx)
	return MutationResult{State: state, Entry: &entry, Changed: true}, nil
}

// GateRequest asks the policy gate whether an inference request may be
// dispatched now. A deny is audited.
func (p *Plane) GateRequest(ctx context.Context) policy.Result {
	p.mu.Lock()
	state := trust.Evaluate(p.incidents.List())
	res := policy.Check(state.Score, p.policy)
	if res.Allowed() {
		p.mu.Unlock()
		return res
	}
	p.ledger.Append(audit.ActionRequestBlocked,
		fmt.Sprintf("Score %d below %d with %s enabled", state.Score, trust.CriticalThreshold, policy.KeyBlockLowTrust),
		p.role.Actor)
	p.commitLocked(ctx)
	ev := p.event(telemetry.KindPolicy, "Request blocked by policy", state)
	ev.ErrorType = "PolicyDenied"
	p.mu.Unlock()

	p.emit(ctx, ev)
	return res
}

// RecordOutcome applies the penalty rules to what a caller observed and
// records the resulting incident, if any.
func (p *Plane) RecordOutcome(ctx context.Context, obs penalty.Observation) (MutationResult, bool, error) {
	if obs.Model == "" {
		obs.Model = p.Model()
	}
	inc, ok := p.rules.Apply(obs)
	if !ok {
		return MutationResult{State: p.View().State}, false, nil
	}
	res, err := p.AddIncident(ctx, inc)
	if err != nil {
		return MutationResult{}, false, err
	}
	return res, true, nil
}

// Model returns the model name attached to simulated requests.
func (p *Plane) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// SetModel changes the model name attached to simulated requests.
func (p *Plane) SetModel(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("model name must not be empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = name
	p.commitLocked(ctx)
	return nil
}

// commitLocked persists the snapshot and returns the new trust state.
func (p *Plane) commitLocked(ctx context.Context) trust.State {
	state := trust.Evaluate(p.incidents.List())
	sp := p.policy
	snap := snapshot.Snapshot{
		Incidents: p.incidents.List(),
		AuditLogs: p.ledger.Entries(),
		Policies:  &sp,
		Role:      string(p.role.Role),
		Model:     p.model,
	}
	if err := p.store.Save(ctx, snap); err != nil {
		fmt.Fprintf(p.warn, "controlplane: snapshot save failed: %v\n", err)
	}
	return state
}

func (p *Plane) event(kind, msg string, state trust.State) telemetry.Event {
	return telemetry.Event{
		Kind:      kind,
		Message:   msg,
		Timestamp: p.now().UTC().Format(audit.TimestampFormat),
		Score:     state.Score,
		State:     string(state.Tier),
		Model:     p.model,
		SessionID: p.session.SessionID,
	}
}

// Emit sends an arbitrary event through the current dispatcher.
func (p *Plane) Emit(ctx context.Context, ev telemetry.Event) telemetry.Report {
	if ev.Timestamp == "" {
		ev.Timestamp = p.now().UTC().Format(audit.TimestampFormat)
	}
	if ev.SessionID == "" {
		ev.SessionID = p.session.SessionID
	}
	return p.emit(ctx, ev)
}

func (p *Plane) emit(ctx context.Context, ev telemetry.Event) telemetry.Report {
	d := p.telemetry.Load()
	if d == nil {
		return telemetry.Report{}
	}
	if p.async {
		return d.Go(ev)
	}
	return d.Send(ctx, ev)
}

func details(inc model.Incident) *telemetry.IncidentDetails {
	return &telemetry.IncidentDetails{
		ID:        inc.ID,
		Title:     inc.Title,
		Trigger:   inc.Trigger,
		RootCause: inc.RootCause,
		Service:   inc.AffectedService,
	}
}
