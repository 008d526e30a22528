package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	trustv1 "github.com/ppiankov/trustplane/api/trustplane/v1"
	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/incident"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/policy"
	"github.com/ppiankov/trustplane/internal/server"
)

// callTimeout bounds every RPC.
const callTimeout = 5 * time.Second

// ErrUnavailable is returned when the server cannot be reached.
var ErrUnavailable = errors.New("trustplane server unreachable")

// Client connects to a trustplane gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// New creates a gRPC client for the given address. The connection is lazy;
// an unreachable server surfaces on the first call.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to trustplane server: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) call(method string, in, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fromStatus(trustv1.Call(ctx, c.conn, method, in, out))
}

// Status returns the current view of the remote plane.
func (c *Client) Status() (controlplane.View, error) {
	var v controlplane.View
	err := c.call(trustv1.MethodStatus, nil, &v)
	return v, err
}

// AddIncident records an incident on the remote plane.
func (c *Client) AddIncident(inc model.Incident) (controlplane.MutationResult, error) {
	var res controlplane.MutationResult
	err := c.call(trustv1.MethodAddIncident, inc, &res)
	return res, err
}

// ResolveIncident resolves an incident as the server's current role.
func (c *Client) ResolveIncident(id string) (controlplane.MutationResult, error) {
	var res controlplane.MutationResult
	err := c.call(trustv1.MethodResolveIncident, map[string]string{"id": id}, &res)
	return res, err
}

// TogglePolicy flips one policy switch.
func (c *Client) TogglePolicy(key string) (controlplane.MutationResult, error) {
	var res controlplane.MutationResult
	err := c.call(trustv1.MethodTogglePolicy, map[string]string{"key": key}, &res)
	return res, err
}

// Reset wipes the remote plane. confirm must be true.
func (c *Client) Reset(confirm bool) (controlplane.MutationResult, error) {
	var res controlplane.MutationResult
	err := c.call(trustv1.MethodReset, map[string]bool{"confirm": confirm}, &res)
	return res, err
}

// SetRole switches the remote plane's role.
func (c *Client) SetRole(role identity.Role, pin string) (controlplane.MutationResult, error) {
	var res controlplane.MutationResult
	err := c.call(trustv1.MethodSetRole, map[string]string{"role": string(role), "pin": pin}, &res)
	return res, err
}

// CheckRequest asks the remote policy gate whether a request may proceed.
// Fail-closed: an unreachable server yields a deny decision.
func (c *Client) CheckRequest() (policy.Result, error) {
	var res policy.Result
	if err := c.call(trustv1.MethodCheckRequest, nil, &res); err != nil {
		if errors.Is(err, ErrUnavailable) {
			return policy.Result{
				Decision: policy.DecisionDeny,
				Reason:   fmt.Sprintf("trustplane server unreachable: %v", err),
				PolicyID: "failclosed.unreachable",
			}, nil
		}
		return policy.Result{}, err
	}
	return res, nil
}

// AuditLog returns the remote ledger and its verification.
func (c *Client) AuditLog() (server.AuditLogResponse, error) {
	var res server.AuditLogResponse
	err := c.call(trustv1.MethodAuditLog, nil, &res)
	return res, err
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// fromStatus maps gRPC codes back to the domain sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.PermissionDenied:
		sentinel = controlplane.ErrForbidden
	case codes.NotFound:
		sentinel = incident.ErrNotFound
	case codes.AlreadyExists:
		sentinel = incident.ErrDuplicateID
	case codes.FailedPrecondition:
		sentinel = controlplane.ErrNotConfirmed
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = ErrUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
