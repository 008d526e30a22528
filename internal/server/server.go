package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	trustv1 "github.com/ppiankov/trustplane/api/trustplane/v1"
	"github.com/ppiankov/trustplane/internal/audit"
	"github.com/ppiankov/trustplane/internal/config"
	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/incident"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/policy"
	"github.com/ppiankov/trustplane/internal/telemetry"
)

// Config holds gRPC server configuration.
type Config struct {
	Addr       string
	ConfigPath string
	Warn       io.Writer
}

// Server implements TrustService on top of a single control plane.
type Server struct {
	plane      *controlplane.Plane
	cfg        Config
	grpcServer *grpc.Server
}

// New creates a gRPC server for the plane.
func New(plane *controlplane.Plane, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}
	if cfg.Warn == nil {
		cfg.Warn = os.Stderr
	}
	s := &Server{
		plane:      plane,
		cfg:        cfg,
		grpcServer: grpc.NewServer(),
	}
	trustv1.RegisterTrustServiceServer(s.grpcServer, s)
	return s
}

// Serve starts the gRPC server on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ReloadTelemetry rereads the config file and swaps the telemetry sinks.
// Called by the hot-reloader on file change.
func (s *Server) ReloadTelemetry() error {
	cfg, err := config.Load(s.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	s.plane.SetTelemetry(telemetry.FromConfigs(cfg.Telemetry, s.cfg.Warn))
	return nil
}

// Status implements the Status RPC.
func (s *Server) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(s.plane.View(), nil)
}

// AddIncident implements the AddIncident RPC. The request is an incident object.
func (s *Server) AddIncident(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var inc model.Incident
	if err := trustv1.Decode(req, &inc); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(s.plane.AddIncident(ctx, inc))
}

type resolveRequest struct {
	ID string `json:"id"`
}

// ResolveIncident implements the ResolveIncident RPC with the plane's current role.
func (s *Server) ResolveIncident(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in resolveRequest
	if err := trustv1.Decode(req, &in); err != nil || in.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	return reply(s.plane.ResolveIncident(ctx, s.plane.Capability(), in.ID))
}

type toggleRequest struct {
	Key string `json:"key"`
}

// TogglePolicy implements the TogglePolicy RPC.
func (s *Server) TogglePolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in toggleRequest
	if err := trustv1.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(s.plane.TogglePolicy(ctx, in.Key))
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// Reset implements the Reset RPC. confirm must be true.
func (s *Server) Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in resetRequest
	if err := trustv1.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(s.plane.ResetSystem(ctx, in.Confirm))
}

type roleRequest struct {
	Role string `json:"role"`
	PIN  string `json:"pin"`
}

// SetRole implements the SetRole RPC.
func (s *Server) SetRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in roleRequest
	if err := trustv1.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	role, err := identity.ParseRole(in.Role)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(s.plane.SetRole(ctx, role, in.PIN))
}

// CheckRequest implements the CheckRequest RPC.
func (s *Server) CheckRequest(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(s.plane.GateRequest(ctx), nil)
}

// AuditLogResponse is the AuditLog RPC payload.
type AuditLogResponse struct {
	Entries      []audit.Entry      `json:"entries"`
	Verification audit.VerifyResult `json:"verification"`
}

// AuditLog implements the AuditLog RPC. Entries are newest first;
// verification runs over creation order.
func (s *Server) AuditLog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries := s.plane.View().AuditLog
	return reply(AuditLogResponse{Entries: entries, Verification: audit.VerifyNewestFirst(entries)}, nil)
}

func reply(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := trustv1.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors to gRPC codes.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, controlplane.ErrForbidden), errors.Is(err, identity.ErrAccessDenied):
		code = codes.PermissionDenied
	case errors.Is(err, incident.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, incident.ErrDuplicateID):
		code = codes.AlreadyExists
	case errors.Is(err, controlplane.ErrNotConfirmed):
		code = codes.FailedPrecondition
	case errors.Is(err, policy.ErrUnknownPolicy), errors.Is(err, identity.ErrUnknownRole):
		code = codes.InvalidArgument
	case errors.Is(err, model.ErrInvalidIncident):
		code = codes.InvalidArgument
	}
	return status.Error(code, err.Error())
}
