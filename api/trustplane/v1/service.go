// Package trustv1 is the wire contract of trustplane.v1.TrustService.
package trustv1

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "trustplane.v1.TrustService"

// Method names.
const (
	MethodStatus          = "Status"
	MethodAddIncident     = "AddIncident"
	MethodResolveIncident = "ResolveIncident"
	MethodTogglePolicy    = "TogglePolicy"
	MethodReset           = "Reset"
	MethodSetRole         = "SetRole"
	MethodCheckRequest    = "CheckRequest"
	MethodAuditLog        = "AuditLog"
)

// FullMethod returns the invoke path for a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// TrustServiceServer is the server API for TrustService.
type TrustServiceServer interface {
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddIncident(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveIncident(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TogglePolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuditLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handler func(TrustServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call handler) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(TrustServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrustServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodStatus, TrustServiceServer.Status),
		unary(MethodAddIncident, TrustServiceServer.AddIncident),
		unary(MethodResolveIncident, TrustServiceServer.ResolveIncident),
		unary(MethodTogglePolicy, TrustServiceServer.TogglePolicy),
		unary(MethodReset, TrustServiceServer.Reset),
		unary(MethodSetRole, TrustServiceServer.SetRole),
		unary(MethodCheckRequest, TrustServiceServer.CheckRequest),
		unary(MethodAuditLog, TrustServiceServer.AuditLog),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trustplane/v1/trust.proto",
}

// RegisterTrustServiceServer registers srv on s.
func RegisterTrustServiceServer(s grpc.ServiceRegistrar, srv TrustServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Call invokes a method with a JSON-encodable request and decodes the
// response into out (which may be nil).
func Call(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := cc.Invoke(ctx, FullMethod(method), req, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return Decode(resp, out)
}

// Encode converts any JSON object value to a Struct. nil yields an empty Struct.
func Encode(v any) (*structpb.Struct, error) {
	st := new(structpb.Struct)
	if v == nil {
		return st, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return st, nil
}

// Decode converts a Struct back into v.
func Decode(st *structpb.Struct, v any) error {
	data, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
