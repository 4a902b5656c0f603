package stand

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/logger"
)

// Service is what the transport exposes: any handle with a method surface.
type Service interface {
	capability.Handle
}

// Server adapts a Service to the autostand.v1.Stand gRPC service.
type Server struct {
	// service provides the controller methods.
	service Service
}

// NewServer wires the provided service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Register adds the service to registrar, one unary method per distinct
// method name plus Describe.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(s.ServiceDesc(), s)
}

// ServiceDesc builds the service descriptor from the current method surface.
func (s *Server) ServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*Service)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: DescribeMethod, Handler: s.describeHandler},
		},
		Metadata: "autostand/v1/stand.proto",
	}

	seen := map[string]bool{DescribeMethod: true}

	for _, m := range s.service.Methods() {
		if seen[m.Name] {
			continue
		}

		seen[m.Name] = true
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    s.methodHandler(m.Name),
		})
	}

	return desc
}

// Methods implements Service so the server itself satisfies HandlerType.
func (s *Server) Methods() []capability.Method {
	return s.service.Methods()
}

// Invoke implements Service.
func (s *Server) Invoke(ctx context.Context, m capability.Method, args []any) (any, error) {
	return s.service.Invoke(ctx, m, args)
}

// Describe returns the method surface.
func (s *Server) Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	out, err := EncodeMethods(s.service.Methods())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

// Call decodes args for the overload of name matching their count, invokes it
// and awaits a Future result.
func (s *Server) Call(ctx context.Context, name string, in *structpb.ListValue) (*structpb.Value, error) {
	raw := in.AsSlice()

	m, ok := s.lookup(name, len(raw))
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s takes no %d arguments", name, len(raw))
	}

	args, err := capability.Decode(m, raw)
	if err != nil {
		return nil, ToStatus(fmt.Errorf("%w: %w", errBadArguments, err))
	}

	logger.DebugKV(ctx, "Controller call", "method", m.String())

	result, err := s.service.Invoke(ctx, m, args)
	if err != nil {
		return nil, ToStatus(err)
	}

	if f, isFuture := result.(capability.Future); isFuture {
		if result, err = f.Await(ctx); err != nil {
			return nil, ToStatus(err)
		}
	}

	out, err := EncodeResult(result)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

func (s *Server) lookup(name string, arity int) (capability.Method, bool) {
	for _, m := range s.service.Methods() {
		if m.Name == name && len(m.Params) == arity {
			return m, true
		}
	}

	return capability.Method{}, false
}

//nolint:revive // Argument order is fixed by grpc.MethodHandler.
func (s *Server) describeHandler(
	_ any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return s.Describe(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: s, FullMethod: FullMethod(DescribeMethod)}

	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.Describe(ctx, req.(*emptypb.Empty))
	})
}

func (s *Server) methodHandler(name string) grpc.MethodHandler {
	//nolint:revive // Argument order is fixed by grpc.MethodHandler.
	return func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.ListValue)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return s.Call(ctx, name, in)
		}

		info := &grpc.UnaryServerInfo{Server: s, FullMethod: FullMethod(name)}

		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return s.Call(ctx, name, req.(*structpb.ListValue))
		})
	}
}
