package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"slices"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	standgrpc "github.com/oshokin/autostand/internal/api/grpc/stand"
	"github.com/oshokin/autostand/internal/auth"
	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/responselog"
)

// DefaultDescribeTimeout bounds the Describe call made by Dial.
const DefaultDescribeTimeout = 10 * time.Second

// Handle is a capability.Handle backed by a gRPC connection.
type Handle struct {
	// conn is the underlying gRPC connection to the controller.
	conn *grpc.ClientConn
	// methods is the surface reported by Describe.
	methods []capability.Method
	// callTimeout bounds every method call; zero leaves calls to the caller's deadline.
	callTimeout time.Duration
}

type dialOptions struct {
	sink   *responselog.Sink
	secret string
	actor  auth.Actor
	extra  []grpc.DialOption

	callTimeout time.Duration
}

// Option configures Dial.
type Option func(*dialOptions)

// WithResponseLog appends one line per response to sink.
func WithResponseLog(sink *responselog.Sink) Option {
	return func(o *dialOptions) {
		o.sink = sink
	}
}

// WithToken attaches an HS256 bearer token for actor to every call.
// An empty secret sends no token.
func WithToken(secret string, actor auth.Actor) Option {
	return func(o *dialOptions) {
		o.secret = secret
		o.actor = actor
	}
}

// WithCallTimeout sets a default timeout for method calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *dialOptions) {
		if timeout > 0 {
			o.callTimeout = timeout
		}
	}
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *dialOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// Dial connects to endpoint and fetches its method surface.
func Dial(ctx context.Context, endpoint Endpoint, opts ...Option) (*Handle, error) {
	o := &dialOptions{}
	for _, opt := range opts {
		opt(o)
	}

	transport := insecure.NewCredentials()
	if endpoint.Secure {
		transport = credentials.NewTLS(&tls.Config{
			ServerName: endpoint.Host,
			MinVersion: tls.VersionTLS12,
		})
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithChainUnaryInterceptor(responseLogInterceptor(o.sink)),
	}

	if o.secret != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.NewCredentials(o.secret, o.actor, endpoint.Secure)))
	}

	dialOpts = append(dialOpts, o.extra...)

	conn, err := grpc.NewClient(endpoint.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial stand controller: %w", err)
	}

	h := &Handle{conn: conn, callTimeout: o.callTimeout}

	describeCtx, cancel := context.WithTimeout(ctx, DefaultDescribeTimeout)
	defer cancel()

	if err = h.describe(describeCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.DebugKV(ctx, "Controller surface fetched", "endpoint", endpoint.String(), "methods", len(h.methods))

	return h, nil
}

// Methods implements capability.Handle.
func (h *Handle) Methods() []capability.Method {
	return slices.Clone(h.methods)
}

// Invoke implements capability.Handle.
func (h *Handle) Invoke(ctx context.Context, m capability.Method, args []any) (any, error) {
	in, err := standgrpc.EncodeArgs(args)
	if err != nil {
		return nil, err
	}

	if m.Async {
		return capability.Go(ctx, func(ctx context.Context) (any, error) {
			return h.call(ctx, m.Name, in)
		}), nil
	}

	return h.call(ctx, m.Name, in)
}

// Close releases the underlying gRPC connection.
func (h *Handle) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}

	return h.conn.Close()
}

func (h *Handle) call(ctx context.Context, name string, in *structpb.ListValue) (any, error) {
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	out := new(structpb.Value)

	if err := h.conn.Invoke(callCtx, standgrpc.FullMethod(name), in, out); err != nil {
		return nil, standgrpc.FromStatus(err)
	}

	return out.AsInterface(), nil
}

// callContext returns a context with the handle's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (h *Handle) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, h.callTimeout)
}

func (h *Handle) describe(ctx context.Context) error {
	out := new(structpb.Struct)

	if err := h.conn.Invoke(ctx, standgrpc.FullMethod(standgrpc.DescribeMethod), &emptypb.Empty{}, out); err != nil {
		return fmt.Errorf("describe stand controller: %w", standgrpc.FromStatus(err))
	}

	methods, err := standgrpc.DecodeMethods(out)
	if err != nil {
		return err
	}

	h.methods = methods

	return nil
}
