package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/responselog"
)

// maxLoggedBody truncates response bodies in the response log.
const maxLoggedBody = 512

// responseLogInterceptor appends "<op> <method> -> <code> <duration>: <body>"
// for every call. A nil sink logs nothing.
func responseLogInterceptor(sink *responselog.Sink) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		if sink == nil {
			return err
		}

		op := string(capability.OperationFromContext(ctx))
		if op == "" {
			op = "-"
		}

		st := status.Convert(err)

		body := st.Message()
		if err == nil {
			body = marshalBody(reply)
		}

		sink.Appendf(ctx, "%s %s -> %s %s: %s",
			op, method, st.Code(), time.Since(start).Round(time.Millisecond), truncate(body))

		return err
	}
}

func marshalBody(reply any) string {
	msg, ok := reply.(proto.Message)
	if !ok {
		return fmt.Sprint(reply)
	}

	data, err := protojson.Marshal(msg)
	if err != nil {
		return "<" + err.Error() + ">"
	}

	return string(data)
}

func truncate(body string) string {
	body = strings.ReplaceAll(body, "\n", " ")
	if len(body) <= maxLoggedBody {
		return body
	}

	return body[:maxLoggedBody] + "..."
}
