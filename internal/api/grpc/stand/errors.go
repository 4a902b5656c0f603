package stand

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/autostand/internal/domain/stand"
)

// ErrorDomain is the ErrorInfo domain of vendor failures.
const ErrorDomain = "autostand"

// errBadArguments marks arguments that do not fit the method.
var errBadArguments = errors.New("arguments do not match method")

// ToStatus converts a controller error into a gRPC status error. Vendor
// failures carry their code, title, description and timestamp in ErrorInfo.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	var failure *domain.RemoteFailure
	if errors.As(err, &failure) && failure.VendorCode != "" {
		return vendorStatus(failure)
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, errBadArguments):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus converts a gRPC error into a *RemoteFailure. Other errors are
// returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	failure := &domain.RemoteFailure{
		StatusCode: st.Code().String(),
		Body:       st.Message(),
		Err:        err,
	}

	for _, detail := range st.Details() {
		info, isInfo := detail.(*errdetails.ErrorInfo)
		if !isInfo || info.GetDomain() != ErrorDomain {
			continue
		}

		md := info.GetMetadata()
		failure.VendorCode = info.GetReason()
		failure.Title = md["title"]
		failure.Description = md["description"]
		failure.Timestamp = md["timestamp"]
	}

	return failure
}

func vendorStatus(failure *domain.RemoteFailure) error {
	message := failure.Description
	if message == "" {
		message = failure.Title
	}

	if message == "" {
		message = failure.VendorCode
	}

	st := status.New(codeByName(failure.StatusCode), message)

	withDetails, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: failure.VendorCode,
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"title":       failure.Title,
			"description": failure.Description,
			"timestamp":   failure.Timestamp,
		},
	})
	if err != nil {
		return st.Err()
	}

	return withDetails.Err()
}

// codeByName maps a code name such as "NotFound" to its code.
// Unknown names map to FailedPrecondition.
func codeByName(name string) codes.Code {
	for c := codes.OK; c <= codes.Unauthenticated; c++ {
		if c.String() == name {
			return c
		}
	}

	return codes.FailedPrecondition
}
