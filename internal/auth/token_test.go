package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const secret = "correct horse battery staple"

var operator = Actor{Hostname: "desk-7", Username: "ops"}

// TestDetectActor ensures hostname and username are detected and non-empty.
func TestDetectActor(t *testing.T) {
	t.Parallel()

	a, err := DetectActor()
	require.NoError(t, err)
	require.NotEmpty(t, a.Hostname)
	require.NotEmpty(t, a.Username)
}

// TestSignVerify round-trips the actor and rejects tampering and expiry.
func TestSignVerify(t *testing.T) {
	t.Parallel()

	token, err := Sign(secret, operator, time.Minute, time.Now())
	require.NoError(t, err)

	claims, err := Verify(secret, token)
	require.NoError(t, err)
	require.Equal(t, operator, claims.Actor())
	require.Equal(t, "ops@desk-7", claims.Subject)

	_, err = Verify("another secret", token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Sign(secret, operator, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = Verify(secret, expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Sign("", operator, time.Minute, time.Now())
	require.ErrorIs(t, err, ErrSecretRequired)
}

// TestUnaryServerInterceptor admits bearer tokens minted by Credentials.
func TestUnaryServerInterceptor(t *testing.T) {
	t.Parallel()

	info := &grpc.UnaryServerInfo{FullMethod: "/autostand.v1.Stand/Up"}
	handler := func(context.Context, any) (any, error) { return "ok", nil }

	md, err := NewCredentials(secret, operator, false).GetRequestMetadata(context.Background())
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(md))

	resp, err := UnaryServerInterceptor(secret)(ctx, nil, info, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	_, err = UnaryServerInterceptor(secret)(context.Background(), nil, info, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err = UnaryServerInterceptor("")(context.Background(), nil, info, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}
