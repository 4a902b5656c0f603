package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/autostand/internal/logger"
)

const (
	// DefaultTokenTTL is the lifetime of a minted token.
	DefaultTokenTTL = time.Minute

	issuer           = "autostand"
	authorizationKey = "authorization"
	bearerPrefix     = "Bearer "
)

var (
	// ErrSecretRequired is returned when signing or verifying without a secret.
	ErrSecretRequired = errors.New("token secret is required")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the token claims: the registered set plus the actor.
type Claims struct {
	jwt.RegisteredClaims

	Hostname string `json:"hostname,omitempty"`
	Username string `json:"username,omitempty"`
}

// Actor returns the actor named by the claims.
func (c *Claims) Actor() Actor {
	return Actor{Hostname: c.Hostname, Username: c.Username}
}

// Sign mints an HS256 token for actor valid for ttl.
func Sign(secret string, actor Actor, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrSecretRequired
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Hostname: actor.Hostname,
		Username: actor.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify parses token and checks its signature, issuer and expiry.
func Verify(secret, token string) (*Claims, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Credentials attach a freshly minted bearer token to every call.
type Credentials struct {
	secret string
	actor  Actor
	ttl    time.Duration
	secure bool
}

// NewCredentials creates per-RPC credentials for actor. secure reports whether
// the connection uses TLS.
func NewCredentials(secret string, actor Actor, secure bool) *Credentials {
	return &Credentials{
		secret: secret,
		actor:  actor,
		ttl:    DefaultTokenTTL,
		secure: secure,
	}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *Credentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	token, err := Sign(c.secret, c.actor, c.ttl, time.Now())
	if err != nil {
		return nil, err
	}

	return map[string]string{authorizationKey: bearerPrefix + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *Credentials) RequireTransportSecurity() bool {
	return c.secure
}

var _ credentials.PerRPCCredentials = (*Credentials)(nil)

// UnaryServerInterceptor rejects calls without a valid bearer token.
// With an empty secret every call is let through.
func UnaryServerInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if secret == "" {
			return handler(ctx, req)
		}

		claims, err := verifyIncoming(ctx, secret)
		if err != nil {
			logger.WarnKV(ctx, "Rejected unauthenticated call", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = logger.WithKV(ctx, "actor", claims.Subject)

		return handler(ctx, req)
	}
}

func verifyIncoming(ctx context.Context, secret string) (*Claims, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	values := md.Get(authorizationKey)
	if len(values) == 0 || !strings.HasPrefix(values[0], bearerPrefix) {
		return nil, fmt.Errorf("%w: missing bearer token", ErrInvalidToken)
	}

	return Verify(secret, strings.TrimPrefix(values[0], bearerPrefix))
}
