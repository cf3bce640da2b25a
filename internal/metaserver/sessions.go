package metaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eddisonso.com/go-qfs/internal/wire"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationKey is the metadata key carrying the session token.
const AuthorizationKey = "authorization"

const DefaultSessionTTL = 24 * time.Hour

// SecretProvider supplies the JWT signing secret.
type SecretProvider func(*jwt.Token) (any, error)

// StaticSecret returns a provider that always uses secret.
func StaticSecret(secret []byte) SecretProvider {
	return func(*jwt.Token) (any, error) {
		return secret, nil
	}
}

// SessionClaims identify a client session.
type SessionClaims struct {
	Host string `json:"host,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies session tokens.
type Sessions struct {
	secret SecretProvider
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret SecretProvider, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token for a new session and returns it with the session id.
func (s *Sessions) Issue(host string) (string, string, error) {
	now := s.now()
	id := uuid.NewString()
	claims := SessionClaims{
		Host: host,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    "qfs-metaserver",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret, err := s.secret(token)
	if err != nil {
		return "", "", fmt.Errorf("failed to get secret: %w", err)
	}
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, id, nil
}

// Verify parses and validates a session token.
func (s *Sessions) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, jwt.Keyfunc(s.secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

type sessionKey struct{}

// SessionFromContext returns the claims of the calling session, if any.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	c, ok := ctx.Value(sessionKey{}).(*SessionClaims)
	return c, ok
}

// UnaryInterceptor rejects every call except Handshake that lacks a valid
// session token.
func (s *Sessions) UnaryInterceptor() grpc.UnaryServerInterceptor {
	handshake := wire.FullMethod(wire.MethodHandshake)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == handshake {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(AuthorizationKey)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing session token")
		}
		claims, err := s.Verify(strings.TrimPrefix(values[0], "Bearer "))
		if err != nil {
			slog.Warn("rejected session token", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, "invalid session token")
		}
		return handler(context.WithValue(ctx, sessionKey{}, claims), req)
	}
}
