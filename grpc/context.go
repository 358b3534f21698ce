// Package grpc carries RepairLoader sessions into gRPC services.  Clients send
// the same credentials a browser would (a session token or a bearer token) as
// metadata, and the interceptors resolve them to a siteauth.AppSession.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	sa "github.com/repairloader/siteauth"
)

// Default metadata keys for authentication context.
const (
	// DefaultMetadataKeyAuthorization carries "Bearer <signed token>"
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeySessionToken carries a persisted session token
	DefaultMetadataKeySessionToken = "x-session-token"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyAuthorization defaults to "authorization".
	MetadataKeyAuthorization string

	// MetadataKeySessionToken defaults to "x-session-token".
	MetadataKeySessionToken string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeySessionToken:  DefaultMetadataKeySessionToken,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeySessionToken == "" {
		c.MetadataKeySessionToken = DefaultMetadataKeySessionToken
	}
}

// credentialsFromMetadata pulls the session token and any bearer tokens out of incoming metadata
func credentialsFromMetadata(ctx context.Context, config *Config) (sessionToken string, bearers []string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}
	if values := md.Get(config.MetadataKeySessionToken); len(values) > 0 {
		sessionToken = values[0]
	}
	for _, v := range md.Get(config.MetadataKeyAuthorization) {
		if token, ok := strings.CutPrefix(v, "Bearer "); ok && token != "" {
			bearers = append(bearers, token)
		}
	}
	return sessionToken, bearers
}

type appSessionKey struct{}

// AppSessionFromContext returns the session resolved by the interceptors, or nil.
func AppSessionFromContext(ctx context.Context) *sa.AppSession {
	s, _ := ctx.Value(appSessionKey{}).(*sa.AppSession)
	return s
}

// ContextWithAppSession stores a resolved session in ctx.
func ContextWithAppSession(ctx context.Context, s *sa.AppSession) context.Context {
	return context.WithValue(ctx, appSessionKey{}, s)
}

// IsAuthenticated returns true if there is an authenticated user in the context.
func IsAuthenticated(ctx context.Context) bool {
	return AppSessionFromContext(ctx) != nil
}

// BearerToOutgoingContext attaches a signed session token to outgoing metadata.
func BearerToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// SessionTokenToOutgoingContext attaches a persisted session token to outgoing metadata.
func SessionTokenToOutgoingContext(ctx context.Context, sessionToken string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeySessionToken, sessionToken)
}
