package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sa "github.com/repairloader/siteauth"
)

// SessionSource resolves credentials to a session.  *siteauth.SiteAuth implements it.
type SessionSource interface {
	SessionFromTokens(ctx context.Context, sessionToken string, tokens ...string) *sa.AppSession
}

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	*Config

	Sessions SessionSource

	// RequireAuth when true rejects unauthenticated requests.
	RequireAuth bool

	// PublicMethods skip the auth requirement.
	// Keys are full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth except for the given methods.
func NewInterceptorConfig(sessions SessionSource, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		Sessions:      sessions,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(sessions SessionSource) *InterceptorConfig {
	config := NewInterceptorConfig(sessions)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// authenticate resolves the caller and applies the RequireAuth policy
func (c *InterceptorConfig) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	var session *sa.AppSession
	if sessionToken, bearers := credentialsFromMetadata(ctx, c.Config); sessionToken != "" || len(bearers) > 0 {
		session = c.Sessions.SessionFromTokens(ctx, sessionToken, bearers...)
	}
	if session == nil {
		if c.RequireAuth && !c.PublicMethods[fullMethod] {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}
	return ContextWithAppSession(ctx, session), nil
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the caller's session.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config.ensureDefaults()

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that resolves the caller's session.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config.ensureDefaults()

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

// RequireRole fails with PermissionDenied unless the resolved session has at least min.
// Use inside handlers after the interceptor ran.
func RequireRole(ctx context.Context, min sa.Role) (*sa.AppSession, error) {
	session := AppSessionFromContext(ctx)
	if session == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if !session.Role.AtLeast(min) {
		return nil, status.Errorf(codes.PermissionDenied, "requires role %s", min)
	}
	return session, nil
}
