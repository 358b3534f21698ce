package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sa "github.com/repairloader/siteauth"
)

// fakeSessions knows one session token and one bearer token
type fakeSessions struct {
	calls int
}

func (f *fakeSessions) SessionFromTokens(ctx context.Context, sessionToken string, tokens ...string) *sa.AppSession {
	f.calls++
	if sessionToken == "good-session" {
		return &sa.AppSession{UserID: "u1", Role: sa.RoleModerator, Strategy: sa.StrategyDatabase}
	}
	for _, t := range tokens {
		if t == "good-jwt" {
			return &sa.AppSession{UserID: "u2", Role: sa.RoleUser, Strategy: sa.StrategyJWT}
		}
	}
	return nil
}

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func expectCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status error, got %v", err)
	}
	if st.Code() != code {
		t.Errorf("expected %v code, got %v", code, st.Code())
	}
}

func TestNewInterceptorConfig(t *testing.T) {
	config := NewInterceptorConfig(&fakeSessions{}, "/pkg.Svc/Method1", "/pkg.Svc/Method2")
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true")
	}
	if !config.PublicMethods["/pkg.Svc/Method1"] || !config.PublicMethods["/pkg.Svc/Method2"] {
		t.Error("expected Method1 and Method2 to be public")
	}
	if config.PublicMethods["/pkg.Svc/Method3"] {
		t.Error("expected Method3 to not be public")
	}
	if OptionalAuthConfig(&fakeSessions{}).RequireAuth {
		t.Error("expected optional config to not require auth")
	}
}

func TestUnaryAuthInterceptor_NoCredentials(t *testing.T) {
	sessions := &fakeSessions{}
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(sessions))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	expectCode(t, err, codes.Unauthenticated)
	if sessions.calls != 0 {
		t.Errorf("expected no lookups without credentials, got %d", sessions.calls)
	}
}

func TestUnaryAuthInterceptor_BadToken(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(&fakeSessions{}))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

	_, err := interceptor(incoming("authorization", "Bearer forged"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	expectCode(t, err, codes.Unauthenticated)
}

func TestUnaryAuthInterceptor_SessionToken(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(&fakeSessions{}))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

	var got *sa.AppSession
	_, err := interceptor(incoming("x-session-token", "good-session"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = AppSessionFromContext(ctx)
		return "result", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.UserID != "u1" || got.Strategy != sa.StrategyDatabase {
		t.Errorf("expected database session for u1, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_Bearer(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(&fakeSessions{}))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

	var got *sa.AppSession
	_, err := interceptor(incoming("authorization", "Bearer good-jwt"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = AppSessionFromContext(ctx)
		return "result", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.UserID != "u2" {
		t.Errorf("expected session for u2, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_PublicMethod(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(&fakeSessions{}, "/pkg.Svc/PublicMethod"))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/PublicMethod"}

	handlerCalled := false
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		if AppSessionFromContext(ctx) != nil {
			t.Error("expected no session on anonymous public call")
		}
		return "result", nil
	})
	if err != nil {
		t.Fatalf("unexpected error for public method: %v", err)
	}
	if !handlerCalled {
		t.Error("handler should have been called for public method")
	}
}

func TestUnaryAuthInterceptor_OptionalAuth(t *testing.T) {
	interceptor := UnaryAuthInterceptor(OptionalAuthConfig(&fakeSessions{}))
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

	handlerCalled := false
	_, err := interceptor(incoming("authorization", "Bearer forged"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "result", nil
	})
	if err != nil {
		t.Fatalf("unexpected error with optional auth: %v", err)
	}
	if !handlerCalled {
		t.Error("handler should have been called with optional auth")
	}
}

// mockServerStream implements grpc.ServerStream for testing
type mockServerStream struct {
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context     { return m.ctx }
func (m *mockServerStream) SetHeader(metadata.MD) error  { return nil }
func (m *mockServerStream) SendHeader(metadata.MD) error { return nil }
func (m *mockServerStream) SetTrailer(metadata.MD)       {}
func (m *mockServerStream) SendMsg(interface{}) error    { return nil }
func (m *mockServerStream) RecvMsg(interface{}) error    { return nil }

func TestStreamAuthInterceptor_NoCredentials(t *testing.T) {
	interceptor := StreamAuthInterceptor(NewInterceptorConfig(&fakeSessions{}))
	stream := &mockServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/pkg.Svc/StreamMethod"}

	err := interceptor(nil, stream, info, func(srv interface{}, ss grpc.ServerStream) error {
		t.Error("handler should not be called")
		return nil
	})
	expectCode(t, err, codes.Unauthenticated)
}

func TestStreamAuthInterceptor_WithSession(t *testing.T) {
	interceptor := StreamAuthInterceptor(NewInterceptorConfig(&fakeSessions{}))
	stream := &mockServerStream{ctx: incoming("x-session-token", "good-session")}
	info := &grpc.StreamServerInfo{FullMethod: "/pkg.Svc/StreamMethod"}

	var got *sa.AppSession
	err := interceptor(nil, stream, info, func(srv interface{}, ss grpc.ServerStream) error {
		got = AppSessionFromContext(ss.Context())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.UserID != "u1" {
		t.Errorf("expected stream context to carry u1, got %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	_, err := RequireRole(context.Background(), sa.RoleUser)
	expectCode(t, err, codes.Unauthenticated)

	ctx := ContextWithAppSession(context.Background(), &sa.AppSession{UserID: "u1", Role: sa.RoleModerator})
	if _, err := RequireRole(ctx, sa.RoleModerator); err != nil {
		t.Errorf("moderator should satisfy moderator: %v", err)
	}
	_, err = RequireRole(ctx, sa.RoleAdmin)
	expectCode(t, err, codes.PermissionDenied)

	// a session whose user row is gone has no role
	ctx = ContextWithAppSession(context.Background(), &sa.AppSession{UserID: "ghost"})
	_, err = RequireRole(ctx, sa.RoleUser)
	expectCode(t, err, codes.PermissionDenied)
}
