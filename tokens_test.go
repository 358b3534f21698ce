package siteauth_test

import (
	"net/http"
	"testing"
	"time"

	sa "github.com/repairloader/siteauth"
)

func TestTokenIssuer(t *testing.T) {
	issuer := sa.NewTokenIssuer("test-secret", "repairloader", time.Hour)

	token, expires, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Errorf("Expected expiry about an hour out, got %v", expires)
	}

	subject, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if subject != "u1" {
		t.Errorf("Expected subject u1, got %q", subject)
	}

	tests := []struct {
		name   string
		issuer *sa.TokenIssuer
	}{
		{"wrong secret", sa.NewTokenIssuer("other-secret", "repairloader", time.Hour)},
		{"wrong issuer", sa.NewTokenIssuer("test-secret", "elsewhere", time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.issuer.Verify(token); err == nil {
				t.Error("Expected verification to fail")
			}
		})
	}

	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Error("Expected garbage to fail verification")
	}
}

func TestTokenExpiry(t *testing.T) {
	expired := &sa.TokenIssuer{SecretKey: "test-secret", Issuer: "repairloader", MaxAge: -time.Minute}
	token, _, err := expired.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := expired.Verify(token); err == nil {
		t.Error("Expected expired token to fail verification")
	}
}

func TestTokenIssuerWithoutSecret(t *testing.T) {
	if _, _, err := (&sa.TokenIssuer{}).Issue("u1"); err == nil {
		t.Error("Expected an error without a secret")
	}
}

func TestHashToken(t *testing.T) {
	a := sa.HashToken("abc")
	if a != sa.HashToken("abc") {
		t.Error("Expected hashing to be deterministic")
	}
	if len(a) != 64 || a == sa.HashToken("abd") {
		t.Errorf("Unexpected hash %q", a)
	}

	t1, _ := sa.GenerateSecureToken()
	t2, _ := sa.GenerateSecureToken()
	if len(t1) != 64 || t1 == t2 {
		t.Errorf("Expected distinct 64 char tokens, got %q and %q", t1, t2)
	}
}

func TestRoles(t *testing.T) {
	parse := map[string]sa.Role{
		"admin":      sa.RoleAdmin,
		" Moderator": sa.RoleModerator,
		"user":       sa.RoleUser,
		"":           sa.RoleUser,
		"superuser":  sa.RoleUser,
	}
	for in, expected := range parse {
		if got := sa.ParseRole(in); got != expected {
			t.Errorf("ParseRole(%q) = %q, expected %q", in, got, expected)
		}
	}

	if !sa.RoleAdmin.AtLeast(sa.RoleModerator) || sa.RoleUser.AtLeast(sa.RoleModerator) {
		t.Error("Unexpected role ordering")
	}
	if sa.Role("").AtLeast(sa.RoleUser) || sa.Role("").Valid() {
		t.Error("Expected the empty role to be invalid")
	}
	if len(sa.AllRoles()) != 3 {
		t.Errorf("Expected 3 roles, got %v", sa.AllRoles())
	}
}

func TestAuthErrorStatusCodes(t *testing.T) {
	tests := map[string]int{
		sa.ErrCodeWeakPassword:          http.StatusBadRequest,
		sa.ErrCodeMissingField:          http.StatusBadRequest,
		sa.ErrCodeEmailExists:           http.StatusConflict,
		sa.ErrCodeHandleTaken:           http.StatusConflict,
		sa.ErrCodeConfiguration:         http.StatusInternalServerError,
		sa.ErrCodeCredentialsSignin:     http.StatusUnauthorized,
		sa.ErrCodeVerification:          http.StatusUnauthorized,
		sa.ErrCodeOAuthAccountNotLinked: http.StatusUnauthorized,
	}
	for code, expected := range tests {
		err := sa.NewAuthError(code, "message", "")
		if got := err.StatusCode(); got != expected {
			t.Errorf("%s: expected %d, got %d", code, expected, got)
		}
		if err.Error() != "message" {
			t.Errorf("Expected message, got %q", err.Error())
		}
	}
}
