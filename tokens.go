package siteauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default expiry durations
const (
	DefaultSessionMaxAge    = 30 * 24 * time.Hour // 30 days, for both session rows and tokens
	VerificationTokenExpiry = 24 * time.Hour      // magic links
)

// GenerateSecureToken generates a cryptographically secure random token
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex sha256 of a token, which is what stores keep
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenIssuer signs and verifies stateless session tokens.
// Only the subject is ever trusted; role and handle are re-read on every request.
type TokenIssuer struct {
	SecretKey string
	Issuer    string
	MaxAge    time.Duration
}

func NewTokenIssuer(secretKey, issuer string, maxAge time.Duration) *TokenIssuer {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &TokenIssuer{SecretKey: secretKey, Issuer: issuer, MaxAge: maxAge}
}

// Issue creates a signed token whose subject is the user id
func (t *TokenIssuer) Issue(userID string) (tokenString string, expires time.Time, err error) {
	if t.SecretKey == "" {
		return "", time.Time{}, fmt.Errorf("token secret not configured")
	}
	now := time.Now()
	expires = now.Add(t.MaxAge)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    t.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err = token.SignedString([]byte(t.SecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expires, nil
}

// Verify checks signature, expiry and issuer and returns the subject
func (t *TokenIssuer) Verify(tokenString string) (subject string, err error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(t.SecretKey), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("subject not found")
	}
	return claims.Subject, nil
}
