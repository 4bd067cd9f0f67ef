// Package auth supplies the bearer credentials attached to the chat socket
// handshake and to REST requests.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoToken is returned when a token source has nothing to hand out.
var ErrNoToken = errors.New("no token available")

// TokenSource returns a fresh identity credential for each call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a pre-issued token, e.g. from an environment variable.
type StaticToken string

// Token returns the token, or ErrNoToken when it is empty.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Claims carried in minted tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Signer mints a short-lived RS256 JWT for one user on every call.
type Signer struct {
	KeyID      string
	Issuer     string
	Audience   string
	UserID     string
	TTL        time.Duration
	PrivateKey *rsa.PrivateKey

	now func() time.Time
}

// NewSigner loads the PEM key at keyPath and returns a signer for userID.
func NewSigner(keyPath, keyID, issuer, audience, userID string, ttl time.Duration) (*Signer, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Signer{
		KeyID:      keyID,
		Issuer:     issuer,
		Audience:   audience,
		UserID:     userID,
		TTL:        ttl,
		PrivateKey: key,
	}, nil
}

// Token mints a new signed token.
func (s *Signer) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.PrivateKey == nil {
		return "", ErrNoToken
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	issued := now().UTC()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.TTL)),
		},
		UserID: s.UserID,
	}
	if s.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.KeyID != "" {
		token.Header["kid"] = s.KeyID
	}

	signed, err := token.SignedString(s.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	return ParsePrivateKey(data)
}

// ParsePrivateKey decodes a PEM-encoded RSA private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}
