// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs and verifies the private session tokens handed to each
// connection. Tokens carry "sub" = session uid.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl of 0 means tokens never expire.
	ttl time.Duration
	now func() time.Time
}

// NewIssuer generates a fresh ed25519 key pair at runtime.
func NewIssuer(ttl time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewIssuerFromPath reads an ed25519 key pair from disk.
func NewIssuerFromPath(privatePath, publicPath string, ttl time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size")
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Issue creates a signed token for the given session uid.
func (i *Issuer) Issue(uid string) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub": uid,
		"iat": now.Unix(),
	}
	if i.ttl > 0 {
		claims["exp"] = now.Add(i.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// Verify checks a token and returns its "sub" claim.
func (i *Issuer) Verify(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	uid, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return uid, nil
}
