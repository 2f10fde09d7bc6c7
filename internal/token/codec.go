// Package token packs and unpacks the signed session-bearing token.
//
// The token is a carrier, not the source of truth: it embeds the opaque
// session identifier that must still resolve to a live session record
// before any access is granted.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ErrTokenInvalid covers malformed, unsigned, tampered, and expired tokens.
var ErrTokenInvalid = errors.New("token invalid")

const keyInfo = "taskdeck session token signing key"

// Claims is the closed claims schema. SessionToken carries the opaque
// session identifier; Subject carries the principal id.
type Claims struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Picture      string `json:"picture,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs with a key derived from (secret, salt). Decoding tries the
// primary salt and then exactly one alternate salt; the two salts match the
// two accepted cookie names across deployment environments.
type Codec struct {
	primaryKey   []byte
	alternateKey []byte
}

func NewCodec(secret, primarySalt, alternateSalt string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token: signing secret is required")
	}
	if primarySalt == "" || alternateSalt == "" {
		return nil, fmt.Errorf("token: both salts are required")
	}

	primaryKey, err := deriveKey(secret, primarySalt)
	if err != nil {
		return nil, err
	}
	alternateKey, err := deriveKey(secret, alternateSalt)
	if err != nil {
		return nil, err
	}

	return &Codec{
		primaryKey:   primaryKey,
		alternateKey: alternateKey,
	}, nil
}

// Encode signs the claims with the primary-salt key.
func (c *Codec) Encode(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.primaryKey)
	if err != nil {
		return "", fmt.Errorf("token: sign failed: %w", err)
	}
	return signed, nil
}

// Decode verifies signature, structure, and the token's own expiry.
// Primary salt first, then the alternate; exactly two attempts.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims, err := c.decodeWithKey(raw, c.primaryKey)
	if err == nil {
		return claims, nil
	}

	claims, err = c.decodeWithKey(raw, c.alternateKey)
	if err == nil {
		return claims, nil
	}

	return nil, ErrTokenInvalid
}

func (c *Codec) decodeWithKey(raw string, key []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return key, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func deriveKey(secret, salt string) ([]byte, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(keyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("token: key derivation failed: %w", err)
	}
	return key, nil
}
