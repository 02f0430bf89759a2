package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verification failures are typed so the caller can log the real cause
// while returning a content-free rejection to the peer.
var (
	ErrMalformed     = errors.New("token malformed")
	ErrBadSignature  = errors.New("token signature mismatch")
	ErrExpired       = errors.New("token expired")
	ErrNotYetValid   = errors.New("token issued in the future")
	ErrScopeMismatch = errors.New("token scope mismatch")
)

// Claims is the payload carried inside a capability token.
type Claims struct {
	TenantID  string `json:"tid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Scope     string `json:"scope,omitempty"`
}

// Authority mints and verifies short-lived HMAC-signed capability tokens.
// Tokens are stateless; validity is a function of content and current time.
type Authority struct {
	secret     []byte
	defaultTTL time.Duration
	skew       time.Duration
	now        func() time.Time
}

// NewAuthority creates an Authority. A small fixed clock-skew allowance is
// applied on verification so the minting process and the bridge do not have
// to share a clock exactly.
func NewAuthority(secret string, defaultTTL time.Duration) (*Authority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = 90 * time.Second
	}
	return &Authority{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		skew:       30 * time.Second,
		now:        time.Now,
	}, nil
}

// Issue mints a token for tenantID. A non-positive ttl uses the default.
// An empty scope yields a token any control endpoint accepts.
func (a *Authority) Issue(tenantID string, ttl time.Duration, scope string) (string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", errors.New("tenant id is required")
	}
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	now := a.now().UTC()
	claims := Claims{
		TenantID:  tenantID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Scope:     scope,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + a.sign(encoded), nil
}

// Verify checks the tag, expiry, and scope of a presented token. It never
// panics on attacker-controlled input; every failure is a typed error.
func (a *Authority) Verify(tok, expectedScope string) (Claims, error) {
	payload, tag, ok := strings.Cut(tok, ".")
	if !ok || payload == "" || tag == "" {
		return Claims{}, ErrMalformed
	}

	// Constant-time tag comparison before anything is decoded.
	if !hmac.Equal([]byte(tag), []byte(a.sign(payload))) {
		return Claims{}, ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	if claims.TenantID == "" || claims.IssuedAt == 0 || claims.ExpiresAt == 0 {
		return Claims{}, ErrMalformed
	}

	now := a.now().UTC()
	if now.Unix() > claims.ExpiresAt+int64(a.skew.Seconds()) {
		return Claims{}, ErrExpired
	}
	if claims.IssuedAt > now.Unix()+int64(a.skew.Seconds()) {
		return Claims{}, ErrNotYetValid
	}
	if expectedScope != "" && claims.Scope != "" && claims.Scope != expectedScope {
		return Claims{}, ErrScopeMismatch
	}
	return claims, nil
}

func (a *Authority) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
