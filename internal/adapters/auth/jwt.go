package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 12 * time.Hour

// minSecretLength bounds HMAC secrets.
const minSecretLength = 16

const issuer = "taskmon"

// ErrInvalidToken reports a missing, malformed, expired, or forged bearer token.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor identity inside a signed token.
type Claims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokens constructs a token service. The secret must be at least 16 bytes.
func NewTokens(secret string, ttl time.Duration, clock func() time.Time) (*Tokens, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue signs a token for user and returns it with its expiry.
func (t *Tokens) Issue(user domain.User) (string, time.Time, error) {
	now := t.clock().UTC()
	expires := now.Add(t.ttl)
	claims := Claims{
		Username:   user.Username,
		Role:       string(user.Role),
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies raw and returns the actor it names.
func (t *Tokens) Parse(raw string) (app.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return app.Actor{}, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock),
	)
	if err != nil || !token.Valid {
		return app.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role := domain.NormalizeRole(claims.Role)
	if claims.Subject == "" || !domain.IsValidRole(role) {
		return app.Actor{}, ErrInvalidToken
	}
	return app.Actor{
		UserID:     claims.Subject,
		Username:   claims.Username,
		Role:       role,
		Department: claims.Department,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
