// Package token issues and verifies the signed bearer tokens used by the API.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

// Version is the claim-set version written into every token.
const Version = 1

const BearerType = "bearer"

// ErrInvalidToken is the only error Verify returns. It deliberately does not say
// whether the signature, structure or expiry was at fault.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by every token.
type Claims struct {
	Type    Type     `json:"type"`
	Scopes  []string `json:"scopes,omitempty"`
	Version int      `json:"ver"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q is not a user id", c.Subject)
	}
	return id, nil
}

// Pair is what login and refresh return to clients.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Manager struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now, for issuing and verifying at a chosen instant.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access tokens must expire before refresh tokens")
	}

	m := &Manager{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// DefaultTTL returns the lifetime used when Issue is called without one.
func (m *Manager) DefaultTTL(typ Type) (time.Duration, error) {
	switch typ {
	case Access:
		return m.accessTTL, nil
	case Refresh:
		return m.refreshTTL, nil
	default:
		return 0, fmt.Errorf("unknown token type %q", typ)
	}
}

// Issue signs a token for subject. A non-positive ttl selects the type's default lifetime.
func (m *Manager) Issue(subject string, typ Type, ttl time.Duration, scopes ...string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		var err error
		if ttl, err = m.DefaultTTL(typ); err != nil {
			return "", err
		}
	} else if _, err := m.DefaultTTL(typ); err != nil {
		return "", err
	}

	now := m.now().UTC()
	claims := Claims{
		Type:    typ,
		Version: Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if len(scopes) > 0 {
		claims.Scopes = append([]string(nil), scopes...)
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssuePair issues an access token and a refresh token for subject.
func (m *Manager) IssuePair(subject string, scopes ...string) (*Pair, error) {
	access, err := m.Issue(subject, Access, 0, scopes...)
	if err != nil {
		return nil, err
	}
	refresh, err := m.Issue(subject, Refresh, 0, scopes...)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh, TokenType: BearerType}, nil
}

// Verify checks signature, algorithm and expiry together and returns the claims.
// Segments must be canonical base64url, so no character of a token can change unnoticed.
// Every failure yields ErrInvalidToken.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Version < 1 || claims.Version > Version {
		return nil, ErrInvalidToken
	}
	if claims.Type != Access && claims.Type != Refresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
