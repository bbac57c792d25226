package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/gatekeeper/session"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names one of the HMAC algorithms the Manager can be pinned to.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "hs256"
	MethodHS384 SigningMethod = "hs384"
	MethodHS512 SigningMethod = "hs512"
)

// DefaultTTL is the token lifetime used when Issue is called with ttl <= 0.
const DefaultTTL = 24 * time.Hour

// MinSecretLength is the shortest accepted HMAC secret, in bytes.
const MinSecretLength = 32

var (
	// ErrExpiredToken is returned by Decode when now >= exp.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidToken covers every other decode failure.
	ErrInvalidToken = errors.New("token invalid")
)

// Config holds the signing configuration. It is fixed for the Manager's lifetime.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	DefaultTTL    time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies tokens with a single symmetric key.
//
// Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// Claims is the token payload: user_type, username, exp and jti.
// jti carries the ID of the session the token was issued for.
type Claims struct {
	UserType string `json:"user_type"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Role returns the decoded role.
func (c *Claims) Role() session.Role {
	return session.Role(c.UserType)
}

// SessionID returns the jti claim.
func (c *Claims) SessionID() string {
	return c.ID
}

// Key returns the registry key the token asserts.
func (c *Claims) Key() session.Key {
	return session.Key{Subject: c.Username, Role: c.Role()}
}

// NewManager validates cfg and returns a Manager pinned to cfg.SigningMethod.
// An empty SigningMethod selects hs256.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.SigningMethod = SigningMethod(strings.ToLower(string(cfg.SigningMethod)))

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodHS256:
		method = jwt.SigningMethodHS256
	case MethodHS384:
		method = jwt.SigningMethodHS384
	case MethodHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.DefaultTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg, method: method}, nil
}

// Issue signs a token for subject and role, bound to sessionID, that expires
// ttl from now. A non-positive ttl uses the configured default.
func (j *Manager) Issue(subject string, role session.Role, sessionID string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		ttl = j.config.DefaultTTL
	}

	claims := Claims{
		UserType: string(role),
		Username: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(j.config.Now().Add(ttl)),
		},
	}

	return jwt.NewWithClaims(j.method, claims).SignedString(j.config.Secret)
}

// Decode verifies signature, algorithm and expiry.
//
// It returns ErrExpiredToken for an otherwise valid token whose deadline has
// passed, and ErrInvalidToken (wrapping the parser's reason) for everything else.
func (j *Manager) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if !claims.Role().Valid() {
		return nil, fmt.Errorf("%w: unknown user_type %q", ErrInvalidToken, claims.UserType)
	}

	return claims, nil
}

// Method reports the algorithm the Manager is pinned to.
func (j *Manager) Method() SigningMethod {
	return j.config.SigningMethod
}
