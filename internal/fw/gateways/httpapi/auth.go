package httpapi

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
)

// tokenSubject is the only principal; there is a single admin account.
const tokenSubject = "admin"

var (
	ErrPasswordRequired = errors.New("Password required")
	ErrInvalidPassword  = errors.New("Invalid password")
	ErrInvalidToken     = errors.New("Invalid credentials")
)

// Authenticator checks the admin password and issues HS256 bearer tokens.
type Authenticator struct {
	password []byte
	key      []byte
	ttl      time.Duration
	clock    clock.Clock
}

// NewAuthenticator returns an Authenticator. A nil clock uses wall time.
func NewAuthenticator(password string, key []byte, ttl time.Duration, clk clock.Clock) (*Authenticator, error) {
	if password == "" {
		return nil, errors.New("admin password is required")
	}
	if len(key) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Authenticator{password: []byte(password), key: key, ttl: ttl, clock: clk}, nil
}

// Login exchanges the admin password for a signed token and its expiry.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if password == "" {
		return "", time.Time{}, ErrPasswordRequired
	}
	if subtle.ConstantTimeCompare([]byte(password), a.password) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := a.clock.Now()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(a.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Truncate(time.Second), nil
}

// Verify checks a bearer token's signature, algorithm, subject and expiry.
func (a *Authenticator) Verify(raw string) error {
	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}
