package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
)

func TestNewAuthenticator_Validation(t *testing.T) {
	_, err := NewAuthenticator("", []byte("k"), time.Hour, nil)
	assert.Error(t, err)
	_, err = NewAuthenticator("pw", nil, time.Hour, nil)
	assert.Error(t, err)
	_, err = NewAuthenticator("pw", []byte("k"), 0, nil)
	assert.Error(t, err)
}

func TestAuthenticator_LoginAndVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := &clock.MockClock{CurrentTime: now}
	a, err := NewAuthenticator("pw", []byte("key"), 30*time.Minute, clk)
	require.NoError(t, err)

	_, _, err = a.Login("")
	assert.ErrorIs(t, err, ErrPasswordRequired)
	_, _, err = a.Login("wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	token, exp, err := a.Login("pw")
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), exp)
	assert.NoError(t, a.Verify(token))

	clk.Advance(31 * time.Minute)
	assert.ErrorIs(t, a.Verify(token), ErrInvalidToken)
}

func TestAuthenticator_RejectsForeignTokens(t *testing.T) {
	clk := &clock.MockClock{CurrentTime: time.Now()}
	a, err := NewAuthenticator("pw", []byte("key"), time.Hour, clk)
	require.NoError(t, err)
	exp := jwt.NewNumericDate(clk.Now().Add(time.Hour))

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: tokenSubject, ExpiresAt: exp}).
		SignedString([]byte("other-key"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.Verify(other), ErrInvalidToken, "wrong key")

	wrongSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "guest", ExpiresAt: exp}).
		SignedString([]byte("key"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.Verify(wrongSub), ErrInvalidToken, "wrong subject")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: tokenSubject}).
		SignedString([]byte("key"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.Verify(noExp), ErrInvalidToken, "no expiry")

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: tokenSubject, ExpiresAt: exp}).
		SignedString([]byte("key"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.Verify(hs512), ErrInvalidToken, "algorithm not allowed")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: tokenSubject, ExpiresAt: exp}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Verify(none), ErrInvalidToken, "unsigned")
}
