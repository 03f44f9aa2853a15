package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NewError(ErrKindAliasNotFound, "alias %s not found", "KIDS")

	assert.True(t, errors.Is(err, ErrAliasNotFound))
	assert.False(t, errors.Is(err, ErrHostnameUnresolved))
	assert.Equal(t, "alias KIDS not found", err.Error())

	wrapped := fmt.Errorf("block: %w", err)
	assert.True(t, errors.Is(wrapped, ErrAliasNotFound))
	assert.Equal(t, ErrKindAliasNotFound, KindOf(wrapped))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrKindUpstreamUnavailable, cause, "GET %s", "/firewall/aliases")

	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "GET /firewall/aliases: connection refused", err.Error())
	assert.Nil(t, WrapError(ErrKindApplyFailed, nil, "unused"))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

func TestErrorKind_String(t *testing.T) {
	kinds := map[ErrorKind]string{
		ErrKindInvalidIdentifier:   "invalid_identifier",
		ErrKindAliasNotFound:       "alias_not_found",
		ErrKindHostnameUnresolved:  "hostname_unresolved",
		ErrKindBlockedSetMissing:   "blocked_set_missing",
		ErrKindApplyFailed:         "apply_failed",
		ErrKindUpstreamUnavailable: "upstream_unavailable",
		ErrKindValidation:          "validation",
		ErrKindNotFound:            "not_found",
		ErrKindUnknown:             "unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
	assert.Equal(t, "apply_failed", ErrApplyFailed.Error())
}
