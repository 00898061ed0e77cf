package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stoik/tempmail/services/tempmail/internal/provider"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := newError(KindRemoteRequestFailed, errors.New("dial tcp: refused"))

	assert.ErrorIs(t, err, ErrRemoteRequestFailed)
	assert.NotErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrRemoteRequestFailed)
}

func TestError_MessageFromProvider(t *testing.T) {
	cause := fmt.Errorf("failed to get token: %w", &provider.APIError{Status: 401, Message: "Invalid credentials."})

	err := newError(KindAuthenticationFailed, cause)

	assert.Equal(t, "Invalid credentials.", err.Message)
	assert.Equal(t, "authentication_failed: Invalid credentials.", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_DefaultMessage(t *testing.T) {
	assert.Equal(t, "not_authenticated: not authenticated", newError(KindNotAuthenticated, nil).Error())
	assert.Equal(t, "no_domains_available: no domains available, please try again later", ErrNoDomainsAvailable.Error())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "no_domains_available", KindNoDomainsAvailable.String())
	assert.Equal(t, "authentication_failed", KindAuthenticationFailed.String())
	assert.Equal(t, "not_authenticated", KindNotAuthenticated.String())
	assert.Equal(t, "remote_request_failed", KindRemoteRequestFailed.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
