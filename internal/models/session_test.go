package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailAddress(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	addr, err := ParseEmailAddress(" Alice@Mailsac.TEST ", ProviderMailTM, now)

	require.NoError(t, err)
	assert.Equal(t, EmailAddress{
		Address:   "alice@mailsac.test",
		Username:  "alice",
		Domain:    "mailsac.test",
		Provider:  ProviderMailTM,
		CreatedAt: now,
	}, addr)
}

func TestParseEmailAddress_SplitsOnLastAt(t *testing.T) {
	addr, err := ParseEmailAddress(`"a@b"@example.com`, ProviderGuerrilla, time.Now())

	require.NoError(t, err)
	assert.Equal(t, `"a@b"`, addr.Username)
	assert.Equal(t, "example.com", addr.Domain)
}

func TestParseEmailAddress_Malformed(t *testing.T) {
	for _, raw := range []string{"", "alice", "@mailsac.test", "alice@"} {
		_, err := ParseEmailAddress(raw, ProviderMailTM, time.Now())
		assert.Error(t, err, raw)
	}
}

func TestParseProviderKind(t *testing.T) {
	kind, err := ParseProviderKind(" Guerrilla ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGuerrilla, kind)

	kind, err = ParseProviderKind("mailtm")
	require.NoError(t, err)
	assert.Equal(t, ProviderMailTM, kind)

	_, err = ParseProviderKind("yopmail")
	assert.Error(t, err)
}

func TestNewProviderSession(t *testing.T) {
	addr := EmailAddress{Address: "a@b.test"}

	s := NewProviderSession("tok", "acc", addr)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "a@b.test", s.EmailAddress.Address)

	assert.False(t, NewProviderSession("", "", addr).IsAuthenticated)
}

func TestProviderSession_TokenNotSerialized(t *testing.T) {
	raw, err := json.Marshal(NewProviderSession("secret-token", "acc", EmailAddress{Address: "a@b.test"}))

	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")
}

func TestSubjectOrDefault(t *testing.T) {
	assert.Equal(t, DefaultSubject, SubjectOrDefault(""))
	assert.Equal(t, "Hi", SubjectOrDefault("Hi"))
}
