package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/config"
)

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"Invalid credentials."}`, "Invalid credentials."},
		{"detail", `{"detail":"Too many requests"}`, "Too many requests"},
		{"hydra", `{"hydra:description":"address: This value is already used."}`, "address: This value is already used."},
		{"error", `{"error":"invalid sid_token"}`, "invalid sid_token"},
		{"plain text", `slow down`, "slow down"},
		{"html", `<html><body>oops</body></html>`, http.StatusText(http.StatusTooManyRequests)},
		{"empty", ``, http.StatusText(http.StatusTooManyRequests)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(http.StatusTooManyRequests, []byte(tt.body))
			assert.Equal(t, tt.want, err.Message)
			assert.Equal(t, http.StatusTooManyRequests, err.Status)
		})
	}
}

func TestMessage(t *testing.T) {
	wrapped := &APIError{Status: 500, Message: "boom"}
	assert.Equal(t, "boom", Message(errors.Join(errors.New("context"), wrapped)))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := newClient(models.ProviderMailTM, Options{BaseURL: ts.URL, Timeout: 20 * time.Millisecond})
	err := c.do(context.Background(), http.MethodGet, ts.URL, nil, nil, nil)

	assert.Error(t, err)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := newClient(models.ProviderGuerrilla, Options{BaseURL: ts.URL, RateLimit: 0.01, Burst: 1})
	require.NoError(t, c.do(context.Background(), http.MethodGet, ts.URL, nil, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.do(ctx, http.MethodGet, ts.URL, nil, nil, nil)

	assert.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	providers := NewProviders(config.ProviderConfig{
		Timeout:   time.Second,
		MailTM:    config.MailTMConfig{APIURL: "http://mailtm.local"},
		Guerrilla: config.GuerrillaConfig{APIURL: "http://guerrilla.local/ajax.php"},
	})

	require.Len(t, providers, 2)
	assert.Equal(t, models.ProviderMailTM, providers[0].Kind())
	assert.Equal(t, models.ProviderGuerrilla, providers[1].Kind())

	_, ok := providers[0].(DomainLister)
	assert.True(t, ok)
	_, ok = providers[1].(DomainLister)
	assert.False(t, ok)
}
