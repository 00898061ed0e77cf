package models

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind selects which remote API backs a session
type ProviderKind string

const (
	// ProviderMailTM is the account-based, bearer-token provider
	ProviderMailTM ProviderKind = "mailtm"
	// ProviderGuerrilla is the session-token AJAX provider
	ProviderGuerrilla ProviderKind = "guerrilla"
)

// ProviderKinds lists every supported provider in display order
var ProviderKinds = []ProviderKind{ProviderMailTM, ProviderGuerrilla}

// ParseProviderKind maps a configuration string onto a ProviderKind
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderMailTM:
		return ProviderMailTM, nil
	case ProviderGuerrilla:
		return ProviderGuerrilla, nil
	}
	return "", fmt.Errorf("unknown provider %q (want %q or %q)", s, ProviderMailTM, ProviderGuerrilla)
}

func (k ProviderKind) String() string {
	return string(k)
}

// EmailAddress is a generated disposable address. It is never mutated:
// regeneration replaces it wholesale.
type EmailAddress struct {
	Address   string       `json:"address"`
	Username  string       `json:"username"`
	Domain    string       `json:"domain"`
	Provider  ProviderKind `json:"provider"`
	CreatedAt time.Time    `json:"created_at"`
}

// ParseEmailAddress derives an EmailAddress from the raw address a provider returned
func ParseEmailAddress(raw string, provider ProviderKind, now time.Time) (EmailAddress, error) {
	address := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return EmailAddress{}, fmt.Errorf("malformed address %q", raw)
	}

	return EmailAddress{
		Address:   address,
		Username:  address[:at],
		Domain:    address[at+1:],
		Provider:  provider,
		CreatedAt: now,
	}, nil
}

// ProviderSession holds the credential obtained from one provider.
// Token is a bearer token for Mail.tm and a sid_token for Guerrilla.
type ProviderSession struct {
	Token           string        `json:"-"`
	AccountID       string        `json:"account_id,omitempty"`
	EmailAddress    *EmailAddress `json:"email_address,omitempty"`
	IsAuthenticated bool          `json:"is_authenticated"`
}

// NewProviderSession builds an authenticated session; it stays unauthenticated
// when token is empty.
func NewProviderSession(token, accountID string, address EmailAddress) ProviderSession {
	return ProviderSession{
		Token:           token,
		AccountID:       accountID,
		EmailAddress:    &address,
		IsAuthenticated: token != "",
	}
}
