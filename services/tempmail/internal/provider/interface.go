package provider

import (
	"context"
	"errors"

	"github.com/stoik/tempmail/internal/models"
)

// ErrAccountExists is returned by account registration when the address is taken
var ErrAccountExists = errors.New("account already exists")

// Credentials is what a successful authentication yields
type Credentials struct {
	Token     string
	AccountID string
	Address   string
}

// Provider defines the interface for disposable mail provider clients (Mail.tm, Guerrilla, etc.)
type Provider interface {
	// Kind identifies the provider
	Kind() models.ProviderKind

	// Authenticate obtains a fresh mailbox. username may be empty, in which case
	// the provider picks one. domain is ignored by providers that do not offer a choice.
	Authenticate(ctx context.Context, username, domain string) (Credentials, error)

	// ListMessages returns message summaries for the mailbox behind token
	ListMessages(ctx context.Context, token string) ([]models.Message, error)

	// GetMessage returns the full message and marks it read on the remote side
	GetMessage(ctx context.Context, token, id string) (*models.Message, error)

	// DeleteMessage removes a message from the mailbox
	DeleteMessage(ctx context.Context, token, id string) error
}

// DomainLister is implemented by providers that require the caller to pick an address suffix
type DomainLister interface {
	Domains(ctx context.Context) ([]models.Domain, error)
}
