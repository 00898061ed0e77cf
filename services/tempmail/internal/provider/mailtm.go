package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stoik/tempmail/internal/models"
)

// DefaultMailTMURL is the public Mail.tm API
const DefaultMailTMURL = "https://api.mail.tm"

// MailTMProvider implements the Provider interface for the Mail.tm account API
type MailTMProvider struct {
	*client
	password string
}

// NewMailTM creates a new Mail.tm client. An empty password is replaced by a
// random one shared by every account this provider creates, so an existing
// address can still be logged into.
func NewMailTM(opts Options, password string) *MailTMProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMailTMURL
	}
	if password == "" {
		password = randomPassword()
	}
	return &MailTMProvider{
		client:   newClient(models.ProviderMailTM, opts),
		password: password,
	}
}

type mailtmDomain struct {
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

type mailtmParticipant struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type mailtmAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type mailtmMessage struct {
	ID             string              `json:"id"`
	From           mailtmParticipant   `json:"from"`
	To             []mailtmParticipant `json:"to"`
	Subject        string              `json:"subject"`
	Intro          string              `json:"intro"`
	Seen           bool                `json:"seen"`
	HasAttachments bool                `json:"hasAttachments"`
	CreatedAt      time.Time           `json:"createdAt"`
	Text           string              `json:"text"`
	HTML           mailtmHTML          `json:"html"`
	Attachments    []mailtmAttachment  `json:"attachments"`
}

type mailtmAccount struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type mailtmToken struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type mailtmCredentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// hydra collections wrap their items in "hydra:member"
type mailtmCollection[T any] struct {
	Members []T `json:"hydra:member"`
}

// Kind implements Provider.Kind
func (m *MailTMProvider) Kind() models.ProviderKind {
	return models.ProviderMailTM
}

// Domains implements DomainLister.Domains for Mail.tm
func (m *MailTMProvider) Domains(ctx context.Context) ([]models.Domain, error) {
	var page mailtmCollection[mailtmDomain]
	if err := m.do(ctx, http.MethodGet, m.baseURL+"/domains", nil, ldJSON(""), &page); err != nil {
		return nil, fmt.Errorf("failed to get domains: %w", err)
	}

	domains := make([]models.Domain, 0, len(page.Members))
	for _, d := range page.Members {
		domains = append(domains, models.Domain{Domain: d.Domain, IsActive: d.IsActive})
	}
	return domains, nil
}

// Authenticate implements Provider.Authenticate for Mail.tm: register the
// account, then exchange the credentials for a bearer token. An address that
// already exists is logged into instead.
func (m *MailTMProvider) Authenticate(ctx context.Context, username, domain string) (Credentials, error) {
	if domain == "" {
		return Credentials{}, errors.New("mail.tm requires a domain")
	}
	if username == "" {
		username = RandomUsername()
	}
	creds := mailtmCredentials{
		Address:  strings.ToLower(username + "@" + domain),
		Password: m.password,
	}

	accountID := ""
	account, err := m.register(ctx, creds)
	switch {
	case err == nil:
		accountID = account.ID
		creds.Address = account.Address
	case errors.Is(err, ErrAccountExists):
		m.log.WithField("address", creds.Address).Info("Account already exists, logging in instead")
	default:
		return Credentials{}, err
	}

	var token mailtmToken
	if err := m.do(ctx, http.MethodPost, m.baseURL+"/token", creds, nil, &token); err != nil {
		return Credentials{}, fmt.Errorf("failed to get token: %w", err)
	}
	if token.Token == "" {
		return Credentials{}, errors.New("failed to get token: empty token")
	}
	if accountID == "" {
		accountID = token.ID
	}

	return Credentials{Token: token.Token, AccountID: accountID, Address: creds.Address}, nil
}

func (m *MailTMProvider) register(ctx context.Context, creds mailtmCredentials) (mailtmAccount, error) {
	var account mailtmAccount
	err := m.do(ctx, http.MethodPost, m.baseURL+"/accounts", creds, nil, &account)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity &&
			strings.Contains(apiErr.Message, "already used") {
			return account, ErrAccountExists
		}
		return account, fmt.Errorf("failed to create account: %w", err)
	}
	if account.Address == "" {
		account.Address = creds.Address
	}
	return account, nil
}

// ListMessages implements Provider.ListMessages for Mail.tm
func (m *MailTMProvider) ListMessages(ctx context.Context, token string) ([]models.Message, error) {
	var page mailtmCollection[mailtmMessage]
	if err := m.do(ctx, http.MethodGet, m.baseURL+"/messages", nil, ldJSON(token), &page); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]models.Message, 0, len(page.Members))
	for _, raw := range page.Members {
		messages = append(messages, m.summary(raw))
	}
	return messages, nil
}

// GetMessage implements Provider.GetMessage for Mail.tm
func (m *MailTMProvider) GetMessage(ctx context.Context, token, id string) (*models.Message, error) {
	messageURL := m.messageURL(id)

	var raw mailtmMessage
	if err := m.do(ctx, http.MethodGet, messageURL, nil, ldJSON(token), &raw); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	seen := ldJSON(token)
	seen.Set("Content-Type", "application/merge-patch+json")
	if err := m.do(ctx, http.MethodPatch, messageURL, map[string]bool{"seen": true}, seen, nil); err != nil {
		m.log.WithError(err).WithField("message_id", id).Warn("Failed to mark message as seen")
	}

	msg := m.summary(raw)
	msg.Text = raw.Text
	msg.HTML = raw.HTML.String()
	if msg.HTML == "" {
		msg.HTML = raw.Text
	}
	msg.IsRead = true
	for _, a := range raw.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			DownloadURL: fmt.Sprintf("%s/attachment/%s", messageURL, url.PathEscape(a.ID)),
		})
	}

	return &msg, nil
}

// DeleteMessage implements Provider.DeleteMessage for Mail.tm
func (m *MailTMProvider) DeleteMessage(ctx context.Context, token, id string) error {
	if err := m.do(ctx, http.MethodDelete, m.messageURL(id), nil, ldJSON(token), nil); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (m *MailTMProvider) messageURL(id string) string {
	return fmt.Sprintf("%s/messages/%s", m.baseURL, url.PathEscape(id))
}

func (m *MailTMProvider) summary(raw mailtmMessage) models.Message {
	to := make([]models.Participant, 0, len(raw.To))
	for _, r := range raw.To {
		to = append(to, models.Participant{Address: r.Address, Name: r.Name})
	}

	return models.Message{
		ID:             raw.ID,
		From:           models.Participant{Address: raw.From.Address, Name: raw.From.Name},
		To:             to,
		Subject:        models.SubjectOrDefault(raw.Subject),
		Intro:          raw.Intro,
		HasAttachments: raw.HasAttachments,
		Attachments:    []models.Attachment{},
		CreatedAt:      raw.CreatedAt,
		IsRead:         raw.Seen,
		Provider:       models.ProviderMailTM,
	}
}

func ldJSON(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/ld+json")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
