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

// DefaultGuerrillaURL is the public Guerrilla Mail AJAX endpoint
const DefaultGuerrillaURL = "https://api.guerrillamail.com/ajax.php"

// GuerrillaProvider implements the Provider interface for the Guerrilla Mail AJAX API
type GuerrillaProvider struct {
	*client
	ip    string
	agent string
}

// NewGuerrilla creates a new Guerrilla Mail client
func NewGuerrilla(opts Options, ip, agent string) *GuerrillaProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGuerrillaURL
	}
	if ip == "" {
		ip = "127.0.0.1"
	}
	if agent == "" {
		agent = "desktop"
	}
	return &GuerrillaProvider{
		client: newClient(models.ProviderGuerrilla, opts),
		ip:     ip,
		agent:  agent,
	}
}

type guerrillaSession struct {
	EmailAddr string `json:"email_addr"`
	SIDToken  string `json:"sid_token"`
}

type guerrillaAttachment struct {
	ID          flexString `json:"attachment_id"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	Size        flexInt    `json:"size"`
	DownloadURL string     `json:"download_url"`
}

type guerrillaMessage struct {
	ID          flexString            `json:"mail_id"`
	From        string                `json:"mail_from"`
	Recipient   string                `json:"mail_recipient"`
	Subject     string                `json:"mail_subject"`
	Excerpt     string                `json:"mail_excerpt"`
	Body        string                `json:"mail_body"`
	Timestamp   flexInt               `json:"mail_timestamp"`
	Read        flexInt               `json:"mail_read"`
	AttCount    flexInt               `json:"att_count"`
	Attachments []guerrillaAttachment `json:"attachments"`
}

type guerrillaList struct {
	List []guerrillaMessage `json:"list"`
}

// Kind implements Provider.Kind
func (g *GuerrillaProvider) Kind() models.ProviderKind {
	return models.ProviderGuerrilla
}

// Authenticate implements Provider.Authenticate for Guerrilla: open a session,
// then rename the mailbox when a username was requested. domain is ignored.
func (g *GuerrillaProvider) Authenticate(ctx context.Context, username, _ string) (Credentials, error) {
	var session guerrillaSession
	err := g.call(ctx, url.Values{
		"f":     {"get_email_address"},
		"ip":    {g.ip},
		"agent": {g.agent},
	}, &session)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to initialize session: %w", err)
	}
	if session.SIDToken == "" {
		return Credentials{}, errors.New("failed to initialize session: empty sid_token")
	}

	creds := Credentials{Token: session.SIDToken, Address: session.EmailAddr}
	if username == "" {
		return creds, nil
	}

	var renamed guerrillaSession
	err = g.call(ctx, url.Values{
		"f":          {"set_email_user"},
		"email_user": {username},
		"sid_token":  {creds.Token},
	}, &renamed)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to set email user: %w", err)
	}
	if renamed.EmailAddr != "" {
		creds.Address = renamed.EmailAddr
	}
	if renamed.SIDToken != "" {
		creds.Token = renamed.SIDToken
	}

	return creds, nil
}

// ListMessages implements Provider.ListMessages for Guerrilla
func (g *GuerrillaProvider) ListMessages(ctx context.Context, token string) ([]models.Message, error) {
	var list guerrillaList
	err := g.call(ctx, url.Values{
		"f":         {"get_email_list"},
		"sid_token": {token},
		"offset":    {"0"},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]models.Message, 0, len(list.List))
	for _, raw := range list.List {
		messages = append(messages, g.summary(raw))
	}
	return messages, nil
}

// GetMessage implements Provider.GetMessage for Guerrilla. Fetching marks the
// message read remotely, so no separate call is needed.
func (g *GuerrillaProvider) GetMessage(ctx context.Context, token, id string) (*models.Message, error) {
	var raw guerrillaMessage
	err := g.call(ctx, url.Values{
		"f":         {"fetch_email"},
		"sid_token": {token},
		"email_id":  {id},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if raw.ID == "" {
		return nil, &APIError{Status: http.StatusNotFound, Message: "message not found"}
	}

	msg := g.summary(raw)
	msg.Text = raw.Body
	msg.HTML = raw.Body
	msg.IsRead = true
	for _, a := range raw.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			ID:          string(a.ID),
			Filename:    a.Name,
			ContentType: a.ContentType,
			Size:        int64(a.Size),
			DownloadURL: a.DownloadURL,
		})
	}
	msg.HasAttachments = len(msg.Attachments) > 0

	return &msg, nil
}

// DeleteMessage implements Provider.DeleteMessage for Guerrilla
func (g *GuerrillaProvider) DeleteMessage(ctx context.Context, token, id string) error {
	err := g.call(ctx, url.Values{
		"f":           {"del_email"},
		"sid_token":   {token},
		"email_ids[]": {id},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (g *GuerrillaProvider) call(ctx context.Context, params url.Values, out any) error {
	return g.do(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil, nil, out)
}

func (g *GuerrillaProvider) summary(raw guerrillaMessage) models.Message {
	name, _, _ := strings.Cut(raw.From, "@")

	return models.Message{
		ID:             string(raw.ID),
		From:           models.Participant{Address: raw.From, Name: name},
		To:             []models.Participant{{Address: raw.Recipient}},
		Subject:        models.SubjectOrDefault(raw.Subject),
		Intro:          raw.Excerpt,
		HasAttachments: raw.AttCount > 0,
		Attachments:    []models.Attachment{},
		CreatedAt:      time.Unix(int64(raw.Timestamp), 0).UTC(),
		IsRead:         raw.Read == 1,
		Provider:       models.ProviderGuerrilla,
	}
}
