package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/tempmail/internal/mock"
	"github.com/stoik/tempmail/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newMockBackend(t *testing.T) (*mock.Server, *httptest.Server) {
	t.Helper()
	backend := mock.NewServer()
	ts := httptest.NewServer(backend.Router())
	t.Cleanup(ts.Close)
	return backend, ts
}

func TestMailTM_Domains(t *testing.T) {
	_, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	domains, err := p.Domains(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.Domain{
		{Domain: "mailsac.test", IsActive: true},
		{Domain: "inbox.test", IsActive: true},
	}, domains)
}

func TestMailTM_Authenticate(t *testing.T) {
	_, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	creds, err := p.Authenticate(context.Background(), "Alice", "mailsac.test")

	require.NoError(t, err)
	assert.Equal(t, "alice@mailsac.test", creds.Address)
	assert.NotEmpty(t, creds.Token)
	assert.NotEmpty(t, creds.AccountID)
}

func TestMailTM_AuthenticateRandomUsername(t *testing.T) {
	_, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	creds, err := p.Authenticate(context.Background(), "", "inbox.test")

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-z]{7}@inbox\.test$`), creds.Address)
}

func TestMailTM_AuthenticateExistingAccountLogsIn(t *testing.T) {
	for name, password := range map[string]string{
		"configured password": "s3cret-pass",
		"random password":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, ts := newMockBackend(t)
			p := NewMailTM(Options{BaseURL: ts.URL}, password)
			ctx := context.Background()

			first, err := p.Authenticate(ctx, "bob", "mailsac.test")
			require.NoError(t, err)

			second, err := p.Authenticate(ctx, "bob", "mailsac.test")
			require.NoError(t, err)
			assert.Equal(t, first.Address, second.Address)
			assert.Equal(t, first.AccountID, second.AccountID)
			assert.NotEqual(t, first.Token, second.Token)
		})
	}
}

func TestMailTM_AuthenticateInvalidAddress(t *testing.T) {
	_, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	_, err := p.Authenticate(context.Background(), "bob", "notoffered.test")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccountExists)
	assert.Equal(t, "address: This value is not valid.", Message(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestMailTM_AuthenticateExistingAccountWrongPassword(t *testing.T) {
	_, ts := newMockBackend(t)
	ctx := context.Background()

	_, err := NewMailTM(Options{BaseURL: ts.URL}, "first-password").Authenticate(ctx, "carol", "mailsac.test")
	require.NoError(t, err)

	_, err = NewMailTM(Options{BaseURL: ts.URL}, "other-password").Authenticate(ctx, "carol", "mailsac.test")

	require.Error(t, err)
	assert.Equal(t, "Invalid credentials.", Message(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestMailTM_AuthenticateRequiresDomain(t *testing.T) {
	p := NewMailTM(Options{BaseURL: "http://127.0.0.1:1"}, "")

	_, err := p.Authenticate(context.Background(), "dave", "")

	assert.Error(t, err)
}

func TestMailTM_MessageLifecycle(t *testing.T) {
	backend, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")
	ctx := context.Background()

	creds, err := p.Authenticate(ctx, "erin", "mailsac.test")
	require.NoError(t, err)

	delivered, err := backend.Deliver(mock.Message{
		From:     "sender@example.com",
		FromName: "Sender",
		To:       creds.Address,
		Subject:  "Invoice",
		Text:     "Please find attached",
		HTML:     "<p>Please find attached</p>",
		Attachments: []mock.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Content: "%PDF-1.4"},
		},
	})
	require.NoError(t, err)

	list, err := p.ListMessages(ctx, creds.Token)
	require.NoError(t, err)
	require.Len(t, list, 1)
	summary := list[0]
	assert.Equal(t, delivered.ID, summary.ID)
	assert.Equal(t, models.Participant{Address: "sender@example.com", Name: "Sender"}, summary.From)
	assert.Equal(t, "Invoice", summary.Subject)
	assert.True(t, summary.HasAttachments)
	assert.False(t, summary.IsRead)
	assert.Empty(t, summary.Text)
	assert.Empty(t, summary.Attachments)
	assert.Equal(t, models.ProviderMailTM, summary.Provider)

	full, err := p.GetMessage(ctx, creds.Token, delivered.ID)
	require.NoError(t, err)
	assert.Equal(t, "Please find attached", full.Text)
	assert.Equal(t, "<p>Please find attached</p>", full.HTML)
	assert.True(t, full.IsRead)
	require.Len(t, full.Attachments, 1)
	assert.Equal(t, "invoice.pdf", full.Attachments[0].Filename)
	assert.Equal(t, int64(len("%PDF-1.4")), full.Attachments[0].Size)
	assert.Equal(t, ts.URL+"/messages/"+delivered.ID+"/attachment/ATTACH000001", full.Attachments[0].DownloadURL)

	box := backend.Mailbox(creds.Address)
	require.Len(t, box, 1)
	assert.True(t, box[0].Seen)

	require.NoError(t, p.DeleteMessage(ctx, creds.Token, delivered.ID))
	assert.Empty(t, backend.Mailbox(creds.Address))
}

func TestMailTM_ListRequiresToken(t *testing.T) {
	_, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	_, err := p.ListMessages(context.Background(), "bogus")

	require.Error(t, err)
	assert.Equal(t, "Invalid JWT Token", Message(err))
}

func TestMailTM_DeleteFailure(t *testing.T) {
	backend, ts := newMockBackend(t)
	p := NewMailTM(Options{BaseURL: ts.URL}, "")
	ctx := context.Background()

	creds, err := p.Authenticate(ctx, "frank", "mailsac.test")
	require.NoError(t, err)
	msg, err := backend.Deliver(mock.Message{From: "x@example.com", To: creds.Address})
	require.NoError(t, err)
	backend.FailDeletes(msg.ID)

	err = p.DeleteMessage(ctx, creds.Token, msg.ID)

	assert.Error(t, err)
	assert.Len(t, backend.Mailbox(creds.Address), 1)
}

func TestMailTM_MissingMemberIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/ld+json")
		_, _ = w.Write([]byte(`{"hydra:totalItems":0}`))
	}))
	defer ts.Close()
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	list, err := p.ListMessages(context.Background(), "token")

	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestMailTM_GetMessageDefaults(t *testing.T) {
	patched := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{
				"id": "m1",
				"from": {"address": "a@example.com", "name": ""},
				"to": [{"address": "me@mailsac.test", "name": ""}],
				"subject": "",
				"text": "plain body",
				"html": [],
				"createdAt": "2024-01-02T03:04:05+00:00"
			}`))
		case http.MethodPatch:
			patched = true
			assert.Equal(t, "application/merge-patch+json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()
	p := NewMailTM(Options{BaseURL: ts.URL}, "")

	msg, err := p.GetMessage(context.Background(), "token", "m1")

	require.NoError(t, err)
	assert.True(t, patched)
	assert.Equal(t, models.DefaultSubject, msg.Subject)
	assert.Equal(t, "plain body", msg.HTML)
	assert.True(t, msg.IsRead)
	assert.Equal(t, 2024, msg.CreatedAt.Year())
}
