package models

import (
	"time"
)

// DefaultSubject is shown for messages that arrive without a subject line
const DefaultSubject = "(No Subject)"

// Participant is one side of a message (sender or recipient)
type Participant struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Attachment describes a file attached to a fully fetched message
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"` // bytes
	DownloadURL string `json:"download_url,omitempty"`
}

// Message represents an email from any disposable mail provider (Mail.tm, Guerrilla, etc.)
// A list fetch produces a summary: Text, HTML and Attachments stay empty until
// the message is fetched individually, which also marks it read.
type Message struct {
	ID             string        `json:"id"`
	From           Participant   `json:"from"`
	To             []Participant `json:"to"`
	Subject        string        `json:"subject"`
	Intro          string        `json:"intro,omitempty"`
	Text           string        `json:"text"`
	HTML           string        `json:"html"`
	HasAttachments bool          `json:"has_attachments"`
	Attachments    []Attachment  `json:"attachments"`
	CreatedAt      time.Time     `json:"created_at"`
	IsRead         bool          `json:"is_read"`
	Provider       ProviderKind  `json:"provider"`
}

// SubjectOrDefault returns s, or DefaultSubject when s is empty
func SubjectOrDefault(s string) string {
	if s == "" {
		return DefaultSubject
	}
	return s
}

// Domain is a candidate address suffix offered by an account-based provider
type Domain struct {
	Domain   string `json:"domain"`
	IsActive bool   `json:"is_active"`
}
