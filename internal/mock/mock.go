package mock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	firstNames = []string{"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Eve", "Frank"}
	senders    = []string{"example.com", "company.com", "business.org", "enterprise.net"}
	subjects   = []string{
		"Confirm your account",
		"Your verification code",
		"Welcome aboard",
		"Password reset",
		"Order shipped",
		"Newsletter",
		"Urgent: Action required",
		"Follow up",
	}

	// ErrUnknownMailbox is returned by Deliver for addresses no provider owns
	ErrUnknownMailbox = errors.New("unknown mailbox")
)

// DefaultDomains are the Mail.tm style domains the mock offers
var DefaultDomains = []string{"mailsac.test", "inbox.test"}

// GuerrillaDomain is the single domain of Guerrilla style mailboxes
const GuerrillaDomain = "sharklasers.test"

// Attachment is a file carried by a mock message
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Message is a mock message as stored in a mailbox
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from" binding:"required"`
	FromName    string       `json:"from_name"`
	To          string       `json:"to" binding:"required"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	Seen        bool         `json:"seen"`
}

func (m *Message) intro() string {
	intro := strings.Join(strings.Fields(m.Text), " ")
	if len(intro) > 120 {
		intro = intro[:120]
	}
	return intro
}

type account struct {
	ID       string
	Address  string
	Password string
}

// Server emulates both disposable mail APIs in memory
type Server struct {
	mu        sync.RWMutex
	domains   []string
	accounts  map[string]*account   // by address
	tokens    map[string]string     // bearer token -> address
	sessions  map[string]string     // guerrilla sid_token -> address
	mailboxes map[string][]*Message // address -> messages, oldest first
	failing   map[string]bool       // message ids whose deletion fails
	seq       int64
}

// NewServer creates an empty mock offering domains (DefaultDomains when none given)
func NewServer(domains ...string) *Server {
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	return &Server{
		domains:   append([]string(nil), domains...),
		accounts:  make(map[string]*account),
		tokens:    make(map[string]string),
		sessions:  make(map[string]string),
		mailboxes: make(map[string][]*Message),
		failing:   make(map[string]bool),
		seq:       1000,
	}
}

// Router returns the gin engine serving both APIs and the admin endpoints
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}

// Register mounts every route on r
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Mail.tm style endpoints
	r.GET("/domains", s.handleMailTMDomains)
	r.POST("/accounts", s.handleMailTMCreateAccount)
	r.POST("/token", s.handleMailTMToken)
	messages := r.Group("/messages", s.requireBearer)
	{
		messages.GET("", s.handleMailTMListMessages)
		messages.GET("/:id", s.handleMailTMGetMessage)
		messages.PATCH("/:id", s.handleMailTMMarkSeen)
		messages.DELETE("/:id", s.handleMailTMDeleteMessage)
		messages.GET("/:id/attachment/:attachmentId", s.handleMailTMAttachment)
	}

	// Guerrilla style endpoint
	r.GET("/ajax.php", s.handleGuerrilla)

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/deliver", s.handleDeliver)
	}
}

// Deliver drops msg into the mailbox of msg.To and returns the stored copy
func (s *Server) Deliver(msg Message) (Message, error) {
	to := strings.ToLower(strings.TrimSpace(msg.To))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[to]; !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownMailbox, to)
	}

	stored := msg
	stored.To = to
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if strings.HasSuffix(to, "@"+GuerrillaDomain) {
		s.seq++
		stored.ID = strconv.FormatInt(s.seq, 10)
	} else {
		stored.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	}
	stored.Attachments = make([]Attachment, len(msg.Attachments))
	for i, a := range msg.Attachments {
		if a.ID == "" {
			a.ID = fmt.Sprintf("ATTACH%06d", i+1)
		}
		if a.ContentType == "" {
			a.ContentType = "application/octet-stream"
		}
		stored.Attachments[i] = a
	}

	s.mailboxes[to] = append(s.mailboxes[to], &stored)
	return stored, nil
}

// Mailbox returns a copy of the messages held for address
func (s *Server) Mailbox(address string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	box := s.mailboxes[strings.ToLower(address)]
	out := make([]Message, 0, len(box))
	for _, m := range box {
		out = append(out, *m)
	}
	return out
}

// FailDeletes makes deleting any of ids answer with a server error
func (s *Server) FailDeletes(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.failing[id] = true
	}
}

// GenerateMessages delivers 0-2 random messages into every mailbox on each
// tick until ctx is done
func (s *Server) GenerateMessages(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			addresses := make([]string, 0, len(s.mailboxes))
			for address := range s.mailboxes {
				addresses = append(addresses, address)
			}
			s.mu.RUnlock()

			for _, address := range addresses {
				for i := rand.Intn(3); i > 0; i-- {
					_, _ = s.Deliver(randomMessage(address))
				}
			}
		}
	}
}

func randomMessage(to string) Message {
	name := firstNames[rand.Intn(len(firstNames))]
	subject := subjects[rand.Intn(len(subjects))]
	code := rand.Intn(900000) + 100000

	return Message{
		From:     fmt.Sprintf("%s@%s", strings.ToLower(name), senders[rand.Intn(len(senders))]),
		FromName: name,
		To:       to,
		Subject:  subject,
		Text:     fmt.Sprintf("Hi,\n\n%s. Your code is %d.\n\nBest regards,\n%s", subject, code, name),
	}
}

func (s *Server) newMailboxLocked(address string) {
	if _, ok := s.mailboxes[address]; !ok {
		s.mailboxes[address] = []*Message{}
	}
}

func (s *Server) findLocked(address, id string) (int, *Message) {
	for i, m := range s.mailboxes[address] {
		if m.ID == id {
			return i, m
		}
	}
	return -1, nil
}

func (s *Server) deleteLocked(address, id string) error {
	if s.failing[id] {
		return fmt.Errorf("deletion of %s failed", id)
	}
	i, _ := s.findLocked(address, id)
	if i < 0 {
		return errMessageNotFound
	}
	box := s.mailboxes[address]
	s.mailboxes[address] = append(box[:i], box[i+1:]...)
	return nil
}

func (s *Server) handleDeliver(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := s.Deliver(msg)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, stored)
}
