package mock

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var unsafeUser = regexp.MustCompile(`[^a-z0-9._+-]`)

// handleGuerrilla dispatches on the f query parameter like ajax.php does.
// Integers are answered as strings, which the real API does for most fields.
func (s *Server) handleGuerrilla(c *gin.Context) {
	switch c.Query("f") {
	case "get_email_address":
		s.guerrillaGetAddress(c)
	case "set_email_user":
		s.withGuerrillaSession(c, s.guerrillaSetUser)
	case "get_email_list":
		s.withGuerrillaSession(c, s.guerrillaList)
	case "fetch_email":
		s.withGuerrillaSession(c, s.guerrillaFetch)
	case "del_email":
		s.withGuerrillaSession(c, s.guerrillaDelete)
	case "get_att":
		s.withGuerrillaSession(c, s.guerrillaAttachment)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown function"})
	}
}

func (s *Server) guerrillaGetAddress(c *gin.Context) {
	sid := strings.ReplaceAll(uuid.NewString(), "-", "")[:26]
	address := randomGuerrillaUser() + "@" + GuerrillaDomain

	s.mu.Lock()
	s.sessions[sid] = address
	s.newMailboxLocked(address)
	s.mu.Unlock()

	c.JSON(http.StatusOK, guerrillaAddress(address, sid))
}

func (s *Server) withGuerrillaSession(c *gin.Context, next func(c *gin.Context, sid, address string)) {
	sid := c.Query("sid_token")

	s.mu.RLock()
	address, ok := s.sessions[sid]
	s.mu.RUnlock()
	if sid == "" || !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid sid_token"})
		return
	}

	next(c, sid, address)
}

func (s *Server) guerrillaSetUser(c *gin.Context, sid, _ string) {
	user := unsafeUser.ReplaceAllString(strings.ToLower(c.Query("email_user")), "")
	if user == "" {
		user = randomGuerrillaUser()
	}
	address := user + "@" + GuerrillaDomain

	s.mu.Lock()
	s.sessions[sid] = address
	s.newMailboxLocked(address)
	s.mu.Unlock()

	c.JSON(http.StatusOK, guerrillaAddress(address, sid))
}

func (s *Server) guerrillaList(c *gin.Context, sid, address string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	box := s.mailboxes[address]
	list := make([]gin.H, 0, len(box))
	for i := len(box) - 1; i >= 0; i-- {
		list = append(list, guerrillaSummary(box[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      list,
		"count":     strconv.Itoa(len(list)),
		"email":     address,
		"alias":     address,
		"ts":        time.Now().Unix(),
		"sid_token": sid,
	})
}

func (s *Server) guerrillaFetch(c *gin.Context, sid, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, msg := s.findLocked(address, c.Query("email_id"))
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}
	msg.Seen = true

	body := guerrillaSummary(msg)
	body["mail_body"] = msg.HTML
	if msg.HTML == "" {
		body["mail_body"] = msg.Text
	}
	attachments := make([]gin.H, 0, len(msg.Attachments))
	for i, a := range msg.Attachments {
		attachments = append(attachments, gin.H{
			"attachment_id": a.ID,
			"name":          a.Filename,
			"content_type":  a.ContentType,
			"size":          strconv.Itoa(len(a.Content)),
			"download_url": fmt.Sprintf("%s?f=get_att&sid_token=%s&email_id=%s&part_id=%d",
				requestURL(c), sid, msg.ID, i),
		})
	}
	body["attachments"] = attachments
	body["sid_token"] = sid
	c.JSON(http.StatusOK, body)
}

func (s *Server) guerrillaDelete(c *gin.Context, sid, address string) {
	ids := c.QueryArray("email_ids[]")

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := s.deleteLocked(address, id); err != nil {
			if errors.Is(err, errMessageNotFound) {
				continue
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		deleted = append(deleted, id)
	}

	c.JSON(http.StatusOK, gin.H{"deleted_ids": deleted, "sid_token": sid})
}

func (s *Server) guerrillaAttachment(c *gin.Context, _, address string) {
	part, err := strconv.Atoi(c.Query("part_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid part_id"})
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, msg := s.findLocked(address, c.Query("email_id"))
	if msg == nil || part < 0 || part >= len(msg.Attachments) {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	a := msg.Attachments[part]
	c.Data(http.StatusOK, a.ContentType, []byte(a.Content))
}

func guerrillaAddress(address, sid string) gin.H {
	return gin.H{
		"email_addr":      address,
		"email_timestamp": time.Now().Unix(),
		"alias":           address,
		"sid_token":       sid,
	}
}

func guerrillaSummary(msg *Message) gin.H {
	read := "0"
	if msg.Seen {
		read = "1"
	}
	return gin.H{
		"mail_id":        msg.ID,
		"mail_from":      msg.From,
		"mail_recipient": msg.To,
		"mail_subject":   msg.Subject,
		"mail_excerpt":   msg.intro(),
		"mail_timestamp": strconv.FormatInt(msg.CreatedAt.Unix(), 10),
		"mail_read":      read,
		"mail_date":      msg.CreatedAt.UTC().Format("15:04:05"),
		"att_count":      strconv.Itoa(len(msg.Attachments)),
	}
}

func randomGuerrillaUser() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 8)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.Path)
}
