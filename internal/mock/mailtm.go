package mock

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errMessageNotFound = errors.New("message not found")

const addressKey = "mock.address"

type credentialsRequest struct {
	Address  string `json:"address" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type seenRequest struct {
	Seen bool `json:"seen"`
}

func hydraCollection(members any, total int) gin.H {
	return gin.H{
		"hydra:member":     members,
		"hydra:totalItems": total,
	}
}

func hydraError(c *gin.Context, status int, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"@type":             "hydra:Error",
		"hydra:title":       "An error occurred",
		"hydra:description": description,
	})
}

func (s *Server) handleMailTMDomains(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]gin.H, 0, len(s.domains))
	for _, d := range s.domains {
		members = append(members, gin.H{
			"id":       uuid.NewSHA1(uuid.NameSpaceDNS, []byte(d)).String(),
			"domain":   d,
			"isActive": true,
		})
	}
	c.JSON(http.StatusOK, hydraCollection(members, len(members)))
}

func (s *Server) handleMailTMCreateAccount(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		hydraError(c, http.StatusBadRequest, err.Error())
		return
	}

	address := strings.ToLower(strings.TrimSpace(req.Address))
	at := strings.LastIndex(address, "@")
	if at <= 0 || !s.offersDomain(address[at+1:]) {
		hydraError(c, http.StatusUnprocessableEntity, "address: This value is not valid.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[address]; exists {
		hydraError(c, http.StatusUnprocessableEntity, "address: This value is already used.")
		return
	}

	acc := &account{ID: uuid.NewString(), Address: address, Password: req.Password}
	s.accounts[address] = acc
	s.newMailboxLocked(address)

	c.JSON(http.StatusCreated, gin.H{
		"id":        acc.ID,
		"address":   acc.Address,
		"quota":     40000000,
		"used":      0,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMailTMToken(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(req.Address)]
	if !ok || acc.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Invalid credentials."})
		return
	}

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	s.tokens[token] = acc.Address
	c.JSON(http.StatusOK, gin.H{"id": acc.ID, "token": token})
}

func (s *Server) requireBearer(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "JWT Token not found"})
		return
	}

	s.mu.RLock()
	address, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Invalid JWT Token"})
		return
	}

	c.Set(addressKey, address)
	c.Next()
}

func (s *Server) handleMailTMListMessages(c *gin.Context) {
	address := c.GetString(addressKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	box := s.mailboxes[address]
	members := make([]gin.H, 0, len(box))
	// newest first, as the real API orders them
	for i := len(box) - 1; i >= 0; i-- {
		members = append(members, mailtmSummary(box[i]))
	}
	c.JSON(http.StatusOK, hydraCollection(members, len(members)))
}

func (s *Server) handleMailTMGetMessage(c *gin.Context) {
	address := c.GetString(addressKey)
	id := c.Param("id")

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, msg := s.findLocked(address, id)
	if msg == nil {
		hydraError(c, http.StatusNotFound, "Not Found")
		return
	}

	body := mailtmSummary(msg)
	attachments := make([]gin.H, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, gin.H{
			"id":          a.ID,
			"filename":    a.Filename,
			"contentType": a.ContentType,
			"disposition": "attachment",
			"size":        len(a.Content),
			"downloadUrl": "/messages/" + msg.ID + "/attachment/" + a.ID,
		})
	}
	body["text"] = msg.Text
	if msg.HTML != "" {
		body["html"] = []string{msg.HTML}
	} else {
		body["html"] = []string{}
	}
	body["attachments"] = attachments
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleMailTMMarkSeen(c *gin.Context) {
	address := c.GetString(addressKey)

	var req seenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		hydraError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, msg := s.findLocked(address, c.Param("id"))
	if msg == nil {
		hydraError(c, http.StatusNotFound, "Not Found")
		return
	}
	msg.Seen = req.Seen
	c.JSON(http.StatusOK, gin.H{"seen": msg.Seen})
}

func (s *Server) handleMailTMDeleteMessage(c *gin.Context) {
	address := c.GetString(addressKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(address, c.Param("id")); err != nil {
		if errors.Is(err, errMessageNotFound) {
			hydraError(c, http.StatusNotFound, "Not Found")
			return
		}
		hydraError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMailTMAttachment(c *gin.Context) {
	address := c.GetString(addressKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, msg := s.findLocked(address, c.Param("id"))
	if msg == nil {
		hydraError(c, http.StatusNotFound, "Not Found")
		return
	}
	for _, a := range msg.Attachments {
		if a.ID == c.Param("attachmentId") {
			c.Data(http.StatusOK, a.ContentType, []byte(a.Content))
			return
		}
	}
	hydraError(c, http.StatusNotFound, "Not Found")
}

func (s *Server) offersDomain(domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d == domain {
			return true
		}
	}
	return false
}

func mailtmSummary(msg *Message) gin.H {
	return gin.H{
		"id":             msg.ID,
		"from":           gin.H{"address": msg.From, "name": msg.FromName},
		"to":             []gin.H{{"address": msg.To, "name": ""}},
		"subject":        msg.Subject,
		"intro":          msg.intro(),
		"seen":           msg.Seen,
		"hasAttachments": len(msg.Attachments) > 0,
		"size":           len(msg.Text) + len(msg.HTML),
		"createdAt":      msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}
