package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/prefs"
	"github.com/stoik/tempmail/services/tempmail/internal/session"
)

// Server exposes one session Manager over HTTP
type Server struct {
	manager *session.Manager
	prefs   prefs.Store
	env     func(string) string
	log     *log.Entry
}

// Option customizes a Server
type Option func(*Server)

// WithEnv replaces os.Getenv as the locale source for language detection
func WithEnv(env func(string) string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func New(manager *session.Manager, store prefs.Store, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		prefs:   store,
		env:     os.Getenv,
		log:     log.WithField("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns a gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.Register(r)
	return r
}

// Register mounts the API on r
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/state", s.handleState)
		api.PUT("/provider", s.handleSelectProvider)
		api.GET("/domains", s.handleDomains)
		api.PUT("/domain", s.handleSelectDomain)
		api.POST("/address", s.handleGenerateAddress)
		api.GET("/messages", s.handleMessages)
		api.POST("/messages/refresh", s.handleRefresh)
		api.GET("/messages/:id", s.handleMessage)
		api.DELETE("/messages/:id", s.handleDeleteMessage)
		api.DELETE("/messages", s.handleDeleteAll)
		api.DELETE("/selection", s.handleClearSelection)
		api.PUT("/interval", s.handleInterval)
		api.GET("/language", s.handleLanguage)
		api.PUT("/language", s.handleSetLanguage)
		api.GET("/events", s.handleEvents)
	}
}

type stateResponse struct {
	session.State
	PollInterval string `json:"poll_interval"`
}

func (s *Server) handleState(c *gin.Context) {
	s.writeState(c, http.StatusOK)
}

func (s *Server) writeState(c *gin.Context, status int) {
	state := s.manager.Snapshot()
	c.JSON(status, stateResponse{State: state, PollInterval: state.PollInterval.String()})
}

type providerRequest struct {
	Provider string `json:"provider" binding:"required"`
}

func (s *Server) handleSelectProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := models.ParseProviderKind(req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.manager.SelectProvider(c.Request.Context(), kind); err != nil {
		s.fail(c, err)
		return
	}
	s.writeState(c, http.StatusOK)
}

func (s *Server) handleDomains(c *gin.Context) {
	domains, err := s.manager.FetchDomains(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

type domainRequest struct {
	Domain string `json:"domain" binding:"required,fqdn"`
}

func (s *Server) handleSelectDomain(c *gin.Context) {
	var req domainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.manager.SelectDomain(req.Domain)
	c.JSON(http.StatusOK, gin.H{"domain": req.Domain})
}

type addressRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleGenerateAddress(c *gin.Context) {
	var req addressRequest
	// An empty body asks for a random username
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := s.manager.GenerateAddress(c.Request.Context(), req.Username)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (s *Server) handleMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": s.manager.Messages()})
}

func (s *Server) handleRefresh(c *gin.Context) {
	messages, err := s.manager.FetchMessages(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// handleMessage opens a message; ?select=false fetches its content without displaying it
func (s *Server) handleMessage(c *gin.Context) {
	id := c.Param("id")

	fetch := s.manager.SelectMessage
	if c.DefaultQuery("select", "true") == "false" {
		fetch = s.manager.FetchMessageContent
	}

	msg, err := fetch(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	if err := s.manager.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	if err := s.manager.DeleteAllMessages(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearSelection(c *gin.Context) {
	s.manager.ClearSelection()
	c.Status(http.StatusNoContent)
}

type intervalRequest struct {
	Interval string `json:"interval" binding:"required"`
}

func (s *Server) handleInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := time.ParseDuration(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interval"})
		return
	}

	if err := s.manager.SetPollInterval(d); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval": d.String()})
}

func (s *Server) handleLanguage(c *gin.Context) {
	tag, err := prefs.Language(c.Request.Context(), s.prefs, s.env)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": tag.String()})
}

type languageRequest struct {
	Language string `json:"language" binding:"required"`
}

func (s *Server) handleSetLanguage(c *gin.Context) {
	var req languageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := prefs.SetLanguage(c.Request.Context(), s.prefs, req.Language)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": tag.String()})
}

// handleEvents streams Manager events as server-sent events until the client leaves
func (s *Server) handleEvents(c *gin.Context) {
	events, cancel := s.manager.Subscribe(session.EventBufferSize)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}

// fail writes err with the status matching its kind
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	var sessErr *session.Error
	switch {
	case errors.As(err, &sessErr):
		body["error"] = sessErr.Message
		body["kind"] = sessErr.Kind.String()
		switch sessErr.Kind {
		case session.KindNotAuthenticated:
			status = http.StatusUnauthorized
		case session.KindNoDomainsAvailable:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusBadGateway
		}
	case errors.Is(err, session.ErrUnknownProvider),
		errors.Is(err, session.ErrUnsupportedInterval),
		errors.Is(err, prefs.ErrUnsupportedLanguage):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Warn("Request failed")
	}
	c.JSON(status, body)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}
