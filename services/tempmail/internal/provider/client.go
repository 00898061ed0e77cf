package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/config"
)

const maxErrorBody = 64 << 10

// Options configures the HTTP transport shared by every provider client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, <= 0 disables throttling
	Burst      int
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from a provider API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

// Message extracts the human-readable part of a provider error
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

type client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *log.Entry
}

func newClient(kind models.ProviderKind, opts Options) *client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	return &client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.WithField("provider", kind),
	}
}

// do sends one request and decodes a JSON answer into out (when non-nil)
func (c *client) do(ctx context.Context, method, url string, body any, header http.Header, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", strings.ToLower(method), req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(log.Fields{
		"method": method,
		"path":   req.URL.Path,
		"status": resp.StatusCode,
	}).Debug("provider request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func newAPIError(status int, raw []byte) *APIError {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, key := range []string{"message", "detail", "hydra:description", "error"} {
			if msg, ok := payload[key].(string); ok && msg != "" {
				return &APIError{Status: status, Message: msg}
			}
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" || len(msg) > 200 || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// NewProviders creates every provider client from configuration
func NewProviders(cfg config.ProviderConfig) []Provider {
	common := func(baseURL string) Options {
		return Options{
			BaseURL:   baseURL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}
	}

	return []Provider{
		NewMailTM(common(cfg.MailTM.APIURL), cfg.MailTM.Password),
		NewGuerrilla(common(cfg.Guerrilla.APIURL), cfg.Guerrilla.IP, cfg.Guerrilla.Agent),
	}
}
