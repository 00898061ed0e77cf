package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/provider"
)

const (
	DefaultPollInterval = 10 * time.Second
	EventBufferSize     = 32
)

// PollIntervals are the refresh periods a user may choose from
var PollIntervals = []time.Duration{
	5 * time.Second,
	DefaultPollInterval,
	15 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
}

var (
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrUnsupportedInterval = errors.New("unsupported poll interval")
)

// Manager is the single source of truth for which provider is current, which
// address it holds, which messages are listed and which one is displayed.
// It is safe for concurrent use; provider calls run outside the lock.
type Manager struct {
	mu        sync.Mutex
	providers map[models.ProviderKind]provider.Provider
	sessions  map[models.ProviderKind]models.ProviderSession
	domains   map[models.ProviderKind][]models.Domain
	domain    map[models.ProviderKind]string
	current   models.ProviderKind
	messages  []models.Message
	selected  *models.Message
	interval  time.Duration
	// epoch changes whenever the current provider or its credential does;
	// responses to requests issued under an older epoch are dropped
	epoch      uint64
	loading    int
	refreshing int

	events     *broker
	reschedule chan struct{}
	stop       chan struct{}
	done       chan struct{}
	started    bool
	closeOnce  sync.Once

	now func() time.Time
	log *log.Entry
}

// Option customizes a Manager
type Option func(*Manager)

// WithPollInterval sets the initial refresh period
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// State is a point-in-time copy of everything the Manager tracks
type State struct {
	Provider     models.ProviderKind                            `json:"provider"`
	Address      *models.EmailAddress                           `json:"address,omitempty"`
	Sessions     map[models.ProviderKind]models.ProviderSession `json:"sessions"`
	Messages     []models.Message                               `json:"messages"`
	Selected     *models.Message                                `json:"selected,omitempty"`
	Domains      []models.Domain                                `json:"domains"`
	Domain       string                                         `json:"domain,omitempty"`
	PollInterval time.Duration                                  `json:"-"`
	Loading      bool                                           `json:"loading"`
	Refreshing   bool                                           `json:"refreshing"`
}

// ticket captures what an outbound request was issued against
type ticket struct {
	epoch    uint64
	kind     models.ProviderKind
	token    string
	provider provider.Provider
}

// NewManager creates a Manager over the given providers with current selected
func NewManager(current models.ProviderKind, providers []provider.Provider, opts ...Option) (*Manager, error) {
	m := &Manager{
		providers:  make(map[models.ProviderKind]provider.Provider, len(providers)),
		sessions:   make(map[models.ProviderKind]models.ProviderSession, len(providers)),
		domains:    make(map[models.ProviderKind][]models.Domain),
		domain:     make(map[models.ProviderKind]string),
		current:    current,
		interval:   DefaultPollInterval,
		events:     newBroker(),
		reschedule: make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
		log:        log.WithField("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, p := range providers {
		m.providers[p.Kind()] = p
		m.sessions[p.Kind()] = models.ProviderSession{}
	}
	if _, ok := m.providers[current]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, current)
	}
	if !validInterval(m.interval) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInterval, m.interval)
	}

	return m, nil
}

// Subscribe returns a channel of state-change events and a function that
// cancels the subscription. Events are dropped for a subscriber whose buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	return m.events.subscribe(buffer)
}

// Current returns the provider the UI and poller operate against
func (m *Manager) Current() models.ProviderKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Session returns a copy of the session held for kind
func (m *Manager) Session(kind models.ProviderKind) models.ProviderSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[kind]
}

// Address returns the address of the current provider's session, or nil
func (m *Manager) Address() *models.EmailAddress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr := m.sessions[m.current].EmailAddress; addr != nil {
		a := *addr
		return &a
	}
	return nil
}

// Messages returns a copy of the current message list
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMessages(m.messages)
}

// Selected returns the displayed message, or nil
func (m *Manager) Selected() *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMessage(m.selected)
}

// ClearSelection stops displaying a message
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = nil
}

// PollInterval returns the configured refresh period
func (m *Manager) PollInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Snapshot returns a consistent copy of the whole state
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make(map[models.ProviderKind]models.ProviderSession, len(m.sessions))
	for kind, s := range m.sessions {
		sessions[kind] = s
	}

	var address *models.EmailAddress
	if addr := m.sessions[m.current].EmailAddress; addr != nil {
		a := *addr
		address = &a
	}

	return State{
		Provider:     m.current,
		Address:      address,
		Sessions:     sessions,
		Messages:     copyMessages(m.messages),
		Selected:     copyMessage(m.selected),
		Domains:      append([]models.Domain(nil), m.domains[m.current]...),
		Domain:       m.domain[m.current],
		PollInterval: m.interval,
		Loading:      m.loading > 0,
		Refreshing:   m.refreshing > 0,
	}
}

// SelectProvider makes kind current. The displayed message and the list are
// cleared; if kind already holds an authenticated session its messages are
// fetched right away.
func (m *Manager) SelectProvider(ctx context.Context, kind models.ProviderKind) error {
	m.mu.Lock()
	if _, ok := m.providers[kind]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
	if kind == m.current {
		m.mu.Unlock()
		return nil
	}

	m.current = kind
	m.epoch++
	m.messages = nil
	m.selected = nil
	authenticated := m.sessions[kind].IsAuthenticated
	m.mu.Unlock()

	m.log.WithField("provider", kind).Info("Switched provider")
	m.events.publish(Event{Type: EventProviderChanged, Provider: kind})
	m.kick()

	if authenticated {
		_, err := m.FetchMessages(ctx)
		return err
	}
	return nil
}

// Domains returns the cached domains of the current provider
func (m *Manager) Domains() []models.Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Domain(nil), m.domains[m.current]...)
}

// SelectDomain sets the suffix used by the next GenerateAddress on the current provider
func (m *Manager) SelectDomain(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domain[m.current] = domain
}

// FetchDomains refreshes the domain list of the current provider. Providers
// that do not offer a choice of domain yield an empty list.
func (m *Manager) FetchDomains(ctx context.Context) ([]models.Domain, error) {
	m.mu.Lock()
	kind := m.current
	lister, ok := m.providers[kind].(provider.DomainLister)
	m.mu.Unlock()
	if !ok {
		return []models.Domain{}, nil
	}

	domains, err := m.fetchDomains(ctx, kind, lister)
	if err != nil {
		return nil, newError(KindRemoteRequestFailed, err)
	}
	return domains, nil
}

func (m *Manager) fetchDomains(ctx context.Context, kind models.ProviderKind, lister provider.DomainLister) ([]models.Domain, error) {
	m.beginLoading()
	domains, err := lister.Domains(ctx)
	m.endLoading()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.domains[kind] = domains
	if m.domain[kind] == "" {
		m.domain[kind] = firstActive(domains)
	}
	m.mu.Unlock()

	return append([]models.Domain(nil), domains...), nil
}

// GenerateAddress obtains a new address from the current provider. username is
// passed through unvalidated; an empty one lets the provider choose. On failure
// the previous state is left untouched.
func (m *Manager) GenerateAddress(ctx context.Context, username string) (models.EmailAddress, error) {
	m.mu.Lock()
	kind := m.current
	p := m.providers[kind]
	domain := m.domain[kind]
	if domain == "" {
		domain = firstActive(m.domains[kind])
	}
	m.mu.Unlock()

	logger := m.log.WithField("provider", kind)

	if lister, ok := p.(provider.DomainLister); ok && domain == "" {
		domains, err := m.fetchDomains(ctx, kind, lister)
		if err != nil {
			logger.WithError(err).Error("Failed to fetch domains")
			return models.EmailAddress{}, newError(KindAuthenticationFailed, err)
		}
		domain = firstActive(domains)
		if domain == "" {
			return models.EmailAddress{}, newError(KindNoDomainsAvailable, nil)
		}
	}

	m.beginLoading()
	creds, err := p.Authenticate(ctx, username, domain)
	m.endLoading()
	if err != nil {
		logger.WithError(err).Error("Failed to generate address")
		return models.EmailAddress{}, newError(KindAuthenticationFailed, err)
	}

	address, err := models.ParseEmailAddress(creds.Address, kind, m.now())
	if err != nil {
		return models.EmailAddress{}, newError(KindAuthenticationFailed, err)
	}
	if creds.Token == "" {
		return models.EmailAddress{}, newError(KindAuthenticationFailed, errors.New("provider returned no credential"))
	}

	m.mu.Lock()
	m.sessions[kind] = models.NewProviderSession(creds.Token, creds.AccountID, address)
	if kind == m.current {
		m.epoch++
		m.messages = nil
		m.selected = nil
	}
	m.mu.Unlock()

	logger.WithField("address", address.Address).Info("Generated address")
	m.events.publish(Event{Type: EventAddressGenerated, Provider: kind, Address: &address})
	m.kick()

	return address, nil
}

// FetchMessages resyncs the whole message list from the current provider. It
// does nothing when the current session is not authenticated.
func (m *Manager) FetchMessages(ctx context.Context) ([]models.Message, error) {
	m.mu.Lock()
	t, ok := m.ticketLocked()
	if !ok {
		list := copyMessages(m.messages)
		m.mu.Unlock()
		return list, nil
	}
	m.refreshing++
	m.mu.Unlock()

	messages, err := t.provider.ListMessages(ctx, t.token)

	m.mu.Lock()
	m.refreshing--
	if err != nil {
		m.mu.Unlock()
		return nil, newError(KindRemoteRequestFailed, err)
	}
	if t.epoch != m.epoch {
		m.mu.Unlock()
		m.log.WithField("provider", t.kind).Debug("Discarding stale message list")
		return copyMessages(messages), nil
	}
	m.messages = messages
	m.mu.Unlock()

	m.events.publish(Event{Type: EventMessagesUpdated, Provider: t.kind, Count: len(messages)})
	return copyMessages(messages), nil
}

// FetchMessageContent fetches the full message, which marks it read, and
// replaces the listed entry with the same id.
func (m *Manager) FetchMessageContent(ctx context.Context, id string) (*models.Message, error) {
	return m.fetchContent(ctx, id, false)
}

// SelectMessage opens a message: its content is fetched and it becomes the displayed one
func (m *Manager) SelectMessage(ctx context.Context, id string) (*models.Message, error) {
	return m.fetchContent(ctx, id, true)
}

func (m *Manager) fetchContent(ctx context.Context, id string, display bool) (*models.Message, error) {
	m.mu.Lock()
	t, ok := m.ticketLocked()
	if !ok {
		m.mu.Unlock()
		return nil, newError(KindNotAuthenticated, nil)
	}
	m.loading++
	m.mu.Unlock()

	msg, err := t.provider.GetMessage(ctx, t.token, id)

	m.mu.Lock()
	m.loading--
	if err != nil {
		m.mu.Unlock()
		return nil, newError(KindRemoteRequestFailed, err)
	}
	msg.IsRead = true
	if t.epoch != m.epoch {
		m.mu.Unlock()
		return copyMessage(msg), nil
	}
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i] = *msg
			break
		}
	}
	if display || (m.selected != nil && m.selected.ID == id) {
		m.selected = copyMessage(msg)
	}
	m.mu.Unlock()

	m.events.publish(Event{Type: EventMessageRead, Provider: t.kind, MessageID: id})
	return copyMessage(msg), nil
}

// DeleteMessage removes a message remotely, then from the list. On failure the
// list is left untouched.
func (m *Manager) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	t, ok := m.ticketLocked()
	if !ok {
		m.mu.Unlock()
		return newError(KindNotAuthenticated, nil)
	}
	m.loading++
	m.mu.Unlock()

	err := t.provider.DeleteMessage(ctx, t.token, id)

	m.mu.Lock()
	m.loading--
	if err != nil {
		m.mu.Unlock()
		return newError(KindRemoteRequestFailed, err)
	}
	if t.epoch == m.epoch {
		m.removeLocked(id)
	}
	m.mu.Unlock()

	m.events.publish(Event{Type: EventMessageDeleted, Provider: t.kind, MessageID: id})
	return nil
}

// DeleteAllMessages deletes every listed message one by one. It is not atomic:
// deletion continues past failures and a single error is reported at the end.
func (m *Manager) DeleteAllMessages(ctx context.Context) error {
	m.mu.Lock()
	if _, ok := m.ticketLocked(); !ok {
		m.mu.Unlock()
		return newError(KindNotAuthenticated, nil)
	}
	ids := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		ids = append(ids, msg.ID)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.DeleteMessage(ctx, id); err != nil {
			m.log.WithError(err).WithField("message_id", id).Warn("Failed to delete message")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr == nil {
		return nil
	}

	reason := firstErr.Error()
	var sessErr *Error
	if errors.As(firstErr, &sessErr) {
		reason = sessErr.Message
	}
	return &Error{
		Kind:    KindRemoteRequestFailed,
		Message: "failed to delete all messages: " + reason,
		Err:     firstErr,
	}
}

// SetPollInterval replaces the refresh period. The wait already in progress
// is not shortened; the new period applies from the next tick.
func (m *Manager) SetPollInterval(d time.Duration) error {
	if !validInterval(d) {
		return fmt.Errorf("%w: %s", ErrUnsupportedInterval, d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return nil
}

func (m *Manager) ticketLocked() (ticket, bool) {
	s := m.sessions[m.current]
	if !s.IsAuthenticated || s.Token == "" {
		return ticket{}, false
	}
	return ticket{
		epoch:    m.epoch,
		kind:     m.current,
		token:    s.Token,
		provider: m.providers[m.current],
	}, true
}

func (m *Manager) removeLocked(id string) {
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	if m.selected != nil && m.selected.ID == id {
		m.selected = nil
	}
}

func (m *Manager) beginLoading() {
	m.mu.Lock()
	m.loading++
	m.mu.Unlock()
}

func (m *Manager) endLoading() {
	m.mu.Lock()
	m.loading--
	m.mu.Unlock()
}

func firstActive(domains []models.Domain) string {
	for _, d := range domains {
		if d.IsActive && d.Domain != "" {
			return d.Domain
		}
	}
	return ""
}

func validInterval(d time.Duration) bool {
	for _, allowed := range PollIntervals {
		if d == allowed {
			return true
		}
	}
	return false
}

func copyMessages(in []models.Message) []models.Message {
	if in == nil {
		return []models.Message{}
	}
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}

func copyMessage(in *models.Message) *models.Message {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
