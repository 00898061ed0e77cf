package session

import (
	"context"
	"errors"
	"time"
)

// Start launches the poll loop. While the current session is authenticated it
// calls FetchMessages every PollInterval. The timer is rebuilt whenever the
// current provider or its authentication changes. Start is a no-op after the
// first call; the loop ends on Close or when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.pollLoop(ctx)
}

// Close tears the poll loop down and closes every subscription
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)

		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}

		m.events.close()
		m.log.Info("Session manager closed")
	})
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer close(m.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	arm := func() {
		timer.Stop()
		if m.pollable() {
			timer.Reset(m.PollInterval())
		}
	}
	arm()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-m.reschedule:
			arm()
		case <-timer.C:
			m.poll(ctx)
			arm()
		}
	}
}

// poll runs one refresh. Failures are reported and the schedule carries on.
func (m *Manager) poll(ctx context.Context) {
	_, err := m.FetchMessages(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}

	ev := Event{Type: EventError, Provider: m.Current(), Error: err.Error()}
	var sessErr *Error
	if errors.As(err, &sessErr) {
		ev.Error = sessErr.Message
		ev.ErrorKind = sessErr.Kind.String()
	}

	m.log.WithError(err).WithField("provider", ev.Provider).Warn("Failed to poll messages")
	m.events.publish(ev)
}

func (m *Manager) pollable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[m.current].IsAuthenticated
}

// kick asks the poll loop to rebuild its timer
func (m *Manager) kick() {
	select {
	case m.reschedule <- struct{}{}:
	default:
	}
}
