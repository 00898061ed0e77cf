package session

import (
	"fmt"

	"github.com/stoik/tempmail/services/tempmail/internal/provider"
)

// Kind classifies every failure the Manager reports
type Kind int

const (
	KindNoDomainsAvailable Kind = iota + 1
	KindAuthenticationFailed
	KindNotAuthenticated
	KindRemoteRequestFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoDomainsAvailable:
		return "no_domains_available"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindRemoteRequestFailed:
		return "remote_request_failed"
	}
	return "unknown"
}

// Error is the only error type Manager operations return. Match on the kind
// with errors.Is(err, ErrNotAuthenticated) and friends.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrNoDomainsAvailable   = &Error{Kind: KindNoDomainsAvailable}
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrNotAuthenticated     = &Error{Kind: KindNotAuthenticated}
	ErrRemoteRequestFailed  = &Error{Kind: KindRemoteRequestFailed}
)

var defaultMessages = map[Kind]string{
	KindNoDomainsAvailable:   "no domains available, please try again later",
	KindAuthenticationFailed: "failed to generate email",
	KindNotAuthenticated:     "not authenticated",
	KindRemoteRequestFailed:  "request to provider failed",
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if err != nil {
		e.Message = provider.Message(err)
	}
	if e.Message == "" {
		e.Message = defaultMessages[kind]
	}
	return e
}
