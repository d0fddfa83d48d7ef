package federation

import (
	"errors"
	"fmt"
)

// Kind classifies a failed peer call.
type Kind int

const (
	// KindTransport covers failures to reach a peer or to understand its
	// answer: address resolution, connection errors and non-JSON bodies.
	// Transport failures are retried.
	KindTransport Kind = iota + 1
	// KindApplication is a structured error answer from the peer. It is
	// never retried and is forwarded with the peer's status code.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error is returned by every peer call that fails.
type Error struct {
	Kind       Kind
	Peer       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindApplication {
		return fmt.Sprintf("peer %s answered %d: %s", e.Peer, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("peer %s: %s: %v", e.Peer, e.Message, e.Err)
	}
	return fmt.Sprintf("peer %s: %s", e.Peer, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure of a peer call.
func IsTransport(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTransport
}

// AsApplication returns the peer's structured error if err carries one.
func AsApplication(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindApplication {
		return fe, true
	}
	return nil, false
}

func transportError(peer, msg string, err error) *Error {
	return &Error{Kind: KindTransport, Peer: peer, Message: msg, Err: err}
}
