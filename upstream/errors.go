package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/client/transport"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindTerminal failures are not retried.
	KindTerminal Kind = iota
	KindTimeout
	KindTransport
	KindRateLimited
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "terminal"
	}
}

// Transient reports whether a failure of this kind earns one retry on a
// fresh connection.
func (k Kind) Transient() bool {
	return k != KindTerminal
}

// ErrMissingAPIKey is returned by the dialer when no bearer credential is
// configured.
var ErrMissingAPIKey = errors.New("missing env var: KAPA_API_KEY")

// Error is a failure tagged at the point where it crossed the upstream
// boundary.
type Error struct {
	Kind Kind
	Op   string // "connect", "call_tool", ...
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap tags err with op and its classified kind. Already tagged errors pass
// through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// Classify resolves the kind of err. Structured errors are inspected first;
// message matching is only a fallback for third-party errors that carry no
// type information.
func Classify(err error) Kind {
	if err == nil {
		return KindTerminal
	}

	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindTerminal
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, transport.ErrUnauthorized), errors.Is(err, ErrMissingAPIKey):
		return KindTerminal
	case errors.Is(err, transport.ErrSessionTerminated):
		return KindTransport
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED), errors.Is(err, io.ErrUnexpectedEOF):
		return KindTransport
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindTransport
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransport
	}

	return classifyMessage(err.Error())
}

// transientMarkers are matched against lower-cased error text.
var transientMarkers = []struct {
	marker string
	kind   Kind
}{
	{"timeout", KindTimeout},
	{"deadline exceeded", KindTimeout},
	{"econnreset", KindTransport},
	{"connection reset", KindTransport},
	{"socket", KindTransport},
	{"fetch", KindTransport},
	{"stream", KindTransport},
	{"epipe", KindTransport},
	{"broken pipe", KindTransport},
	{"enotfound", KindTransport},
	{"no such host", KindTransport},
	{"rate limit", KindRateLimited},
	{"too many requests", KindRateLimited},
	{"status 429", KindRateLimited},
	{"service unavailable", KindUnavailable},
	{"status 503", KindUnavailable},
}

func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(msg, m.marker) {
			return m.kind
		}
	}
	return KindTerminal
}
