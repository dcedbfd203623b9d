package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadline marks a result abandoned by WithTimeout.
var ErrDeadline = errors.New("deadline exceeded")

// PanicError carries a value recovered from a panicking operation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// WithTimeout runs op and waits at most d for it. On expiry it returns a
// KindTimeout *Error whose Op is label. The operation itself is not
// cancelled: it keeps running in its goroutine and its result is dropped.
// Cancellation of ctx is still honoured by both op and the wait. A panic in
// op is recovered and returned as a terminal *Error wrapping *PanicError.
func WithTimeout[T any](ctx context.Context, d time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &Error{Kind: KindTerminal, Op: label, Err: &PanicError{Value: r}}}
			}
		}()
		v, err := op(ctx)
		done <- outcome{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-timer.C:
		return zero, &Error{Kind: KindTimeout, Op: label, Err: ErrDeadline}
	case <-ctx.Done():
		return zero, &Error{Kind: KindTerminal, Op: label, Err: ctx.Err()}
	}
}
