// Package session implements the control session abstraction of spec.md
// §4.9: a pure step function over a duplex byte channel, grounded on
// original_source/vru-session/src/session.rs's Session/Choose traits and
// its channel.rs executor. Rust's associated-type Choose0..Choose3
// enumeration exists to let the type checker bound a session's fan-out at
// compile time; Go's interfaces already erase that bound dynamically, so
// Step here returns the resolved continuation Session directly rather than
// threading a separate Choose sum type through the call.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/coinstash/vru-mesh/internal/logging"
	"github.com/coinstash/vru-mesh/internal/recovery"
)

// Session is one node of the session graph: a fixed-length Receive/Send
// turn (a length of 0 means nothing is exchanged that turn) and a pure
// step function choosing the continuation.
type Session interface {
	// ReceiveLen is the number of bytes the executor reads before Step.
	ReceiveLen() int
	// SendLen is the number of bytes Step's outgoing return must be, and
	// the number of bytes the executor writes after Step.
	SendLen() int
	// End reports whether this is the distinguished terminal session; the
	// executor does not step it.
	End() bool
	// Step consumes incoming, computes outgoing, and chooses the
	// continuation session.
	Step(incoming []byte) (outgoing []byte, next Session, err error)
}

// End is the terminal session: zero-length in both directions, its Step
// is the identity, and it chooses itself.
type End struct{}

func (End) ReceiveLen() int { return 0 }
func (End) SendLen() int    { return 0 }
func (End) End() bool       { return true }
func (e End) Step(incoming []byte) ([]byte, Session, error) {
	return incoming, e, nil
}

// StepError attributes a failure to the monotonic level counter the
// executor advances once per session step, mirroring vru-session's
// HierarchicError.
type StepError struct {
	Level int
	Err   error
}

func (e *StepError) Error() string { return fmt.Sprintf("session: at level %d: %v", e.Level, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// ErrSendLenMismatch is wrapped into a StepError when a Step implementation
// returns an outgoing buffer of the wrong length for its own SendLen.
var ErrSendLenMismatch = errors.New("session: step produced wrong send length")

// Channel drives a session graph over a duplex byte channel, the Go
// analogue of vru-session's Channel<Input, Output>.
type Channel struct {
	r io.Reader
	w io.Writer
}

// NewChannel wraps a reader and writer as a session Channel.
func NewChannel(r io.Reader, w io.Writer) *Channel {
	return &Channel{r: r, w: w}
}

func (ch *Channel) step(s Session, level int) (Session, error) {
	var incoming []byte
	if n := s.ReceiveLen(); n > 0 {
		incoming = make([]byte, n)
		if _, err := io.ReadFull(ch.r, incoming); err != nil {
			return nil, &StepError{Level: level, Err: fmt.Errorf("receive: %w", err)}
		}
	}

	outgoing, next, err := s.Step(incoming)
	if err != nil {
		return nil, &StepError{Level: level, Err: err}
	}

	if n := s.SendLen(); n > 0 {
		if len(outgoing) != n {
			return nil, &StepError{Level: level, Err: fmt.Errorf("%w: got %d, want %d", ErrSendLenMismatch, len(outgoing), n)}
		}
		if _, err := ch.w.Write(outgoing); err != nil {
			return nil, &StepError{Level: level, Err: fmt.Errorf("send: %w", err)}
		}
	}

	return next, nil
}

// Execute drives start through successive steps until the session graph
// reaches End, attributing any error to the level at which it occurred.
func (ch *Channel) Execute(start Session) error {
	cur := start
	for level := 0; ; level++ {
		if cur.End() {
			return nil
		}
		next, err := ch.step(cur, level)
		if err != nil {
			return err
		}
		if next == nil {
			return &StepError{Level: level, Err: errors.New("session: step chose no continuation")}
		}
		cur = next
	}
}

// ExecuteAsync runs Execute in its own goroutine, recovering and logging
// any panic a Step implementation raises instead of taking the process
// down with it, and delivers the eventual error (nil on a clean End) on
// the returned channel. logger may be nil to discard panic diagnostics.
func (ch *Channel) ExecuteAsync(start Session, logger *slog.Logger) <-chan error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	done := make(chan error, 1)
	go func() {
		result := func() (err error) {
			defer recovery.RecoverWithCallback(logger, "session.Channel.ExecuteAsync", func(recovered interface{}) {
				err = fmt.Errorf("session: step panicked: %v", recovered)
			})
			return ch.Execute(start)
		}()
		done <- result
	}()
	return done
}
