// Package publish delivers velocity commands to the robot's motion interface.
package publish

import (
	"errors"
	"sync"

	"github.com/ayusman/tagfollower/internal/policy"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("publisher closed")

// Vector3 is a three-axis vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is the motion message sent on the command topic. Only Linear.X and
// Angular.Z are ever set.
type Twist struct {
	Topic   string  `json:"topic"`
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// FromCommand builds the message for cmd on topic.
func FromCommand(topic string, cmd policy.VelocityCommand) Twist {
	return Twist{
		Topic:   topic,
		Linear:  Vector3{X: cmd.Linear},
		Angular: Vector3{Z: cmd.Angular},
	}
}

// Command returns the two degree-of-freedom command carried by t.
func (t Twist) Command() policy.VelocityCommand {
	return policy.VelocityCommand{Angular: t.Angular.Z, Linear: t.Linear.X}
}

// Publisher sends one message per call. Implementations do not retry.
type Publisher interface {
	Publish(msg Twist) error
	Close() error
}

// Multi fans a message out to several publishers. One failing transport
// does not stop delivery to the others.
type Multi []Publisher

func (m Multi) Publish(msg Twist) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every published message in memory. It is used in tests
// and as the default publisher when no transport is configured.
type Recorder struct {
	mu     sync.Mutex
	msgs   []Twist
	err    error
	closed int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetError makes subsequent Publish calls fail with err. The message is
// still recorded.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(msg Twist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed > 0 {
		return ErrClosed
	}
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Twist {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Twist, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Closes returns how many times Close was called.
func (r *Recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
