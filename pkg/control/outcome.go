package control

import (
	"errors"

	"github.com/crystal-mush/localchat/pkg/host"
)

var (
	ErrDenied       = errors.New("control: permission denied")
	ErrInvalidInput = errors.New("control: invalid input")
	ErrNotFound     = errors.New("control: target not found")
)

// Outcome is the result of an admin or player command. Message is sent to
// the actor; Err is nil on success and wraps one of the sentinels above
// otherwise.
type Outcome struct {
	Err     error
	Message host.Message
}

// OK reports whether the command went through.
func (o Outcome) OK() bool {
	return o.Err == nil
}
