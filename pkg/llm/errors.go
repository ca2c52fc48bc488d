package llm

import (
	"errors"
	"fmt"
)

// ErrEmbed matches every *EmbedError.
var ErrEmbed = errors.New("embedding failed")

// EmbedError reports a failed embedding call: quota, timeout or invalid input.
type EmbedError struct {
	Model string
	Err   error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embed with %s: %v", e.Model, e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }

func (e *EmbedError) Is(target error) bool { return target == ErrEmbed }
