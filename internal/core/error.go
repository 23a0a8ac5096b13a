package core

import (
	"errors"
	"strings"
)

var ErrSidecarUnavailable = errors.New("render sidecar is not running")

// RenderError carries the diagnostic reported by the JavaScript side.
type RenderError struct {
	Message string
	Stack   string
}

func (e *RenderError) Error() string {
	return e.Message
}

// Diagnostic is the text sent back to the client on a failed render: the
// stack when one is known, the error text otherwise.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var re *RenderError
	if errors.As(err, &re) && strings.TrimSpace(re.Stack) != "" {
		return re.Stack
	}
	return err.Error()
}
