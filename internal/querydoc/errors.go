package querydoc

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// DecodeError reports a malformed query document.
type DecodeError struct {
	Path    string
	Message string
	Pos     token.Pos // set for CUE documents only
}

func (e *DecodeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Path, e.Message)
	}
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func errorf(path, format string, args ...any) *DecodeError {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	path := "cue"
	if p := first.Path(); len(p) > 0 {
		path = strings.Join(p, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		format, args := first.Msg()
		return &DecodeError{
			Path:    path,
			Message: fmt.Sprintf(format, args...),
			Pos:     positions[0],
		}
	}
	return err
}
