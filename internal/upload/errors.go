package upload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPartialUpload  = errors.New("upload partially applied")
	ErrInvalidRequest = errors.New("invalid upload request")
)

// Error reports an upload that stopped at File. The files in Written
// are on the backend and stay there; running the same upload again
// completes it.
type Error struct {
	ID      string
	File    string
	Written []string
	Err     error
}

func (e *Error) Error() string {
	written := "none"
	if len(e.Written) > 0 {
		written = strings.Join(e.Written, ", ")
	}
	return fmt.Sprintf("upload %s failed at %s (written: %s): %v", e.ID, e.File, written, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrPartialUpload
}
