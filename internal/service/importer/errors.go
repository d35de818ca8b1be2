package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/sheet-importer/internal/mapping"
)

// Sentinel errors for the importer service layer.
var (
	ErrSessionNotFound   = errors.New("import session not found")
	ErrTemplateNotFound  = errors.New("mapping template not found")
	ErrInvalidTransition = errors.New("operation not allowed in the session's current status")
	ErrSessionBusy       = errors.New("another stage or commit is already running for this session")
	ErrMissingTemplate   = errors.New("no mapping template chosen for this session")
	ErrNoRules           = errors.New("finalized rule set contains no active rules")
)

// TemplateMismatchError reports template source columns absent from the
// uploaded file. Staging treats any missing column as blocking.
type TemplateMismatchError struct {
	Missing []mapping.MissingField
}

func (e *TemplateMismatchError) Error() string {
	msgs := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		msgs[i] = m.Message
	}
	return "template does not match the uploaded file: " + strings.Join(msgs, "; ")
}

// StorageError wraps an object-store or persistence failure. It is fatal to
// the current stage; the session is moved to a failure state and the caller
// decides whether to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
