package importer

import (
	"fmt"

	"github.com/ignite/sheet-importer/internal/domain"
)

// event names the outcomes that drive session status transitions.
type event string

const (
	eventStageSucceeded event = "stage_succeeded"
	eventStageFailed    event = "stage_failed"
	eventCommitClean    event = "commit_clean"
	eventCommitPartial  event = "commit_partial"
	eventCommitFailed   event = "commit_failed"
)

// transitions is the allowed-transition table. Anything absent here is
// rejected; the persisted status field never takes a value this table
// cannot produce.
var transitions = map[domain.SessionStatus]map[event]domain.SessionStatus{
	domain.SessionInitiated: {
		eventStageSucceeded: domain.SessionPreviewReady,
		eventStageFailed:    domain.SessionProcessingFailed,
	},
	domain.SessionProcessingFailed: {
		eventStageSucceeded: domain.SessionPreviewReady,
		eventStageFailed:    domain.SessionProcessingFailed,
	},
	domain.SessionPreviewReady: {
		eventCommitClean:   domain.SessionCompleted,
		eventCommitPartial: domain.SessionPartial,
		eventCommitFailed:  domain.SessionFailed,
	},
	// file_uploaded is an alias for preview_ready kept for older call
	// sites; it commits the same way.
	domain.SessionFileUploaded: {
		eventCommitClean:   domain.SessionCompleted,
		eventCommitPartial: domain.SessionPartial,
		eventCommitFailed:  domain.SessionFailed,
	},
}

// nextStatus is the pure transition function (state, event) -> state'.
func nextStatus(cur domain.SessionStatus, ev event) (domain.SessionStatus, error) {
	if next, ok := transitions[cur][ev]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: %s in status %s", ErrInvalidTransition, ev, cur)
}
