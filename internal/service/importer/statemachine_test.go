package importer

import (
	"errors"
	"testing"

	"github.com/ignite/sheet-importer/internal/domain"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name string
		cur  domain.SessionStatus
		ev   event
		want domain.SessionStatus
	}{
		{"stage from initiated", domain.SessionInitiated, eventStageSucceeded, domain.SessionPreviewReady},
		{"stage failure from initiated", domain.SessionInitiated, eventStageFailed, domain.SessionProcessingFailed},
		{"retry after failure", domain.SessionProcessingFailed, eventStageSucceeded, domain.SessionPreviewReady},
		{"repeated failure", domain.SessionProcessingFailed, eventStageFailed, domain.SessionProcessingFailed},
		{"clean commit", domain.SessionPreviewReady, eventCommitClean, domain.SessionCompleted},
		{"partial commit", domain.SessionPreviewReady, eventCommitPartial, domain.SessionPartial},
		{"failed commit", domain.SessionPreviewReady, eventCommitFailed, domain.SessionFailed},
		{"clean commit from file_uploaded", domain.SessionFileUploaded, eventCommitClean, domain.SessionCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextStatus(tt.cur, tt.ev)
			if err != nil {
				t.Fatalf("nextStatus(%s, %s) failed: %v", tt.cur, tt.ev, err)
			}
			if got != tt.want {
				t.Errorf("nextStatus(%s, %s) = %s, want %s", tt.cur, tt.ev, got, tt.want)
			}
		})
	}
}

func TestNextStatusRejectsBadTransitions(t *testing.T) {
	bad := []struct {
		cur domain.SessionStatus
		ev  event
	}{
		{domain.SessionInitiated, eventCommitClean},
		{domain.SessionPreviewReady, eventStageSucceeded},
		{domain.SessionCompleted, eventStageSucceeded},
		{domain.SessionCompleted, eventCommitClean},
		{domain.SessionPartial, eventCommitPartial},
		{domain.SessionFailed, eventStageFailed},
	}
	for _, tt := range bad {
		if _, err := nextStatus(tt.cur, tt.ev); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("nextStatus(%s, %s): expected ErrInvalidTransition, got %v", tt.cur, tt.ev, err)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []domain.SessionStatus{domain.SessionCompleted, domain.SessionPartial, domain.SessionFailed} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
		if _, ok := transitions[status]; ok {
			t.Errorf("terminal status %s must not appear in the transition table", status)
		}
	}
}
