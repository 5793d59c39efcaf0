package tui

import (
	"ankitui/internal/media"
)

// Message types for async operations
type (
	// opDoneMsg reports the outcome of a session-mutating operation.
	opDoneMsg struct {
		Op  string
		Err error
	}

	// faceResolvedMsg carries a finished content-resolution pass. Results
	// from a stale generation are discarded by Update.
	faceResolvedMsg struct {
		Result *media.Result
	}

	// playbackDoneMsg reports that the sequential playback queue drained.
	playbackDoneMsg struct{}

	// notifyExpiredMsg expires the transient notification with matching id.
	notifyExpiredMsg struct {
		ID int
	}

	// spinnerTickMsg advances the busy spinner.
	spinnerTickMsg struct{}
)
