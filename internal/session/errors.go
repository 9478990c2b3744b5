package internal_session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound: no session exists for the (sessionId, userId) pair.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidState: the operation is not valid for the session's current
	// status, e.g. appending a turn after the session ended.
	ErrInvalidState = errors.New("operation invalid for session state")

	// ErrArtifactNotReady: the readiness wait exhausted its retry budget
	// before the expected track artifacts appeared in storage.
	ErrArtifactNotReady = errors.New("audio artifact not ready")

	// ErrTranscodeFailed: the user track could not be converted to a
	// mixable format. Terminal for the run, never retried internally.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrMixFailed: the two-track mix invocation failed or timed out.
	ErrMixFailed = errors.New("mix failed")
)

// ArtifactNotReadyError reports which track(s) never became ready within the
// poll budget. Unwraps to ErrArtifactNotReady.
type ArtifactNotReadyError struct {
	Tracks []string
}

func (e *ArtifactNotReadyError) Error() string {
	return fmt.Sprintf("audio artifact not ready: %s", strings.Join(e.Tracks, ", "))
}

func (e *ArtifactNotReadyError) Unwrap() error {
	return ErrArtifactNotReady
}
