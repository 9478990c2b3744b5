package internal_recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
)

// MixTrigger signals, out of band, that a session is ready to be mixed.
// Implemented by the redis trigger queue; injected so the recorder never
// depends on the mixing side.
type MixTrigger interface {
	EnqueueMix(ctx context.Context, sessionID, userID string) error
}

// Recorder owns the session document's lifecycle while a conversation is
// live: creation, turn/audio appends, and the end transition that hands the
// session over to the mixer.
type Recorder interface {
	// Start creates a new recording session and returns its id. The audio
	// format tag is fixed at creation and immutable afterwards.
	Start(ctx context.Context, userID, level, audioFormat string) (string, error)

	// AppendTurn appends one conversational turn. Fails with
	// ErrSessionNotFound or ErrInvalidState when the session is missing or
	// no longer recording.
	AppendTurn(ctx context.Context, sessionID, userID string, turn internal_session.Turn) error

	// AppendBotAudio records the bot-side audio blob reference.
	AppendBotAudio(ctx context.Context, sessionID, userID, audioRef string) error

	// End transitions the session to ended and enqueues the mix trigger.
	End(ctx context.Context, sessionID, userID string) error
}

type recorder struct {
	store   internal_session.Store
	trigger MixTrigger
	logger  commons.Logger
}

func NewRecorder(store internal_session.Store, trigger MixTrigger, logger commons.Logger) Recorder {
	return &recorder{
		store:   store,
		trigger: trigger,
		logger:  logger,
	}
}

func (r *recorder) Start(ctx context.Context, userID, level, audioFormat string) (string, error) {
	if audioFormat == "" {
		audioFormat = internal_session.FormatWav
	}

	sess := &internal_session.Session{
		SessionID:       uuid.New().String(),
		UserID:          userID,
		Status:          internal_session.StatusRecording,
		Level:           level,
		UserAudioFormat: audioFormat,
		AudioUrls:       internal_session.AudioUrls{},
		Turns:           internal_session.Turns{},
	}

	if err := r.store.Create(ctx, sess); err != nil {
		return "", err
	}

	r.logger.Infof("recording started: sessionId=%s, userId=%s, level=%s, format=%s",
		sess.SessionID, userID, level, audioFormat)
	return sess.SessionID, nil
}

func (r *recorder) AppendTurn(ctx context.Context, sessionID, userID string, turn internal_session.Turn) error {
	sess, err := r.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !sess.IsRecording() {
		return fmt.Errorf("append turn on %s session %s: %w",
			sess.Status, sessionID, internal_session.ErrInvalidState)
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	sess.Turns = append(sess.Turns, turn)
	sess.UpdatedDate = time.Now()

	return r.store.Replace(ctx, sess)
}

func (r *recorder) AppendBotAudio(ctx context.Context, sessionID, userID, audioRef string) error {
	sess, err := r.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !sess.IsRecording() {
		return fmt.Errorf("append bot audio on %s session %s: %w",
			sess.Status, sessionID, internal_session.ErrInvalidState)
	}

	if sess.AudioUrls == nil {
		sess.AudioUrls = internal_session.AudioUrls{}
	}
	sess.AudioUrls[internal_session.TrackBot] = audioRef
	sess.UpdatedDate = time.Now()

	return r.store.Replace(ctx, sess)
}

func (r *recorder) End(ctx context.Context, sessionID, userID string) error {
	sess, err := r.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !sess.CanTransition(internal_session.StatusEnded) {
		return fmt.Errorf("end %s session %s: %w",
			sess.Status, sessionID, internal_session.ErrInvalidState)
	}

	sess.Status = internal_session.StatusEnded
	sess.UpdatedDate = time.Now()
	if err := r.store.Replace(ctx, sess); err != nil {
		return err
	}

	// The session is ended regardless of trigger delivery; a lost trigger is
	// recovered by re-enqueueing, not by re-ending the session.
	if err := r.trigger.EnqueueMix(ctx, sessionID, userID); err != nil {
		r.logger.Errorf("failed to enqueue mix for session %s: %v", sessionID, err)
	}

	r.logger.Infof("recording ended: sessionId=%s, userId=%s, turns=%d",
		sessionID, userID, len(sess.Turns))
	return nil
}
