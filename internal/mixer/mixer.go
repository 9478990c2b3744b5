package internal_mixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"golang.org/x/sync/errgroup"
)

const mixedContentType = "audio/mpeg"

// Config bounds one mix run.
type Config struct {
	// ScratchDir is the parent of per-session working directories.
	ScratchDir string
	// PollAttempts × PollDelay is the readiness-wait budget per track.
	PollAttempts int
	PollDelay    time.Duration
	// MixTimeout bounds the mix subprocess invocation.
	MixTimeout time.Duration
	// OutputBitrate of the mixed mp3, e.g. "128k".
	OutputBitrate string
}

// Mixer produces the single mixed artifact from a session's two audio tracks.
//
// Run is idempotent through its existence check on the mixed blob: a
// duplicate trigger after a successful run returns without re-mixing. The
// check is check-then-act, so two truly concurrent runs for the same session
// can both pass it and mix twice; mixing is triggered once per session so
// this is accepted rather than guarded with a lease.
type Mixer struct {
	store   internal_session.Store
	storage connectors.BlobStorageConnector
	engine  Engine
	cfg     Config
	logger  commons.Logger
}

func NewMixer(
	store internal_session.Store,
	storage connectors.BlobStorageConnector,
	engine Engine,
	cfg Config,
	logger commons.Logger,
) *Mixer {
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 10
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 3 * time.Second
	}
	if cfg.MixTimeout <= 0 {
		cfg.MixTimeout = 2 * time.Minute
	}
	return &Mixer{
		store:   store,
		storage: storage,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes the full mix pipeline for one session: readiness wait for
// both tracks, local staging, conditional transcode, mix, publish, finalize.
// Any failure before finalize leaves the session status unchanged, so a
// retried run redoes the pipeline from scratch.
func (m *Mixer) Run(ctx context.Context, sessionID, userID string) error {
	sess, err := m.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	mixedBlob := sess.MixedBlob()
	exists, err := m.storage.Exists(ctx, mixedBlob)
	if err != nil {
		return fmt.Errorf("idempotence check for session %s: %w", sessionID, err)
	}
	if exists {
		m.logger.Infof("mix already exists for session %s, skipping", sessionID)
		return nil
	}

	userBlob := sess.UserTrackBlob()
	botBlob := sess.AudioUrls[internal_session.TrackBot]
	if botBlob == "" {
		botBlob = sess.BotTrackBlob()
	}

	if err := m.waitForTracks(ctx, userBlob, botBlob); err != nil {
		return err
	}

	scratch := filepath.Join(m.cfg.ScratchDir, "mix-"+sessionID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir for session %s: %w", sessionID, err)
	}
	defer m.cleanup(scratch)

	userPath := filepath.Join(scratch, "user_audio."+sess.UserAudioFormat)
	botPath := filepath.Join(scratch, "bot_audio.wav")
	mixedPath := filepath.Join(scratch, "mixed_audio.mp3")

	if err := m.storage.DownloadToFile(ctx, userBlob, userPath); err != nil {
		return fmt.Errorf("download user track for session %s: %w", sessionID, err)
	}
	if err := m.storage.DownloadToFile(ctx, botBlob, botPath); err != nil {
		return fmt.Errorf("download bot track for session %s: %w", sessionID, err)
	}

	// mp4-container uploads (mobile recorders) cannot be fed to the mixer
	// directly; everything else mixes as-is.
	mixInput := userPath
	if sess.UserAudioFormat == internal_session.FormatMp4 {
		transcoded := filepath.Join(scratch, "user_audio.wav")
		if err := m.engine.Transcode(ctx, userPath, transcoded); err != nil {
			return fmt.Errorf("session %s: %w: %v", sessionID, internal_session.ErrTranscodeFailed, err)
		}
		mixInput = transcoded
	}

	mixCtx, cancel := context.WithTimeout(ctx, m.cfg.MixTimeout)
	defer cancel()
	if err := m.engine.Mix(mixCtx, mixInput, botPath, mixedPath, m.cfg.OutputBitrate); err != nil {
		return fmt.Errorf("session %s: %w: %v", sessionID, internal_session.ErrMixFailed, err)
	}

	if err := m.storage.UploadFile(ctx, mixedPath, mixedBlob, mixedContentType); err != nil {
		return fmt.Errorf("publish mix for session %s: %w", sessionID, err)
	}

	if sess.AudioUrls == nil {
		sess.AudioUrls = internal_session.AudioUrls{}
	}
	sess.Status = internal_session.StatusCompleted
	sess.AudioUrls[internal_session.TrackMixed] = mixedBlob
	sess.UpdatedDate = time.Now()
	if err := m.store.Replace(ctx, sess); err != nil {
		return fmt.Errorf("finalize session %s: %w", sessionID, err)
	}

	m.logger.Infof("mix completed: sessionId=%s, blob=%s", sessionID, mixedBlob)
	return nil
}

// MarkFailed transitions a session to failed. Called by the trigger worker
// once its redelivery policy gives up on a session; never called from Run.
func (m *Mixer) MarkFailed(ctx context.Context, sessionID, userID string) error {
	sess, err := m.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !sess.CanTransition(internal_session.StatusFailed) {
		return fmt.Errorf("mark failed on %s session %s: %w",
			sess.Status, sessionID, internal_session.ErrInvalidState)
	}
	sess.Status = internal_session.StatusFailed
	sess.UpdatedDate = time.Now()
	return m.store.Replace(ctx, sess)
}

// waitForTracks polls both track artifacts in parallel until each exists
// with non-zero size, bounded by the configured attempts × delay. Tracks
// that never became ready are reported together.
func (m *Mixer) waitForTracks(ctx context.Context, userBlob, botBlob string) error {
	ready := make([]bool, 2)
	g := new(errgroup.Group)
	g.Go(func() error {
		ready[0] = m.waitForArtifact(ctx, userBlob)
		return nil
	})
	g.Go(func() error {
		ready[1] = m.waitForArtifact(ctx, botBlob)
		return nil
	})
	_ = g.Wait()

	var missing []string
	if !ready[0] {
		missing = append(missing, internal_session.TrackUser)
	}
	if !ready[1] {
		missing = append(missing, internal_session.TrackBot)
	}
	if len(missing) > 0 {
		return &internal_session.ArtifactNotReadyError{Tracks: missing}
	}
	return nil
}

func (m *Mixer) waitForArtifact(ctx context.Context, blobName string) bool {
	for attempt := 0; attempt < m.cfg.PollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(m.cfg.PollDelay):
			}
		}

		exists, err := m.storage.Exists(ctx, blobName)
		if err != nil {
			m.logger.Warnf("existence check for %s: %v", blobName, err)
			continue
		}
		if !exists {
			continue
		}

		props, err := m.storage.GetProperties(ctx, blobName)
		if err != nil {
			m.logger.Warnf("properties check for %s: %v", blobName, err)
			continue
		}
		if props.Size > 0 {
			return true
		}
	}
	return false
}

// cleanup removes the scratch directory; best effort, never escalated.
func (m *Mixer) cleanup(scratch string) {
	if err := os.RemoveAll(scratch); err != nil {
		m.logger.Warnf("scratch cleanup failed for %s: %v", scratch, err)
	}
}
