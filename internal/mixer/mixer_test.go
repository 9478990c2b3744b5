package internal_mixer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
)

type memoryStore struct {
	sessions map[string]*internal_session.Session
	replaces int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]*internal_session.Session{}}
}

func key(sessionID, userID string) string { return sessionID + "/" + userID }

func (s *memoryStore) Create(ctx context.Context, sess *internal_session.Session) error {
	cp := *sess
	s.sessions[key(sess.SessionID, sess.UserID)] = &cp
	return nil
}

func (s *memoryStore) Get(ctx context.Context, sessionID, userID string) (*internal_session.Session, error) {
	sess, ok := s.sessions[key(sessionID, userID)]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, internal_session.ErrSessionNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (s *memoryStore) Replace(ctx context.Context, sess *internal_session.Session) error {
	k := key(sess.SessionID, sess.UserID)
	if _, ok := s.sessions[k]; !ok {
		return fmt.Errorf("session %s: %w", sess.SessionID, internal_session.ErrSessionNotFound)
	}
	cp := *sess
	s.sessions[k] = &cp
	s.replaces++
	return nil
}

type fakeStorage struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	existsCalls map[string]int
	uploads     int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		blobs:       map[string][]byte{},
		existsCalls: map[string]int{},
	}
}

func (f *fakeStorage) Exists(ctx context.Context, blobName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls[blobName]++
	_, ok := f.blobs[blobName]
	return ok, nil
}

func (f *fakeStorage) GetProperties(ctx context.Context, blobName string) (*connectors.BlobProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[blobName]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", blobName)
	}
	return &connectors.BlobProperties{Size: int64(len(data))}, nil
}

func (f *fakeStorage) DownloadToFile(ctx context.Context, blobName, localPath string) error {
	f.mu.Lock()
	data, ok := f.blobs[blobName]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("blob %s not found", blobName)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeStorage) UploadFile(ctx context.Context, localPath, blobName, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[blobName] = data
	f.uploads++
	return nil
}

func (f *fakeStorage) PresignGet(blobName string, expiry time.Duration) (string, error) {
	return "https://blobs.test/" + blobName, nil
}

type fakeEngine struct {
	transcodes    int
	mixes         int
	lastMixInput  string
	failTranscode error
	failMix       error
}

func (e *fakeEngine) Transcode(ctx context.Context, inputPath, outputPath string) error {
	e.transcodes++
	if e.failTranscode != nil {
		return e.failTranscode
	}
	return os.WriteFile(outputPath, []byte("transcoded"), 0o644)
}

func (e *fakeEngine) Mix(ctx context.Context, userPath, botPath, outputPath, bitrate string) error {
	e.mixes++
	e.lastMixInput = userPath
	if e.failMix != nil {
		return e.failMix
	}
	return os.WriteFile(outputPath, []byte("mixed"), 0o644)
}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-mixer"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

const pollAttempts = 3

func newTestMixer(t *testing.T, store internal_session.Store, storage connectors.BlobStorageConnector, engine Engine) (*Mixer, string) {
	t.Helper()
	scratch := t.TempDir()
	m := NewMixer(store, storage, engine, Config{
		ScratchDir:    scratch,
		PollAttempts:  pollAttempts,
		PollDelay:     time.Millisecond,
		MixTimeout:    time.Second,
		OutputBitrate: "128k",
	}, newTestLogger(t))
	return m, scratch
}

func endedSession(format string) *internal_session.Session {
	return &internal_session.Session{
		SessionID:       "s-1",
		UserID:          "u-1",
		Status:          internal_session.StatusEnded,
		Level:           "B1",
		UserAudioFormat: format,
		AudioUrls:       internal_session.AudioUrls{},
		Turns:           internal_session.Turns{},
	}
}

func seedTracks(storage *fakeStorage, sess *internal_session.Session) {
	storage.blobs[sess.UserTrackBlob()] = []byte("user audio")
	storage.blobs[sess.BotTrackBlob()] = []byte("bot audio")
}

func TestRunUnknownSession(t *testing.T) {
	store := newMemoryStore()
	m, _ := newTestMixer(t, store, newFakeStorage(), &fakeEngine{})

	err := m.Run(context.Background(), "missing", "u-1")
	require.ErrorIs(t, err, internal_session.ErrSessionNotFound)
}

func TestRunSkipsWhenMixAlreadyExists(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{}
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	storage.blobs[sess.MixedBlob()] = []byte("previous mix")

	m, _ := newTestMixer(t, store, storage, engine)
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))

	assert.Zero(t, engine.mixes, "expected no re-mix")
	assert.Zero(t, store.replaces, "expected no session write")
}

func TestRunMissingBotTrackExhaustsPollBudget(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	storage.blobs[sess.UserTrackBlob()] = []byte("user audio")

	m, _ := newTestMixer(t, store, storage, &fakeEngine{})
	err := m.Run(context.Background(), "s-1", "u-1")

	require.ErrorIs(t, err, internal_session.ErrArtifactNotReady)
	var notReady *internal_session.ArtifactNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, []string{internal_session.TrackBot}, notReady.Tracks)

	// the bot track was polled exactly the configured number of times
	assert.Equal(t, pollAttempts, storage.existsCalls[sess.BotTrackBlob()])
	assert.Zero(t, storage.uploads, "expected no uploads")
	assert.Zero(t, store.replaces, "expected no session writes")

	got, _ := store.Get(context.Background(), "s-1", "u-1")
	assert.Equal(t, internal_session.StatusEnded, got.Status)
}

func TestRunBothTracksMissingReportsBoth(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))

	m, _ := newTestMixer(t, store, storage, &fakeEngine{})
	err := m.Run(context.Background(), "s-1", "u-1")

	var notReady *internal_session.ArtifactNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.ElementsMatch(t, []string{internal_session.TrackUser, internal_session.TrackBot}, notReady.Tracks)
}

func TestRunEmptyArtifactIsNotReady(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	storage.blobs[sess.UserTrackBlob()] = []byte("user audio")
	storage.blobs[sess.BotTrackBlob()] = []byte{} // uploaded but empty

	m, _ := newTestMixer(t, store, storage, &fakeEngine{})
	err := m.Run(context.Background(), "s-1", "u-1")

	var notReady *internal_session.ArtifactNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, []string{internal_session.TrackBot}, notReady.Tracks)
}

func TestRunTranscodesMobileContainer(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{}
	sess := endedSession(internal_session.FormatMp4)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, _ := newTestMixer(t, store, storage, engine)
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))

	assert.Equal(t, 1, engine.transcodes, "mp4 user track must be transcoded")
	assert.True(t, strings.HasSuffix(engine.lastMixInput, "user_audio.wav"),
		"mix must consume the transcoded file, got %s", engine.lastMixInput)
}

func TestRunSkipsTranscodeForDirectFormats(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{}
	sess := endedSession(internal_session.FormatWebm)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, _ := newTestMixer(t, store, storage, engine)
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))

	assert.Zero(t, engine.transcodes)
	assert.True(t, strings.HasSuffix(engine.lastMixInput, "user_audio.webm"))
}

func TestRunTranscodeFailureIsTerminal(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{failTranscode: errors.New("bad container")}
	sess := endedSession(internal_session.FormatMp4)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, _ := newTestMixer(t, store, storage, engine)
	err := m.Run(context.Background(), "s-1", "u-1")

	require.ErrorIs(t, err, internal_session.ErrTranscodeFailed)
	assert.Zero(t, engine.mixes, "mix must not run after transcode failure")
	assert.Zero(t, storage.uploads)
	got, _ := store.Get(context.Background(), "s-1", "u-1")
	assert.Equal(t, internal_session.StatusEnded, got.Status, "failure must leave status unchanged")
}

func TestRunMixFailureLeavesSessionEnded(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{failMix: errors.New("amix blew up")}
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, _ := newTestMixer(t, store, storage, engine)
	err := m.Run(context.Background(), "s-1", "u-1")

	require.ErrorIs(t, err, internal_session.ErrMixFailed)
	assert.Zero(t, storage.uploads)

	got, _ := store.Get(context.Background(), "s-1", "u-1")
	assert.Equal(t, internal_session.StatusEnded, got.Status)
	assert.Empty(t, got.AudioUrls[internal_session.TrackMixed])
}

func TestRunSuccessCompletesSession(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{}
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, scratchRoot := newTestMixer(t, store, storage, engine)
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))

	got, err := store.Get(context.Background(), "s-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, internal_session.StatusCompleted, got.Status)
	assert.Equal(t, got.MixedBlob(), got.AudioUrls[internal_session.TrackMixed])
	assert.Equal(t, []byte("mixed"), storage.blobs[got.MixedBlob()])

	// scratch area is removed after the run
	_, statErr := os.Stat(filepath.Join(scratchRoot, "mix-s-1"))
	assert.True(t, os.IsNotExist(statErr), "expected scratch dir to be cleaned up")
}

func TestRunTwiceSequentiallyIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	storage := newFakeStorage()
	engine := &fakeEngine{}
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))
	seedTracks(storage, sess)

	m, _ := newTestMixer(t, store, storage, engine)
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))
	require.NoError(t, m.Run(context.Background(), "s-1", "u-1"))

	assert.Equal(t, 1, engine.mixes, "second run must not re-invoke the mixer")
	assert.Equal(t, 1, store.replaces, "second run must not mutate the session again")
}

func TestMarkFailed(t *testing.T) {
	store := newMemoryStore()
	sess := endedSession(internal_session.FormatWav)
	require.NoError(t, store.Create(context.Background(), sess))

	m, _ := newTestMixer(t, store, newFakeStorage(), &fakeEngine{})
	require.NoError(t, m.MarkFailed(context.Background(), "s-1", "u-1"))

	got, _ := store.Get(context.Background(), "s-1", "u-1")
	assert.Equal(t, internal_session.StatusFailed, got.Status)

	// completed sessions cannot regress to failed
	got.Status = internal_session.StatusCompleted
	require.NoError(t, store.Replace(context.Background(), got))
	err := m.MarkFailed(context.Background(), "s-1", "u-1")
	require.ErrorIs(t, err, internal_session.ErrInvalidState)
}
