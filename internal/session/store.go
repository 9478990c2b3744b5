package internal_session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"gorm.io/gorm"
)

// Store provides operations to save and retrieve conversation sessions.
//
// Sessions are whole-document records: Replace overwrites the full row with
// no optimistic concurrency token. Turn appends are last-write-wins; a single
// active recording client per session is assumed. The mixer, which runs out
// of band, only writes at finalize (ended → completed), so the two writers
// touch disjoint lifecycle phases.
type Store interface {
	// Create persists a new session row.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by its (sessionId, userId) identity.
	// Returns ErrSessionNotFound if no such row exists.
	Get(ctx context.Context, sessionID, userID string) (*Session, error)

	// Replace overwrites the stored document with the given session.
	Replace(ctx context.Context, sess *Session) error
}

type postgresStore struct {
	postgres connectors.PostgresConnector
	logger   commons.Logger
}

// NewStore creates a session store backed by Postgres.
func NewStore(postgres connectors.PostgresConnector, logger commons.Logger) Store {
	return &postgresStore{
		postgres: postgres,
		logger:   logger,
	}
}

func (s *postgresStore) Create(ctx context.Context, sess *Session) error {
	db := s.postgres.DB(ctx)
	if err := db.Create(sess).Error; err != nil {
		return fmt.Errorf("failed to create session %s: %w", sess.SessionID, err)
	}

	s.logger.Infof("created session: sessionId=%s, userId=%s, level=%s",
		sess.SessionID, sess.UserID, sess.Level)
	return nil
}

func (s *postgresStore) Get(ctx context.Context, sessionID, userID string) (*Session, error) {
	db := s.postgres.DB(ctx)
	var sess Session
	err := db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s for user %s: %w", sessionID, userID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	return &sess, nil
}

func (s *postgresStore) Replace(ctx context.Context, sess *Session) error {
	db := s.postgres.DB(ctx)
	result := db.Model(&Session{}).
		Where("session_id = ? AND user_id = ?", sess.SessionID, sess.UserID).
		Select("status", "audio_urls", "turns", "updated_date").
		Updates(map[string]interface{}{
			"status":       sess.Status,
			"audio_urls":   sess.AudioUrls,
			"turns":        sess.Turns,
			"updated_date": sess.UpdatedDate,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to replace session %s: %w", sess.SessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s for user %s: %w", sess.SessionID, sess.UserID, ErrSessionNotFound)
	}

	s.logger.Debugf("replaced session: sessionId=%s, status=%s, turns=%d",
		sess.SessionID, sess.Status, len(sess.Turns))
	return nil
}
