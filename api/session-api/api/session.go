package session_api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internal_recorder "github.com/jjpp222/tutor-aleman-backend/internal/recorder"
	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"github.com/jjpp222/tutor-aleman-backend/pkg/types"
	"github.com/jjpp222/tutor-aleman-backend/pkg/utils"
)

const downloadURLExpiry = 15 * time.Minute

type SessionApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	store    internal_session.Store
	recorder internal_recorder.Recorder
	storage  connectors.BlobStorageConnector
}

func NewSessionApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	store internal_session.Store,
	recorder internal_recorder.Recorder,
	storage connectors.BlobStorageConnector,
) *SessionApi {
	return &SessionApi{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		recorder: recorder,
		storage:  storage,
	}
}

type startSessionRequest struct {
	Level       string `json:"level" binding:"required"`
	AudioFormat string `json:"audioFormat"`
}

// StartSession creates a new recording session for the caller.
func (api *SessionApi) StartSession(c *gin.Context) {
	principle, ok := types.GetAuthPrinciple(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "unauthenticated request")
		return
	}

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "level is required")
		return
	}

	sessionID, err := api.recorder.Start(c.Request.Context(), principle.UserID, req.Level, req.AudioFormat)
	if err != nil {
		api.logger.Errorf("start session for user %s: %v", principle.UserID, err)
		utils.InternalError(c)
		return
	}

	utils.Success(c, gin.H{"sessionId": sessionID})
}

type appendTurnRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Speaker   string `json:"speaker" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

// AppendTurn appends one conversational turn to a live session.
func (api *SessionApi) AppendTurn(c *gin.Context) {
	principle, ok := types.GetAuthPrinciple(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "unauthenticated request")
		return
	}

	var req appendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "sessionId, speaker and text are required")
		return
	}

	err := api.recorder.AppendTurn(c.Request.Context(), req.SessionID, principle.UserID, internal_session.Turn{
		Speaker: req.Speaker,
		Text:    req.Text,
	})
	if err != nil {
		api.writeDomainError(c, "append turn", req.SessionID, err)
		return
	}

	utils.Success(c, gin.H{"ack": true})
}

type appendBotAudioRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	AudioRef  string `json:"audioRef" binding:"required"`
}

// AppendBotAudio records the bot-side audio blob reference on a live session.
func (api *SessionApi) AppendBotAudio(c *gin.Context) {
	principle, ok := types.GetAuthPrinciple(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "unauthenticated request")
		return
	}

	var req appendBotAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "sessionId and audioRef are required")
		return
	}

	err := api.recorder.AppendBotAudio(c.Request.Context(), req.SessionID, principle.UserID, req.AudioRef)
	if err != nil {
		api.writeDomainError(c, "append bot audio", req.SessionID, err)
		return
	}

	utils.Success(c, gin.H{"ack": true})
}

type endSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// EndSession transitions the session to ended and triggers mixing out of band.
func (api *SessionApi) EndSession(c *gin.Context) {
	principle, ok := types.GetAuthPrinciple(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "unauthenticated request")
		return
	}

	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "sessionId is required")
		return
	}

	if err := api.recorder.End(c.Request.Context(), req.SessionID, principle.UserID); err != nil {
		api.writeDomainError(c, "end session", req.SessionID, err)
		return
	}

	utils.Success(c, gin.H{"ack": true})
}

// Download returns a time-limited URL for the mixed recording once the
// session is completed. Until then the mix simply does not exist for the
// caller: no partial or interim state is exposed.
func (api *SessionApi) Download(c *gin.Context) {
	principle, ok := types.GetAuthPrinciple(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "unauthenticated request")
		return
	}

	sessionID := c.Param("sessionId")
	sess, err := api.store.Get(c.Request.Context(), sessionID, principle.UserID)
	if err != nil {
		api.writeDomainError(c, "download", sessionID, err)
		return
	}

	if sess.Status != internal_session.StatusCompleted {
		utils.Error(c, http.StatusNotFound, "recording is not available yet")
		return
	}

	url, err := api.storage.PresignGet(sess.AudioUrls[internal_session.TrackMixed], downloadURLExpiry)
	if err != nil {
		api.logger.Errorf("presign mix for session %s: %v", sessionID, err)
		utils.InternalError(c)
		return
	}

	utils.Success(c, gin.H{"url": url})
}

func (api *SessionApi) writeDomainError(c *gin.Context, op, sessionID string, err error) {
	switch {
	case errors.Is(err, internal_session.ErrSessionNotFound):
		utils.Error(c, http.StatusNotFound, "session not found")
	case errors.Is(err, internal_session.ErrInvalidState):
		utils.Error(c, http.StatusConflict, "operation is not valid for the session state")
	default:
		api.logger.Errorf("%s for session %s: %v", op, sessionID, err)
		utils.InternalError(c)
	}
}
