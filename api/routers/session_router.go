package routers

import (
	"github.com/gin-gonic/gin"

	session_api "github.com/jjpp222/tutor-aleman-backend/api/session-api/api"
	internal_recorder "github.com/jjpp222/tutor-aleman-backend/internal/recorder"
	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"github.com/jjpp222/tutor-aleman-backend/pkg/middlewares"
	"github.com/jjpp222/tutor-aleman-backend/pkg/types"
)

func SessionApiRoute(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	store internal_session.Store,
	recorder internal_recorder.Recorder,
	storage connectors.BlobStorageConnector,
	verifier types.TokenVerifier,
) {
	apiv1 := engine.Group("v1/recording-session")
	apiv1.Use(middlewares.Authenticated(verifier, logger))
	sessionApi := session_api.NewSessionApi(cfg, logger, store, recorder, storage)
	{
		apiv1.POST("/start", sessionApi.StartSession)
		apiv1.POST("/append", sessionApi.AppendTurn)
		apiv1.POST("/append-bot-audio", sessionApi.AppendBotAudio)
		apiv1.POST("/end", sessionApi.EndSession)
		apiv1.GET("/download/:sessionId", sessionApi.Download)
	}
}
