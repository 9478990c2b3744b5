package routers

import (
	"github.com/gin-gonic/gin"

	speech_api "github.com/jjpp222/tutor-aleman-backend/api/speech-api/api"
	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/middlewares"
	"github.com/jjpp222/tutor-aleman-backend/pkg/types"
)

func SpeechApiRoute(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	verifier types.TokenVerifier,
) {
	apiv1 := engine.Group("v1/speech")
	apiv1.Use(middlewares.Authenticated(verifier, logger))
	speechApi := speech_api.NewSpeechApi(cfg, logger)
	{
		apiv1.POST("/synthesize", speechApi.Synthesize)
	}
}
