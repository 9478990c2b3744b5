package health_check_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
)

type HealthCheckApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	postgres connectors.PostgresConnector
}

func New(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector) *HealthCheckApi {
	return &HealthCheckApi{
		cfg:      cfg,
		logger:   logger,
		postgres: postgres,
	}
}

// Healthz reports process liveness.
func (api *HealthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": api.cfg.Name,
		"version": api.cfg.Version,
	})
}

// Readiness reports whether downstream dependencies are reachable.
func (api *HealthCheckApi) Readiness(c *gin.Context) {
	if err := api.postgres.Ping(c.Request.Context()); err != nil {
		api.logger.Errorf("readiness: postgres unreachable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
