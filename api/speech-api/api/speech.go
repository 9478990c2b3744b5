package speech_api

import (
	"html"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"

	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/utils"
)

// SpeechApi proxies text-to-speech requests to the configured upstream
// speech service so the synthesis key never reaches the browser.
type SpeechApi struct {
	cfg    *config.AppConfig
	logger commons.Logger
	client *resty.Client
}

func NewSpeechApi(cfg *config.AppConfig, logger commons.Logger) *SpeechApi {
	client := resty.New().
		SetBaseURL(cfg.SpeechConfig.Host).
		SetTimeout(30 * time.Second).
		SetHeader("Ocp-Apim-Subscription-Key", cfg.SpeechConfig.ApiKey)

	return &SpeechApi{
		cfg:    cfg,
		logger: logger,
		client: client,
	}
}

type synthesizeRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

// Synthesize forwards the text to the upstream service and streams the audio
// back to the caller.
func (api *SpeechApi) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "text is required")
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = api.cfg.SpeechConfig.Voice
	}

	resp, err := api.client.R().
		SetContext(c.Request.Context()).
		SetHeader("Content-Type", "application/ssml+xml").
		SetHeader("X-Microsoft-OutputFormat", "audio-24khz-96kbitrate-mono-mp3").
		SetBody(ssml(req.Text, voice)).
		Post("/cognitiveservices/v1")
	if err != nil {
		api.logger.Errorf("speech synthesis request: %v", err)
		utils.InternalError(c)
		return
	}
	if resp.IsError() {
		api.logger.Errorf("speech synthesis upstream status %d: %s", resp.StatusCode(), resp.String())
		utils.Error(c, http.StatusBadGateway, "speech service is unavailable")
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", resp.Body())
}

func ssml(text, voice string) string {
	return `<speak version='1.0' xml:lang='de-DE'><voice name='` + voice + `'>` +
		html.EscapeString(text) + `</voice></speak>`
}
