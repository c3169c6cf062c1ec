package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/internal/service"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"
	"reelsdownload/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MediaResolver turns a validated post URL into a direct media link
type MediaResolver interface {
	Resolve(ctx context.Context, videoURL string) (*model.ResolvedMedia, error)
}

// DownloadHandler handles download link requests
type DownloadHandler struct {
	resolver  MediaResolver
	localizer *i18n.Localizer
	metrics   *metrics.Metrics
	cfg       *model.Config
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(resolver MediaResolver, loc *i18n.Localizer, m *metrics.Metrics, cfg *model.Config) *DownloadHandler {
	return &DownloadHandler{
		resolver:  resolver,
		localizer: loc,
		metrics:   m,
		cfg:       cfg,
	}
}

// DownloadReels handles POST /api/download/reels. Rate limiting runs before
// it as route middleware.
func (h *DownloadHandler) DownloadReels(c *gin.Context) {
	log := logger.WithRequest(c)

	var req model.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("Invalid download request body", zap.Error(err))
		h.fail(c, http.StatusBadRequest, i18n.InvalidLinkError, metrics.OutcomeInvalidLink)
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		h.fail(c, http.StatusBadRequest, i18n.InvalidLinkError, metrics.OutcomeInvalidLink)
		return
	}

	cleanedURL := validator.CleanURL(req.URL)

	if !validator.IsSafeURL(cleanedURL, h.cfg.Security.AllowedDomains) {
		log.Debug("URL rejected by allow-list", zap.String("url", cleanedURL))
		h.fail(c, http.StatusBadRequest, i18n.InvalidLinkError, metrics.OutcomeInvalidLink)
		return
	}

	if !validator.IsHTTPURL(cleanedURL) {
		log.Debug("URL scheme rejected", zap.String("url", cleanedURL))
		h.fail(c, http.StatusBadRequest, i18n.InvalidLinkError, metrics.OutcomeInvalidLink)
		return
	}

	if h.cfg.RapidAPI.Key == "" {
		log.Error("RapidAPI key is not configured (RAPIDAPI_KEY)")
		h.fail(c, http.StatusInternalServerError, i18n.GeneralDownloadError, metrics.OutcomeConfiguration)
		return
	}
	if h.cfg.RapidAPI.Host == "" {
		log.Error("RapidAPI host is not configured (RAPIDAPI_HOST)")
		h.fail(c, http.StatusInternalServerError, i18n.GeneralDownloadError, metrics.OutcomeConfiguration)
		return
	}

	media, err := h.resolver.Resolve(c.Request.Context(), cleanedURL)
	if err != nil {
		status, outcome := classifyResolveError(err)
		if outcome == metrics.OutcomeUnexpected {
			log.Error("Error processing download request", zap.Error(err), zap.String("url", cleanedURL))
		}
		h.fail(c, status, i18n.GeneralDownloadError, outcome)
		return
	}

	h.metrics.ObserveRequest(metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, model.DownloadResponse{
		Success:      true,
		Message:      h.localizer.T(c, i18n.DownloadStartingMessage),
		DownloadLink: media.DownloadLink,
	})
}

// HealthCheck handles GET /api/health
func (h *DownloadHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "reels-downloader",
		"configured": h.cfg.RapidAPI.Configured(),
	})
}

func (h *DownloadHandler) fail(c *gin.Context, status int, key, outcome string) {
	h.metrics.ObserveRequest(outcome)
	c.JSON(status, model.DownloadResponse{
		Success: false,
		Error:   h.localizer.T(c, key),
	})
}

// classifyResolveError maps a resolver failure to the response status.
// Upstream error statuses pass through; anything else is a 500 or 502.
func classifyResolveError(err error) (int, string) {
	var statusErr *service.UpstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 400 && statusErr.StatusCode <= 599 {
			return statusErr.StatusCode, metrics.OutcomeUpstream
		}
		return http.StatusBadGateway, metrics.OutcomeUpstream
	case errors.Is(err, service.ErrMalformedResponse):
		return http.StatusInternalServerError, metrics.OutcomeUpstream
	default:
		return http.StatusInternalServerError, metrics.OutcomeUnexpected
	}
}
