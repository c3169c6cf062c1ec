package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Upstream headers
const (
	HeaderAPIKey  = "X-RapidAPI-Key"
	HeaderAPIHost = "X-RapidAPI-Host"
)

const downloadPath = "/download"

// upstreamResponse models data.medias[0].url with every step optional
type upstreamResponse struct {
	Data *struct {
		Medias []*struct {
			URL *string `json:"url"`
		} `json:"medias"`
	} `json:"data"`
}

// MediaResolverService turns a post URL into a direct media link through the
// media resolution API
type MediaResolverService struct {
	cfg      *model.RapidAPIConfig
	client   *resty.Client
	throttle *rate.Limiter
	metrics  *metrics.Metrics
}

// NewMediaResolverService creates a new resolver
func NewMediaResolverService(cfg *model.RapidAPIConfig, m *metrics.Metrics) *MediaResolverService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	var throttle *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		throttle = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &MediaResolverService{
		cfg:      cfg,
		client:   client,
		throttle: throttle,
		metrics:  m,
	}
}

// Resolve asks the upstream API for the media behind videoURL. videoURL must
// already be cleaned and validated.
func (s *MediaResolverService) Resolve(ctx context.Context, videoURL string) (*model.ResolvedMedia, error) {
	if s.throttle != nil {
		if err := s.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for upstream slot: %w", err)
		}
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("url", videoURL).
		SetHeader(HeaderAPIKey, s.cfg.Key).
		SetHeader(HeaderAPIHost, s.cfg.Host).
		Get(downloadPath)
	if err != nil {
		s.metrics.ObserveUpstream("transport_error", time.Since(start))
		return nil, fmt.Errorf("call media resolution api: %w", err)
	}

	if !resp.IsSuccess() {
		s.metrics.ObserveUpstream("status_error", resp.Time())
		logger.Logger.Error("Media resolution API call failed",
			zap.Int("status", resp.StatusCode()),
			zap.String("url", videoURL))
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode()}
	}

	link, err := extractMediaURL(resp.Body())
	if err != nil {
		s.metrics.ObserveUpstream("malformed", resp.Time())
		logger.Logger.Error("Media resolution API response does not contain a valid video URL",
			zap.String("url", videoURL),
			zap.String("response", resp.String()),
			zap.NamedError("cause", err))
		return nil, ErrMalformedResponse
	}

	s.metrics.ObserveUpstream("ok", resp.Time())
	logger.Logger.Info("Media resolved", zap.String("url", videoURL))

	return &model.ResolvedMedia{DownloadLink: link}, nil
}

// extractMediaURL walks data.medias[0].url, failing on the first missing or
// mistyped step
func extractMediaURL(body []byte) (string, error) {
	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}

	switch {
	case parsed.Data == nil:
		return "", fmt.Errorf("missing data")
	case len(parsed.Data.Medias) == 0:
		return "", fmt.Errorf("missing or empty data.medias")
	case parsed.Data.Medias[0] == nil:
		return "", fmt.Errorf("data.medias[0] is null")
	case parsed.Data.Medias[0].URL == nil:
		return "", fmt.Errorf("missing data.medias[0].url")
	}

	link := strings.TrimSpace(*parsed.Data.Medias[0].URL)
	if link == "" {
		return "", fmt.Errorf("blank data.medias[0].url")
	}
	return link, nil
}
