package notify

import (
	"context"
	"fmt"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/pkg/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DiscordSender posts owner notifications to a webhook.
type DiscordSender struct {
	cfg     *config.DiscordConfig
	log     *logger.Logger
	client  *resty.Client
	limiter *rate.Limiter
}

func NewDiscordSender(cfg *config.DiscordConfig, log *logger.Logger) *DiscordSender {
	perSecond := cfg.MaxGlobalRequestPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &DiscordSender{
		cfg:     cfg,
		log:     log,
		client:  resty.New().SetTimeout(cfg.TimeoutDuration),
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (s *DiscordSender) Channel() string {
	return model.NotifyChannelDiscord
}

func (s *DiscordSender) Send(ctx context.Context, n Notification) error {
	if s.cfg.WebhookURL == "" {
		return fmt.Errorf("discord webhook url is not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("discord rate limit wait: %w", err)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"content": formatMessage(n)}).
		Post(s.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode())
	}
	return nil
}
