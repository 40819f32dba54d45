package notify

import (
	"context"
	"fmt"
	"strconv"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/pkg/logger"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelegramSender posts owner notifications through the bot, globally
// rate-limited to stay under the Bot API send limits.
type TelegramSender struct {
	cfg     *config.TelegramConfig
	log     *logger.Logger
	bot     *telebot.Bot
	limiter *rate.Limiter
}

func NewTelegramSender(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) *TelegramSender {
	perSecond := cfg.MaxGlobalRequestPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &TelegramSender{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (s *TelegramSender) Channel() string {
	return model.NotifyChannelTelegram
}

func (s *TelegramSender) Send(ctx context.Context, n Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	chatID, err := strconv.ParseInt(s.cfg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", s.cfg.ChatID, err)
	}

	if _, err := s.bot.Send(telebot.ChatID(chatID), formatMessage(n)); err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}
