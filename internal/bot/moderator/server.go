package moderator

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/ports"
	"CasaBid/internal/shared/config"
)

// Bus topics carrying raw Telegram updates.
const (
	TopicMessage       = "telegram:mod:message"
	TopicCallbackQuery = "telegram:mod:callback_query"
)

// ModeratorServer receives updates (polling or webhook) and publishes them
// on the event bus. It does no routing itself.
type ModeratorServer struct {
	api *tgbotapi.BotAPI
	cfg config.ModeratorBotConfig
	bus ports.EventBus
	log zerolog.Logger
}

// NewModeratorServer creates a new server instance
func NewModeratorServer(
	api *tgbotapi.BotAPI,
	cfg config.ModeratorBotConfig,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *ModeratorServer {
	return &ModeratorServer{
		api: api,
		cfg: cfg,
		bus: bus,
		log: baseLogger.With().Str("component", "moderator_server").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (s *ModeratorServer) Start(ctx context.Context) error {
	s.log.Info().Str("mode", s.cfg.Mode).Msg("Starting moderator server...")

	switch s.cfg.Mode {
	case "polling":
		return s.startPolling(ctx)
	case "webhook":
		return s.startWebhook(ctx)
	default:
		return fmt.Errorf("unknown bot mode: %s", s.cfg.Mode)
	}
}

func (s *ModeratorServer) startPolling(ctx context.Context) error {
	// 1. Clear any existing webhook
	if _, err := s.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to delete webhook (continuing anyway)")
	}

	// 2. Listen for messages and button presses only
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := s.api.GetUpdatesChan(u)

	s.log.Info().Msg("Polling update listener started")

	// 3. Poll and publish
	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			s.log.Info().Msg("Polling stopped gracefully")
			return nil
		case update := <-updates:
			s.publishUpdate(ctx, update)
		}
	}
}

func (s *ModeratorServer) startWebhook(ctx context.Context) error {
	// 1. Register the webhook with Telegram
	path := "/webhook/" + s.api.Token
	wh, err := tgbotapi.NewWebhook(s.cfg.WebhookURL + path)
	if err != nil {
		return fmt.Errorf("create webhook config: %w", err)
	}
	if _, err = s.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	info, err := s.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		s.log.Error().Str("error_message", info.LastErrorMessage).Msg("Telegram webhook has a last error")
	}

	// 2. Serve the webhook endpoint
	updates := s.api.ListenForWebhook(path)
	httpServer := &http.Server{Addr: "127.0.0.1:" + s.cfg.WebhookPort}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Webhook HTTP server failed")
		}
	}()
	s.log.Info().Str("addr", httpServer.Addr).Msg("Webhook update listener started")

	// 3. Listen and publish
	for {
		select {
		case <-ctx.Done():
			if err := httpServer.Shutdown(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("Webhook HTTP server shutdown error")
			}
			s.log.Info().Msg("Webhook server stopped gracefully")
			return nil
		case update := <-updates:
			s.publishUpdate(ctx, update)
		}
	}
}

func (s *ModeratorServer) publishUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil:
		err = s.bus.Publish(ctx, TopicMessage, update)
	case update.CallbackQuery != nil:
		err = s.bus.Publish(ctx, TopicCallbackQuery, update)
	}
	if err != nil {
		s.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("Failed to publish update")
	}
}
