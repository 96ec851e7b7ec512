package moderator

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// ModeratorRouter authorizes reviewers and routes their commands and button
// presses to the registered handlers.
type ModeratorRouter struct {
	log              zerolog.Logger
	userRepo         ports.UserRepository
	authz            ports.Authorizer
	botClient        ports.BotClientPort
	commandHandlers  map[string]ports.CommandHandler
	callbackHandlers map[string]ports.CallbackHandler
}

// NewModeratorRouter creates the router and subscribes it to the update topics.
func NewModeratorRouter(
	userRepo ports.UserRepository,
	authz ports.Authorizer,
	botClient ports.BotClientPort,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *ModeratorRouter {
	r := &ModeratorRouter{
		log:              baseLogger.With().Str("component", "moderator_router").Logger(),
		userRepo:         userRepo,
		authz:            authz,
		botClient:        botClient,
		commandHandlers:  make(map[string]ports.CommandHandler),
		callbackHandlers: make(map[string]ports.CallbackHandler),
	}
	bus.Subscribe(TopicMessage, r.handleEvent)
	bus.Subscribe(TopicCallbackQuery, r.handleEvent)
	return r
}

func (r *ModeratorRouter) RegisterCommandHandler(handler ports.CommandHandler) {
	cmd := handler.Command()
	r.commandHandlers[cmd] = handler
	r.log.Info().Str("command", cmd).Msg("Registered new moderator command")
}

func (r *ModeratorRouter) RegisterCallbackHandler(handler ports.CallbackHandler) {
	prefix := handler.Prefix()
	r.callbackHandlers[prefix] = handler
	r.log.Info().Str("prefix", prefix).Msg("Registered new moderator callback")
}

func (r *ModeratorRouter) handleEvent(ctx context.Context, event ports.Event) error {
	update, ok := event.Data.(tgbotapi.Update)
	if !ok {
		r.log.Error().Str("topic", event.Topic).Msg("Received non-update event")
		return nil
	}
	r.HandleUpdate(ctx, &update)
	return nil
}

// HandleUpdate is the main entry point for the moderator bot.
func (r *ModeratorRouter) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	// 1. Convert to our generic BotUpdate
	botUpdate, isSupported := parseUpdate(update)
	if !isSupported {
		r.log.Debug().Int("update_id", update.UpdateID).Msg("Received unsupported update type")
		return
	}

	// 2. Add logger context
	ctxLogger := r.log.With().
		Int64("tg_user_id", botUpdate.UserID).
		Int64("chat_id", botUpdate.ChatID).
		Logger()
	ctx = ctxLogger.WithContext(ctx)

	// 3. Only linked accounts with the review capability get through.
	user, err := r.userRepo.GetByTelegramID(ctx, botUpdate.UserID)
	if err != nil {
		ctxLogger.Error().Err(err).Msg("Failed to get user for security check")
		return
	}
	if user == nil || r.authz.Authorize(user.Principal(), domain.ActionReviewVerifications) != nil {
		ctxLogger.Warn().Msg("Unauthorized user tried to access moderator bot")
		if botUpdate.CallbackQueryID != "" {
			_ = r.botClient.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
				CallbackQueryID: botUpdate.CallbackQueryID,
				Text:            "You are not allowed to review verifications.",
				ShowAlert:       true,
			})
		}
		return
	}

	// 4. Route commands
	if botUpdate.Command != "" {
		if handler, ok := r.commandHandlers[botUpdate.Command]; ok {
			ctxLogger.Info().Str("handler", botUpdate.Command).Msg("Routing to mod command handler")
			if err := handler.Handle(ctx, botUpdate, user); err != nil {
				ctxLogger.Error().Err(err).Msg("Mod command handler failed")
			}
			return
		}
	}

	// 5. Route callbacks
	if botUpdate.CallbackData != nil {
		for prefix, handler := range r.callbackHandlers {
			if strings.HasPrefix(*botUpdate.CallbackData, prefix) {
				ctxLogger.Info().Str("handler", prefix).Str("data", *botUpdate.CallbackData).Msg("Routing to mod callback handler")
				if err := handler.Handle(ctx, botUpdate, user); err != nil {
					ctxLogger.Error().Err(err).Msg("Mod callback handler failed")
				}
				return
			}
		}
		ctxLogger.Warn().Str("data", *botUpdate.CallbackData).Msg("No callback handler found")
		return
	}

	ctxLogger.Debug().Msg("Moderator bot received unhandled update")
}

func parseUpdate(update *tgbotapi.Update) (*ports.BotUpdate, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return nil, false
		}
		return &ports.BotUpdate{
			MessageID:       cb.Message.MessageID,
			ChatID:          cb.Message.Chat.ID,
			UserID:          cb.From.ID,
			CallbackQueryID: cb.ID,
			CallbackData:    &cb.Data,
		}, true
	}

	if msg := update.Message; msg != nil && msg.From != nil {
		return &ports.BotUpdate{
			MessageID: msg.MessageID,
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			Text:      msg.Text,
			Command:   msg.Command(),
		}, true
	}

	return nil, false
}
