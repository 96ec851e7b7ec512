package moderator

import (
	"github.com/rs/zerolog"

	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
	"CasaBid/internal/shared/config"
)

// Deps is what moderator handlers are built from.
type Deps struct {
	Cfg           config.ModeratorBotConfig
	Review        *services.ReviewService
	Verifications ports.VerificationRepository
	Store         ports.DocumentStore
	Bot           ports.BotClientPort
	Bus           ports.EventBus
}

type CommandHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CommandHandler

type CallbackHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CallbackHandler

// SubscriberConstructor builds a handler that listens on the event bus
// instead of on Telegram updates.
type SubscriberConstructor func(deps Deps, baseLogger *zerolog.Logger)

var (
	commandRegistry    []CommandHandlerConstructor
	callbackRegistry   []CallbackHandlerConstructor
	subscriberRegistry []SubscriberConstructor
)

func RegisterCommand(constructor CommandHandlerConstructor) {
	commandRegistry = append(commandRegistry, constructor)
}

func RegisterCallback(constructor CallbackHandlerConstructor) {
	callbackRegistry = append(callbackRegistry, constructor)
}

func RegisterSubscriber(constructor SubscriberConstructor) {
	subscriberRegistry = append(subscriberRegistry, constructor)
}

// RegisterAllHandlers builds every registered handler and attaches it.
func RegisterAllHandlers(router *ModeratorRouter, deps Deps, baseLogger *zerolog.Logger) {
	log := baseLogger.With().Str("component", "moderator_registry").Logger()

	for _, constructor := range commandRegistry {
		router.RegisterCommandHandler(constructor(deps, baseLogger))
	}
	for _, constructor := range callbackRegistry {
		router.RegisterCallbackHandler(constructor(deps, baseLogger))
	}
	for _, constructor := range subscriberRegistry {
		constructor(deps, baseLogger)
	}
	log.Info().
		Int("commands", len(commandRegistry)).
		Int("callbacks", len(callbackRegistry)).
		Int("subscribers", len(subscriberRegistry)).
		Msg("Moderator handlers registered")
}
