package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"CasaBid/internal/bot/messages"
	"CasaBid/internal/bot/moderator"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
)

const pendingListLimit = 20

func init() {
	moderator.RegisterCommand(NewPendingHandler)
}

// pendingHandler answers /pending with the manual review queue.
type pendingHandler struct {
	log    zerolog.Logger
	review *services.ReviewService
	bot    ports.BotClientPort
}

func NewPendingHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CommandHandler {
	return &pendingHandler{
		log:    baseLogger.With().Str("component", "pending_handler").Logger(),
		review: deps.Review,
		bot:    deps.Bot,
	}
}

func (h *pendingHandler) Command() string {
	return "pending"
}

func (h *pendingHandler) Handle(ctx context.Context, update *ports.BotUpdate, reviewer *domain.User) error {
	status := domain.StatusManualReview
	recs, err := h.review.List(ctx, reviewer.Principal(), domain.VerificationFilter{Status: &status, Limit: pendingListLimit})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list pending verifications")
		return err
	}

	if len(recs) == 0 {
		_, err = h.bot.SendMessage(ctx, messages.NewBuilder(update.ChatID).
			WithText("No verifications are waiting for review\\.").
			Build())
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%d waiting for review*\n\n", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(&b, "• %s, since %s\n  `%s`\n",
			messages.EscapeMarkdown(rec.FullName),
			messages.EscapeMarkdown(rec.UpdatedAt.Format("02 Jan 15:04")),
			rec.ID)
	}
	_, err = h.bot.SendMessage(ctx, messages.NewBuilder(update.ChatID).WithText(b.String()).Build())
	return err
}
