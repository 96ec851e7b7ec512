package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/bot/messages"
	"CasaBid/internal/bot/moderator"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
)

func init() {
	moderator.RegisterCallback(NewApprovalHandler)
}

// approvalHandler applies the decision buttons of a review card.
//
//	review_approve_<id>
//	review_reject_<code>_<id>
type approvalHandler struct {
	log    zerolog.Logger
	review *services.ReviewService
	bot    ports.BotClientPort
}

func NewApprovalHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CallbackHandler {
	return &approvalHandler{
		log:    baseLogger.With().Str("component", "approval_handler").Logger(),
		review: deps.Review,
		bot:    deps.Bot,
	}
}

func (h *approvalHandler) Prefix() string {
	return "review_"
}

func (h *approvalHandler) Handle(ctx context.Context, update *ports.BotUpdate, reviewer *domain.User) error {
	log := h.log.With().Str("reviewer_id", reviewer.ID.String()).Logger()
	data := *update.CallbackData

	var (
		id     uuid.UUID
		reason string
		err    error
	)
	switch {
	case strings.HasPrefix(data, messages.ApprovePrefix):
		id, err = uuid.Parse(strings.TrimPrefix(data, messages.ApprovePrefix))
	case strings.HasPrefix(data, messages.RejectPrefix):
		code, rawID, found := strings.Cut(strings.TrimPrefix(data, messages.RejectPrefix), "_")
		preset, known := messages.RejectReasonByCode(code)
		if !found || !known {
			err = errors.New("unknown reject reason")
			break
		}
		reason = preset.Reason
		id, err = uuid.Parse(rawID)
	default:
		err = errors.New("unknown review action")
	}
	if err != nil {
		log.Error().Err(err).Str("data", data).Msg("Invalid callback data format")
		return h.answer(ctx, update, "This button is no longer valid.", true)
	}

	log = log.With().Str("verification_id", id.String()).Logger()

	var rec *domain.VerificationRecord
	if reason == "" {
		rec, err = h.review.Approve(ctx, reviewer.Principal(), id, nil)
	} else {
		rec, err = h.review.Reject(ctx, reviewer.Principal(), id, reason, nil)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Review decision from bot not applied")
		return h.answer(ctx, update, decisionError(err), true)
	}

	log.Info().Str("status", string(rec.Status)).Msg("Review decision applied from bot")
	if err := h.answer(ctx, update, "Done.", false); err != nil {
		return err
	}
	return h.bot.EditMessageCaption(ctx, ports.EditMessageCaptionParams{
		ChatID:    update.ChatID,
		MessageID: update.MessageID,
		Caption:   messages.DecisionCaption(rec, reviewerName(reviewer)),
	})
}

func (h *approvalHandler) answer(ctx context.Context, update *ports.BotUpdate, text string, alert bool) error {
	return h.bot.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
		CallbackQueryID: update.CallbackQueryID,
		Text:            text,
		ShowAlert:       alert,
	})
}

func decisionError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrVersionConflict):
		return "This verification was already decided."
	case errors.Is(err, domain.ErrNotFound):
		return "Verification not found."
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to review verifications."
	}
	return "Something went wrong. Try again."
}

func reviewerName(u *domain.User) string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}
