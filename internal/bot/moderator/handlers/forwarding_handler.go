package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"CasaBid/internal/bot/messages"
	"CasaBid/internal/bot/moderator"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/validation"
)

func init() {
	moderator.RegisterSubscriber(func(deps moderator.Deps, baseLogger *zerolog.Logger) {
		h := NewForwardingHandler(deps, baseLogger)
		deps.Bus.Subscribe(ports.TopicVerificationReview, h.HandleEvent)
	})
}

// ForwardingHandler posts every record entering manual review to the review
// channel, with the front document image and the decision buttons.
type ForwardingHandler struct {
	log       zerolog.Logger
	bot       ports.BotClientPort
	store     ports.DocumentStore
	channelID int64
}

func NewForwardingHandler(deps moderator.Deps, baseLogger *zerolog.Logger) *ForwardingHandler {
	return &ForwardingHandler{
		log:       baseLogger.With().Str("component", "forwarding_handler").Logger(),
		bot:       deps.Bot,
		store:     deps.Store,
		channelID: deps.Cfg.ReviewChannelID,
	}
}

func (h *ForwardingHandler) HandleEvent(ctx context.Context, event ports.Event) error {
	ev, ok := event.Data.(ports.VerificationEvent)
	if !ok || ev.Record == nil {
		h.log.Error().Str("topic", event.Topic).Msg("Received bad verification event from bus")
		return nil
	}
	rec := ev.Record
	log := h.log.With().Str("verification_id", rec.ID.String()).Logger()

	caption := messages.ReviewCaption(rec)
	markup := &ports.ReplyMarkup{Buttons: messages.ReviewButtons(rec.ID)}

	image, err := h.frontImage(ctx, rec)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load document image, sending text card")
	}

	if image != nil {
		_, err = h.bot.SendPhoto(ctx, ports.SendPhotoParams{
			ChatID:      h.channelID,
			FileName:    "document" + extensionOf(*rec.FrontImageRef),
			Data:        image,
			Caption:     caption,
			ParseMode:   "MarkdownV2",
			ReplyMarkup: markup,
		})
	} else {
		_, err = h.bot.SendMessage(ctx, messages.NewBuilder(h.channelID).
			WithText(caption).
			WithInlineButtons(markup.Buttons).
			Build())
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to forward verification to review channel")
		return err
	}

	log.Info().Msg("Forwarded verification to review channel")
	return nil
}

func (h *ForwardingHandler) frontImage(ctx context.Context, rec *domain.VerificationRecord) ([]byte, error) {
	if rec.FrontImageRef == nil {
		return nil, nil
	}
	rc, err := h.store.Open(ctx, *rec.FrontImageRef)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", *rec.FrontImageRef, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, validation.MaxImageBytes))
}

func extensionOf(ref string) string {
	for i := len(ref) - 1; i >= 0 && ref[i] != '/'; i-- {
		if ref[i] == '.' {
			return ref[i:]
		}
	}
	return ".jpg"
}
