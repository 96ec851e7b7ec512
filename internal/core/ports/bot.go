package ports

import (
	"context"

	"CasaBid/internal/core/domain"
)

// --- Bot Message Structures ---

// Button represents a single inline button.
type Button struct {
	Text string
	Data string // For callbacks
	URL  string // For URL buttons
}

// ReplyMarkup represents an inline keyboard.
type ReplyMarkup struct {
	Buttons [][]Button
}

// SendMessageParams holds all possible options for sending a message.
type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   string // e.g., "MarkdownV2" or "HTML"
	ReplyMarkup *ReplyMarkup
}

// SendPhotoParams sends an image held in memory.
type SendPhotoParams struct {
	ChatID      int64
	FileName    string
	Data        []byte
	Caption     string
	ParseMode   string
	ReplyMarkup *ReplyMarkup
}

// EditMessageCaptionParams replaces the caption (and keyboard) of a photo message.
type EditMessageCaptionParams struct {
	ChatID      int64
	MessageID   int
	Caption     string
	ParseMode   string
	ReplyMarkup *ReplyMarkup // nil removes the buttons
}

// AnswerCallbackParams stops the spinner on a pressed button.
type AnswerCallbackParams struct {
	CallbackQueryID string
	Text            string
	ShowAlert       bool
}

// --- Bot Client Port (Outbound) ---

// BotClientPort defines the interface for *sending* messages.
type BotClientPort interface {
	SendMessage(ctx context.Context, params SendMessageParams) (int, error)
	SendPhoto(ctx context.Context, params SendPhotoParams) (int, error)
	EditMessageCaption(ctx context.Context, params EditMessageCaptionParams) error
	AnswerCallbackQuery(ctx context.Context, params AnswerCallbackParams) error
	SetMenuCommands(ctx context.Context) error
}

// --- Bot Handler Port (Inbound) ---

// BotUpdate represents a simplified, generic update.
type BotUpdate struct {
	MessageID       int
	ChatID          int64
	UserID          int64
	Text            string
	Command         string
	CallbackQueryID string
	CallbackData    *string
}

// CommandHandler defines the "plugin" interface for handling bot commands.
type CommandHandler interface {
	// Command returns the command string without the slash (e.g., "pending")
	Command() string
	// Handle processes the update on behalf of reviewer.
	Handle(ctx context.Context, update *BotUpdate, reviewer *domain.User) error
}

// CallbackHandler defines the interface for handling callback queries.
type CallbackHandler interface {
	// Prefix returns the prefix for the callback (e.g., "review_")
	Prefix() string
	// Handle processes the callback on behalf of reviewer.
	Handle(ctx context.Context, update *BotUpdate, reviewer *domain.User) error
}
