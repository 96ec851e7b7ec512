package messages

import "CasaBid/internal/core/ports"

// Builder helps construct complex SendMessageParams.
type Builder struct {
	params ports.SendMessageParams
}

// NewBuilder creates a new message builder.
func NewBuilder(chatID int64) *Builder {
	return &Builder{
		params: ports.SendMessageParams{
			ChatID:    chatID,
			ParseMode: "MarkdownV2", // Default to Markdown
		},
	}
}

// WithText sets the message text.
func (b *Builder) WithText(text string) *Builder {
	b.params.Text = text
	return b
}

// WithInlineButtons adds a set of inline buttons.
func (b *Builder) WithInlineButtons(buttons [][]ports.Button) *Builder {
	b.params.ReplyMarkup = &ports.ReplyMarkup{Buttons: buttons}
	return b
}

// Build returns the final SendMessageParams struct.
func (b *Builder) Build() ports.SendMessageParams {
	return b.params
}

// grid arranges buttons into rows of the given width.
func grid(buttons []ports.Button, columns int) [][]ports.Button {
	var rows [][]ports.Button
	var row []ports.Button

	for i, btn := range buttons {
		row = append(row, btn)
		if (i+1)%columns == 0 || i == len(buttons)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	return rows
}
