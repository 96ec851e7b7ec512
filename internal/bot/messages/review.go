package messages

import (
	"fmt"
	"strings"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/validation"
)

// Callback data prefixes of the review card buttons.
const (
	ApprovePrefix = "review_approve_"
	RejectPrefix  = "review_reject_"
)

// RejectReason is a preset rejection offered as a button.
type RejectReason struct {
	Code   string
	Label  string
	Reason string
}

// RejectReasons are offered on every review card. Codes must not contain "_".
var RejectReasons = []RejectReason{
	{Code: "photo", Label: "Unreadable photo", Reason: "document photo is unreadable"},
	{Code: "mismatch", Label: "Data mismatch", Reason: "document data does not match the information provided"},
	{Code: "selfie", Label: "Selfie mismatch", Reason: "selfie does not match the document"},
	{Code: "expired", Label: "Expired document", Reason: "document is expired"},
}

// RejectReasonByCode returns the preset for code.
func RejectReasonByCode(code string) (RejectReason, bool) {
	for _, r := range RejectReasons {
		if r.Code == code {
			return r, true
		}
	}
	return RejectReason{}, false
}

// ReviewButtons is the keyboard attached to a review card.
func ReviewButtons(id fmt.Stringer) [][]ports.Button {
	rejects := make([]ports.Button, 0, len(RejectReasons))
	for _, r := range RejectReasons {
		rejects = append(rejects, ports.Button{Text: "❌ " + r.Label, Data: RejectPrefix + r.Code + "_" + id.String()})
	}
	rows := [][]ports.Button{{{Text: "✅ Approve", Data: ApprovePrefix + id.String()}}}
	return append(rows, grid(rejects, 2)...)
}

// ReviewCaption renders a record for reviewers, in MarkdownV2.
func ReviewCaption(rec *domain.VerificationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Verification for Review*\nID: `%s`\n\n", rec.ID)
	fmt.Fprintf(&b, "*Name:* %s\n", EscapeMarkdown(rec.FullName))
	fmt.Fprintf(&b, "*CPF:* `%s`\n", EscapeMarkdown(validation.FormatCPF(rec.CPF)))
	fmt.Fprintf(&b, "*Born:* %s\n", EscapeMarkdown(rec.DateOfBirth.Format(validation.DateLayout)))
	if rec.DocumentType != nil {
		fmt.Fprintf(&b, "*Document:* %s\n", EscapeMarkdown(string(*rec.DocumentType)))
	}
	fmt.Fprintf(&b, "*Tax ID check:* %s\n", EscapeMarkdown(resultText(rec.TaxIDCheck)))
	fmt.Fprintf(&b, "*Criminal check:* %s\n", EscapeMarkdown(resultText(rec.CriminalCheck)))
	return b.String()
}

// DecisionCaption replaces the card caption once a decision is applied.
func DecisionCaption(rec *domain.VerificationRecord, reviewer string) string {
	if rec.Status == domain.StatusApproved {
		return fmt.Sprintf("✅ Approved by %s\n%s (%s)", reviewer, rec.FullName, rec.ID)
	}
	reason := ""
	if rec.RejectionReason != nil {
		reason = *rec.RejectionReason
	}
	return fmt.Sprintf("❌ Rejected by %s: %s\n%s (%s)", reviewer, reason, rec.FullName, rec.ID)
}

func resultText(r *string) string {
	if r == nil {
		return "pending"
	}
	return *r
}

// EscapeMarkdown escapes text for Telegram MarkdownV2.
func EscapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
		"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
		"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(s)
}
