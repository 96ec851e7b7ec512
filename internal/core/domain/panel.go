package domain

// StatusTimedOut is the client-side terminal state reached when a verification
// did not settle within the polling window. It is never stored.
const StatusTimedOut VerificationStatus = "timed_out"

// StatusPanel is the user-facing explanation of a verification status.
type StatusPanel struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	NextStep string `json:"next_step"`
}

// PanelFor returns the panel shown for status. The rejection reason, when
// present, is shown verbatim on the rejected panel.
func PanelFor(status VerificationStatus, rejectionReason *string) StatusPanel {
	switch status {
	case StatusPending:
		return StatusPanel{
			Title:    "Verification started",
			Message:  "We received your details.",
			NextStep: "Upload your document and selfie to continue.",
		}
	case StatusChecking:
		return StatusPanel{
			Title:    "Checking your details",
			Message:  "We are running automated checks on your CPF and background.",
			NextStep: "This usually takes under a minute. You can keep this page open.",
		}
	case StatusManualReview:
		return StatusPanel{
			Title:    "Under review",
			Message:  "Our team is reviewing your documents.",
			NextStep: "You will be able to schedule visits as soon as the review is done.",
		}
	case StatusApproved:
		return StatusPanel{
			Title:    "Identity verified",
			Message:  "Your identity has been confirmed.",
			NextStep: "You can now schedule property visits.",
		}
	case StatusRejected:
		msg := "We could not confirm your identity."
		if rejectionReason != nil && *rejectionReason != "" {
			msg = "We could not confirm your identity: " + *rejectionReason
		}
		return StatusPanel{
			Title:    "Verification rejected",
			Message:  msg,
			NextStep: "Fix the issue above and start a new verification.",
		}
	case StatusFailed:
		return StatusPanel{
			Title:    "Verification could not be completed",
			Message:  "One of our verification providers did not respond.",
			NextStep: "Please start a new verification in a few minutes.",
		}
	case StatusTimedOut:
		return StatusPanel{
			Title:    "Still working on it",
			Message:  "Your verification is taking longer than usual.",
			NextStep: "Check back later or contact support if this persists.",
		}
	}
	return StatusPanel{Title: "Unknown status", Message: string(status)}
}
