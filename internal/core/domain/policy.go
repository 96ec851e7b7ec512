package domain

import (
	"fmt"
	"strings"
)

// CheckOutcome is the normalized reading of a provider's free-text result.
type CheckOutcome string

const (
	OutcomePass         CheckOutcome = "pass"
	OutcomeFail         CheckOutcome = "fail"
	OutcomeInconclusive CheckOutcome = "inconclusive"
	OutcomeError        CheckOutcome = "error"
)

// CheckErrorResult is stored in a check field when the provider call failed.
const CheckErrorResult = "error"

// AutoRejectionReason is recorded when the policy rejects without a reviewer.
const AutoRejectionReason = "automated checks did not pass"

var (
	passResults = map[string]bool{
		"pass": true, "clear": true, "regular": true, "nada_consta": true, "ok": true,
	}
	failResults = map[string]bool{
		"fail": true, "irregular": true, "suspensa": true, "cancelada": true,
		"nula": true, "found": true, "consta": true, "titular_falecido": true,
	}
)

// ClassifyOutcome maps a raw provider result onto a CheckOutcome.
// Unknown strings are inconclusive and land in manual review.
func ClassifyOutcome(raw string) CheckOutcome {
	r := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case r == CheckErrorResult:
		return OutcomeError
	case passResults[r]:
		return OutcomePass
	case failResults[r]:
		return OutcomeFail
	default:
		return OutcomeInconclusive
	}
}

type outcomePair struct {
	taxID    CheckOutcome
	criminal CheckOutcome
}

// DecisionPolicy maps the pair (tax-id outcome, criminal outcome) to the
// status a record in "checking" moves to.
type DecisionPolicy struct {
	table map[outcomePair]VerificationStatus
}

// DefaultPolicy sends every completed pair to manual review.
func DefaultPolicy() DecisionPolicy {
	return DecisionPolicy{table: map[outcomePair]VerificationStatus{}}
}

// ParsePolicy reads entries of the form "pass+fail=rejected", separated by
// commas. Pairs not listed fall back to manual review.
func ParsePolicy(s string) (DecisionPolicy, error) {
	p := DefaultPolicy()
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pair, target, ok := strings.Cut(entry, "=")
		if !ok {
			return DecisionPolicy{}, fmt.Errorf("policy entry %q: missing '='", entry)
		}
		tax, crim, ok := strings.Cut(strings.TrimSpace(pair), "+")
		if !ok {
			return DecisionPolicy{}, fmt.Errorf("policy entry %q: missing '+'", entry)
		}
		taxOutcome, err := parseTableOutcome(tax)
		if err != nil {
			return DecisionPolicy{}, fmt.Errorf("policy entry %q: %w", entry, err)
		}
		crimOutcome, err := parseTableOutcome(crim)
		if err != nil {
			return DecisionPolicy{}, fmt.Errorf("policy entry %q: %w", entry, err)
		}
		status := VerificationStatus(strings.TrimSpace(target))
		switch status {
		case StatusApproved, StatusRejected, StatusManualReview:
		default:
			return DecisionPolicy{}, fmt.Errorf("policy entry %q: target must be approved, rejected or manual_review", entry)
		}
		p.table[outcomePair{taxOutcome, crimOutcome}] = status
	}
	return p, nil
}

func parseTableOutcome(s string) (CheckOutcome, error) {
	o := CheckOutcome(strings.TrimSpace(s))
	switch o {
	case OutcomePass, OutcomeFail, OutcomeInconclusive:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Decide returns the next status for a pair of completed check results.
// An errored check always fails the record.
func (p DecisionPolicy) Decide(taxIDResult, criminalResult string) VerificationStatus {
	tax := ClassifyOutcome(taxIDResult)
	crim := ClassifyOutcome(criminalResult)
	if tax == OutcomeError || crim == OutcomeError {
		return StatusFailed
	}
	if next, ok := p.table[outcomePair{tax, crim}]; ok {
		return next
	}
	return StatusManualReview
}
