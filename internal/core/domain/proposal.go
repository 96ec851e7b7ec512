package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VisitStatus string

const (
	// VisitAwaitingVerification holds a visit request made before the
	// requester's identity was verified.
	VisitAwaitingVerification VisitStatus = "awaiting_verification"
	VisitRequested            VisitStatus = "requested"
)

// Visit is a request to tour a property.
type Visit struct {
	ID          uuid.UUID
	PropertyID  uuid.UUID
	UserID      uuid.UUID
	ScheduledAt time.Time
	Notes       *string
	Status      VisitStatus
	CreatedAt   time.Time
}

type ProposalStatus string

const (
	ProposalSubmitted ProposalStatus = "submitted"
)

// Proposal is a bid on a property.
type Proposal struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	UserID     uuid.UUID
	Amount     decimal.Decimal
	Message    *string
	Status     ProposalStatus
	CreatedAt  time.Time
}

// GateRoute is where the authorization gate sends the caller.
type GateRoute string

const (
	RouteLogin           GateRoute = "login"
	RouteCompleteProfile GateRoute = "complete_profile"
	RouteScheduleVisit   GateRoute = "schedule_visit"
	RouteProceed         GateRoute = "proceed"
)

// GateAction is a guarded user flow.
type GateAction string

const (
	GateScheduleVisit  GateAction = "schedule_visit"
	GateSubmitProposal GateAction = "submit_proposal"
)

func (a GateAction) Valid() bool {
	return a == GateScheduleVisit || a == GateSubmitProposal
}
