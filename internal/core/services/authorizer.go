package services

import (
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

var userActions = []domain.Action{
	domain.ActionSubmitVerification,
	domain.ActionReadVerification,
	domain.ActionScheduleVisit,
	domain.ActionSubmitProposal,
}

// RoleAuthorizer grants actions by role. Admins hold every user action plus
// verification review.
type RoleAuthorizer struct {
	grants map[domain.Role]map[domain.Action]bool
}

var _ ports.Authorizer = (*RoleAuthorizer)(nil)

func NewRoleAuthorizer() *RoleAuthorizer {
	a := &RoleAuthorizer{grants: map[domain.Role]map[domain.Action]bool{
		domain.RoleUser:  {},
		domain.RoleAdmin: {domain.ActionReviewVerifications: true},
	}}
	for _, action := range userActions {
		a.grants[domain.RoleUser][action] = true
		a.grants[domain.RoleAdmin][action] = true
	}
	return a
}

func (a *RoleAuthorizer) Authorize(principal *domain.Principal, action domain.Action) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	if !a.grants[principal.Role][action] {
		return domain.ErrForbidden
	}
	return nil
}
