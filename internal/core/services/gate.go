package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// Decide routes a caller attempting action to exactly one place. It reads
// the profile flags and nothing else.
func Decide(principal *domain.Principal, profile *domain.UserProfile, action domain.GateAction) domain.GateRoute {
	if principal == nil {
		return domain.RouteLogin
	}
	if profile == nil || !profile.ProfileCompleted {
		return domain.RouteCompleteProfile
	}
	if action == domain.GateSubmitProposal && !(profile.Verified && profile.CanPlaceBids) {
		return domain.RouteScheduleVisit
	}
	return domain.RouteProceed
}

// GateService loads the caller's profile and applies Decide.
type GateService struct {
	log      zerolog.Logger
	profiles ports.ProfileRepository
}

func NewGateService(profiles ports.ProfileRepository, baseLogger *zerolog.Logger) *GateService {
	return &GateService{
		log:      baseLogger.With().Str("component", "gate_service").Logger(),
		profiles: profiles,
	}
}

func (g *GateService) Check(ctx context.Context, principal *domain.Principal, action domain.GateAction) (domain.GateRoute, error) {
	if principal == nil {
		return domain.RouteLogin, nil
	}
	profile, err := g.profiles.Get(ctx, principal.UserID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	route := Decide(principal, profile, action)
	g.log.Debug().
		Str("user_id", principal.UserID.String()).
		Str("action", string(action)).
		Str("route", string(route)).
		Msg("Gate decision")
	return route, nil
}
