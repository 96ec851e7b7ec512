package checks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// SandboxProvider answers checks locally for development. Every CPF is
// clean except the ones listed in flagged.
type SandboxProvider struct {
	delay   time.Duration
	flagged map[string]bool
	log     zerolog.Logger
}

var _ ports.CheckProvider = (*SandboxProvider)(nil)

// sandboxFlaggedCPFs come back irregular / with records.
var sandboxFlaggedCPFs = []string{"39053344705"}

func NewSandboxProvider(delay time.Duration, baseLogger *zerolog.Logger) *SandboxProvider {
	p := &SandboxProvider{
		delay:   delay,
		flagged: make(map[string]bool),
		log:     baseLogger.With().Str("component", "sandbox_checks").Logger(),
	}
	for _, cpf := range sandboxFlaggedCPFs {
		p.flagged[cpf] = true
	}
	return p
}

func (p *SandboxProvider) Run(ctx context.Context, kind domain.CheckKind, subject ports.CheckSubject) (string, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	flagged := p.flagged[subject.CPF]
	var result string
	switch {
	case kind == domain.CheckTaxID && flagged:
		result = "irregular"
	case kind == domain.CheckTaxID:
		result = "regular"
	case flagged:
		result = "consta"
	default:
		result = "nada_consta"
	}
	p.log.Debug().Str("kind", string(kind)).Str("result", result).Msg("Sandbox check answered")
	return result, nil
}
