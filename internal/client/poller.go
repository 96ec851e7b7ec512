// Package client follows a verification from the applicant's side.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
)

// Status is what the poller reports for a verification.
type Status struct {
	ID              uuid.UUID                 `json:"id"`
	Status          domain.VerificationStatus `json:"status"`
	Version         int64                     `json:"version"`
	RejectionReason *string                   `json:"rejection_reason,omitempty"`
	Panel           domain.StatusPanel        `json:"panel"`
}

// Done reports whether polling has nothing more to wait for.
func (s Status) Done() bool {
	return s.Status.IsTerminal() || s.Status == domain.StatusTimedOut
}

// StatusError is a non-retryable answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status endpoint returned %d: %s", e.Code, e.Body)
}

type PollerConfig struct {
	BaseURL string
	Token   string
	// Hold is how long the server may keep each request open.
	Hold time.Duration
	// Timeout bounds the whole watch. When it expires the result is timed_out.
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	HTTPClient *http.Client
}

// Poller long-polls the status endpoint until the record settles.
type Poller struct {
	cfg PollerConfig
	log zerolog.Logger
}

func NewPoller(cfg PollerConfig, baseLogger *zerolog.Logger) *Poller {
	if cfg.Hold <= 0 {
		cfg.Hold = 20 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 8 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Poller{
		cfg: cfg,
		log: baseLogger.With().Str("component", "status_poller").Logger(),
	}
}

// Watch calls onUpdate for every new version of the record and returns the
// final status. Transport failures and 5xx answers are retried with capped
// backoff. If the watch times out the result is a timed_out status, which is
// also passed to onUpdate. Cancelling ctx returns the last seen status with
// ctx's error.
func (p *Poller) Watch(ctx context.Context, id uuid.UUID, onUpdate func(Status)) (Status, error) {
	watchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	log := p.log.With().Str("verification_id", id.String()).Logger()
	b := &backoff.Backoff{Min: p.cfg.MinBackoff, Max: p.cfg.MaxBackoff, Factor: 2}
	last := Status{ID: id}

	for {
		st, err := p.fetch(watchCtx, id, last.Version)
		switch {
		case err == nil:
			if st.Version > last.Version {
				last = st
				b.Reset()
				if onUpdate != nil {
					onUpdate(st)
				}
				if st.Done() {
					return st, nil
				}
				continue
			}
		case watchCtx.Err() != nil:
			// Ended by the deadline or the caller, handled below.
		default:
			var serr *StatusError
			if errors.As(err, &serr) {
				log.Warn().Err(err).Msg("Status polling stopped")
				return last, err
			}
			log.Debug().Err(err).Msg("Status poll failed, retrying")
		}

		wait := b.Duration()
		select {
		case <-watchCtx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			timedOut := Status{
				ID:      id,
				Status:  domain.StatusTimedOut,
				Version: last.Version,
				Panel:   domain.PanelFor(domain.StatusTimedOut, nil),
			}
			log.Info().Str("last_status", string(last.Status)).Msg("Status polling timed out")
			if onUpdate != nil {
				onUpdate(timedOut)
			}
			return timedOut, nil
		case <-time.After(wait):
		}
	}
}

func (p *Poller) fetch(ctx context.Context, id uuid.UUID, version int64) (Status, error) {
	q := url.Values{}
	q.Set("id", id.String())
	q.Set("version", strconv.FormatInt(version, 10))
	q.Set("wait", strconv.Itoa(int(p.cfg.Hold/time.Second)))

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Hold+10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.cfg.BaseURL+"/api/verification-status?"+q.Encode(), nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Status{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return Status{}, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
