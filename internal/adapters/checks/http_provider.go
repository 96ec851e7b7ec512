package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

type checkRequest struct {
	VerificationID string `json:"verification_id"`
	FullName       string `json:"full_name"`
	CPF            string `json:"cpf"`
	DateOfBirth    string `json:"date_of_birth"`
}

type checkResponse struct {
	Result string `json:"result"`
}

// HTTPProvider calls a background-check service at
// POST {base}/checks/{kind} and returns the "result" field of the reply.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

var _ ports.CheckProvider = (*HTTPProvider)(nil)

func NewHTTPProvider(client *http.Client, baseURL, apiKey string, baseLogger *zerolog.Logger) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     baseLogger.With().Str("component", "check_provider").Logger(),
	}
}

// Run does not retry; the caller's context carries the deadline.
func (p *HTTPProvider) Run(ctx context.Context, kind domain.CheckKind, subject ports.CheckSubject) (string, error) {
	body, err := json.Marshal(checkRequest{
		VerificationID: subject.VerificationID.String(),
		FullName:       subject.FullName,
		CPF:            subject.CPF,
		DateOfBirth:    subject.DateOfBirth,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/checks/"+string(kind), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s check request: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.log.Warn().
			Int("status", resp.StatusCode).
			Str("kind", string(kind)).
			Str("body", string(snippet)).
			Msg("Check provider returned an error status")
		return "", fmt.Errorf("%s check: provider status %d", kind, resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%s check: decode response: %w", kind, err)
	}
	if strings.TrimSpace(out.Result) == "" {
		return "", fmt.Errorf("%s check: empty result", kind)
	}
	return out.Result, nil
}
