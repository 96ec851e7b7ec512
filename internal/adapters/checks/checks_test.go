package checks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

func subject() ports.CheckSubject {
	return ports.CheckSubject{
		VerificationID: uuid.New(),
		FullName:       "Maria Silva",
		CPF:            "12345678909",
		DateOfBirth:    "1990-05-20",
	}
}

func TestHTTPProvider_Run(t *testing.T) {
	nopLogger := zerolog.Nop()

	t.Run("ReturnsResult", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/checks/criminal", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body checkRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "12345678909", body.CPF)
			assert.Equal(t, "1990-05-20", body.DateOfBirth)

			_ = json.NewEncoder(w).Encode(checkResponse{Result: "nada_consta"})
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.Client(), srv.URL+"/", "secret", &nopLogger)
		got, err := p.Run(context.Background(), domain.CheckCriminal, subject())
		require.NoError(t, err)
		assert.Equal(t, "nada_consta", got)
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.Client(), srv.URL, "", &nopLogger)
		_, err := p.Run(context.Background(), domain.CheckTaxID, subject())
		assert.Error(t, err)
	})

	t.Run("EmptyResult", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"  "}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.Client(), srv.URL, "", &nopLogger)
		_, err := p.Run(context.Background(), domain.CheckTaxID, subject())
		assert.Error(t, err)
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		p := NewHTTPProvider(srv.Client(), srv.URL, "", &nopLogger)
		_, err := p.Run(ctx, domain.CheckTaxID, subject())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSandboxProvider(t *testing.T) {
	nopLogger := zerolog.Nop()
	p := NewSandboxProvider(0, &nopLogger)
	ctx := context.Background()

	clean := subject()
	tax, err := p.Run(ctx, domain.CheckTaxID, clean)
	require.NoError(t, err)
	crim, err := p.Run(ctx, domain.CheckCriminal, clean)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePass, domain.ClassifyOutcome(tax))
	assert.Equal(t, domain.OutcomePass, domain.ClassifyOutcome(crim))

	flagged := subject()
	flagged.CPF = "39053344705"
	tax, _ = p.Run(ctx, domain.CheckTaxID, flagged)
	crim, _ = p.Run(ctx, domain.CheckCriminal, flagged)
	assert.Equal(t, domain.OutcomeFail, domain.ClassifyOutcome(tax))
	assert.Equal(t, domain.OutcomeFail, domain.ClassifyOutcome(crim))
}
