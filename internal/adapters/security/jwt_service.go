package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

const tokenAudience = "casabid-api"

type accessClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// jwtService issues and verifies HS256 access tokens.
type jwtService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

var _ ports.TokenService = (*jwtService)(nil)

func NewJWTService(secret, issuer string, ttl time.Duration, baseLogger *zerolog.Logger) (ports.TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &jwtService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		log:    baseLogger.With().Str("component", "jwt_service").Logger(),
	}, nil
}

func (s *jwtService) Issue(userID uuid.UUID, role domain.Role) (string, error) {
	now := s.now()
	claims := accessClaims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token and returns its principal. Any verification
// failure is reported as domain.ErrUnauthenticated.
func (s *jwtService) Parse(token string) (*domain.Principal, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		s.log.Debug().Err(err).Msg("Rejected access token")
		return nil, domain.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.Principal{UserID: userID, Role: domain.Role(claims.Role)}, nil
}
