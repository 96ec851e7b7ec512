package ports

import (
	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
)

// SecurityPort defines the interface for protecting sensitive personal data.
// This allows us to swap the implementation (e.g., from AES to something else)
// without changing any business logic that uses it.
type SecurityPort interface {
	// Encrypt takes a plaintext and returns a secure, encrypted ciphertext.
	Encrypt(plaintext []byte) (ciphertext []byte, err error)

	// Decrypt takes a ciphertext and returns the original plaintext.
	Decrypt(ciphertext []byte) (plaintext []byte, err error)

	// Hash returns a deterministic keyed digest (hex) used as a blind index,
	// so encrypted values can still be looked up by equality.
	Hash(value string) string
}

// TokenService issues and parses session tokens.
type TokenService interface {
	Issue(userID uuid.UUID, role domain.Role) (string, error)
	Parse(token string) (*domain.Principal, error)
}
