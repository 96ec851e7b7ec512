package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// LocalStore keeps document images on the local filesystem under root,
// one directory per owner. References are paths relative to root.
type LocalStore struct {
	root string
	log  zerolog.Logger
}

var _ ports.DocumentStore = (*LocalStore)(nil)

func NewLocalStore(root string, baseLogger *zerolog.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs, log: baseLogger.With().Str("component", "document_store").Logger()}, nil
}

func (s *LocalStore) Save(ctx context.Context, owner uuid.UUID, name, contentType string, data []byte) (string, error) {
	ext := ".bin"
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		ext = mt.Extension()
	}
	ref := filepath.ToSlash(filepath.Join(owner.String(), name+"-"+uuid.NewString()+ext))

	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		s.log.Error().Err(err).Str("ref", ref).Msg("Failed to write document")
		return "", fmt.Errorf("write document: %w", err)
	}
	s.log.Debug().Str("ref", ref).Int("bytes", len(data)).Msg("Document stored")
	return ref, nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid document reference %q", ref)
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	return f, err
}
