package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

// FileStore keeps transactions in a single JSON document rewritten in full on
// every mutation. The rewrite goes through a temp file and rename, so readers
// of the path only ever observe a complete pre- or post-mutation snapshot.
// Fine at bot-scale volume; a transactional key-value store behind the same
// interface is the substitute once volume grows.
type FileStore struct {
	path string

	mu   sync.RWMutex
	data map[string]*models.Transaction
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &FileStore{path: path, data: make(map[string]*models.Transaction)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.persist(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read storage file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("decode storage file: %w", err)
		}
	}

	return s, nil
}

// persist rewrites the whole document. Callers must hold mu.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.data[tx.ID] = &cp
	return s.persist()
}

func (s *FileStore) Get(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *FileStore) UpdateStatus(_ context.Context, id string, status models.PaymentStatus) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	if err := s.persist(); err != nil {
		return nil, err
	}
	cp := *tx
	return &cp, nil
}

func (s *FileStore) ClaimProvisioning(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return false, models.ErrTransactionNotFound
	}
	if tx.Provisioned {
		return false, nil
	}
	tx.Provisioned = true
	tx.UpdatedAt = time.Now().UTC()
	if err := s.persist(); err != nil {
		tx.Provisioned = false
		return false, err
	}
	return true, nil
}

func (s *FileStore) ReleaseProvisioning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return models.ErrTransactionNotFound
	}
	tx.Provisioned = false
	tx.UpdatedAt = time.Now().UTC()
	return s.persist()
}
