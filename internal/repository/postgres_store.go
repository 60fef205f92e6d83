package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

// PostgresStore is the production-grade transaction store: same contract as
// FileStore, but row-level updates instead of whole-document rewrites, and
// the provisioned claim enforced by a conditional UPDATE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id VARCHAR(255) PRIMARY KEY,
			requester_id BIGINT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(50) NOT NULL,
			confirmation_url TEXT NOT NULL,
			provisioned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (s *PostgresStore) Save(ctx context.Context, tx *models.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, requester_id, amount, currency, status, confirmation_url, provisioned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id) DO UPDATE
		SET status = EXCLUDED.status,
			confirmation_url = EXCLUDED.confirmation_url,
			provisioned = EXCLUDED.provisioned,
			updated_at = NOW()
	`, tx.ID, tx.RequesterID, tx.Amount, tx.Currency, tx.Status, tx.ConfirmationURL, tx.Provisioned, tx.CreatedAt, tx.UpdatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, requester_id, amount, currency, status, confirmation_url, provisioned, created_at, updated_at
		FROM transactions WHERE transaction_id = $1
	`, id).Scan(&tx.ID, &tx.RequesterID, &tx.Amount, &tx.Currency, &tx.Status, &tx.ConfirmationURL, &tx.Provisioned, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Transaction, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = NOW()
		WHERE transaction_id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrTransactionNotFound
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) ClaimProvisioning(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET provisioned = TRUE, updated_at = NOW()
		WHERE transaction_id = $1 AND provisioned = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// Either already claimed or unknown; disambiguate for the caller.
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) ReleaseProvisioning(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET provisioned = FALSE, updated_at = NOW()
		WHERE transaction_id = $1
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}
