package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// DeleteAccount removes the profile and then the user in one transaction.
// Posts written by the user are left in place.
func (s *PostgresAccountStore) DeleteAccount(ctx context.Context, userID string) error {
	if !validID(userID) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
