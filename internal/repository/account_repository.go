package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telsite/fieldops-api/internal/models"
)

// AccountRepository persists operator accounts (vendors and field officers).
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	const query = `
INSERT INTO accounts (id, username, password_hash, full_name, contact, company, photo, role, active, created_at, updated_at)
VALUES (:id, :username, :password_hash, :full_name, :contact, :company, :photo, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// FindByUsername looks an account up by its unique username. Returns
// sql.ErrNoRows when absent.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE username = $1`, username); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID looks an account up by ID. Returns sql.ErrNoRows when absent.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateLastLogin stamps the latest successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
