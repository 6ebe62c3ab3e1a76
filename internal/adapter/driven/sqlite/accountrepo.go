package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, name, region, encrypted_secret IS NOT NULL, is_active, last_sync, created_at, updated_at`

// Create inserts a new account. Returns model.ErrConflict if the id is taken.
func (r *AccountRepo) Create(ctx context.Context, account model.Account, secret model.EncryptedBlob) error {
	const query = `
		INSERT INTO accounts (id, name, region, encrypted_secret, is_active, last_sync, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		account.ID, account.Name, account.Region, blobArg(secret), boolToInt(account.IsActive),
		nullableTime(account.LastSync), formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create account %s: %w", account.ID, model.ErrConflict)
		}
		return fmt.Errorf("create account %s: %w", account.ID, err)
	}

	return nil
}

// Get returns the account with the given id.
func (r *AccountRepo) Get(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

	account, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	return account, nil
}

// List returns all accounts ordered by name, then id.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY name, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Update applies the non-nil fields of update and returns the stored result.
func (r *AccountRepo) Update(ctx context.Context, id string, update model.AccountUpdate) (*model.Account, error) {
	const query = `
		UPDATE accounts SET
			name = COALESCE(?, name),
			region = COALESCE(?, region),
			is_active = COALESCE(?, is_active),
			updated_at = ?
		WHERE id = ?
	`

	var name, region, active any
	if update.Name != nil {
		name = *update.Name
	}
	if update.Region != nil {
		region = *update.Region
	}
	if update.IsActive != nil {
		active = boolToInt(*update.IsActive)
	}

	result, err := r.db.Writer.ExecContext(ctx, query, name, region, active, formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", id, err)
	}
	if err := requireAffected(result, "update account "+id); err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// Delete removes an account. Resources and sync runs go with it through the
// ON DELETE CASCADE foreign keys.
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}

	return requireAffected(result, "delete account "+id)
}

// GetSecret returns the sealed credential blob, or nil if none is stored.
func (r *AccountRepo) GetSecret(ctx context.Context, id string) (model.EncryptedBlob, error) {
	const query = `SELECT encrypted_secret FROM accounts WHERE id = ?`

	var secret []byte
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get secret for account %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get secret for account %s: %w", id, err)
	}
	if len(secret) == 0 {
		return nil, nil
	}

	return model.EncryptedBlob(secret), nil
}

// SetSecret replaces the sealed credential blob. A nil blob clears it.
func (r *AccountRepo) SetSecret(ctx context.Context, id string, secret model.EncryptedBlob) error {
	const query = `UPDATE accounts SET encrypted_secret = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, blobArg(secret), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set secret for account %s: %w", id, err)
	}

	return requireAffected(result, "set secret for account "+id)
}

// UpdateLastSync records when the account's latest sync finished.
func (r *AccountRepo) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE accounts SET last_sync = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update last sync for account %s: %w", id, err)
	}

	return requireAffected(result, "update last sync for account "+id)
}

func scanAccount(s scanner) (*model.Account, error) {
	var (
		account              model.Account
		hasSecret, isActive  int
		lastSync             sql.NullString
		createdAt, updatedAt string
	)

	err := s.Scan(&account.ID, &account.Name, &account.Region, &hasSecret, &isActive,
		&lastSync, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	account.HasCredentials = hasSecret == 1
	account.IsActive = isActive == 1

	if account.LastSync, err = parseNullTime(lastSync); err != nil {
		return nil, fmt.Errorf("parse last_sync: %w", err)
	}
	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if account.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &account, nil
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}

// blobArg maps an empty blob to NULL so "no credentials" is a single state.
func blobArg(b model.EncryptedBlob) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
