package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AccountRepository stores credentials. Accounts and profiles are created
// together so there is never an account without a profile row or the reverse.
type AccountRepository interface {
	CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const insertAccount = `
        INSERT INTO accounts (email, password_hash)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`
	if err = tx.QueryRow(ctx, insertAccount,
		strings.TrimSpace(account.Email),
		account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return err
	}

	profile.ID = account.ID
	const insertProfile = `
        INSERT INTO profiles (id, name, email, phone_number, designations, branch, is_admin)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	if err = tx.QueryRow(ctx, insertProfile,
		profile.ID,
		profile.Name,
		profile.Email,
		profile.PhoneNumber,
		profile.Designations,
		profile.Branch,
		profile.IsAdmin,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
        SELECT id, email, password_hash, created_at, updated_at
        FROM accounts WHERE id=$1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, email, password_hash, created_at, updated_at
        FROM accounts WHERE LOWER(email)=LOWER($1)`
	return scanAccount(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return updatePassword(ctx, r.pool, id, passwordHash)
}

func updatePassword(ctx context.Context, q querier, id, passwordHash string) error {
	const query = `UPDATE accounts SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := q.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}
