package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// ProfileFilter captures directory search parameters.
type ProfileFilter struct {
	Scope       policy.ProfileScope
	Branch      string
	Designation string
	Search      string
	Limit       int
	Offset      int
}

// ProfileRepository persists application profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]domain.Profile, error)
	ListAssignable(ctx context.Context) ([]domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileColumns = `id, name, email, phone_number, designations, branch, is_admin, created_at, updated_at`

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	var profile domain.Profile
	if err := scanProfile(r.pool.QueryRow(ctx, query, id), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, filter ProfileFilter) ([]domain.Profile, error) {
	if !filter.Scope.All && filter.Scope.ProfileID == "" {
		return []domain.Profile{}, nil
	}

	var where whereBuilder
	if !filter.Scope.All {
		where.add("id = $%d", filter.Scope.ProfileID)
	}
	if branch := domain.NormalizeBranch(filter.Branch); branch != "" {
		where.add("branch = $%d", branch)
	}
	if tags := domain.NormalizeDesignations([]string{filter.Designation}); len(tags) == 1 {
		where.add("$%d = ANY(designations)", tags[0])
	}
	where.addSearch(filter.Search, "name", "email")

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM profiles%s ORDER BY name ASC, id ASC LIMIT %d OFFSET %d`,
		profileColumns, where.sql(), limit, offset)

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (r *profileRepository) ListAssignable(ctx context.Context) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
        WHERE is_admin OR $1 = ANY(designations)
        ORDER BY name ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, domain.DesignationIT)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// Update writes the editable profile fields and keeps the sign-in email in
// step with the profile email.
func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const updateProfile = `
        UPDATE profiles SET name=$1, email=$2, phone_number=$3, designations=$4, branch=$5, is_admin=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	if err = tx.QueryRow(ctx, updateProfile,
		profile.Name,
		profile.Email,
		profile.PhoneNumber,
		profile.Designations,
		profile.Branch,
		profile.IsAdmin,
		profile.ID,
	).Scan(&profile.UpdatedAt); err != nil {
		return err
	}

	const updateAccount = `UPDATE accounts SET email=$1, updated_at=NOW() WHERE id=$2`
	if _, err = tx.Exec(ctx, updateAccount, profile.Email, profile.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanProfile(row pgx.Row, profile *domain.Profile) error {
	return row.Scan(
		&profile.ID,
		&profile.Name,
		&profile.Email,
		&profile.PhoneNumber,
		&profile.Designations,
		&profile.Branch,
		&profile.IsAdmin,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
}

func scanProfiles(rows pgx.Rows) ([]domain.Profile, error) {
	result := []domain.Profile{}
	for rows.Next() {
		var profile domain.Profile
		if err := scanProfile(rows, &profile); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}
