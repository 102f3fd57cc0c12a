package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrNoProfile is returned when an account has no provisioned profile.
var ErrNoProfile = errors.New("profile not provisioned")

// ProfileSource loads profiles from the system of record.
type ProfileSource interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// ProfileCache is an optional read-through cache in front of ProfileSource.
type ProfileCache interface {
	Get(ctx context.Context, id string) (*domain.Profile, bool, error)
	Set(ctx context.Context, profile *domain.Profile) error
	Evict(ctx context.Context, id string) error
}

// Resolver maps a principal id to its profile.
type Resolver struct {
	profiles ProfileSource
	cache    ProfileCache
	logger   *zap.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(profiles ProfileSource, cache ProfileCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{profiles: profiles, cache: cache, logger: logger}
}

// Resolve returns the profile for principalID or ErrNoProfile.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (*domain.Profile, error) {
	if r.cache != nil {
		profile, ok, err := r.cache.Get(ctx, principalID)
		switch {
		case err != nil:
			r.logger.Warn("profile cache read failed", zap.String("profile_id", principalID), zap.Error(err))
		case ok:
			return profile, nil
		}
	}

	profile, err := r.profiles.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoProfile
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, profile); err != nil {
			r.logger.Warn("profile cache write failed", zap.String("profile_id", principalID), zap.Error(err))
		}
	}
	return profile, nil
}

// Invalidate drops any cached copy of the profile.
func (r *Resolver) Invalidate(ctx context.Context, principalID string) {
	if r == nil || r.cache == nil {
		return
	}
	if err := r.cache.Evict(ctx, principalID); err != nil {
		r.logger.Warn("profile cache evict failed", zap.String("profile_id", principalID), zap.Error(err))
	}
}

// Principal resolves the full principal for an authenticated account.
func (r *Resolver) Principal(ctx context.Context, accountID, tokenID string) (*domain.Principal, error) {
	profile, err := r.Resolve(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNoProfile) {
		return nil, err
	}
	return &domain.Principal{ID: accountID, TokenID: tokenID, Profile: profile}, nil
}
