package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/bootstrap"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// CacheInvalidator drops cached profile copies after an edit.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, profileID string)
}

// UserService manages accounts and profiles.
type UserService struct {
	accounts   repository.AccountRepository
	profiles   repository.ProfileRepository
	resets     *resetIssuer
	cache      CacheInvalidator
	events     publisher
	bcryptCost int
	minPwLen   int
}

// UserDependencies bundles collaborators for UserService.
type UserDependencies struct {
	AccountRepo       repository.AccountRepository
	ProfileRepo       repository.ProfileRepository
	PasswordResetRepo repository.PasswordResetRepository
	Cache             CacheInvalidator
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	pub := newPublisher(deps.Dispatcher, deps.Logger)
	return &UserService{
		accounts:   deps.AccountRepo,
		profiles:   deps.ProfileRepo,
		resets:     newResetIssuer(cfg, deps.PasswordResetRepo, pub),
		cache:      deps.Cache,
		events:     pub,
		bcryptCost: cfg.BcryptCost,
		minPwLen:   cfg.MinPasswordLength,
	}
}

// NewAccountInput carries the fields of a new account and profile.
type NewAccountInput struct {
	Name         string
	Email        string
	Password     string
	PhoneNumber  *string
	Designations []string
	Branch       string
	IsAdmin      bool
}

// UserListInput filters the directory.
type UserListInput struct {
	Branch      string
	Designation string
	Search      string
	Page        int
	PageSize    int
}

// UpdateUserInput holds optional profile edits; nil fields are unchanged.
type UpdateUserInput struct {
	Name         *string
	Email        *string
	PhoneNumber  *string
	Designations *[]string
	Branch       *string
	IsAdmin      *bool
}

// Me returns the caller's own profile.
func (s *UserService) Me(_ context.Context, p *domain.Principal) (*domain.Profile, error) {
	if err := policy.Authenticated(p); err != nil {
		return nil, err
	}
	if !p.HasProfile() {
		return nil, apperrors.NewNotFound("profile", map[string]any{"id": p.ID})
	}
	return p.Profile, nil
}

// CreateUser lets an admin create an account with its profile. Admin rights
// are re-read from the database, bypassing any cached profile.
func (s *UserService) CreateUser(ctx context.Context, p *domain.Principal, input NewAccountInput) (*domain.Profile, error) {
	if err := s.freshAdmin(ctx, p, policy.CanCreateUser); err != nil {
		return nil, err
	}
	profile, err := s.createAccount(ctx, input)
	if err != nil {
		return nil, err
	}
	s.publishUserCreated(ctx, p.ID, profile, false)
	return profile, nil
}

// EnsureAdmin provisions a seeded administrator unless the email exists.
func (s *UserService) EnsureAdmin(ctx context.Context, seed bootstrap.AdminSeed) (bool, error) {
	_, err := s.accounts.GetByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	input := NewAccountInput{
		Name:         seed.Name,
		Email:        seed.Email,
		Password:     seed.Password,
		Designations: seed.Designations,
		Branch:       seed.Branch,
		IsAdmin:      true,
	}
	if phone := strings.TrimSpace(seed.PhoneNumber); phone != "" {
		input.PhoneNumber = &phone
	}
	if len(input.Designations) == 0 {
		input.Designations = []string{domain.DesignationIT}
	}
	profile, err := s.createAccount(ctx, input)
	if err != nil {
		return false, err
	}
	s.publishUserCreated(ctx, profile.ID, profile, false)
	return true, nil
}

// ListUsers returns the profiles visible to the caller.
func (s *UserService) ListUsers(ctx context.Context, p *domain.Principal, input UserListInput) ([]domain.Profile, error) {
	scope, err := policy.ProfileListScope(p)
	if err != nil {
		return nil, err
	}
	limit, offset := pagination(input.Page, input.PageSize)
	profiles, err := s.profiles.List(ctx, repository.ProfileFilter{
		Scope:       scope,
		Branch:      input.Branch,
		Designation: input.Designation,
		Search:      input.Search,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profiles, nil
}

// GetUser returns one profile when the caller may see it.
func (s *UserService) GetUser(ctx context.Context, p *domain.Principal, profileID string) (*domain.Profile, error) {
	if err := policy.Authenticated(p); err != nil {
		return nil, err
	}
	id, err := requireID(profileID, "profile")
	if err != nil {
		return nil, err
	}
	if err := policy.CanViewProfile(p, id); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "profile", id)
	}
	return profile, nil
}

// UpdateUser applies an admin edit and evicts the cached profile.
func (s *UserService) UpdateUser(ctx context.Context, p *domain.Principal, profileID string, input UpdateUserInput) (*domain.Profile, error) {
	if err := s.freshAdmin(ctx, p, policy.CanManageUser); err != nil {
		return nil, err
	}
	id, err := requireID(profileID, "profile")
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "profile", id)
	}

	var invalid []string
	if input.Name != nil {
		if profile.Name = strings.TrimSpace(*input.Name); profile.Name == "" {
			invalid = append(invalid, "name")
		}
	}
	if input.Email != nil {
		if profile.Email = strings.TrimSpace(*input.Email); !validEmail(profile.Email) {
			invalid = append(invalid, "email")
		}
	}
	if input.PhoneNumber != nil {
		if phone := strings.TrimSpace(*input.PhoneNumber); phone != "" {
			profile.PhoneNumber = &phone
		} else {
			profile.PhoneNumber = nil
		}
	}
	if input.Designations != nil {
		if profile.Designations = domain.NormalizeDesignations(*input.Designations); len(profile.Designations) == 0 {
			invalid = append(invalid, "designations")
		}
	}
	if input.Branch != nil {
		if profile.Branch = domain.NormalizeBranch(*input.Branch); profile.Branch == "" {
			invalid = append(invalid, "branch")
		}
	}
	if input.IsAdmin != nil {
		profile.IsAdmin = *input.IsAdmin
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewFieldValidationError("invalid profile fields", invalid...)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, notFoundAs(err, "profile", id)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return profile, nil
}

// AdminResetPassword sends a reset link to the user.
func (s *UserService) AdminResetPassword(ctx context.Context, p *domain.Principal, profileID string) (*domain.PasswordResetToken, error) {
	if err := s.freshAdmin(ctx, p, policy.CanManageUser); err != nil {
		return nil, err
	}
	id, err := requireID(profileID, "profile")
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "profile", id)
	}
	token, err := s.resets.issue(ctx, account, p.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return token, nil
}

// freshAdmin re-resolves the caller's profile from the database before an
// admin-only action.
func (s *UserService) freshAdmin(ctx context.Context, p *domain.Principal, check func(*domain.Principal) error) error {
	if err := policy.Authenticated(p); err != nil {
		return err
	}
	profile, err := s.profiles.GetByID(ctx, p.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	fresh := &domain.Principal{ID: p.ID, TokenID: p.TokenID, Profile: profile}
	return check(fresh)
}

func (s *UserService) createAccount(ctx context.Context, input NewAccountInput) (*domain.Profile, error) {
	profile, err := validateNewAccount(&input, s.minPwLen)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &domain.Account{Email: profile.Email, PasswordHash: hash}
	if err := s.accounts.CreateWithProfile(ctx, account, profile); err != nil {
		if apperrors.HasCode(apperrors.MapError(err), apperrors.CodeConflict) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"fields": []string{"email"}})
		}
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

func (s *UserService) publishUserCreated(ctx context.Context, actorID string, profile *domain.Profile, selfSignUp bool) {
	s.events.publish(ctx, events.Event{
		Type:    events.EventUserCreated,
		ActorID: actorID,
		Payload: events.UserCreatedPayload{
			ProfileID:  profile.ID,
			Email:      profile.Email,
			IsAdmin:    profile.IsAdmin,
			SelfSignUp: selfSignUp,
		},
	})
}

// validateNewAccount checks every field before any write and returns the
// profile to insert.
func validateNewAccount(input *NewAccountInput, minPasswordLength int) (*domain.Profile, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	branch := domain.NormalizeBranch(input.Branch)
	designations := domain.NormalizeDesignations(input.Designations)

	var invalid []string
	if name == "" {
		invalid = append(invalid, "name")
	}
	if !validEmail(email) {
		invalid = append(invalid, "email")
	}
	if len(input.Password) < minPasswordLength || strings.TrimSpace(input.Password) == "" {
		invalid = append(invalid, "password")
	}
	if len(designations) == 0 {
		invalid = append(invalid, "designations")
	}
	if branch == "" {
		invalid = append(invalid, "branch")
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewFieldValidationError("missing or invalid fields", invalid...)
	}

	var phone *string
	if input.PhoneNumber != nil {
		if v := strings.TrimSpace(*input.PhoneNumber); v != "" {
			phone = &v
		}
	}
	return &domain.Profile{
		Name:         name,
		Email:        email,
		PhoneNumber:  phone,
		Designations: designations,
		Branch:       branch,
		IsAdmin:      input.IsAdmin,
	}, nil
}
