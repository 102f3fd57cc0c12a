package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AuthSession is returned by sign-up and sign-in.
type AuthSession struct {
	Token     string
	ExpiresAt time.Time
	Profile   *domain.Profile
}

// AuthService coordinates registration, login and credential flows.
type AuthService struct {
	users      *UserService
	accounts   repository.AccountRepository
	profiles   repository.ProfileRepository
	resetsRepo repository.PasswordResetRepository
	resets     *resetIssuer
	revoked    auth.RevocationStore
	tokenMgr   *auth.TokenManager
	bcryptCost int
	minPwLen   int
	tokenTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users             *UserService
	AccountRepo       repository.AccountRepository
	ProfileRepo       repository.ProfileRepository
	PasswordResetRepo repository.PasswordResetRepository
	Revocations       auth.RevocationStore
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.Users,
		accounts:   deps.AccountRepo,
		profiles:   deps.ProfileRepo,
		resetsRepo: deps.PasswordResetRepo,
		resets:     newResetIssuer(cfg, deps.PasswordResetRepo, newPublisher(deps.Dispatcher, deps.Logger)),
		revoked:    deps.Revocations,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		minPwLen:   cfg.MinPasswordLength,
		tokenTTL:   time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute,
		now:        time.Now,
	}
}

// SignUpInput carries self-registration fields. Self sign-up never grants
// admin rights.
type SignUpInput struct {
	Name         string
	Email        string
	Password     string
	PhoneNumber  *string
	Designations []string
	Branch       string
}

// SignUp creates an account and its profile and signs the caller in.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*AuthSession, error) {
	profile, err := s.users.createAccount(ctx, NewAccountInput{
		Name:         input.Name,
		Email:        input.Email,
		Password:     input.Password,
		PhoneNumber:  input.PhoneNumber,
		Designations: input.Designations,
		Branch:       input.Branch,
	})
	if err != nil {
		return nil, err
	}
	s.users.publishUserCreated(ctx, profile.ID, profile, true)
	return s.session(profile.ID, profile)
}

// SignIn authenticates by email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	profile, err := s.profiles.GetByID(ctx, account.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	return s.session(account.ID, profile)
}

// SignOut revokes the caller's token until it would have expired anyway.
func (s *AuthService) SignOut(ctx context.Context, p *domain.Principal) error {
	if err := policy.Authenticated(p); err != nil {
		return err
	}
	if p.TokenID == "" {
		return nil
	}
	if err := s.revoked.Revoke(ctx, p.TokenID, s.now().Add(s.tokenTTL)); err != nil {
		return apperrors.NewUnavailable("token store", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token when the email is registered.
// Unknown emails succeed silently so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return apperrors.NewFieldValidationError("a valid email is required", "email")
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if _, err := s.resets.issue(ctx, account, account.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token and stores the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewFieldValidationError("reset token is required", "token")
	}
	if err := auth.ValidatePassword(newPassword, s.minPwLen, "password"); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if _, err := s.resetsRepo.Redeem(ctx, token, hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewFieldValidationError("reset token is invalid or expired", "token")
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ChangePassword verifies the current password before storing a new one.
func (s *AuthService) ChangePassword(ctx context.Context, p *domain.Principal, currentPassword, newPassword string) error {
	if err := policy.Authenticated(p); err != nil {
		return err
	}
	if err := auth.ValidatePassword(newPassword, s.minPwLen, "new_password"); err != nil {
		return err
	}
	account, err := s.accounts.GetByID(ctx, p.ID)
	if err != nil {
		return notFoundAs(err, "account", p.ID)
	}
	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return apperrors.NewFieldValidationError("current password is incorrect", "current_password")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) session(accountID string, profile *domain.Profile) (*AuthSession, error) {
	issued, err := s.tokenMgr.GenerateToken(accountID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthSession{Token: issued.Token, ExpiresAt: issued.ExpiresAt, Profile: profile}, nil
}

// resetIssuer stores reset tokens and hands them to the notifier.
type resetIssuer struct {
	repo   repository.PasswordResetRepository
	events publisher
	ttl    time.Duration
	now    func() time.Time
}

func newResetIssuer(cfg config.AuthConfig, repo repository.PasswordResetRepository, pub publisher) *resetIssuer {
	ttl := time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &resetIssuer{repo: repo, events: pub, ttl: ttl, now: time.Now}
}

func (r *resetIssuer) issue(ctx context.Context, account *domain.Account, actorID string) (*domain.PasswordResetToken, error) {
	token := &domain.PasswordResetToken{
		AccountID: account.ID,
		Token:     uuid.NewString(),
		ExpiresAt: r.now().Add(r.ttl),
	}
	if err := r.repo.Create(ctx, token); err != nil {
		return nil, err
	}
	r.events.publish(ctx, events.Event{
		Type:    events.EventPasswordResetRequested,
		ActorID: actorID,
		Payload: events.PasswordResetRequestedPayload{
			AccountID: account.ID,
			Email:     account.Email,
			Token:     token.Token,
			ExpiresAt: token.ExpiresAt,
		},
	})
	return token, nil
}
