package service

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	doctorID   = "11111111-1111-4111-8111-111111111111"
	itID       = "22222222-2222-4222-8222-222222222222"
	adminID    = "33333333-3333-4333-8333-333333333333"
	nurseID    = "44444444-4444-4444-8444-444444444444"
	ticketAID  = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	ticketBID  = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	missingID  = "99999999-9999-4999-8999-999999999999"
	testBlobID = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

func profile(id, name string, admin bool, designations ...string) *domain.Profile {
	return &domain.Profile{
		ID:           id,
		Name:         name,
		Email:        name + "@example.com",
		Designations: designations,
		Branch:       "LUSAKA",
		IsAdmin:      admin,
	}
}

func principalFor(p *domain.Profile) *domain.Principal {
	return &domain.Principal{ID: p.ID, TokenID: "jti-" + p.ID, Profile: p}
}

var (
	doctorProfile = profile(doctorID, "doctor", false, "Doctor")
	itProfile     = profile(itID, "it", false, "IT")
	adminProfile  = profile(adminID, "admin", true, "Accounts")
	nurseProfile  = profile(nurseID, "nurse", false, "Nurse")
)

func ticketView(id, createdBy string, status domain.TicketStatus) *domain.TicketView {
	return &domain.TicketView{
		Ticket: domain.Ticket{
			ID:          id,
			Title:       "Printer jam",
			Description: "Tray 2 is stuck",
			Status:      status,
			Priority:    domain.TicketPriorityMedium,
			CreatedBy:   createdBy,
			CreatedAt:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
		CreatorName: "creator",
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func requireFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	requireCode(t, err, apperrors.CodeValidation)
	got, _ := apperrors.ToDomainError(err).Details["fields"].([]string)
	if len(got) != len(fields) {
		t.Fatalf("fields = %v, want %v", got, fields)
	}
	for i := range fields {
		if got[i] != fields[i] {
			t.Fatalf("fields = %v, want %v", got, fields)
		}
	}
}

type fakeTicketRepo struct {
	createFn func(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment) error
	applyFn  func(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error
	getFn    func(ctx context.Context, id string) (*domain.TicketView, error)
	listFn   func(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketView, error)
}

func (f *fakeTicketRepo) CreateWithAttachments(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment) error {
	if f.createFn != nil {
		return f.createFn(ctx, ticket, attachments)
	}
	ticket.ID = ticketAID
	return nil
}

func (f *fakeTicketRepo) ApplyChange(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	if f.applyFn != nil {
		return f.applyFn(ctx, ticket, entry)
	}
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.TicketView, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketView, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []domain.TicketView{}, nil
}

// ticketsByID serves GetByID from a fixed set, returning fresh copies.
func ticketsByID(views ...*domain.TicketView) func(context.Context, string) (*domain.TicketView, error) {
	return func(_ context.Context, id string) (*domain.TicketView, error) {
		for _, v := range views {
			if v.ID == id {
				cp := *v
				return &cp, nil
			}
		}
		return nil, pgx.ErrNoRows
	}
}

type fakeCommentRepo struct {
	createFn func(ctx context.Context, comment *domain.Comment) error
	listFn   func(ctx context.Context, ticketID string) ([]domain.Comment, error)
	authorFn func(ctx context.Context, authorID string, limit int) ([]domain.Comment, error)
	countFn  func(ctx context.Context, authorID string) (int, error)
}

func (f *fakeCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	if f.createFn != nil {
		return f.createFn(ctx, comment)
	}
	return nil
}

func (f *fakeCommentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if f.listFn != nil {
		return f.listFn(ctx, ticketID)
	}
	return []domain.Comment{}, nil
}

func (f *fakeCommentRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Comment, error) {
	if f.authorFn != nil {
		return f.authorFn(ctx, authorID, limit)
	}
	return []domain.Comment{}, nil
}

func (f *fakeCommentRepo) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, authorID)
	}
	return 0, nil
}

type fakeAttachmentRepo struct {
	byKeyFn func(ctx context.Context, key string) ([]domain.Attachment, error)
}

func (f *fakeAttachmentRepo) ListByTicket(context.Context, string) ([]domain.Attachment, error) {
	return []domain.Attachment{}, nil
}

func (f *fakeAttachmentRepo) ListByStorageKey(ctx context.Context, key string) ([]domain.Attachment, error) {
	if f.byKeyFn != nil {
		return f.byKeyFn(ctx, key)
	}
	return []domain.Attachment{}, nil
}

type fakeHistoryRepo struct{}

func (fakeHistoryRepo) ListByTicket(context.Context, string) ([]domain.TicketHistory, error) {
	return []domain.TicketHistory{}, nil
}

type fakeProfileRepo struct {
	getFn        func(ctx context.Context, id string) (*domain.Profile, error)
	listFn       func(ctx context.Context, filter repository.ProfileFilter) ([]domain.Profile, error)
	assignableFn func(ctx context.Context) ([]domain.Profile, error)
	updateFn     func(ctx context.Context, profile *domain.Profile) error
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProfileRepo) List(ctx context.Context, filter repository.ProfileFilter) ([]domain.Profile, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []domain.Profile{}, nil
}

func (f *fakeProfileRepo) ListAssignable(ctx context.Context) ([]domain.Profile, error) {
	if f.assignableFn != nil {
		return f.assignableFn(ctx)
	}
	return []domain.Profile{}, nil
}

func (f *fakeProfileRepo) Update(ctx context.Context, profile *domain.Profile) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, profile)
	}
	return nil
}

// profilesByID serves GetByID from a fixed set, returning fresh copies.
func profilesByID(profiles ...*domain.Profile) func(context.Context, string) (*domain.Profile, error) {
	return func(_ context.Context, id string) (*domain.Profile, error) {
		for _, p := range profiles {
			if p.ID == id {
				cp := *p
				return &cp, nil
			}
		}
		return nil, pgx.ErrNoRows
	}
}

type fakeAccountRepo struct {
	createFn   func(ctx context.Context, account *domain.Account, profile *domain.Profile) error
	getFn      func(ctx context.Context, id string) (*domain.Account, error)
	byEmailFn  func(ctx context.Context, email string) (*domain.Account, error)
	passwordFn func(ctx context.Context, id, hash string) error
}

func (f *fakeAccountRepo) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	if f.createFn != nil {
		return f.createFn(ctx, account, profile)
	}
	account.ID = nurseID
	profile.ID = nurseID
	return nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if f.byEmailFn != nil {
		return f.byEmailFn(ctx, email)
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAccountRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if f.passwordFn != nil {
		return f.passwordFn(ctx, id, hash)
	}
	return nil
}

type fakeResetRepo struct {
	createFn func(ctx context.Context, token *domain.PasswordResetToken) error
	redeemFn func(ctx context.Context, token, hash string) (*domain.PasswordResetToken, error)
}

func (f *fakeResetRepo) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	if f.createFn != nil {
		return f.createFn(ctx, token)
	}
	return nil
}

func (f *fakeResetRepo) Redeem(ctx context.Context, token, hash string) (*domain.PasswordResetToken, error) {
	if f.redeemFn != nil {
		return f.redeemFn(ctx, token, hash)
	}
	return nil, pgx.ErrNoRows
}

type fakeReportRepo struct {
	statsFn    func(ctx context.Context, scope policy.TicketScope, principalID string) (domain.DashboardStats, error)
	countFn    func(ctx context.Context, dimension repository.Dimension) ([]domain.NamedCount, error)
	ticketsFn  func(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.TicketView, error)
	commentsFn func(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.Activity, error)
}

func (f *fakeReportRepo) DashboardStats(ctx context.Context, scope policy.TicketScope, principalID string) (domain.DashboardStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx, scope, principalID)
	}
	return domain.DashboardStats{}, nil
}

func (f *fakeReportRepo) CountBy(ctx context.Context, dimension repository.Dimension) ([]domain.NamedCount, error) {
	if f.countFn != nil {
		return f.countFn(ctx, dimension)
	}
	return []domain.NamedCount{}, nil
}

func (f *fakeReportRepo) RecentTickets(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.TicketView, error) {
	if f.ticketsFn != nil {
		return f.ticketsFn(ctx, scope, limit)
	}
	return []domain.TicketView{}, nil
}

func (f *fakeReportRepo) RecentComments(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.Activity, error) {
	if f.commentsFn != nil {
		return f.commentsFn(ctx, scope, limit)
	}
	return []domain.Activity{}, nil
}

type fakeStore struct {
	putFn   func(ctx context.Context, r io.Reader) (string, int64, bool, error)
	openFn  func(ctx context.Context, key string) (*os.File, error)
	deleted []string
}

func (f *fakeStore) Put(ctx context.Context, r io.Reader) (string, int64, bool, error) {
	if f.putFn != nil {
		return f.putFn(ctx, r)
	}
	n, err := io.Copy(io.Discard, r)
	return testBlobID, n, true, err
}

func (f *fakeStore) Open(ctx context.Context, key string) (*os.File, error) {
	if f.openFn != nil {
		return f.openFn(ctx, key)
	}
	return nil, os.ErrNotExist
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) URL(key string) string {
	return "/files/" + key
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecorder() (events.Dispatcher, *recorder) {
	d := events.NewInMemoryDispatcher()
	r := &recorder{}
	events.SubscribeAll(d, func(_ context.Context, e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	})
	return d, r
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
