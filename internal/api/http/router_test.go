package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	doctorID = "11111111-1111-4111-8111-111111111111"
	itID     = "22222222-2222-4222-8222-222222222222"
	adminID  = "33333333-3333-4333-8333-333333333333"
)

var testProfiles = map[string]*domain.Profile{
	doctorID: {ID: doctorID, Name: "doctor", Email: "doctor@example.com", Designations: []string{"Doctor"}, Branch: "LUSAKA"},
	itID:     {ID: itID, Name: "it", Email: "it@example.com", Designations: []string{"IT"}, Branch: "LUSAKA"},
	adminID:  {ID: adminID, Name: "admin", Email: "admin@example.com", Designations: []string{"Accounts"}, Branch: "LUSAKA", IsAdmin: true},
}

type memProfiles struct{}

func (memProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	if p, ok := testProfiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (memProfiles) List(context.Context, repository.ProfileFilter) ([]domain.Profile, error) {
	return nil, nil
}

func (memProfiles) ListAssignable(context.Context) ([]domain.Profile, error) {
	return []domain.Profile{*testProfiles[itID], *testProfiles[adminID]}, nil
}

func (memProfiles) Update(context.Context, *domain.Profile) error { return nil }

type memTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.TicketView
}

func (m *memTickets) CreateWithAttachments(_ context.Context, t *domain.Ticket, _ []domain.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	m.tickets[t.ID] = domain.TicketView{Ticket: *t}
	return nil
}

func (m *memTickets) ApplyChange(_ context.Context, t *domain.Ticket, _ *domain.TicketHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = domain.TicketView{Ticket: *t}
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.TicketView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.tickets[id]; ok {
		return &v, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.TicketView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketView
	for _, v := range m.tickets {
		if filter.Scope.All || v.CreatedBy == filter.Scope.CreatorID {
			out = append(out, v)
		}
	}
	return out, nil
}

type emptyRepos struct{}

func (emptyRepos) Create(context.Context, *domain.Comment) error { return nil }
func (emptyRepos) ListByTicket(context.Context, string) ([]domain.Comment, error) {
	return nil, nil
}
func (emptyRepos) ListByAuthor(context.Context, string, int) ([]domain.Comment, error) {
	return nil, nil
}
func (emptyRepos) CountByAuthor(context.Context, string) (int, error) { return 0, nil }

type emptyAttachments struct{}

func (emptyAttachments) ListByTicket(context.Context, string) ([]domain.Attachment, error) {
	return nil, nil
}
func (emptyAttachments) ListByStorageKey(context.Context, string) ([]domain.Attachment, error) {
	return nil, nil
}

type emptyHistory struct{}

func (emptyHistory) ListByTicket(context.Context, string) ([]domain.TicketHistory, error) {
	return nil, nil
}

type emptyReports struct{}

func (emptyReports) DashboardStats(context.Context, policy.TicketScope, string) (domain.DashboardStats, error) {
	return domain.DashboardStats{}, nil
}
func (emptyReports) CountBy(context.Context, repository.Dimension) ([]domain.NamedCount, error) {
	return nil, nil
}
func (emptyReports) RecentTickets(context.Context, policy.TicketScope, int) ([]domain.TicketView, error) {
	return nil, nil
}
func (emptyReports) RecentComments(context.Context, policy.TicketScope, int) ([]domain.Activity, error) {
	return nil, nil
}

type noAccounts struct{}

func (noAccounts) CreateWithProfile(context.Context, *domain.Account, *domain.Profile) error {
	return nil
}
func (noAccounts) GetByID(context.Context, string) (*domain.Account, error) {
	return nil, pgx.ErrNoRows
}
func (noAccounts) GetByEmail(context.Context, string) (*domain.Account, error) {
	return nil, pgx.ErrNoRows
}
func (noAccounts) UpdatePassword(context.Context, string, string) error { return nil }

type noResets struct{}

func (noResets) Create(context.Context, *domain.PasswordResetToken) error { return nil }
func (noResets) Redeem(context.Context, string, string) (*domain.PasswordResetToken, error) {
	return nil, pgx.ErrNoRows
}

type failingPinger struct{ err error }

func (f failingPinger) Ping(context.Context) error { return f.err }

// principalHeader stands in for JWT verification in these tests.
func principalHeader(c *fiber.Ctx) error {
	id := c.Get("X-Test-Principal")
	if id == "" {
		return apperrors.NewUnauthorized("missing bearer token")
	}
	p, _ := memProfiles{}.GetByID(c.UserContext(), id)
	auth.WithPrincipal(c, &domain.Principal{ID: id, TokenID: "jti", Profile: p})
	return c.Next()
}

func newTestApp(t *testing.T, backends map[string]handlers.Pinger) *fiber.App {
	t.Helper()
	return newTestAppWithTickets(t, backends, &memTickets{tickets: map[string]domain.TicketView{}})
}

func newTestAppWithTickets(t *testing.T, backends map[string]handlers.Pinger, tickets *memTickets) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	users := service.NewUserService(config.AuthConfig{BcryptCost: 4, MinPasswordLength: 6}, service.UserDependencies{
		AccountRepo:       noAccounts{},
		ProfileRepo:       memProfiles{},
		PasswordResetRepo: noResets{},
		Logger:            logger,
	})
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4, MinPasswordLength: 6}, service.AuthDependencies{
		Users:             users,
		AccountRepo:       noAccounts{},
		ProfileRepo:       memProfiles{},
		PasswordResetRepo: noResets{},
		Logger:            logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     tickets,
		CommentRepo:    emptyRepos{},
		AttachmentRepo: emptyAttachments{},
		HistoryRepo:    emptyHistory{},
		ProfileRepo:    memProfiles{},
		Logger:         logger,
	})
	reports := service.NewReportService(service.ReportDependencies{
		ReportRepo:  emptyReports{},
		TicketRepo:  tickets,
		CommentRepo: emptyRepos{},
		ProfileRepo: memProfiles{},
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, config.AppConfig{CORSOrigins: "*"}, logger, metrics)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-service", "test", backends),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(users),
		Reports:        handlers.NewReportsHandler(reports, metrics),
		AuthMiddleware: principalHeader,
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, path, principalID, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if principalID != "" {
		req.Header.Set("X-Test-Principal", principalID)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func TestHealthLive(t *testing.T) {
	app := newTestApp(t, nil)
	status, _ := do(t, app, fiber.MethodGet, "/health/live", "", "")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestHealthReadyReportsFailingBackend(t *testing.T) {
	app := newTestApp(t, map[string]handlers.Pinger{"redis": failingPinger{err: context.DeadlineExceeded}})
	status, env := do(t, app, fiber.MethodGet, "/health/ready", "", "")
	if status != fiber.StatusServiceUnavailable || env.Error == nil || env.Error.Code != apperrors.CodeUnavailable {
		t.Fatalf("status = %d, body = %+v", status, env.Error)
	}
}

func TestRouteGuards(t *testing.T) {
	app := newTestApp(t, nil)
	tests := []struct {
		name      string
		method    string
		path      string
		principal string
		body      string
		status    int
		code      string
	}{
		{"anonymous list", fiber.MethodGet, "/tickets", "", "", fiber.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"doctor analytics", fiber.MethodGet, "/analytics", doctorID, "", fiber.StatusForbidden, apperrors.CodeForbidden},
		{"it analytics", fiber.MethodGet, "/analytics", itID, "", fiber.StatusOK, ""},
		{"it metrics", fiber.MethodGet, "/metrics", itID, "", fiber.StatusForbidden, apperrors.CodeForbidden},
		{"admin metrics", fiber.MethodGet, "/metrics", adminID, "", fiber.StatusOK, ""},
		{"it creates user", fiber.MethodPost, "/users", itID, `{"name":"x"}`, fiber.StatusForbidden, apperrors.CodeForbidden},
		{"unknown ticket id", fiber.MethodGet, "/tickets/not-a-uuid", doctorID, "", fiber.StatusNotFound, apperrors.CodeNotFound},
		{"public catalogue", fiber.MethodGet, "/catalogue", "", "", fiber.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, tt.method, tt.path, tt.principal, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.status, env.Error)
			}
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Fatalf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t, nil)

	status, env := do(t, app, fiber.MethodPost, "/tickets", doctorID, `{"title":"VPN down","description":"Cannot connect","priority":"High"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d (%+v)", status, env.Error)
	}
	var created struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if created.ID == "" || created.Status != string(domain.TicketStatusOpen) || created.Priority != "High" {
		t.Fatalf("created = %+v", created)
	}

	status, env = do(t, app, fiber.MethodPatch, "/tickets/"+created.ID+"/status", doctorID, `{"status":"Closed"}`)
	if status != fiber.StatusForbidden {
		t.Fatalf("creator status change = %d (%+v)", status, env.Error)
	}

	status, env = do(t, app, fiber.MethodPatch, "/tickets/"+created.ID+"/status", itID, `{"status":"Resolved"}`)
	if status != fiber.StatusOK {
		t.Fatalf("it status change = %d (%+v)", status, env.Error)
	}

	status, env = do(t, app, fiber.MethodGet, "/tickets", doctorID, "")
	var listed []struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &listed); err != nil || status != fiber.StatusOK {
		t.Fatalf("list = %d, %v", status, err)
	}
	if len(listed) != 1 || listed[0].Status != string(domain.TicketStatusResolved) {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	app := newTestApp(t, nil)
	status, env := do(t, app, fiber.MethodPost, "/tickets", doctorID, `{"priority":"High"}`)
	if status != fiber.StatusBadRequest || env.Error == nil || env.Error.Code != apperrors.CodeValidation {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	fields, _ := env.Error.Details["fields"].([]any)
	if len(fields) != 2 || fields[0] != "description" || fields[1] != "title" {
		t.Fatalf("fields = %v", env.Error.Details["fields"])
	}
}

func TestCreateTicketIgnoresClientCreator(t *testing.T) {
	tickets := &memTickets{tickets: map[string]domain.TicketView{}}
	app := newTestAppWithTickets(t, nil, tickets)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	for field, value := range map[string]string{"title": "Scanner", "description": "offline", "created_by": itID} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", fiber.MIMEApplicationJSON, `{"title":"x","description":"y","created_by":"` + itID + `"}`},
		{"multipart", mw.FormDataContentType(), form.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/tickets", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, tt.contentType)
			req.Header.Set("X-Test-Principal", doctorID)
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != fiber.StatusCreated {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var env struct {
				Data struct {
					ID        string `json:"id"`
					CreatedBy string `json:"created_by"`
				} `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Data.CreatedBy != doctorID {
				t.Fatalf("response created_by = %s", env.Data.CreatedBy)
			}
			stored, err := tickets.GetByID(context.Background(), env.Data.ID)
			if err != nil || stored.CreatedBy != doctorID {
				t.Fatalf("stored = %+v, %v", stored, err)
			}
		})
	}
}
