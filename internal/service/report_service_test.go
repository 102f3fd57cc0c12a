package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func newReportFixture(reports *fakeReportRepo, tickets *fakeTicketRepo, comments *fakeCommentRepo) *ReportService {
	return NewReportService(ReportDependencies{
		ReportRepo:  reports,
		TicketRepo:  tickets,
		CommentRepo: comments,
		ProfileRepo: &fakeProfileRepo{getFn: profilesByID(doctorProfile, itProfile, adminProfile, nurseProfile)},
	})
}

func TestDashboardStatsUsesListScope(t *testing.T) {
	var gotScope policy.TicketScope
	reports := &fakeReportRepo{statsFn: func(_ context.Context, scope policy.TicketScope, id string) (domain.DashboardStats, error) {
		gotScope = scope
		return domain.DashboardStats{Total: 3, Mine: 3}, nil
	}}
	svc := newReportFixture(reports, &fakeTicketRepo{}, &fakeCommentRepo{})

	stats, err := svc.DashboardStats(context.Background(), principalFor(doctorProfile))
	if err != nil || stats.Total != 3 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
	if gotScope.All || gotScope.CreatorID != doctorID {
		t.Fatalf("scope = %+v", gotScope)
	}
	if _, err := svc.DashboardStats(context.Background(), principalFor(itProfile)); err != nil || !gotScope.All {
		t.Fatalf("it scope = %+v, %v", gotScope, err)
	}
}

func TestActivityFeedMergesNewestFirst(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	older := ticketView(ticketAID, doctorID, domain.TicketStatusOpen)
	older.CreatedAt = base.Add(-2 * time.Hour)
	newer := ticketView(ticketBID, doctorID, domain.TicketStatusResolved)
	newer.CreatedAt = base

	reports := &fakeReportRepo{
		ticketsFn: func(_ context.Context, _ policy.TicketScope, limit int) ([]domain.TicketView, error) {
			if limit != 10 {
				t.Errorf("limit = %d", limit)
			}
			return []domain.TicketView{*newer, *older}, nil
		},
		commentsFn: func(context.Context, policy.TicketScope, int) ([]domain.Activity, error) {
			return []domain.Activity{{
				ID:        "c1",
				Type:      domain.ActivityCommentAdded,
				TicketID:  ticketAID,
				Timestamp: base.Add(-time.Hour),
			}}, nil
		},
	}
	svc := newReportFixture(reports, &fakeTicketRepo{}, &fakeCommentRepo{})

	feed, err := svc.ActivityFeed(context.Background(), principalFor(doctorProfile))
	if err != nil {
		t.Fatalf("ActivityFeed: %v", err)
	}
	want := []string{ticketBID, "c1", ticketAID}
	if len(feed) != len(want) {
		t.Fatalf("feed = %+v", feed)
	}
	for i, id := range want {
		if feed[i].ID != id {
			t.Fatalf("feed[%d] = %s, want %s", i, feed[i].ID, id)
		}
	}
	if feed[0].Type != domain.ActivityTicketCreated || *feed[0].Status != domain.TicketStatusResolved {
		t.Fatalf("ticket entry = %+v", feed[0])
	}
}

func TestAnalytics(t *testing.T) {
	reports := &fakeReportRepo{countFn: func(_ context.Context, dim repository.Dimension) ([]domain.NamedCount, error) {
		switch dim {
		case repository.DimensionStatus:
			return []domain.NamedCount{{Name: "Open", Value: 4}, {Name: "Resolved", Value: 3}, {Name: "Closed", Value: 1}}, nil
		case repository.DimensionPriority:
			return []domain.NamedCount{{Name: "High", Value: 8}}, nil
		case repository.DimensionBranch:
			return []domain.NamedCount{{Name: "LUSAKA", Value: 8}}, nil
		default:
			return []domain.NamedCount{{Name: "Doctor", Value: 5}, {Name: "Nurse", Value: 3}}, nil
		}
	}}
	svc := newReportFixture(reports, &fakeTicketRepo{}, &fakeCommentRepo{})

	_, err := svc.Analytics(context.Background(), principalFor(doctorProfile))
	requireCode(t, err, apperrors.CodeForbidden)

	a, err := svc.Analytics(context.Background(), principalFor(itProfile))
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if len(a.ByStatus) != 4 || a.ByStatus[1].Name != "In Progress" || a.ByStatus[1].Value != 0 {
		t.Fatalf("by status = %+v", a.ByStatus)
	}
	if len(a.ByPriority) != 4 || a.ByPriority[2].Name != "High" || a.ByPriority[2].Value != 8 {
		t.Fatalf("by priority = %+v", a.ByPriority)
	}
	if a.ActiveTickets != 4 || a.ResolutionRate != 50 {
		t.Fatalf("active = %d, rate = %v", a.ActiveTickets, a.ResolutionRate)
	}
}

func TestResolutionRate(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := resolutionRate(tt.done, tt.total); got != tt.want {
			t.Fatalf("resolutionRate(%d, %d) = %v, want %v", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestUserActivity(t *testing.T) {
	var filters []repository.TicketFilter
	tickets := &fakeTicketRepo{listFn: func(_ context.Context, filter repository.TicketFilter) ([]domain.TicketView, error) {
		filters = append(filters, filter)
		return []domain.TicketView{*ticketView(ticketAID, nurseID, domain.TicketStatusOpen)}, nil
	}}
	comments := &fakeCommentRepo{countFn: func(context.Context, string) (int, error) { return 7, nil }}
	svc := newReportFixture(&fakeReportRepo{}, tickets, comments)

	_, err := svc.UserActivity(context.Background(), principalFor(doctorProfile), nurseID)
	requireCode(t, err, apperrors.CodeForbidden)

	activity, err := svc.UserActivity(context.Background(), principalFor(adminProfile), nurseID)
	if err != nil {
		t.Fatalf("UserActivity: %v", err)
	}
	if activity.CommentCount != 7 || len(activity.CreatedTickets) != 1 || len(activity.AssignedTickets) != 1 {
		t.Fatalf("activity = %+v", activity)
	}
	if len(filters) != 2 || *filters[0].CreatedBy != nurseID || *filters[1].AssignedTo != nurseID || !filters[0].Scope.All {
		t.Fatalf("filters = %+v", filters)
	}

	_, err = svc.UserActivity(context.Background(), principalFor(adminProfile), missingID)
	requireCode(t, err, apperrors.CodeNotFound)
}
