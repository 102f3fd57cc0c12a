package service

import (
	"context"
	"math"
	"sort"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	activityFeedSize     = 10
	userActivityListSize = 10
)

// ReportService serves dashboards and analytics.
type ReportService struct {
	reports  repository.ReportRepository
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	profiles repository.ProfileRepository
}

// ReportDependencies bundles collaborators for ReportService.
type ReportDependencies struct {
	ReportRepo  repository.ReportRepository
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	ProfileRepo repository.ProfileRepository
}

// NewReportService builds the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{
		reports:  deps.ReportRepo,
		tickets:  deps.TicketRepo,
		comments: deps.CommentRepo,
		profiles: deps.ProfileRepo,
	}
}

// DashboardStats counts the tickets the caller may list.
func (s *ReportService) DashboardStats(ctx context.Context, p *domain.Principal) (domain.DashboardStats, error) {
	scope, err := policy.TicketListScope(p)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats, err := s.reports.DashboardStats(ctx, scope, p.ID)
	if err != nil {
		return domain.DashboardStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// ActivityFeed merges recent ticket creations and comments, newest first.
func (s *ReportService) ActivityFeed(ctx context.Context, p *domain.Principal) ([]domain.Activity, error) {
	scope, err := policy.TicketListScope(p)
	if err != nil {
		return nil, err
	}
	tickets, err := s.reports.RecentTickets(ctx, scope, activityFeedSize)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.reports.RecentComments(ctx, scope, activityFeedSize)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	feed := make([]domain.Activity, 0, len(tickets)+len(comments))
	for i := range tickets {
		t := tickets[i]
		feed = append(feed, domain.Activity{
			ID:          t.ID,
			Type:        domain.ActivityTicketCreated,
			TicketID:    t.ID,
			Title:       t.Title,
			Description: preview(t.Description),
			ActorName:   t.CreatorName,
			Priority:    &t.Priority,
			Status:      &t.Status,
			Timestamp:   t.CreatedAt,
		})
	}
	for _, c := range comments {
		c.Description = preview(c.Description)
		feed = append(feed, c)
	}
	sort.SliceStable(feed, func(i, j int) bool {
		if !feed[i].Timestamp.Equal(feed[j].Timestamp) {
			return feed[i].Timestamp.After(feed[j].Timestamp)
		}
		return feed[i].ID > feed[j].ID
	})
	return feed, nil
}

// Analytics returns organisation-wide breakdowns for staff.
func (s *ReportService) Analytics(ctx context.Context, p *domain.Principal) (*domain.Analytics, error) {
	if err := policy.CanViewAnalytics(p); err != nil {
		return nil, err
	}
	counts := make(map[repository.Dimension][]domain.NamedCount, 4)
	for _, dim := range []repository.Dimension{
		repository.DimensionStatus,
		repository.DimensionPriority,
		repository.DimensionBranch,
		repository.DimensionDesignation,
	} {
		rows, err := s.reports.CountBy(ctx, dim)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		counts[dim] = rows
	}

	result := &domain.Analytics{
		ByStatus:      inOrder(counts[repository.DimensionStatus], enumNames(domain.TicketStatuses)),
		ByPriority:    inOrder(counts[repository.DimensionPriority], enumNames(domain.TicketPriorities)),
		ByBranch:      counts[repository.DimensionBranch],
		ByDesignation: counts[repository.DimensionDesignation],
	}
	var total, closedOut int
	for _, c := range result.ByStatus {
		total += c.Value
		switch domain.TicketStatus(c.Name) {
		case domain.TicketStatusOpen, domain.TicketStatusInProgress:
			result.ActiveTickets += c.Value
		case domain.TicketStatusResolved, domain.TicketStatusClosed:
			closedOut += c.Value
		}
	}
	result.ResolutionRate = resolutionRate(closedOut, total)
	return result, nil
}

// UserActivity summarizes one profile's tickets and comments for staff.
func (s *ReportService) UserActivity(ctx context.Context, p *domain.Principal, profileID string) (*domain.UserActivity, error) {
	if err := policy.CanViewAnalytics(p); err != nil {
		return nil, err
	}
	id, err := requireID(profileID, "profile")
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.GetByID(ctx, id); err != nil {
		return nil, notFoundAs(err, "profile", id)
	}

	all := policy.TicketScope{All: true}
	created, err := s.tickets.List(ctx, repository.TicketFilter{Scope: all, CreatedBy: &id, Limit: userActivityListSize})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	assigned, err := s.tickets.List(ctx, repository.TicketFilter{Scope: all, AssignedTo: &id, Limit: userActivityListSize})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.comments.ListByAuthor(ctx, id, userActivityListSize)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	count, err := s.comments.CountByAuthor(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &domain.UserActivity{
		ProfileID:       id,
		CreatedTickets:  bareTickets(created),
		AssignedTickets: bareTickets(assigned),
		RecentComments:  comments,
		CommentCount:    count,
	}, nil
}

// inOrder lays counts out in display order and fills missing names with zero.
func inOrder(counts []domain.NamedCount, order []string) []domain.NamedCount {
	byName := make(map[string]int, len(counts))
	for _, c := range counts {
		byName[c.Name] = c.Value
	}
	out := make([]domain.NamedCount, 0, len(order))
	for _, name := range order {
		out = append(out, domain.NamedCount{Name: name, Value: byName[name]})
	}
	return out
}

func enumNames[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// resolutionRate is the resolved or closed share as a percentage with one
// decimal.
func resolutionRate(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*1000) / 10
}

func bareTickets(views []domain.TicketView) []domain.Ticket {
	out := make([]domain.Ticket, len(views))
	for i := range views {
		out[i] = views[i].Ticket
	}
	return out
}
