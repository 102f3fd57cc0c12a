package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// ReportsHandler serves dashboards, analytics and process metrics.
type ReportsHandler struct {
	reports *service.ReportService
	metrics *observability.Metrics
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService, metrics *observability.Metrics) *ReportsHandler {
	return &ReportsHandler{reports: reportService, metrics: metrics}
}

// DashboardStats handles GET /dashboard/stats.
func (h *ReportsHandler) DashboardStats(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.reports.DashboardStats(c.UserContext(), p)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.DashboardStatsResponse{
		Total:        stats.Total,
		Open:         stats.Open,
		InProgress:   stats.InProgress,
		Resolved:     stats.Resolved,
		HighPriority: stats.HighPriority,
		Mine:         stats.Mine,
	})
}

// Activity handles GET /dashboard/activity.
func (h *ReportsHandler) Activity(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	feed, err := h.reports.ActivityFeed(c.UserContext(), p)
	if err != nil {
		return err
	}
	resp := make([]dto.ActivityResponse, 0, len(feed))
	for _, a := range feed {
		resp = append(resp, dto.ActivityResponse{
			ID:          a.ID,
			Type:        a.Type,
			TicketID:    a.TicketID,
			Title:       a.Title,
			Description: a.Description,
			ActorName:   a.ActorName,
			Priority:    a.Priority,
			Status:      a.Status,
			Timestamp:   a.Timestamp,
		})
	}
	return data(c, http.StatusOK, resp)
}

// Analytics handles GET /analytics.
func (h *ReportsHandler) Analytics(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	a, err := h.reports.Analytics(c.UserContext(), p)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.AnalyticsResponse{
		ByStatus:       namedCounts(a.ByStatus),
		ByPriority:     namedCounts(a.ByPriority),
		ByBranch:       namedCounts(a.ByBranch),
		ByDesignation:  namedCounts(a.ByDesignation),
		ActiveTickets:  a.ActiveTickets,
		ResolutionRate: a.ResolutionRate,
	})
}

// UserActivity handles GET /users/:id/activity.
func (h *ReportsHandler) UserActivity(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	activity, err := h.reports.UserActivity(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	comments := make([]dto.CommentResponse, 0, len(activity.RecentComments))
	for i := range activity.RecentComments {
		comments = append(comments, commentResponse(&activity.RecentComments[i]))
	}
	return data(c, http.StatusOK, dto.UserActivityResponse{
		ProfileID:       activity.ProfileID,
		CreatedTickets:  ticketResponses(activity.CreatedTickets),
		AssignedTickets: ticketResponses(activity.AssignedTickets),
		RecentComments:  comments,
		CommentCount:    activity.CommentCount,
	})
}

// Metrics handles GET /metrics.
func (h *ReportsHandler) Metrics(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := policy.CanViewMetrics(p); err != nil {
		return err
	}
	return data(c, http.StatusOK, h.metrics.Snapshot())
}

func namedCounts(counts []domain.NamedCount) []dto.NamedCountResponse {
	out := make([]dto.NamedCountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, dto.NamedCountResponse{Name: c.Name, Value: c.Value})
	}
	return out
}
