package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DashboardStatsResponse payload.
type DashboardStatsResponse struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	InProgress   int `json:"in_progress"`
	Resolved     int `json:"resolved"`
	HighPriority int `json:"high_priority"`
	Mine         int `json:"mine"`
}

// NamedCountResponse is one chart bar.
type NamedCountResponse struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AnalyticsResponse payload.
type AnalyticsResponse struct {
	ByStatus       []NamedCountResponse `json:"by_status"`
	ByPriority     []NamedCountResponse `json:"by_priority"`
	ByBranch       []NamedCountResponse `json:"by_branch"`
	ByDesignation  []NamedCountResponse `json:"by_designation"`
	ActiveTickets  int                  `json:"active_tickets"`
	ResolutionRate float64              `json:"resolution_rate"`
}

// ActivityResponse is one feed entry.
type ActivityResponse struct {
	ID          string                 `json:"id"`
	Type        domain.ActivityType    `json:"type"`
	TicketID    string                 `json:"ticket_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	ActorName   string                 `json:"actor_name"`
	Priority    *domain.TicketPriority `json:"priority,omitempty"`
	Status      *domain.TicketStatus   `json:"status,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}
