package domain

import "time"

// DashboardStats summarizes the tickets visible to one principal.
type DashboardStats struct {
	Total        int
	Open         int
	InProgress   int
	Resolved     int
	HighPriority int
	Mine         int
}

// NamedCount is one bar of a breakdown chart.
type NamedCount struct {
	Name  string
	Value int
}

// Analytics aggregates ticket counts for staff dashboards.
type Analytics struct {
	ByStatus       []NamedCount
	ByPriority     []NamedCount
	ByBranch       []NamedCount
	ByDesignation  []NamedCount
	ActiveTickets  int
	ResolutionRate float64
}

// ActivityType enumerates feed entries.
type ActivityType string

const (
	ActivityTicketCreated ActivityType = "ticket_created"
	ActivityCommentAdded  ActivityType = "comment_added"
)

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID          string
	Type        ActivityType
	TicketID    string
	Title       string
	Description string
	ActorName   string
	Priority    *TicketPriority
	Status      *TicketStatus
	Timestamp   time.Time
}

// UserActivity summarizes what one profile has done.
type UserActivity struct {
	ProfileID       string
	CreatedTickets  []Ticket
	AssignedTickets []Ticket
	RecentComments  []Comment
	CommentCount    int
}
