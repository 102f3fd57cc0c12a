package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// ReportRepository runs the read-only aggregates behind dashboards.
type ReportRepository interface {
	DashboardStats(ctx context.Context, scope policy.TicketScope, principalID string) (domain.DashboardStats, error)
	CountBy(ctx context.Context, dimension Dimension) ([]domain.NamedCount, error)
	RecentTickets(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.TicketView, error)
	RecentComments(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.Activity, error)
}

// Dimension selects an analytics breakdown.
type Dimension string

const (
	DimensionStatus      Dimension = "status"
	DimensionPriority    Dimension = "priority"
	DimensionBranch      Dimension = "branch"
	DimensionDesignation Dimension = "designation"
)

var dimensionQueries = map[Dimension]string{
	DimensionStatus: `
        SELECT status, COUNT(*) FROM tickets GROUP BY status ORDER BY 2 DESC, 1 ASC`,
	DimensionPriority: `
        SELECT priority, COUNT(*) FROM tickets GROUP BY priority ORDER BY 2 DESC, 1 ASC`,
	DimensionBranch: `
        SELECT p.branch, COUNT(*) FROM tickets t
        JOIN profiles p ON p.id = t.created_by
        GROUP BY p.branch ORDER BY 2 DESC, 1 ASC`,
	DimensionDesignation: `
        SELECT d.tag, COUNT(*) FROM tickets t
        JOIN profiles p ON p.id = t.created_by
        CROSS JOIN LATERAL unnest(p.designations) AS d(tag)
        GROUP BY d.tag ORDER BY 2 DESC, 1 ASC LIMIT 8`,
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository builds repository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

func (r *reportRepository) DashboardStats(ctx context.Context, scope policy.TicketScope, principalID string) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	where, ok := ticketWhere(TicketFilter{Scope: scope})
	if !ok {
		return stats, nil
	}
	where.args = append(where.args, principalID)
	mine := len(where.args)

	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE t.status = 'Open'),
               COUNT(*) FILTER (WHERE t.status = 'In Progress'),
               COUNT(*) FILTER (WHERE t.status = 'Resolved'),
               COUNT(*) FILTER (WHERE t.priority IN ('High', 'Urgent')),
               COUNT(*) FILTER (WHERE t.created_by::text = $` + itoa(mine) + `)
        FROM tickets t` + where.sql()
	err := r.pool.QueryRow(ctx, query, where.args...).Scan(
		&stats.Total,
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.HighPriority,
		&stats.Mine,
	)
	return stats, err
}

func (r *reportRepository) CountBy(ctx context.Context, dimension Dimension) ([]domain.NamedCount, error) {
	query, ok := dimensionQueries[dimension]
	if !ok {
		return nil, errUnknownDimension(dimension)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.NamedCount{}
	for rows.Next() {
		var item domain.NamedCount
		if err := rows.Scan(&item.Name, &item.Value); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *reportRepository) RecentTickets(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.TicketView, error) {
	return NewTicketRepository(r.pool).List(ctx, TicketFilter{Scope: scope, Limit: limit})
}

// RecentComments returns comment activity on tickets inside scope.
func (r *reportRepository) RecentComments(ctx context.Context, scope policy.TicketScope, limit int) ([]domain.Activity, error) {
	where, ok := ticketWhere(TicketFilter{Scope: scope})
	if !ok {
		return []domain.Activity{}, nil
	}
	limit, _ = pageBounds(limit, 0)
	query := `
        SELECT c.id, c.ticket_id, t.title, c.message, p.name, c.created_at
        FROM comments c
        JOIN tickets t ON t.id = c.ticket_id
        JOIN profiles p ON p.id = c.author_id` + where.sql() + `
        ORDER BY c.created_at DESC, c.id DESC LIMIT ` + itoa(limit)

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Activity{}
	for rows.Next() {
		item := domain.Activity{Type: domain.ActivityCommentAdded}
		if err := rows.Scan(&item.ID, &item.TicketID, &item.Title, &item.Description, &item.ActorName, &item.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
