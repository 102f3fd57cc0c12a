package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// TicketFilter captures list parameters. Scope always applies; the other
// fields only narrow it further.
type TicketFilter struct {
	Scope      policy.TicketScope
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     string
	AssignedTo *string
	CreatedBy  *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	CreateWithAttachments(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment) error
	ApplyChange(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error
	GetByID(ctx context.Context, id string) (*domain.TicketView, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.TicketView, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketViewSelect = `
        SELECT t.id, t.title, t.description, t.status, t.priority, t.created_by, t.assigned_to,
               t.created_at, t.updated_at, c.name, a.name
        FROM tickets t
        JOIN profiles c ON c.id = t.created_by
        LEFT JOIN profiles a ON a.id = t.assigned_to`

// CreateWithAttachments inserts the ticket and its attachment rows in one
// transaction. IDs and timestamps are written back into the arguments.
func (r *ticketRepository) CreateWithAttachments(ctx context.Context, ticket *domain.Ticket, attachments []domain.Attachment) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const insertTicket = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	if err = tx.QueryRow(ctx, insertTicket,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	for i := range attachments {
		attachments[i].TicketID = ticket.ID
		if err = insertAttachment(ctx, tx, &attachments[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ApplyChange persists status, priority and assignee and appends the audit
// entry in the same transaction.
func (r *ticketRepository) ApplyChange(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const update = `
        UPDATE tickets SET status=$1, priority=$2, assigned_to=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	if err = tx.QueryRow(ctx, update,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return err
	}

	if entry != nil {
		entry.TicketID = ticket.ID
		if err = insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.TicketView, error) {
	var view domain.TicketView
	if err := scanTicketView(r.pool.QueryRow(ctx, ticketViewSelect+` WHERE t.id=$1`, id), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.TicketView, error) {
	where, ok := ticketWhere(filter)
	if !ok {
		return []domain.TicketView{}, nil
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s%s ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		ticketViewSelect, where.sql(), limit, offset)

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketView{}
	for rows.Next() {
		var view domain.TicketView
		if err := scanTicketView(rows, &view); err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

// ticketWhere turns the filter into SQL. ok is false when the scope can match
// nothing, so no query needs to run.
func ticketWhere(filter TicketFilter) (whereBuilder, bool) {
	var where whereBuilder
	if !filter.Scope.All {
		if filter.Scope.CreatorID == "" {
			return where, false
		}
		where.add("t.created_by = $%d", filter.Scope.CreatorID)
	}
	if filter.CreatedBy != nil {
		where.add("t.created_by = $%d", *filter.CreatedBy)
	}
	if filter.AssignedTo != nil {
		where.add("t.assigned_to = $%d", *filter.AssignedTo)
	}
	where.addIn("t.status", enumStrings(filter.Statuses))
	where.addIn("t.priority", enumStrings(filter.Priorities))
	where.addSearch(filter.Search, "t.title", "t.description")
	return where, true
}

func enumStrings[T ~string](values []T) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func scanTicketView(row pgx.Row, view *domain.TicketView) error {
	return row.Scan(
		&view.ID,
		&view.Title,
		&view.Description,
		&view.Status,
		&view.Priority,
		&view.CreatedBy,
		&view.AssignedTo,
		&view.CreatedAt,
		&view.UpdatedAt,
		&view.CreatorName,
		&view.AssigneeName,
	)
}
