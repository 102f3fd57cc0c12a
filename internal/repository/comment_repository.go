package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CommentRepository persists the append-only ticket threads.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Comment, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository returns a repository instance.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentSelect = `
        SELECT c.id, c.ticket_id, c.author_id, p.name, c.message, c.created_at
        FROM comments c
        JOIN profiles p ON p.id = c.author_id`

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, author_id, message)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Message,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return r.list(ctx, commentSelect+` WHERE c.ticket_id=$1 ORDER BY c.created_at ASC, c.id ASC`, ticketID)
}

func (r *commentRepository) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Comment, error) {
	limit, _ = pageBounds(limit, 0)
	return r.list(ctx, commentSelect+` WHERE c.author_id=$1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2`, authorID, limit)
}

func (r *commentRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE author_id=$1`, authorID).Scan(&count)
	return count, err
}

func (r *commentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.AuthorName,
			&comment.Message,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
