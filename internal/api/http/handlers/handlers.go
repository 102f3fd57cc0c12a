// Package handlers adapts HTTP requests to service calls. Handlers never make
// authorization decisions; they pass the principal through and let the
// service answer.
package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (*domain.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// splitCSV reads a comma separated query value.
func splitCSV(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func profileResponse(p *domain.Profile) *dto.ProfileResponse {
	if p == nil {
		return nil
	}
	designations := p.Designations
	if designations == nil {
		designations = []string{}
	}
	return &dto.ProfileResponse{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		PhoneNumber:  p.PhoneNumber,
		Designations: designations,
		Branch:       p.Branch,
		IsAdmin:      p.IsAdmin,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func profileResponses(profiles []domain.Profile) []*dto.ProfileResponse {
	out := make([]*dto.ProfileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, profileResponse(&profiles[i]))
	}
	return out
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedBy:   t.CreatedBy,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ticketViewResponse(v *domain.TicketView) dto.TicketResponse {
	resp := ticketResponse(&v.Ticket)
	resp.CreatorName = v.CreatorName
	resp.AssigneeName = v.AssigneeName
	return resp
}

func ticketViewResponses(views []domain.TicketView) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		out = append(out, ticketViewResponse(&views[i]))
	}
	return out
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, ticketResponse(&tickets[i]))
	}
	return out
}

func ticketDetailResponse(d *service.TicketDetail) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(d.Comments))
	for i := range d.Comments {
		comments = append(comments, commentViewResponse(&d.Comments[i]))
	}
	attachments := make([]dto.AttachmentResponse, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:          a.ID,
			FileName:    a.FileName,
			URL:         a.FileURL,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			CreatedAt:   a.CreatedAt,
		})
	}
	history := make([]dto.TicketHistoryResponse, 0, len(d.History))
	for _, h := range d.History {
		history = append(history, dto.TicketHistoryResponse{
			ID:         h.ID,
			ChangeType: h.ChangeType,
			ChangedBy:  h.ChangedBy,
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketResponse:  ticketViewResponse(&d.Ticket),
		DescriptionHTML: d.DescriptionHTML,
		Comments:        comments,
		Attachments:     attachments,
		History:         history,
	}
}

func commentResponse(c *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Message:    c.Message,
		CreatedAt:  c.CreatedAt,
	}
}

func commentViewResponse(v *service.CommentView) dto.CommentResponse {
	resp := commentResponse(&v.Comment)
	resp.MessageHTML = v.MessageHTML
	return resp
}
