package handlers

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket, comment and attachment endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets. Accepts JSON or multipart with an optional
// "file" part.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewFieldValidationError("unreadable multipart body", "file")
		}
		if headers := form.File["file"]; len(headers) > 0 {
			file, err := headers[0].Open()
			if err != nil {
				return apperrors.NewFieldValidationError("unreadable file part", "file")
			}
			defer file.Close()
			input.File = &service.FileUpload{
				Name:        headers[0].Filename,
				ContentType: partContentType(headers[0]),
				Body:        file,
			}
		}
	}

	detail, err := h.service.CreateTicket(c.UserContext(), p, input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, ticketDetailResponse(detail))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListTickets(c.UserContext(), p, service.TicketListInput{
		Statuses:   splitCSV(c.Query("status")),
		Priorities: splitCSV(c.Query("priority")),
		Search:     c.Query("search"),
		AssignedTo: c.Query("assigned_to"),
		Page:       parseInt(c.Query("page"), 1),
		PageSize:   parseInt(c.Query("page_size"), 20),
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketViewResponses(views))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketDetailResponse(detail))
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.UpdateStatus(c.UserContext(), p, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketViewResponse(view))
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.UpdatePriority(c.UserContext(), p, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketViewResponse(view))
}

// Assign PATCH /tickets/:id/assignee.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.Assign(c.UserContext(), p, c.Params("id"), req.AssignedTo)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketViewResponse(view))
}

// BulkUpdate POST /tickets/bulk.
func (h *TicketsHandler) BulkUpdate(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.BulkUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	views, err := h.service.BulkUpdate(c.UserContext(), p, service.BulkInput{
		TicketIDs: req.TicketIDs,
		Action:    req.Action,
		Value:     req.Value,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, ticketViewResponses(views))
}

// ListAssignable GET /tickets/assignees.
func (h *TicketsHandler) ListAssignable(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	profiles, err := h.service.ListAssignable(c.UserContext(), p)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, profileResponses(profiles))
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		resp = append(resp, commentViewResponse(&comments[i]))
	}
	return data(c, http.StatusOK, resp)
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), p, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, commentViewResponse(comment))
}

// DownloadFile GET /files/:key streams a stored attachment.
func (h *TicketsHandler) DownloadFile(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	attachment, file, err := h.service.OpenAttachment(c.UserContext(), p, c.Params("key"))
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return apperrors.NewUnavailable("object store", err)
	}
	c.Set(fiber.HeaderContentType, attachment.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+url.PathEscape(attachment.FileName)+`"`)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	// The response owns the file from here and closes it once sent.
	return c.SendStream(file, int(info.Size()))
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func partContentType(header *multipart.FileHeader) string {
	return header.Header.Get(fiber.HeaderContentType)
}
