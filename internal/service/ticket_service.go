package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/render"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const maxTitleLength = 200

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	profiles    repository.ProfileRepository
	store       storage.ObjectStore
	events      publisher
	logger      *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	ProfileRepo    repository.ProfileRepository
	Store          storage.ObjectStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		history:     deps.HistoryRepo,
		profiles:    deps.ProfileRepo,
		store:       deps.Store,
		events:      newPublisher(deps.Dispatcher, logger),
		logger:      logger,
	}
}

// FileUpload is an attachment supplied with a new ticket.
type FileUpload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// TicketCreateInput describes ticket creation payload. There is no creator
// field: the creator is always the acting principal.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
	File        *FileUpload
}

// TicketListInput describes listing filters as received from the caller.
type TicketListInput struct {
	Statuses   []string
	Priorities []string
	Search     string
	AssignedTo string
	Page       int
	PageSize   int
}

// CommentView is a comment with its rendered body.
type CommentView struct {
	domain.Comment
	MessageHTML string
}

// TicketDetail is everything shown on the ticket page.
type TicketDetail struct {
	Ticket          domain.TicketView
	DescriptionHTML string
	Comments        []CommentView
	Attachments     []domain.Attachment
	History         []domain.TicketHistory
}

// CreateTicket files a ticket for the principal.
func (s *TicketService) CreateTicket(ctx context.Context, p *domain.Principal, input TicketCreateInput) (*TicketDetail, error) {
	if err := policy.CanCreateTicket(p); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewFieldValidationError("missing required fields", missing...)
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, apperrors.NewFieldValidationError("title too long", "title")
	}
	priority, err := policy.ParsePriority(input.Priority)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   p.ID,
	}

	var (
		attachments []domain.Attachment
		storedKey   string
		createdBlob bool
	)
	if input.File != nil {
		attachment, created, err := s.storeUpload(ctx, input.File)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
		storedKey, createdBlob = attachment.StorageKey, created
	}

	if err := s.tickets.CreateWithAttachments(ctx, ticket, attachments); err != nil {
		if createdBlob {
			s.discardBlob(context.WithoutCancel(ctx), storedKey)
		}
		return nil, apperrors.MapError(err)
	}

	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  p.ID,
		Payload: events.TicketCreatedPayload{
			Title:     ticket.Title,
			Priority:  ticket.Priority,
			CreatedBy: ticket.CreatedBy,
		},
	})

	detail := &TicketDetail{
		Ticket:      domain.TicketView{Ticket: *ticket, CreatorName: p.Profile.Name},
		Comments:    []CommentView{},
		Attachments: attachments,
		History:     []domain.TicketHistory{},
	}
	if attachments == nil {
		detail.Attachments = []domain.Attachment{}
	}
	detail.DescriptionHTML = s.renderMarkdown(ticket.Description)
	return detail, nil
}

// discardBlob removes a blob left behind by a failed insert unless another
// ticket committed a reference to the same content in the meantime.
func (s *TicketService) discardBlob(ctx context.Context, key string) {
	refs, err := s.attachments.ListByStorageKey(ctx, key)
	if err != nil {
		s.logger.Warn("orphaned attachment", zap.String("storage_key", key), zap.Error(err))
		return
	}
	if len(refs) > 0 {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("orphaned attachment", zap.String("storage_key", key), zap.Error(err))
	}
}

func (s *TicketService) storeUpload(ctx context.Context, file *FileUpload) (domain.Attachment, bool, error) {
	name := strings.TrimSpace(file.Name)
	if name == "" || file.Body == nil {
		return domain.Attachment{}, false, apperrors.NewFieldValidationError("file has no name", "file")
	}
	if s.store == nil {
		return domain.Attachment{}, false, apperrors.NewUnavailable("object store", errors.New("not configured"))
	}
	key, size, created, err := s.store.Put(ctx, file.Body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return domain.Attachment{}, false, apperrors.NewFieldValidationError("file too large", "file")
		}
		return domain.Attachment{}, false, apperrors.NewUnavailable("object store", err)
	}
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return domain.Attachment{
		FileName:    name,
		FileURL:     s.store.URL(key),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   size,
	}, created, nil
}

// ListTickets returns the tickets visible to the principal, newest first.
func (s *TicketService) ListTickets(ctx context.Context, p *domain.Principal, input TicketListInput) ([]domain.TicketView, error) {
	scope, err := policy.TicketListScope(p)
	if err != nil {
		return nil, err
	}

	filter := repository.TicketFilter{Scope: scope, Search: input.Search}
	for _, raw := range input.Statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, err := policy.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range input.Priorities {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		priority, err := policy.ParsePriority(raw)
		if err != nil {
			return nil, err
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if assignee := strings.TrimSpace(input.AssignedTo); assignee != "" {
		id, err := requireID(assignee, "profile")
		if err != nil {
			return nil, apperrors.NewFieldValidationError("invalid assignee id", "assigned_to")
		}
		filter.AssignedTo = &id
	}
	filter.Limit, filter.Offset = pagination(input.Page, input.PageSize)

	views, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return views, nil
}

// GetTicket returns the ticket with its thread, files and audit trail.
func (s *TicketService) GetTicket(ctx context.Context, p *domain.Principal, ticketID string) (*TicketDetail, error) {
	view, err := s.visibleTicket(ctx, p, ticketID)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTicket(ctx, view.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, view.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByTicket(ctx, view.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TicketDetail{
		Ticket:          *view,
		DescriptionHTML: s.renderMarkdown(view.Description),
		Comments:        s.commentViews(comments),
		Attachments:     attachments,
		History:         history,
	}, nil
}

// UpdateStatus moves the ticket to a new status.
func (s *TicketService) UpdateStatus(ctx context.Context, p *domain.Principal, ticketID, rawStatus string) (*domain.TicketView, error) {
	if err := policy.CanUpdateTicket(p); err != nil {
		return nil, err
	}
	status, err := policy.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	view, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.applyStatus(ctx, p, view, status); err != nil {
		return nil, err
	}
	return view, nil
}

// UpdatePriority changes the ticket priority.
func (s *TicketService) UpdatePriority(ctx context.Context, p *domain.Principal, ticketID, rawPriority string) (*domain.TicketView, error) {
	if err := policy.CanUpdateTicket(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawPriority) == "" {
		return nil, apperrors.NewFieldValidationError("priority is required", "priority")
	}
	priority, err := policy.ParsePriority(rawPriority)
	if err != nil {
		return nil, err
	}
	view, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.applyPriority(ctx, p, view, priority); err != nil {
		return nil, err
	}
	return view, nil
}

// Assign sets or clears the assignee. A nil assigneeID unassigns.
func (s *TicketService) Assign(ctx context.Context, p *domain.Principal, ticketID string, assigneeID *string) (*domain.TicketView, error) {
	if err := policy.CanUpdateTicket(p); err != nil {
		return nil, err
	}
	assignee, err := s.resolveAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	view, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.applyAssignee(ctx, p, view, assignee); err != nil {
		return nil, err
	}
	return view, nil
}

// Bulk actions accepted by BulkUpdate.
const (
	BulkActionStatus   = "status"
	BulkActionPriority = "priority"
	BulkActionAssign   = "assign"
)

// BulkInput describes one bulk action over several tickets.
type BulkInput struct {
	TicketIDs []string
	Action    string
	Value     string
}

// maxBulkTickets bounds one bulk request.
const maxBulkTickets = 100

// BulkUpdate validates the whole request up front, then applies the action
// ticket by ticket. Nothing is written when any id or value is invalid. Each
// ticket commits on its own, so a backend failure midway leaves the tickets
// before it updated and returns the error.
func (s *TicketService) BulkUpdate(ctx context.Context, p *domain.Principal, input BulkInput) ([]domain.TicketView, error) {
	if err := policy.CanUpdateTicket(p); err != nil {
		return nil, err
	}
	if len(input.TicketIDs) == 0 {
		return nil, apperrors.NewFieldValidationError("no tickets selected", "ticket_ids")
	}
	if len(input.TicketIDs) > maxBulkTickets {
		return nil, apperrors.NewFieldValidationError(fmt.Sprintf("at most %d tickets per request", maxBulkTickets), "ticket_ids")
	}

	var apply func(*domain.TicketView) error
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case BulkActionStatus:
		status, err := policy.ParseStatus(input.Value)
		if err != nil {
			return nil, err
		}
		apply = func(v *domain.TicketView) error { return s.applyStatus(ctx, p, v, status) }
	case BulkActionPriority:
		if strings.TrimSpace(input.Value) == "" {
			return nil, apperrors.NewFieldValidationError("priority is required", "value")
		}
		priority, err := policy.ParsePriority(input.Value)
		if err != nil {
			return nil, err
		}
		apply = func(v *domain.TicketView) error { return s.applyPriority(ctx, p, v, priority) }
	case BulkActionAssign:
		var target *string
		if v := strings.TrimSpace(input.Value); v != "" {
			target = &v
		}
		assignee, err := s.resolveAssignee(ctx, target)
		if err != nil {
			return nil, err
		}
		apply = func(v *domain.TicketView) error { return s.applyAssignee(ctx, p, v, assignee) }
	default:
		return nil, apperrors.NewFieldValidationError("unknown bulk action", "action")
	}

	seen := make(map[string]bool, len(input.TicketIDs))
	views := make([]*domain.TicketView, 0, len(input.TicketIDs))
	for _, raw := range input.TicketIDs {
		view, err := s.loadTicket(ctx, raw)
		if err != nil {
			return nil, err
		}
		if seen[view.ID] {
			continue
		}
		seen[view.ID] = true
		views = append(views, view)
	}

	result := make([]domain.TicketView, 0, len(views))
	for _, view := range views {
		if err := apply(view); err != nil {
			return nil, err
		}
		result = append(result, *view)
	}
	return result, nil
}

// ListComments returns the thread of a visible ticket, oldest first.
func (s *TicketService) ListComments(ctx context.Context, p *domain.Principal, ticketID string) ([]CommentView, error) {
	view, err := s.visibleTicket(ctx, p, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, view.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.commentViews(comments), nil
}

// AddComment appends a comment to a visible ticket.
func (s *TicketService) AddComment(ctx context.Context, p *domain.Principal, ticketID, message string) (*CommentView, error) {
	id, err := requireID(ticketID, "ticket")
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewFieldValidationError("message is required", "message")
	}
	view, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "ticket", id)
	}
	if err := policy.CanComment(p, &view.Ticket); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:   view.ID,
		AuthorID:   p.ID,
		AuthorName: p.Profile.Name,
		Message:    message,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.events.publish(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: view.ID,
		ActorID:  p.ID,
		Payload: events.CommentAddedPayload{
			CommentID: comment.ID,
			AuthorID:  p.ID,
			Preview:   preview(message),
		},
	})
	return &CommentView{Comment: *comment, MessageHTML: s.renderMarkdown(comment.Message)}, nil
}

// OpenAttachment returns a stored file when the principal may view at least
// one ticket that references it. The caller closes the file.
func (s *TicketService) OpenAttachment(ctx context.Context, p *domain.Principal, key string) (*domain.Attachment, *os.File, error) {
	if err := policy.Authenticated(p); err != nil {
		return nil, nil, err
	}
	if !storage.ValidKey(key) {
		return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"key": key})
	}
	rows, err := s.attachments.ListByStorageKey(ctx, key)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if len(rows) == 0 {
		return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"key": key})
	}

	var allowed *domain.Attachment
	for i := range rows {
		view, err := s.tickets.GetByID(ctx, rows[i].TicketID)
		if err != nil {
			return nil, nil, apperrors.MapError(err)
		}
		if policy.CanViewTicket(p, &view.Ticket) == nil {
			allowed = &rows[i]
			break
		}
	}
	if allowed == nil {
		return nil, nil, apperrors.NewForbidden("attachment not visible to caller")
	}

	f, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"key": key})
		}
		return nil, nil, apperrors.NewUnavailable("object store", err)
	}
	return allowed, f, nil
}

// ListAssignable returns the profiles tickets may be assigned to.
func (s *TicketService) ListAssignable(ctx context.Context, p *domain.Principal) ([]domain.Profile, error) {
	if err := policy.CanUpdateTicket(p); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.ListAssignable(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profiles, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.TicketView, error) {
	id, err := requireID(ticketID, "ticket")
	if err != nil {
		return nil, err
	}
	view, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "ticket", id)
	}
	return view, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, p *domain.Principal, ticketID string) (*domain.TicketView, error) {
	if err := policy.Authenticated(p); err != nil {
		return nil, err
	}
	view, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanViewTicket(p, &view.Ticket); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *TicketService) resolveAssignee(ctx context.Context, assigneeID *string) (*domain.Profile, error) {
	if assigneeID == nil || strings.TrimSpace(*assigneeID) == "" {
		return nil, nil
	}
	id, err := requireID(*assigneeID, "profile")
	if err != nil {
		return nil, apperrors.NewFieldValidationError("unknown assignee", "assigned_to")
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if apperrors.HasCode(notFoundAs(err, "profile", id), apperrors.CodeNotFound) {
			return nil, apperrors.NewFieldValidationError("unknown assignee", "assigned_to")
		}
		return nil, apperrors.MapError(err)
	}
	if err := policy.CheckAssignee(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *TicketService) applyStatus(ctx context.Context, p *domain.Principal, view *domain.TicketView, status domain.TicketStatus) error {
	old := view.Status
	if old == status {
		return nil
	}
	if err := policy.CheckTransition(old, status); err != nil {
		return err
	}
	view.Status = status
	entry := &domain.TicketHistory{
		ChangedBy:  p.ID,
		ChangeType: domain.ChangeTypeStatus,
		OldValue:   map[string]any{"status": string(old)},
		NewValue:   map[string]any{"status": string(status)},
	}
	if err := s.tickets.ApplyChange(ctx, &view.Ticket, entry); err != nil {
		view.Status = old
		return notFoundAs(err, "ticket", view.ID)
	}
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: view.ID,
		ActorID:  p.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: old, NewStatus: status},
	})
	return nil
}

func (s *TicketService) applyPriority(ctx context.Context, p *domain.Principal, view *domain.TicketView, priority domain.TicketPriority) error {
	old := view.Priority
	if old == priority {
		return nil
	}
	view.Priority = priority
	entry := &domain.TicketHistory{
		ChangedBy:  p.ID,
		ChangeType: domain.ChangeTypePriority,
		OldValue:   map[string]any{"priority": string(old)},
		NewValue:   map[string]any{"priority": string(priority)},
	}
	if err := s.tickets.ApplyChange(ctx, &view.Ticket, entry); err != nil {
		view.Priority = old
		return notFoundAs(err, "ticket", view.ID)
	}
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: view.ID,
		ActorID:  p.ID,
		Payload:  events.TicketPriorityChangedPayload{OldPriority: old, NewPriority: priority},
	})
	return nil
}

func (s *TicketService) applyAssignee(ctx context.Context, p *domain.Principal, view *domain.TicketView, assignee *domain.Profile) error {
	old, oldName := view.AssignedTo, view.AssigneeName
	var next, nextName *string
	if assignee != nil {
		id, name := assignee.ID, assignee.Name
		next, nextName = &id, &name
	}
	if sameID(old, next) {
		return nil
	}

	view.AssignedTo, view.AssigneeName = next, nextName
	entry := &domain.TicketHistory{
		ChangedBy:  p.ID,
		ChangeType: domain.ChangeTypeAssignee,
		OldValue:   map[string]any{"assigned_to": nullable(old)},
		NewValue:   map[string]any{"assigned_to": nullable(next)},
	}
	if err := s.tickets.ApplyChange(ctx, &view.Ticket, entry); err != nil {
		view.AssignedTo, view.AssigneeName = old, oldName
		return notFoundAs(err, "ticket", view.ID)
	}
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: view.ID,
		ActorID:  p.ID,
		Payload:  events.TicketAssignedPayload{PreviousID: old, AssigneeID: next},
	})
	return nil
}

func (s *TicketService) commentViews(comments []domain.Comment) []CommentView {
	views := make([]CommentView, len(comments))
	for i, c := range comments {
		views[i] = CommentView{Comment: c, MessageHTML: s.renderMarkdown(c.Message)}
	}
	return views
}

// renderMarkdown never fails the request; clients fall back to the raw text.
func (s *TicketService) renderMarkdown(text string) string {
	html, err := render.Markdown(text)
	if err != nil {
		s.logger.Warn("markdown render failed", zap.Error(err))
		return ""
	}
	return html
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func pagination(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
