package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type ticketFixture struct {
	tickets     *fakeTicketRepo
	comments    *fakeCommentRepo
	attachments *fakeAttachmentRepo
	profiles    *fakeProfileRepo
	store       *fakeStore
	events      *recorder
	svc         *TicketService
}

func newTicketFixture() *ticketFixture {
	f := &ticketFixture{
		tickets:     &fakeTicketRepo{},
		comments:    &fakeCommentRepo{},
		attachments: &fakeAttachmentRepo{},
		profiles:    &fakeProfileRepo{getFn: profilesByID(doctorProfile, itProfile, adminProfile, nurseProfile)},
		store:       &fakeStore{},
	}
	dispatcher, rec := newRecorder()
	f.events = rec
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:     f.tickets,
		CommentRepo:    f.comments,
		AttachmentRepo: f.attachments,
		HistoryRepo:    fakeHistoryRepo{},
		ProfileRepo:    f.profiles,
		Store:          f.store,
		Dispatcher:     dispatcher,
	})
	return f
}

func TestDoctorCreatesTicket(t *testing.T) {
	f := newTicketFixture()
	var stored *domain.Ticket
	f.tickets.createFn = func(_ context.Context, ticket *domain.Ticket, attachments []domain.Attachment) error {
		if len(attachments) != 0 {
			t.Errorf("unexpected attachments %v", attachments)
		}
		ticket.ID = ticketAID
		stored = ticket
		return nil
	}

	detail, err := f.svc.CreateTicket(context.Background(), principalFor(doctorProfile), TicketCreateInput{
		Title:       "Printer jam",
		Description: "Tray 2 is **stuck**",
		Priority:    "Medium",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if stored.Status != domain.TicketStatusOpen || stored.Priority != domain.TicketPriorityMedium {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.CreatedBy != doctorID || stored.AssignedTo != nil {
		t.Fatalf("creator/assignee = %s/%v", stored.CreatedBy, stored.AssignedTo)
	}
	if detail.Ticket.CreatorName != "doctor" || !strings.Contains(detail.DescriptionHTML, "<strong>stuck</strong>") {
		t.Fatalf("detail = %+v", detail)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []events.EventType{events.EventTicketCreated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateTicketValidatesBeforeWriting(t *testing.T) {
	f := newTicketFixture()
	f.tickets.createFn = func(context.Context, *domain.Ticket, []domain.Attachment) error {
		t.Fatal("repository must not be called")
		return nil
	}
	p := principalFor(doctorProfile)

	_, err := f.svc.CreateTicket(context.Background(), p, TicketCreateInput{Title: "  "})
	requireFields(t, err, "description", "title")

	_, err = f.svc.CreateTicket(context.Background(), p, TicketCreateInput{Title: "x", Description: "y", Priority: "critical"})
	requireFields(t, err, "priority")

	_, err = f.svc.CreateTicket(context.Background(), &domain.Principal{ID: doctorID}, TicketCreateInput{Title: "x", Description: "y"})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestCreateTicketRemovesNewBlobWhenInsertFails(t *testing.T) {
	for _, created := range []bool{true, false} {
		f := newTicketFixture()
		f.store.putFn = func(_ context.Context, r io.Reader) (string, int64, bool, error) {
			n, _ := io.Copy(io.Discard, r)
			return testBlobID, n, created, nil
		}
		f.tickets.createFn = func(_ context.Context, _ *domain.Ticket, attachments []domain.Attachment) error {
			if len(attachments) != 1 || attachments[0].FileURL != "/files/"+testBlobID {
				t.Errorf("attachments = %+v", attachments)
			}
			return errors.New("insert failed")
		}

		_, err := f.svc.CreateTicket(context.Background(), principalFor(doctorProfile), TicketCreateInput{
			Title:       "Scanner",
			Description: "no power",
			File:        &FileUpload{Name: "photo.png", ContentType: "image/png", Body: strings.NewReader("png")},
		})
		requireCode(t, err, apperrors.CodeInternal)

		wantDeleted := 0
		if created {
			wantDeleted = 1
		}
		if len(f.store.deleted) != wantDeleted {
			t.Fatalf("created=%v: deleted = %v", created, f.store.deleted)
		}
		if len(f.events.types()) != 0 {
			t.Fatalf("no event expected on failure")
		}
	}
}

func TestFailedInsertKeepsBlobReferencedByAnotherTicket(t *testing.T) {
	f := newTicketFixture()
	var committed []domain.Attachment
	f.attachments.byKeyFn = func(_ context.Context, key string) ([]domain.Attachment, error) {
		var refs []domain.Attachment
		for _, a := range committed {
			if a.StorageKey == key {
				refs = append(refs, a)
			}
		}
		return refs, nil
	}
	created := false
	f.store.putFn = func(_ context.Context, r io.Reader) (string, int64, bool, error) {
		n, _ := io.Copy(io.Discard, r)
		return testBlobID, n, created, nil
	}
	failInsert := false
	f.tickets.createFn = func(_ context.Context, ticket *domain.Ticket, attachments []domain.Attachment) error {
		if failInsert {
			return errors.New("insert failed")
		}
		ticket.ID = ticketBID
		for _, a := range attachments {
			a.TicketID = ticket.ID
			committed = append(committed, a)
		}
		return nil
	}
	create := func(title string) error {
		_, err := f.svc.CreateTicket(context.Background(), principalFor(doctorProfile), TicketCreateInput{
			Title:       title,
			Description: "same photo",
			File:        &FileUpload{Name: "photo.png", ContentType: "image/png", Body: strings.NewReader("same bytes")},
		})
		return err
	}

	// B reuses the blob A wrote and commits before A's insert fails.
	if err := create("B"); err != nil {
		t.Fatalf("CreateTicket B: %v", err)
	}
	created, failInsert = true, true
	requireCode(t, create("A"), apperrors.CodeInternal)
	if len(f.store.deleted) != 0 {
		t.Fatalf("shared blob deleted: %v", f.store.deleted)
	}

	committed = nil
	requireCode(t, create("A"), apperrors.CodeInternal)
	if len(f.store.deleted) != 1 || f.store.deleted[0] != testBlobID {
		t.Fatalf("deleted = %v", f.store.deleted)
	}
}

func TestITResolvesSomeoneElsesTicket(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, doctorID, domain.TicketStatusOpen))
	var entry *domain.TicketHistory
	f.tickets.applyFn = func(_ context.Context, ticket *domain.Ticket, h *domain.TicketHistory) error {
		if ticket.Status != domain.TicketStatusResolved {
			t.Errorf("ticket status = %s", ticket.Status)
		}
		entry = h
		return nil
	}

	view, err := f.svc.UpdateStatus(context.Background(), principalFor(itProfile), ticketAID, "resolved")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if view.Status != domain.TicketStatusResolved {
		t.Fatalf("status = %s", view.Status)
	}
	if entry == nil || entry.ChangedBy != itID || entry.OldValue["status"] != "Open" || entry.NewValue["status"] != "Resolved" {
		t.Fatalf("history = %+v", entry)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []events.EventType{events.EventTicketStatusChanged}) {
		t.Fatalf("events = %v", got)
	}
}

func TestCreatorCannotChangeOwnTicket(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, doctorID, domain.TicketStatusOpen))
	f.tickets.applyFn = func(context.Context, *domain.Ticket, *domain.TicketHistory) error {
		t.Fatal("no write expected")
		return nil
	}
	p := principalFor(doctorProfile)

	_, err := f.svc.UpdateStatus(context.Background(), p, ticketAID, "Closed")
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.UpdatePriority(context.Background(), p, ticketAID, "Urgent")
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.Assign(context.Background(), p, ticketAID, nil)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestUnchangedValuesWriteNothing(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, doctorID, domain.TicketStatusInProgress))
	f.tickets.applyFn = func(context.Context, *domain.Ticket, *domain.TicketHistory) error {
		t.Fatal("no write expected")
		return nil
	}
	p := principalFor(itProfile)

	if _, err := f.svc.UpdateStatus(context.Background(), p, ticketAID, "in_progress"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := f.svc.UpdatePriority(context.Background(), p, ticketAID, "medium"); err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	if _, err := f.svc.Assign(context.Background(), p, ticketAID, nil); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(f.events.types()) != 0 {
		t.Fatalf("events = %v", f.events.types())
	}
}

func TestAssigneeMustBeITOrAdmin(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, doctorID, domain.TicketStatusOpen))
	p := principalFor(adminProfile)

	tests := []struct {
		name     string
		assignee string
		wantErr  bool
	}{
		{name: "it staff", assignee: itID},
		{name: "admin", assignee: adminID},
		{name: "nurse", assignee: nurseID, wantErr: true},
		{name: "unknown", assignee: missingID, wantErr: true},
		{name: "malformed", assignee: "not-a-uuid", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignee := tt.assignee
			view, err := f.svc.Assign(context.Background(), p, ticketAID, &assignee)
			if tt.wantErr {
				requireFields(t, err, "assigned_to")
				return
			}
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if view.AssignedTo == nil || *view.AssignedTo != tt.assignee || view.AssigneeName == nil {
				t.Fatalf("assigned = %v", view.AssignedTo)
			}
		})
	}
}

func repeatID(id string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = id
	}
	return ids
}

func TestBulkUpdateStopsAtBackendFailure(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(
		ticketView(ticketAID, doctorID, domain.TicketStatusOpen),
		ticketView(ticketBID, nurseID, domain.TicketStatusOpen),
	)
	var written []string
	f.tickets.applyFn = func(_ context.Context, ticket *domain.Ticket, _ *domain.TicketHistory) error {
		if ticket.ID == ticketBID {
			return errors.New("connection reset")
		}
		written = append(written, ticket.ID)
		return nil
	}

	_, err := f.svc.BulkUpdate(context.Background(), principalFor(itProfile), BulkInput{
		TicketIDs: []string{ticketAID, ticketBID},
		Action:    "status",
		Value:     "Closed",
	})
	if err == nil {
		t.Fatalf("expected the backend error")
	}
	if !reflect.DeepEqual(written, []string{ticketAID}) {
		t.Fatalf("written = %v", written)
	}
}

func TestBulkUpdateRejectsWholeRequest(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(
		ticketView(ticketAID, doctorID, domain.TicketStatusOpen),
		ticketView(ticketBID, nurseID, domain.TicketStatusOpen),
	)
	writes := 0
	f.tickets.applyFn = func(context.Context, *domain.Ticket, *domain.TicketHistory) error {
		writes++
		return nil
	}
	p := principalFor(itProfile)

	tests := []struct {
		name  string
		input BulkInput
		code  string
	}{
		{name: "no tickets", input: BulkInput{Action: "status", Value: "Closed"}, code: apperrors.CodeValidation},
		{name: "unknown action", input: BulkInput{TicketIDs: []string{ticketAID}, Action: "delete"}, code: apperrors.CodeValidation},
		{name: "bad status", input: BulkInput{TicketIDs: []string{ticketAID}, Action: "status", Value: "Done"}, code: apperrors.CodeValidation},
		{name: "bad assignee", input: BulkInput{TicketIDs: []string{ticketAID}, Action: "assign", Value: nurseID}, code: apperrors.CodeValidation},
		{name: "missing ticket", input: BulkInput{TicketIDs: []string{ticketAID, missingID}, Action: "priority", Value: "High"}, code: apperrors.CodeNotFound},
		{name: "too many tickets", input: BulkInput{TicketIDs: repeatID(ticketAID, maxBulkTickets+1), Action: "priority", Value: "High"}, code: apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BulkUpdate(context.Background(), p, tt.input)
			requireCode(t, err, tt.code)
			if writes != 0 {
				t.Fatalf("writes = %d", writes)
			}
		})
	}

	views, err := f.svc.BulkUpdate(context.Background(), p, BulkInput{
		TicketIDs: []string{ticketAID, ticketBID, ticketAID},
		Action:    "priority",
		Value:     "High",
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if len(views) != 2 || writes != 2 {
		t.Fatalf("views = %d, writes = %d", len(views), writes)
	}
	for _, v := range views {
		if v.Priority != domain.TicketPriorityHigh {
			t.Fatalf("priority = %s", v.Priority)
		}
	}

	_, err = f.svc.BulkUpdate(context.Background(), principalFor(doctorProfile), BulkInput{TicketIDs: []string{ticketAID}, Action: "status", Value: "Closed"})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestListTicketsScope(t *testing.T) {
	f := newTicketFixture()
	var filters []repository.TicketFilter
	f.tickets.listFn = func(_ context.Context, filter repository.TicketFilter) ([]domain.TicketView, error) {
		filters = append(filters, filter)
		return []domain.TicketView{*ticketView(ticketAID, doctorID, domain.TicketStatusOpen)}, nil
	}
	input := TicketListInput{Statuses: []string{"open", ""}, Search: "printer"}

	first, err := f.svc.ListTickets(context.Background(), principalFor(doctorProfile), input)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	second, err := f.svc.ListTickets(context.Background(), principalFor(doctorProfile), input)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(filters[0], filters[1]) {
		t.Fatalf("repeated listing differs")
	}
	got := filters[0]
	if got.Scope.All || got.Scope.CreatorID != doctorID {
		t.Fatalf("doctor scope = %+v", got.Scope)
	}
	if !reflect.DeepEqual(got.Statuses, []domain.TicketStatus{domain.TicketStatusOpen}) || got.Limit != 20 || got.Offset != 0 {
		t.Fatalf("filter = %+v", got)
	}

	if _, err := f.svc.ListTickets(context.Background(), principalFor(itProfile), TicketListInput{Page: 3, PageSize: 10}); err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if got := filters[2]; !got.Scope.All || got.Offset != 20 {
		t.Fatalf("it filter = %+v", got)
	}

	_, err = f.svc.ListTickets(context.Background(), nil, input)
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestTicketDetailFollowsVisibility(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, nurseID, domain.TicketStatusOpen))

	_, err := f.svc.GetTicket(context.Background(), principalFor(doctorProfile), ticketAID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.ListComments(context.Background(), principalFor(doctorProfile), ticketAID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.AddComment(context.Background(), principalFor(doctorProfile), ticketAID, "me too")
	requireCode(t, err, apperrors.CodeForbidden)

	detail, err := f.svc.GetTicket(context.Background(), principalFor(nurseProfile), ticketAID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if detail.Ticket.ID != ticketAID || detail.DescriptionHTML == "" {
		t.Fatalf("detail = %+v", detail)
	}

	_, err = f.svc.GetTicket(context.Background(), principalFor(itProfile), "42")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.svc.GetTicket(context.Background(), principalFor(itProfile), missingID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAddComment(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(ticketView(ticketAID, doctorID, domain.TicketStatusOpen))
	f.comments.createFn = func(_ context.Context, c *domain.Comment) error {
		c.ID = "c1"
		return nil
	}

	_, err := f.svc.AddComment(context.Background(), principalFor(doctorProfile), ticketAID, "   ")
	requireFields(t, err, "message")

	view, err := f.svc.AddComment(context.Background(), principalFor(itProfile), ticketAID, "Try *reseating* the tray")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if view.AuthorID != itID || view.AuthorName != "it" || !strings.Contains(view.MessageHTML, "<em>reseating</em>") {
		t.Fatalf("comment = %+v", view)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []events.EventType{events.EventCommentAdded}) {
		t.Fatalf("events = %v", got)
	}
}

func TestSharedAttachmentIsVisibleThroughAnyTicket(t *testing.T) {
	f := newTicketFixture()
	f.tickets.getFn = ticketsByID(
		ticketView(ticketAID, nurseID, domain.TicketStatusOpen),
		ticketView(ticketBID, doctorID, domain.TicketStatusOpen),
	)
	f.attachments.byKeyFn = func(_ context.Context, key string) ([]domain.Attachment, error) {
		return []domain.Attachment{
			{ID: "a1", TicketID: ticketAID, StorageKey: key, FileName: "nurse.png"},
			{ID: "a2", TicketID: ticketBID, StorageKey: key, FileName: "doctor.png"},
		}, nil
	}
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.store.openFn = func(context.Context, string) (*os.File, error) { return os.Open(path) }

	att, file, err := f.svc.OpenAttachment(context.Background(), principalFor(doctorProfile), testBlobID)
	if err != nil {
		t.Fatalf("OpenAttachment: %v", err)
	}
	file.Close()
	if att.FileName != "doctor.png" {
		t.Fatalf("attachment = %+v", att)
	}

	_, _, err = f.svc.OpenAttachment(context.Background(), &domain.Principal{ID: missingID}, testBlobID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, _, err = f.svc.OpenAttachment(context.Background(), principalFor(doctorProfile), "../etc/passwd")
	requireCode(t, err, apperrors.CodeNotFound)
}
