// Package policy decides who may read or change which ticket and profile
// records. Every function is pure: the caller supplies the principal, resolved
// fresh for the request, and the record under consideration. Services call
// these checks before touching storage so the rules hold no matter which
// client issued the request.
package policy

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketScope restricts ticket listings. When All is false only tickets
// created by CreatorID are visible.
type TicketScope struct {
	All       bool
	CreatorID string
}

// Allows reports whether the ticket falls inside the scope.
func (s TicketScope) Allows(ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	return s.All || ticket.CreatedBy == s.CreatorID
}

// ProfileScope restricts profile listings the same way.
type ProfileScope struct {
	All       bool
	ProfileID string
}

// Allows reports whether the profile id falls inside the scope.
func (s ProfileScope) Allows(profileID string) bool {
	return s.All || profileID == s.ProfileID
}

// Authenticated fails when there is no principal at all.
func Authenticated(p *domain.Principal) error {
	if p == nil || p.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func requireProfile(p *domain.Principal) error {
	if err := Authenticated(p); err != nil {
		return err
	}
	if !p.HasProfile() {
		return apperrors.NewForbidden("profile not provisioned")
	}
	return nil
}

func requireStaff(p *domain.Principal, action string) error {
	if err := requireProfile(p); err != nil {
		return err
	}
	if !p.IsStaff() {
		return apperrors.NewForbidden(action + " requires IT or admin rights")
	}
	return nil
}

func requireAdmin(p *domain.Principal, action string) error {
	if err := requireProfile(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return apperrors.NewForbidden(action + " requires admin rights")
	}
	return nil
}

// RequireProfile requires a provisioned profile.
func RequireProfile(p *domain.Principal) error {
	return requireProfile(p)
}

// RequireStaff requires IT staff or an admin.
func RequireStaff(p *domain.Principal) error {
	return requireStaff(p, "this operation")
}

// RequireAdmin requires an admin.
func RequireAdmin(p *domain.Principal) error {
	return requireAdmin(p, "this operation")
}

// TicketListScope returns the tickets a principal may list. Admins and IT
// staff see everything; everyone else, including principals whose profile is
// not provisioned yet, only sees tickets they created.
func TicketListScope(p *domain.Principal) (TicketScope, error) {
	if err := Authenticated(p); err != nil {
		return TicketScope{}, err
	}
	if p.IsStaff() {
		return TicketScope{All: true}, nil
	}
	return TicketScope{CreatorID: p.ID}, nil
}

// CanCreateTicket requires a resolved profile. The creator is always the
// acting principal; callers must not take it from input.
func CanCreateTicket(p *domain.Principal) error {
	return requireProfile(p)
}

// CanViewTicket allows exactly the tickets TicketListScope would list.
// Comments, attachments and history inherit this rule.
func CanViewTicket(p *domain.Principal, ticket *domain.Ticket) error {
	scope, err := TicketListScope(p)
	if err != nil {
		return err
	}
	if !scope.Allows(ticket) {
		return apperrors.NewForbidden("ticket not visible to caller")
	}
	return nil
}

// CanComment follows the view rule and additionally needs a profile so the
// comment has an author.
func CanComment(p *domain.Principal, ticket *domain.Ticket) error {
	if err := requireProfile(p); err != nil {
		return err
	}
	return CanViewTicket(p, ticket)
}

// CanUpdateTicket gates status, priority and assignee changes. Creators get
// no write access to their own tickets.
func CanUpdateTicket(p *domain.Principal) error {
	return requireStaff(p, "updating tickets")
}

// ProfileListScope returns the profiles a principal may list.
func ProfileListScope(p *domain.Principal) (ProfileScope, error) {
	if err := Authenticated(p); err != nil {
		return ProfileScope{}, err
	}
	if p.IsStaff() {
		return ProfileScope{All: true}, nil
	}
	return ProfileScope{ProfileID: p.ID}, nil
}

// CanViewProfile allows staff to view anyone and others only themselves.
func CanViewProfile(p *domain.Principal, profileID string) error {
	scope, err := ProfileListScope(p)
	if err != nil {
		return err
	}
	if !scope.Allows(profileID) {
		return apperrors.NewForbidden("profile not visible to caller")
	}
	return nil
}

// CanCreateUser is admin only.
func CanCreateUser(p *domain.Principal) error {
	return requireAdmin(p, "creating users")
}

// CanManageUser covers profile edits, password resets and the admin flag.
func CanManageUser(p *domain.Principal) error {
	return requireAdmin(p, "managing users")
}

// CanViewAnalytics covers organisation-wide reports and per-user activity.
func CanViewAnalytics(p *domain.Principal) error {
	return requireStaff(p, "viewing analytics")
}

// CanViewMetrics covers process counters.
func CanViewMetrics(p *domain.Principal) error {
	return requireAdmin(p, "viewing metrics")
}

// CheckAssignee validates the target of an assignment.
func CheckAssignee(assignee *domain.Profile) error {
	if !assignee.CanBeAssigned() {
		return apperrors.NewValidationError("assignee must be IT staff or an admin", map[string]any{
			"fields": []string{"assigned_to"},
		})
	}
	return nil
}
