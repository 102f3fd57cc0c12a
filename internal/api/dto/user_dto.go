package dto

import "time"

// ProfileResponse is the public shape of a profile.
type ProfileResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PhoneNumber  *string   `json:"phone_number"`
	Designations []string  `json:"designations"`
	Branch       string    `json:"branch"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserRequest payload for admin user creation.
type CreateUserRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	PhoneNumber  *string  `json:"phone_number"`
	Designations []string `json:"designations"`
	Branch       string   `json:"branch"`
	IsAdmin      bool     `json:"is_admin"`
}

// UpdateUserRequest payload for admin profile edits. Omitted fields stay
// unchanged.
type UpdateUserRequest struct {
	Name         *string   `json:"name"`
	Email        *string   `json:"email"`
	PhoneNumber  *string   `json:"phone_number"`
	Designations *[]string `json:"designations"`
	Branch       *string   `json:"branch"`
	IsAdmin      *bool     `json:"is_admin"`
}

// PasswordResetIssuedResponse acknowledges an admin-triggered reset. The
// token itself only travels by email.
type PasswordResetIssuedResponse struct {
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserActivityResponse summarizes one profile's work.
type UserActivityResponse struct {
	ProfileID       string            `json:"profile_id"`
	CreatedTickets  []TicketResponse  `json:"created_tickets"`
	AssignedTickets []TicketResponse  `json:"assigned_tickets"`
	RecentComments  []CommentResponse `json:"recent_comments"`
	CommentCount    int               `json:"comment_count"`
}

// CatalogueResponse lists the labels offered in forms.
type CatalogueResponse struct {
	Designations []string `json:"designations"`
	Branches     []string `json:"branches"`
}
