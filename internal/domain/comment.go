package domain

import "time"

// Comment is a message in a ticket thread. Comments are append-only.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	Message    string
	CreatedAt  time.Time
}

// Attachment stores metadata for a file uploaded with a ticket.
type Attachment struct {
	ID          string
	TicketID    string
	FileName    string
	FileURL     string
	StorageKey  string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
