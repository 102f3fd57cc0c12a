package policy

import (
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// allowedTransitions lists the statuses reachable from each status. Every
// status may follow every other one, including reopening Resolved and Closed
// tickets. Tightening the lifecycle means editing this table.
var allowedTransitions = func() map[domain.TicketStatus][]domain.TicketStatus {
	table := make(map[domain.TicketStatus][]domain.TicketStatus, len(domain.TicketStatuses))
	for _, from := range domain.TicketStatuses {
		table[from] = append([]domain.TicketStatus(nil), domain.TicketStatuses...)
	}
	return table
}()

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckTransition wraps CanTransition in a validation error.
func CheckTransition(from, to domain.TicketStatus) error {
	if !CanTransition(from, to) {
		return apperrors.NewValidationError("status transition not allowed", map[string]any{
			"from": from,
			"to":   to,
		})
	}
	return nil
}

// ParseStatus accepts the display form ("In Progress") case-insensitively,
// with underscores in place of spaces.
func ParseStatus(raw string) (domain.TicketStatus, error) {
	key := normalizeEnum(raw)
	for _, status := range domain.TicketStatuses {
		if strings.EqualFold(string(status), key) {
			return status, nil
		}
	}
	return "", apperrors.NewValidationError("invalid status", map[string]any{
		"fields": []string{"status"},
		"value":  raw,
	})
}

// ParsePriority accepts priorities the same way; empty input falls back to
// Medium.
func ParsePriority(raw string) (domain.TicketPriority, error) {
	key := normalizeEnum(raw)
	if key == "" {
		return domain.TicketPriorityMedium, nil
	}
	for _, priority := range domain.TicketPriorities {
		if strings.EqualFold(string(priority), key) {
			return priority, nil
		}
	}
	return "", apperrors.NewValidationError("invalid priority", map[string]any{
		"fields": []string{"priority"},
		"value":  raw,
	})
}

func normalizeEnum(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
}
