package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC (the default)
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// WebhookEventSortFields contains allowed sort fields for the webhook audit log
var WebhookEventSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"gateway":      true,
	"event_type":   true,
	"attempts":     true,
	"is_processed": true,
}
