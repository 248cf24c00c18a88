package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder(" asc "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder("; DROP TABLE invoices"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "gateway", ValidateSortField("gateway", WebhookEventSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("payload", WebhookEventSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", WebhookEventSortFields, "created_at"))
}
