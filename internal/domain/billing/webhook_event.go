package billing

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxWebhookErrorLength bounds the stored error message
const MaxWebhookErrorLength = 2000

// WebhookEvent is the audit row for one gateway delivery. It is written
// before dispatch and updated once with the processing outcome.
type WebhookEvent struct {
	ID           uuid.UUID
	TenantID     *uuid.UUID
	Gateway      string
	EventType    string
	EventID      *string
	Payload      string
	Signature    string
	IsVerified   bool
	IsProcessed  bool
	ProcessedAt  *time.Time
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWebhookEvent creates the row for a delivery that passed verification
// (or arrived while verification was disabled).
func NewWebhookEvent(gateway, eventType, eventID string, payload []byte, signature string, verified bool) *WebhookEvent {
	now := time.Now().UTC()
	ev := &WebhookEvent{
		ID:         uuid.New(),
		Gateway:    strings.ToLower(gateway),
		EventType:  eventType,
		Payload:    string(payload),
		Signature:  signature,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if eventID != "" {
		ev.EventID = &eventID
	}
	return ev
}

// NewRejectedWebhookEvent records a delivery that failed verification.
// It carries no event id, so a forged delivery can never occupy the dedupe
// key of a genuine event.
func NewRejectedWebhookEvent(gateway string, payload []byte, signature, reason string) *WebhookEvent {
	ev := NewWebhookEvent(gateway, "", "", payload, signature, false)
	ev.ErrorMessage = truncate(reason, MaxWebhookErrorLength)
	return ev
}

// DedupeKey is the fast-path idempotency key, empty when the event has no id
func (e *WebhookEvent) DedupeKey() string {
	if e.EventID == nil {
		return ""
	}
	return e.Gateway + ":" + *e.EventID
}

// BeginAttempt counts a processing attempt and clears the previous outcome
func (e *WebhookEvent) BeginAttempt() {
	e.Attempts++
	e.IsProcessed = false
	e.ErrorMessage = ""
	e.UpdatedAt = time.Now().UTC()
}

// MarkProcessed records a successful dispatch
func (e *WebhookEvent) MarkProcessed() {
	now := time.Now().UTC()
	e.IsProcessed = true
	e.ProcessedAt = &now
	e.ErrorMessage = ""
	e.UpdatedAt = now
}

// MarkFailed records why dispatch did not apply. The event stays
// unprocessed and is eligible for replay.
func (e *WebhookEvent) MarkFailed(reason string) {
	now := time.Now().UTC()
	e.IsProcessed = false
	e.ProcessedAt = &now
	e.ErrorMessage = truncate(reason, MaxWebhookErrorLength)
	e.UpdatedAt = now
}

// CanReplay reports whether the event may be dispatched again
func (e *WebhookEvent) CanReplay() bool {
	return !e.IsProcessed && e.EventID != nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
