package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Invoice", uuid.New(), uuid.New())}
}

type testHandler struct {
	eventTypes []string
	err        error
	panics     bool
	mu         sync.Mutex
	handled    []shared.DomainEvent
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	payments := &testHandler{eventTypes: []string{"InvoicePaymentRecorded"}}
	all := &testHandler{}
	bus.Subscribe(payments)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("InvoicePaymentRecorded"),
		newTestEvent("InvoiceCreated"),
	))

	assert.Equal(t, 1, payments.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &testHandler{eventTypes: []string{"A"}}
	bus.Subscribe(h, "B")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := &testHandler{err: errors.New("metrics down")}
	panicking := &testHandler{panics: true}
	healthy := &testHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("InvoiceCreated"))
	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestLoggingHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLoggingHandler(zap.New(core))
	ev := newTestEvent("InvoiceCancelled")

	assert.Nil(t, h.EventTypes())
	require.NoError(t, h.Handle(context.Background(), ev))

	entries := logs.FilterMessage("domain event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "InvoiceCancelled", entries[0].ContextMap()["event_type"])
	assert.Equal(t, ev.AggregateID().String(), entries[0].ContextMap()["aggregate_id"])
}
