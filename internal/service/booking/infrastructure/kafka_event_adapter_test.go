package infrastructure

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"staybook/internal/service/booking/domain"
)

func TestCatalogEventConsumer_ProcessMessage(t *testing.T) {
	var received []*domain.CatalogEvent
	consumer := NewCatalogEventConsumer(nil, func(_ context.Context, event *domain.CatalogEvent) {
		received = append(received, event)
	})

	event := domain.CatalogEvent{
		EventID:    "evt-1",
		Type:       domain.EventPromotionCreated,
		EntityID:   "promo-1",
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Payload:    json.RawMessage(`{"code":"SUMMER2024"}`),
	}
	value, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	consumer.processMessage(context.Background(), kafka.Message{Key: []byte("promo-1"), Value: value})
	consumer.processMessage(context.Background(), kafka.Message{Key: []byte("bad"), Value: []byte("{not json")})

	if len(received) != 1 {
		t.Fatalf("handler called %d times, want 1 (malformed messages are skipped)", len(received))
	}
	got := received[0]
	if got.EventID != "evt-1" || got.Type != domain.EventPromotionCreated || got.EntityID != "promo-1" {
		t.Errorf("unexpected event %+v", got)
	}
	if string(got.Payload) != `{"code":"SUMMER2024"}` {
		t.Errorf("payload = %s", got.Payload)
	}
}
