package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CatalogEventType 目录变更事件的类型
type CatalogEventType string

const (
	EventPostCreated      CatalogEventType = "post.created"
	EventPromotionCreated CatalogEventType = "promotion.created"
	EventUserDeleted      CatalogEventType = "user.deleted"
)

// CatalogEvent 在写操作提交之后发布，用于实时推送
type CatalogEvent struct {
	EventID    string           `json:"eventId"`
	Type       CatalogEventType `json:"type"`
	EntityID   string           `json:"entityId"`
	OccurredAt time.Time        `json:"occurredAt"`
	TraceID    string           `json:"traceId,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// EventPublisher 事件发布端口，Kafka 或本地 hub 实现
type EventPublisher interface {
	Publish(ctx context.Context, event *CatalogEvent) error
}
