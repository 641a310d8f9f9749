package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"staybook/internal/pkg/logger"
	"staybook/internal/pkg/mq"
	"staybook/internal/service/booking/domain"
)

// KafkaEventPublisher 实现了 domain.EventPublisher，把目录事件写入 Kafka
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(writer *kafka.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.CatalogEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal catalog event")
	}
	// 以实体 id 作为 key，同一实体的事件落在同一分区
	return errors.Wrap(mq.ProduceMessage(ctx, p.writer, []byte(event.EntityID), eventBytes), "produce catalog event")
}

// Close 关闭底层的Kafka writer。
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// CatalogEventHandler 处理一条从 Kafka 读到的事件
type CatalogEventHandler func(ctx context.Context, event *domain.CatalogEvent)

// CatalogEventConsumer 是一个驱动适配器，它监听Kafka消息并把事件交给 handler。
// 每个实例使用独立的消费组，这样所有实例都能把事件推给自己的 websocket 客户端。
type CatalogEventConsumer struct {
	reader  *kafka.Reader
	handler CatalogEventHandler
	wg      sync.WaitGroup
}

func NewCatalogEventConsumer(reader *kafka.Reader, handler CatalogEventHandler) *CatalogEventConsumer {
	return &CatalogEventConsumer{reader: reader, handler: handler}
}

// Run 阻塞消费，直到 ctx 被取消
func (c *CatalogEventConsumer) Run(ctx context.Context) error {
	c.wg.Add(1)
	defer c.wg.Done()

	logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("Catalog event consumer started.")
	for {
		// 我们使用FetchMessage而不是ReadMessage，以便更好地控制退出逻辑
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("Catalog event consumer shutting down.")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-time.After(time.Second): // 避免快速失败循环
			case <-ctx.Done():
				return nil
			}
			continue
		}

		c.processMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
		}
	}
}

// Close 关闭 reader 并等待 Run 返回
func (c *CatalogEventConsumer) Close() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *CatalogEventConsumer) processMessage(parentCtx context.Context, msg kafka.Message) {
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headerCarrier)

	var event domain.CatalogEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal catalog event. Message will be skipped.")
		return
	}
	c.handler(ctx, &event)
}
