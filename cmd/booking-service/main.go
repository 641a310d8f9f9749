// cmd/booking-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"staybook/internal/pkg/bootstrap"
	"staybook/internal/pkg/database"
	"staybook/internal/pkg/logger"
	"staybook/internal/pkg/metrics"
	"staybook/internal/pkg/mq"
	"staybook/internal/pkg/redis"
	"staybook/internal/pkg/tracing"
	"staybook/internal/service/booking/application"
	"staybook/internal/service/booking/domain"
	"staybook/internal/service/booking/infrastructure"
	"staybook/internal/service/booking/interfaces"
)

const (
	serviceName       = "booking-service"
	sessionPruneEvery = time.Hour
	metricsNamespace  = "staybook"
)

type storage interface {
	domain.Storage
	domain.HealthChecker
}

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init(serviceName)
	httpMetrics := metrics.NewHTTPMetrics(metricsNamespace, nil)

	err := bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: registerHandlers,
		// metrics 必须紧贴 mux，才能拿到匹配到的路由
		Middleware: func(next http.Handler) http.Handler {
			return tracing.Middleware(serviceName, httpMetrics.Middleware(next))
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("service exited with error")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config

	// 1. 存储
	store, db, err := openStorage(appCtx)
	if err != nil {
		return err
	}

	// 2. 会话
	sessions, err := newSessionStore(appCtx, db)
	if err != nil {
		return err
	}

	// 3. 事件：实时推送走本地 hub，开启 Kafka 后经由 Kafka 扇出到所有实例
	var hub *interfaces.Hub
	if cfg.App.FeatureFlags.RealtimeEvents {
		hub = interfaces.NewHub()
		appCtx.Go(hub.Run)
	}
	publisher := newEventPublisher(appCtx, hub)

	// 4. 业务服务
	service, err := application.NewBookingService(store, publisher, otel.Tracer(serviceName), func() bool {
		return bootstrap.GetCurrentConfig().App.FeatureFlags.EnforceDiscountRange
	})
	if err != nil {
		return fmt.Errorf("create booking service: %w", err)
	}

	auth := interfaces.NewAuthenticator(sessions, service, func() bootstrap.AuthConfig {
		return bootstrap.GetCurrentConfig().Auth
	})
	interfaces.NewBookingHandler(service, auth, hub, store).RegisterRoutes(appCtx.Mux)
	return nil
}

func openStorage(appCtx *bootstrap.AppCtx) (storage, *gorm.DB, error) {
	cfg := appCtx.Config.Database
	if cfg.Driver == "memory" {
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return infrastructure.NewMemoryStorage(), nil, nil
	}

	db, err := database.OpenMySQL(appCtx.Ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	appCtx.OnShutdown(func(context.Context) error { return database.Close(db) })

	store := infrastructure.NewDatabaseStorage(db)
	if cfg.AutoMigrate {
		if err := store.AutoMigrate(appCtx.Ctx); err != nil {
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return store, db, nil
}

func newSessionStore(appCtx *bootstrap.AppCtx, db *gorm.DB) (domain.SessionStore, error) {
	cfg := appCtx.Config
	if cfg.Auth.SessionStore == "redis" {
		client, err := redis.NewClient(appCtx.Ctx, cfg.Infra.Redis)
		if err != nil {
			return nil, err
		}
		appCtx.OnShutdown(func(context.Context) error { return client.Close() })
		return infrastructure.NewRedisSessionStore(client, cfg.Infra.Redis.KeyPrefix), nil
	}

	sessions := infrastructure.NewGormSessionStore(db)
	// 数据库里的会话不会自动过期，定期清理
	appCtx.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(sessionPruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := sessions.PruneExpired(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("failed to prune expired sessions")
					continue
				}
				logger.Info().Int64("count", n).Msg("pruned expired sessions")
			}
		}
	})
	return sessions, nil
}

func newEventPublisher(appCtx *bootstrap.AppCtx, hub *interfaces.Hub) domain.EventPublisher {
	kc := appCtx.Config.Infra.Kafka
	if !kc.Enabled {
		if hub == nil {
			return nil
		}
		return hub
	}

	writer := mq.NewKafkaWriter(kc.Brokers, kc.Topic)
	publisher := infrastructure.NewKafkaEventPublisher(writer)
	appCtx.OnShutdown(func(context.Context) error { return publisher.Close() })

	if hub != nil {
		// 每个实例使用自己的消费组，保证所有实例都能收到全部事件
		groupID := kc.GroupID + "-" + uuid.New().String()[:8]
		consumer := infrastructure.NewCatalogEventConsumer(mq.NewKafkaReader(kc.Brokers, kc.Topic, groupID), hub.Dispatch)
		appCtx.Go(consumer.Run)
		appCtx.OnShutdown(func(context.Context) error { return consumer.Close() })
	}
	return publisher
}
