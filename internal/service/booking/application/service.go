package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/pkg/logger"
	"staybook/internal/pkg/tracing"
	"staybook/internal/service/booking/domain"
)

// BookingService 定义了预订站点提供的所有业务用例
type BookingService struct {
	storage   domain.Storage
	publisher domain.EventPublisher
	tracer    trace.Tracer

	postSchema           *Schema
	promotionSchema      *Schema
	strictPromoSchema    *Schema
	profileSchema        *Schema
	enforceDiscountRange func() bool
}

// NewBookingService 创建一个新的服务实例。publisher 可以为 nil，此时不发布事件。
// enforceDiscountRange 在每次创建促销时读取，便于通过配置中心热切换。
func NewBookingService(storage domain.Storage, publisher domain.EventPublisher, tracer trace.Tracer, enforceDiscountRange func() bool) (*BookingService, error) {
	postSchema, err := InsertPostSchema()
	if err != nil {
		return nil, err
	}
	promotionSchema, err := InsertPromotionSchema(false)
	if err != nil {
		return nil, err
	}
	strictPromoSchema, err := InsertPromotionSchema(true)
	if err != nil {
		return nil, err
	}
	profileSchema, err := ProfileUpdateSchema()
	if err != nil {
		return nil, err
	}
	if enforceDiscountRange == nil {
		enforceDiscountRange = func() bool { return false }
	}
	return &BookingService{
		storage:              storage,
		publisher:            publisher,
		tracer:               tracer,
		postSchema:           postSchema,
		promotionSchema:      promotionSchema,
		strictPromoSchema:    strictPromoSchema,
		profileSchema:        profileSchema,
		enforceDiscountRange: enforceDiscountRange,
	}, nil
}

// CurrentUser 返回当前登录用户
func (s *BookingService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "service.CurrentUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.storage.GetUser(ctx, userID)
	return user, recordError(span, err)
}

// SignIn 在身份提供方登录成功后写入（或刷新）用户资料
func (s *BookingService) SignIn(ctx context.Context, claims domain.Claims) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "service.SignIn")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", claims.Sub))

	in := &domain.UpsertUser{
		ID:              claims.Sub,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	}
	if claims.Email != "" {
		email := claims.Email
		in.Email = &email
	}
	user, err := s.storage.UpsertUser(ctx, in)
	if err != nil {
		return nil, recordError(span, err)
	}
	logger.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user signed in")
	return user, nil
}

// UpdateProfile 修改姓名，用户不存在时返回 ErrNotFound
func (s *BookingService) UpdateProfile(ctx context.Context, userID string, body []byte) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var update domain.ProfileUpdate
	if err := s.profileSchema.Decode(body, &update); err != nil {
		return nil, recordError(span, err)
	}
	user, err := s.storage.UpdateUser(ctx, userID, update)
	return user, recordError(span, err)
}

// DeleteAccount 删除当前用户，重复删除不报错
func (s *BookingService) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := s.storage.DeleteUser(ctx, userID); err != nil {
		return recordError(span, err)
	}
	s.publish(ctx, domain.EventUserDeleted, userID, nil)
	logger.Ctx(ctx).Info().Str("user_id", userID).Msg("account deleted")
	return nil
}

func (s *BookingService) ListPosts(ctx context.Context, tag string) ([]*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListPosts")
	defer span.End()
	span.SetAttributes(attribute.String("filter.tag", tag))

	posts, err := s.storage.GetAllPosts(ctx, tag)
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("result.count", len(posts)))
	return posts, nil
}

func (s *BookingService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetPost")
	defer span.End()
	span.SetAttributes(attribute.String("post.id", id))

	post, err := s.storage.GetPost(ctx, id)
	return post, recordError(span, err)
}

// CreatePost 校验请求体后写入一条客房信息
func (s *BookingService) CreatePost(ctx context.Context, body []byte) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreatePost")
	defer span.End()

	var in domain.InsertPost
	if err := s.postSchema.Decode(body, &in); err != nil {
		return nil, recordError(span, err)
	}
	post, err := s.storage.CreatePost(ctx, &in)
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.String("post.id", post.ID))
	s.publish(ctx, domain.EventPostCreated, post.ID, post)
	return post, nil
}

func (s *BookingService) ListPromotions(ctx context.Context, code string) ([]*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListPromotions")
	defer span.End()
	span.SetAttributes(attribute.String("filter.code", code))

	promotions, err := s.storage.GetAllPromotions(ctx, code)
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("result.count", len(promotions)))
	return promotions, nil
}

func (s *BookingService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetPromotion")
	defer span.End()
	span.SetAttributes(attribute.String("promotion.id", id))

	promotion, err := s.storage.GetPromotion(ctx, id)
	return promotion, recordError(span, err)
}

// CreatePromotion 校验请求体后写入一条促销，促销码重复返回 ErrDuplicate
func (s *BookingService) CreatePromotion(ctx context.Context, body []byte) (*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreatePromotion")
	defer span.End()

	schema := s.promotionSchema
	if s.enforceDiscountRange() {
		schema = s.strictPromoSchema
	}
	var in domain.InsertPromotion
	if err := schema.Decode(body, &in); err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.String("promotion.code", in.Code))

	promotion, err := s.storage.CreatePromotion(ctx, &in)
	if err != nil {
		return nil, recordError(span, err)
	}
	s.publish(ctx, domain.EventPromotionCreated, promotion.ID, promotion)
	return promotion, nil
}

// publish 在写入成功之后发布事件。发布失败只记录日志，不影响已经提交的写入。
func (s *BookingService) publish(ctx context.Context, typ domain.CatalogEventType, entityID string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	event := &domain.CatalogEvent{
		EventID:    uuid.New().String(),
		Type:       typ,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		TraceID:    tracing.GetTraceIDFromContext(ctx),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("event", string(typ)).Msg("failed to encode event payload")
			return
		}
		event.Payload = data
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("event", string(typ)).Str("entity_id", entityID).Msg("failed to publish catalog event")
		return
	}
	trace.SpanFromContext(ctx).AddEvent(fmt.Sprintf("%s published", typ))
}

// recordError 把错误记录到 span，ErrNotFound 不算失败
func recordError(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if !isExpected(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func isExpected(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDuplicate)
}
