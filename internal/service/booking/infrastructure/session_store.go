package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staybook/internal/service/booking/domain"
)

// sessionPayload 是 sess 列 / redis value 中保存的内容
type sessionPayload struct {
	Claims domain.Claims `json:"claims"`
	Expire time.Time     `json:"expire"`
}

// GormSessionStore 把会话存放在 sessions 表
type GormSessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db, now: time.Now}
}

func (s *GormSessionStore) Get(ctx context.Context, sid string) (*domain.Session, error) {
	var model SessionModel
	err := s.db.WithContext(ctx).Where("sid = ? AND expire > ?", sid, s.now().UTC()).First(&model).Error
	if err != nil {
		return nil, translateError(err, "get session")
	}
	var payload sessionPayload
	if err := json.Unmarshal([]byte(model.Sess), &payload); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &domain.Session{SID: model.SID, Claims: payload.Claims, Expire: model.Expire}, nil
}

func (s *GormSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sessionPayload{Claims: sess.Claims, Expire: sess.Expire})
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	model := SessionModel{SID: sess.SID, Sess: string(data), Expire: sess.Expire.UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sid"}},
		DoUpdates: clause.AssignmentColumns([]string{"sess", "expire"}),
	}).Create(&model).Error
	return translateError(err, "save session")
}

func (s *GormSessionStore) Destroy(ctx context.Context, sid string) error {
	return translateError(s.db.WithContext(ctx).Where("sid = ?", sid).Delete(&SessionModel{}).Error, "destroy session")
}

// PruneExpired 删除已过期的会话，返回删除的行数
func (s *GormSessionStore) PruneExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expire <= ?", s.now().UTC()).Delete(&SessionModel{})
	return res.RowsAffected, translateError(res.Error, "prune sessions")
}

// RedisSessionStore 把会话存放在 Redis，过期交给 key 的 TTL
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisSessionStore) key(sid string) string {
	return s.prefix + sid
}

func (s *RedisSessionStore) Get(ctx context.Context, sid string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(domain.ErrNotFound, "get session")
		}
		return nil, errors.Wrap(err, "get session")
	}
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	sess := &domain.Session{SID: sid, Claims: payload.Claims, Expire: payload.Expire}
	if sess.IsExpired(s.now()) {
		return nil, errors.Wrap(domain.ErrNotFound, "get session")
	}
	return sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	ttl := sess.Expire.Sub(s.now())
	if ttl <= 0 {
		return s.Destroy(ctx, sess.SID)
	}
	data, err := json.Marshal(sessionPayload{Claims: sess.Claims, Expire: sess.Expire})
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(s.client.Set(ctx, s.key(sess.SID), data, ttl).Err(), "save session")
}

func (s *RedisSessionStore) Destroy(ctx context.Context, sid string) error {
	return errors.Wrap(s.client.Del(ctx, s.key(sid)).Err(), "destroy session")
}
