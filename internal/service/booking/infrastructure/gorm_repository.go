package infrastructure

import (
	"context"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"staybook/internal/service/booking/domain"
)

// mysqlErrDuplicateEntry 是 MySQL 唯一键冲突的错误码
const mysqlErrDuplicateEntry = 1062

// likeEscape 是 LIKE 使用的转义字符，MySQL 和 SQLite 都接受
const likeEscape = "!"

// Option 调整存储实现的时钟和 id 生成方式，测试中用来获得确定的排序
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DatabaseStorage 是 domain.Storage 的 GORM 实现
type DatabaseStorage struct {
	db *gorm.DB
	options
}

// NewDatabaseStorage 创建一个新的 GORM 仓储实例
func NewDatabaseStorage(db *gorm.DB, opts ...Option) *DatabaseStorage {
	return &DatabaseStorage{db: db, options: buildOptions(opts)}
}

// AutoMigrate 创建或补齐全部表结构
func (s *DatabaseStorage) AutoMigrate(ctx context.Context) error {
	return errors.Wrap(s.db.WithContext(ctx).AutoMigrate(AllModels()...), "auto migrate")
}

// Ping 检查数据库连接
func (s *DatabaseStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DatabaseStorage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, "get user")
	}
	return ToDomainUser(&model), nil
}

// UpsertUser 以 id 为键插入或更新，冲突时刷新 updated_at。
// email 已属于其他用户时返回 ErrDuplicate，不会改动那一行。
func (s *DatabaseStorage) UpsertUser(ctx context.Context, user *domain.UpsertUser) (*domain.User, error) {
	id := user.ID
	if id == "" {
		id = s.newID()
	}
	now := s.now()

	var model UserModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.Email != nil {
			var taken int64
			if err := tx.Model(&UserModel{}).Where("email = ? AND id <> ?", *user.Email, id).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return domain.ErrDuplicate
			}
		}

		err := tx.Where("id = ?", id).First(&model).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model = UserModel{
				ID:              id,
				Email:           user.Email,
				FirstName:       user.FirstName,
				LastName:        user.LastName,
				ProfileImageURL: user.ProfileImageURL,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			return tx.Create(&model).Error
		case err != nil:
			return err
		}

		// map 形式的 Updates 会把 email 置空也写进去
		updateData := map[string]interface{}{
			"email":             user.Email,
			"first_name":        user.FirstName,
			"last_name":         user.LastName,
			"profile_image_url": user.ProfileImageURL,
			"updated_at":        now,
		}
		if err := tx.Model(&UserModel{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		return nil, translateError(err, "upsert user")
	}
	return ToDomainUser(&model), nil
}

// UpdateUser 只修改姓名和 updated_at，用户不存在时不会创建
func (s *DatabaseStorage) UpdateUser(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}
		updateData := map[string]interface{}{"updated_at": s.now()}
		if update.FirstName != nil {
			updateData["first_name"] = *update.FirstName
		}
		if update.LastName != nil {
			updateData["last_name"] = *update.LastName
		}
		if err := tx.Model(&UserModel{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		return nil, translateError(err, "update user")
	}
	return ToDomainUser(&model), nil
}

func (s *DatabaseStorage) DeleteUser(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&UserModel{}).Error
	return translateError(err, "delete user")
}

func (s *DatabaseStorage) GetAllPosts(ctx context.Context, tag string) ([]*domain.Post, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&PostModel{}).Preload("Tags", orderByPosition)
	if tag != "" {
		q = q.Where("id IN (?)", db.Model(&PostTagModel{}).Select("post_id").Where("tag = ?", tag))
	}

	var models []PostModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, translateError(err, "list posts")
	}

	posts := make([]*domain.Post, 0, len(models))
	for i := range models {
		post := ToDomainPost(&models[i])
		// MySQL 默认排序规则大小写不敏感，这里再做一次精确匹配
		if tag != "" && !post.HasTag(tag) {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *DatabaseStorage) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var model PostModel
	err := s.db.WithContext(ctx).Preload("Tags", orderByPosition).Where("id = ?", id).First(&model).Error
	if err != nil {
		return nil, translateError(err, "get post")
	}
	return ToDomainPost(&model), nil
}

func (s *DatabaseStorage) CreatePost(ctx context.Context, post *domain.InsertPost) (*domain.Post, error) {
	var model PostModel
	FromInsertPost(s.newID(), post, &model)
	model.CreatedAt = s.now()

	// Create 会在同一个事务里写入关联的 post_tags
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, translateError(err, "create post")
	}
	return ToDomainPost(&model), nil
}

func (s *DatabaseStorage) GetAllPromotions(ctx context.Context, code string) ([]*domain.Promotion, error) {
	q := s.db.WithContext(ctx).Model(&PromotionModel{})
	if code != "" {
		q = q.Where("LOWER(code) LIKE ? ESCAPE '"+likeEscape+"'", "%"+escapeLike(strings.ToLower(code))+"%")
	}

	var models []PromotionModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, translateError(err, "list promotions")
	}
	promotions := make([]*domain.Promotion, 0, len(models))
	for i := range models {
		promotions = append(promotions, ToDomainPromotion(&models[i]))
	}
	return promotions, nil
}

func (s *DatabaseStorage) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	var model PromotionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, "get promotion")
	}
	return ToDomainPromotion(&model), nil
}

func (s *DatabaseStorage) CreatePromotion(ctx context.Context, promotion *domain.InsertPromotion) (*domain.Promotion, error) {
	model := FromInsertPromotion(s.newID(), promotion)
	model.CreatedAt = s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 与 MySQL 默认的 _ci 排序规则一致：code 唯一性不区分大小写
		var taken int64
		if err := tx.Model(&PromotionModel{}).Where("LOWER(code) = ?", strings.ToLower(model.Code)).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return domain.ErrDuplicate
		}
		return tx.Create(model).Error
	})
	if err != nil {
		return nil, translateError(err, "create promotion")
	}
	return ToDomainPromotion(model), nil
}

// ResetCatalog 清空客房和促销，用户与会话不受影响
func (s *DatabaseStorage) ResetCatalog(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&PostTagModel{}, &PostModel{}, &PromotionModel{}} {
			// 显式条件绕过 GORM 的全表删除保护
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return errors.Wrap(err, "reset catalog")
			}
		}
		return nil
	})
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

// translateError 把驱动和 GORM 的错误翻译成领域错误
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(domain.ErrNotFound, op)
	}
	if errors.Is(err, domain.ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(domain.ErrDuplicate, op)
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return errors.Wrap(domain.ErrDuplicate, op)
	}
	return errors.Wrap(err, op)
}
