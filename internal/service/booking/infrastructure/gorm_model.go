package infrastructure

import "time"

// UserModel 对应数据库中的 users 表
type UserModel struct {
	ID              string  `gorm:"primaryKey;type:varchar(64)"`
	Email           *string `gorm:"type:varchar(255);uniqueIndex"`
	FirstName       string  `gorm:"column:first_name;type:varchar(255)"`
	LastName        string  `gorm:"column:last_name;type:varchar(255)"`
	ProfileImageURL string  `gorm:"column:profile_image_url;type:varchar(1024)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 指定 GORM 应该使用的表名
func (UserModel) TableName() string {
	return "users"
}

// PostModel 对应数据库中的 posts 表
type PostModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Title       string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text;not null"`
	ImageURL    string    `gorm:"column:image_url;type:text;not null"`
	Price       int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
	// 标签按提交顺序存放在子表里，按标签查询时可以走索引
	Tags []PostTagModel `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (PostModel) TableName() string {
	return "posts"
}

// PostTagModel 对应 post_tags 表，(post_id, position) 为主键
type PostTagModel struct {
	PostID   string `gorm:"primaryKey;type:varchar(36)"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Tag      string `gorm:"type:varchar(191);not null;index"`
}

func (PostTagModel) TableName() string {
	return "post_tags"
}

// PromotionModel 对应数据库中的 promotions 表
type PromotionModel struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)"`
	Code               string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title              string    `gorm:"type:text;not null"`
	Description        string    `gorm:"type:text;not null"`
	DiscountPercentage int       `gorm:"column:discount_percentage;not null"`
	ImageURL           string    `gorm:"column:image_url;type:text;not null"`
	ValidUntil         time.Time `gorm:"column:valid_until;not null"`
	CreatedAt          time.Time `gorm:"not null;index"`
}

func (PromotionModel) TableName() string {
	return "promotions"
}

// SessionModel 对应 sessions 表，只由认证组件读写
type SessionModel struct {
	SID    string    `gorm:"column:sid;primaryKey;type:varchar(128)"`
	Sess   string    `gorm:"column:sess;type:json;not null"`
	Expire time.Time `gorm:"column:expire;not null;index:IDX_session_expire"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

// AllModels 返回需要自动迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&UserModel{},
		&PostModel{},
		&PostTagModel{},
		&PromotionModel{},
		&SessionModel{},
	}
}
