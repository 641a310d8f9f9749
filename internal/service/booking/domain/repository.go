package domain

import "context"

// Storage 定义了业务数据的持久化接口
// 这是领域层与基础设施层之间的"插座"：读操作找不到时返回 ErrNotFound，
// 写操作返回包含服务端生成字段（id、时间戳）的最终记录。
type Storage interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user *UpsertUser) (*User, error)
	UpdateUser(ctx context.Context, id string, update ProfileUpdate) (*User, error)
	// DeleteUser 是幂等的，删除不存在的用户不算错误
	DeleteUser(ctx context.Context, id string) error

	// GetAllPosts 按创建时间倒序返回，tag 非空时只返回包含该标签的记录
	GetAllPosts(ctx context.Context, tag string) ([]*Post, error)
	GetPost(ctx context.Context, id string) (*Post, error)
	CreatePost(ctx context.Context, post *InsertPost) (*Post, error)

	// GetAllPromotions 按创建时间倒序返回，code 非空时按促销码做大小写不敏感的子串匹配
	GetAllPromotions(ctx context.Context, code string) ([]*Promotion, error)
	GetPromotion(ctx context.Context, id string) (*Promotion, error)
	CreatePromotion(ctx context.Context, promotion *InsertPromotion) (*Promotion, error)
}

// CatalogSeeder 供初始化数据脚本使用
type CatalogSeeder interface {
	// ResetCatalog 清空全部客房和促销
	ResetCatalog(ctx context.Context) error
}

// HealthChecker 用于 readiness 检查
type HealthChecker interface {
	Ping(ctx context.Context) error
}
