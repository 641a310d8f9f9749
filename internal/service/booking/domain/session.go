package domain

import (
	"context"
	"time"
)

// Claims 是外部身份提供方断言的用户身份，保存在会话里
type Claims struct {
	Sub             string `json:"sub"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Session 是浏览器登录态在服务端的记录
type Session struct {
	SID    string
	Claims Claims
	Expire time.Time
}

// IsExpired 判断会话在 now 时刻是否已失效
func (s *Session) IsExpired(now time.Time) bool {
	return !s.Expire.After(now)
}

// SessionStore 由认证组件独占使用，业务逻辑不直接访问
type SessionStore interface {
	// Get 返回未过期的会话，不存在或已过期时返回 ErrNotFound
	Get(ctx context.Context, sid string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Destroy(ctx context.Context, sid string) error
}
