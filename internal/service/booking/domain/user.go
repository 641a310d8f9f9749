package domain

import "time"

// User 是通过外部身份提供方登录的用户
type User struct {
	ID              string    `json:"id"`
	Email           *string   `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UpsertUser 是登录时写入的用户资料。ID 为空时由存储层生成。
type UpsertUser struct {
	ID              string
	Email           *string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// ProfileUpdate 是用户自助修改资料的请求，nil 字段保持不变
type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}
