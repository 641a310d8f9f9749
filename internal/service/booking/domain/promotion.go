package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Promotion 是一个带有效期的优惠码
type Promotion struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	DiscountPercentage int       `json:"discountPercentage"`
	ImageURL           string    `json:"imageUrl"`
	ValidUntil         time.Time `json:"validUntil"`
	CreatedAt          time.Time `json:"createdAt"`
}

// InsertPromotion 是创建促销时允许提交的字段
type InsertPromotion struct {
	Code               string    `json:"code"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	DiscountPercentage int       `json:"discountPercentage"`
	ImageURL           string    `json:"imageUrl"`
	ValidUntil         time.Time `json:"validUntil"`
}

// IsExpired 过期状态不落库，每次读取时按当前时间计算
func (p *Promotion) IsExpired(now time.Time) bool {
	return p.ValidUntil.Before(now)
}

// MatchesCode 大小写不敏感的子串匹配
func (p *Promotion) MatchesCode(fragment string) bool {
	return strings.Contains(strings.ToLower(p.Code), strings.ToLower(fragment))
}

// MarshalJSON 在输出中附带读取时刻的 expired 标记
func (p Promotion) MarshalJSON() ([]byte, error) {
	type plain Promotion
	return json.Marshal(struct {
		plain
		Expired bool `json:"expired"`
	}{plain: plain(p), Expired: p.IsExpired(time.Now())})
}
