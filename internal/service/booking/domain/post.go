package domain

import "time"

// Post 是一条客房信息
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Tags        []string  `json:"tags"`
	Price       int       `json:"price"` // 每晚价格，美元
	CreatedAt   time.Time `json:"createdAt"`
}

// InsertPost 是创建客房信息时允许提交的字段
type InsertPost struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Tags        []string `json:"tags"`
	Price       int      `json:"price"`
}

// NormalizedTags 保证 tags 永远不是 nil
func (p *InsertPost) NormalizedTags() []string {
	if p.Tags == nil {
		return []string{}
	}
	return append([]string(nil), p.Tags...)
}

// HasTag 判断是否包含某个标签，大小写敏感
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
