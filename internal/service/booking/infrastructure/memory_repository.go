package infrastructure

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"staybook/internal/service/booking/domain"
)

// MemoryStorage 是 domain.Storage 的内存实现，用于本地开发和接口层测试
type MemoryStorage struct {
	mu         sync.RWMutex
	seq        int64
	users      map[string]*domain.User
	posts      map[string]*memoryRow[domain.Post]
	promotions map[string]*memoryRow[domain.Promotion]
	options
}

// memoryRow 记录插入序号，创建时间相同的行按插入顺序倒序排列
type memoryRow[T any] struct {
	seq int64
	val T
}

func NewMemoryStorage(opts ...Option) *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[string]*domain.User),
		posts:      make(map[string]*memoryRow[domain.Post]),
		promotions: make(map[string]*memoryRow[domain.Promotion]),
		options:    buildOptions(opts),
	}
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

func (s *MemoryStorage) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrNotFound, "get user")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStorage) UpsertUser(_ context.Context, in *domain.UpsertUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := in.ID
	if id == "" {
		id = s.newID()
	}
	if in.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email != nil && *other.Email == *in.Email {
				return nil, errors.Wrap(domain.ErrDuplicate, "upsert user")
			}
		}
	}

	now := s.now()
	u, ok := s.users[id]
	if !ok {
		u = &domain.User{ID: id, CreatedAt: now}
		s.users[id] = u
	}
	u.Email = in.Email
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.ProfileImageURL = in.ProfileImageURL
	u.UpdatedAt = now

	cp := *u
	return &cp, nil
}

func (s *MemoryStorage) UpdateUser(_ context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrNotFound, "update user")
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	u.UpdatedAt = s.now()
	cp := *u
	return &cp, nil
}

func (s *MemoryStorage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *MemoryStorage) GetAllPosts(_ context.Context, tag string) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*memoryRow[domain.Post], 0, len(s.posts))
	for _, row := range s.posts {
		if tag != "" && !row.val.HasTag(tag) {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows, func(p *domain.Post) int64 { return p.CreatedAt.UnixNano() })

	posts := make([]*domain.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, copyPost(&row.val))
	}
	return posts, nil
}

func (s *MemoryStorage) GetPost(_ context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.posts[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrNotFound, "get post")
	}
	return copyPost(&row.val), nil
}

func (s *MemoryStorage) CreatePost(_ context.Context, in *domain.InsertPost) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	post := domain.Post{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Tags:        in.NormalizedTags(),
		Price:       in.Price,
		CreatedAt:   s.now(),
	}
	s.posts[post.ID] = &memoryRow[domain.Post]{seq: s.seq, val: post}
	return copyPost(&post), nil
}

func (s *MemoryStorage) GetAllPromotions(_ context.Context, code string) ([]*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*memoryRow[domain.Promotion], 0, len(s.promotions))
	for _, row := range s.promotions {
		if code != "" && !row.val.MatchesCode(code) {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows, func(p *domain.Promotion) int64 { return p.CreatedAt.UnixNano() })

	promotions := make([]*domain.Promotion, 0, len(rows))
	for _, row := range rows {
		cp := row.val
		promotions = append(promotions, &cp)
	}
	return promotions, nil
}

func (s *MemoryStorage) GetPromotion(_ context.Context, id string) (*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.promotions[id]
	if !ok {
		return nil, errors.Wrap(domain.ErrNotFound, "get promotion")
	}
	cp := row.val
	return &cp, nil
}

func (s *MemoryStorage) CreatePromotion(_ context.Context, in *domain.InsertPromotion) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.promotions {
		if strings.EqualFold(row.val.Code, in.Code) {
			return nil, errors.Wrap(domain.ErrDuplicate, "create promotion")
		}
	}
	s.seq++
	promotion := domain.Promotion{
		ID:                 s.newID(),
		Code:               in.Code,
		Title:              in.Title,
		Description:        in.Description,
		DiscountPercentage: in.DiscountPercentage,
		ImageURL:           in.ImageURL,
		ValidUntil:         in.ValidUntil.UTC(),
		CreatedAt:          s.now(),
	}
	s.promotions[promotion.ID] = &memoryRow[domain.Promotion]{seq: s.seq, val: promotion}
	cp := promotion
	return &cp, nil
}

func (s *MemoryStorage) ResetCatalog(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make(map[string]*memoryRow[domain.Post])
	s.promotions = make(map[string]*memoryRow[domain.Promotion])
	return nil
}

func sortNewestFirst[T any](rows []*memoryRow[T], createdAt func(*T) int64) {
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := createdAt(&rows[i].val), createdAt(&rows[j].val)
		if ci != cj {
			return ci > cj
		}
		return rows[i].seq > rows[j].seq
	})
}

func copyPost(p *domain.Post) *domain.Post {
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	return &cp
}
