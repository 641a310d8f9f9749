// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"staybook/internal/service/booking/domain"
)

var (
	// ErrNotFound 详情接口返回 404
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized 会话失效，调用方应跳转到 LoginURL()
	ErrUnauthorized = errors.New("session is no longer valid")
)

const userPath = "/api/auth/user"

// sharedReadTimeout 限制被多个调用方共享的读请求，它不跟随任何一个调用方的取消
const sharedReadTimeout = 30 * time.Second

// StatusError 是除 401/404 以外的非 2xx 响应
type StatusError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Client 是 booking REST 接口的可追踪客户端。
// 读请求按 path?query 缓存，并发的相同读请求只发一次，写请求成功后失效相关缓存。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client

	baseURL  *url.URL
	loginURL string
	cookies  []*http.Cookie

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string][]byte
	// gen 在每次失效时递增，失效前发出的请求结果不会写回缓存
	gen uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithSessionCookie 让每个请求都带上登录会话
func WithSessionCookie(cookie *http.Cookie) Option {
	return func(c *Client) { c.cookies = append(c.cookies, cookie) }
}

// WithLoginURL 覆盖默认的登录入口 /api/login
func WithLoginURL(u string) Option {
	return func(c *Client) { c.loginURL = u }
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	c := &Client{
		Tracer: tracer,
		// 不设置 Timeout，让每次请求完全受控于传入的 context
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		baseURL: u,
		cache:   make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loginURL == "" {
		c.loginURL = u.ResolveReference(&url.URL{Path: "/api/login"}).String()
	}
	return c, nil
}

// LoginURL 收到 ErrUnauthorized 后应当跳转的地址
func (c *Client) LoginURL() string {
	return c.loginURL
}

// --- 读接口 ---

func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, userPath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPosts tag 为空时返回全部
func (c *Client) ListPosts(ctx context.Context, tag string) ([]domain.Post, error) {
	posts := []domain.Post{}
	if err := c.get(ctx, "/api/posts", filter("tag", tag), &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := c.get(ctx, "/api/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPromotions code 为空时返回全部
func (c *Client) ListPromotions(ctx context.Context, code string) ([]Promotion, error) {
	promotions := []Promotion{}
	if err := c.get(ctx, "/api/promotions", filter("code", code), &promotions); err != nil {
		return nil, err
	}
	if promotions == nil {
		promotions = []Promotion{}
	}
	return promotions, nil
}

func (c *Client) GetPromotion(ctx context.Context, id string) (*Promotion, error) {
	var promotion Promotion
	if err := c.get(ctx, "/api/promotions/"+url.PathEscape(id), nil, &promotion); err != nil {
		return nil, err
	}
	return &promotion, nil
}

// Promotion 附带服务端计算的 expired 标记
type Promotion struct {
	domain.Promotion
	Expired bool `json:"expired"`
}

// --- 写接口 ---

// UpdateProfile 成功后失效当前用户缓存
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	data, err := c.do(ctx, http.MethodPatch, "/api/profile", nil, update)
	if err != nil {
		return nil, err
	}
	c.Invalidate(userPath)
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	return &user, nil
}

// DeleteProfile 成功后清空全部缓存
func (c *Client) DeleteProfile(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodDelete, "/api/profile", nil, nil); err != nil {
		return err
	}
	c.InvalidateAll()
	return nil
}

func (c *Client) CreatePost(ctx context.Context, in *domain.InsertPost) (*domain.Post, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/posts", nil, in)
	if err != nil {
		return nil, err
	}
	c.Invalidate("/api/posts?")
	var post domain.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, errors.Wrap(err, "decode post")
	}
	return &post, nil
}

func (c *Client) CreatePromotion(ctx context.Context, in *domain.InsertPromotion) (*Promotion, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/promotions", nil, in)
	if err != nil {
		return nil, err
	}
	c.Invalidate("/api/promotions?")
	var promotion Promotion
	if err := json.Unmarshal(data, &promotion); err != nil {
		return nil, errors.Wrap(err, "decode promotion")
	}
	return &promotion, nil
}

// --- 缓存 ---

// Invalidate 删除所有以 prefix 开头的缓存项
func (c *Client) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
}

func (c *Client) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache = make(map[string][]byte)
}

// Cached 报告某个读请求的结果是否在缓存中
func (c *Client) Cached(path string, query url.Values) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[cacheKey(path, query)]
	return ok
}

func cacheKey(path string, query url.Values) string {
	return path + "?" + query.Encode()
}

func filter(key, value string) url.Values {
	if value == "" {
		return nil
	}
	return url.Values{key: []string{value}}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst interface{}) error {
	key := cacheKey(path, query)

	c.mu.RLock()
	data, ok := c.cache[key]
	gen := c.gen
	c.mu.RUnlock()

	if !ok {
		// 共享请求脱离发起者的取消，每个调用方只按自己的 ctx 放弃等待
		ch := c.group.DoChan(key, func() (interface{}, error) {
			reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
			defer cancel()
			body, err := c.do(reqCtx, http.MethodGet, path, query, nil)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			if c.gen == gen {
				c.cache[key] = body
			}
			c.mu.Unlock()
			return body, nil
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
			data = res.Val.([]byte)
		}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// do 发出一个带追踪上下文的请求，并把状态码翻译成错误
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("%s %s", method, path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", target.String()),
		attribute.String("http.method", method),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "read response body")
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.InvalidateAll()
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		serr := &StatusError{StatusCode: resp.StatusCode}
		var msg struct {
			Message string   `json:"message"`
			Errors  []string `json:"errors"`
		}
		if json.Unmarshal(data, &msg) == nil {
			serr.Message = msg.Message
			serr.Errors = msg.Errors
		}
		if serr.Message == "" {
			serr.Message = resp.Status
		}
		span.RecordError(serr)
		if resp.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, serr.Error())
		}
		return nil, serr
	}
	return data, nil
}
