package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"staybook/internal/pkg/bootstrap"
	"staybook/internal/pkg/logger"
	"staybook/internal/service/booking/application"
	"staybook/internal/service/booking/domain"
)

type claimsKey struct{}

// IDTokenClaims 是身份提供方签发的 id_token 载荷
type IDTokenClaims struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
	jwt.RegisteredClaims
}

// Authenticator 管理会话 cookie：登录时校验身份令牌并建立会话，之后每个请求都按 cookie 查会话
type Authenticator struct {
	sessions domain.SessionStore
	service  *application.BookingService
	config   func() bootstrap.AuthConfig
	now      func() time.Time
}

// NewAuthenticator 每次请求都通过 config 读取最新的认证配置
func NewAuthenticator(sessions domain.SessionStore, service *application.BookingService, config func() bootstrap.AuthConfig) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		service:  service,
		config:   config,
		now:      time.Now,
	}
}

// ClaimsFromContext 取出 RequireAuth 放入的身份
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(domain.Claims)
	return claims, ok
}

// RequireAuth 拒绝没有有效会话的请求
func (a *Authenticator) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.sessionFromRequest(r)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) {
				logger.Ctx(r.Context()).Error().Err(err).Msg("failed to load session")
			}
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, sess.Claims)
		next(w, r.WithContext(ctx))
	}
}

func (a *Authenticator) sessionFromRequest(r *http.Request) (*domain.Session, error) {
	cookie, err := r.Cookie(a.config().CookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrUnauthorized
	}
	sess, err := a.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if sess.IsExpired(a.now()) || sess.Claims.Sub == "" {
		return nil, domain.ErrUnauthorized
	}
	return sess, nil
}

// VerifyIDToken 校验 HS256 签名、过期时间和签发方
func (a *Authenticator) VerifyIDToken(raw string) (domain.Claims, error) {
	cfg := a.config()
	if cfg.IDTokenSecret == "" {
		return domain.Claims{}, errors.New("id token secret is not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if cfg.IDTokenIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.IDTokenIssuer))
	}

	var tc IDTokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.IDTokenSecret), nil
	}, opts...)
	if err != nil {
		return domain.Claims{}, errors.Wrap(domain.ErrUnauthorized, err.Error())
	}
	if tc.Subject == "" {
		return domain.Claims{}, errors.Wrap(domain.ErrUnauthorized, "id token has no subject")
	}
	return domain.Claims{
		Sub:             tc.Subject,
		Email:           tc.Email,
		FirstName:       tc.FirstName,
		LastName:        tc.LastName,
		ProfileImageURL: tc.ProfileImageURL,
	}, nil
}

// Login 处理身份提供方的回跳：GET /api/login?id_token=...
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := a.config()

	raw := r.URL.Query().Get("id_token")
	if raw == "" {
		if cfg.LoginURL != "" {
			http.Redirect(w, r, cfg.LoginURL, http.StatusFound)
			return
		}
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	claims, err := a.VerifyIDToken(raw)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			logger.Ctx(ctx).Warn().Err(err).Msg("rejected id token")
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeFailure(w, r, err, failure{internal: "Failed to sign in"})
		return
	}

	if _, err := a.service.SignIn(ctx, claims); err != nil {
		writeFailure(w, r, err, failure{internal: "Failed to sign in"})
		return
	}

	sess := &domain.Session{
		SID:    uuid.New().String(),
		Claims: claims,
		Expire: a.now().Add(cfg.SessionTTL).UTC(),
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		writeFailure(w, r, err, failure{internal: "Failed to sign in"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sess.SID,
		Path:     "/",
		Expires:  sess.Expire,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout 销毁会话并清除 cookie。没有会话时同样跳转。
func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) {
	cfg := a.config()
	if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
		if err := a.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			logger.Ctx(r.Context()).Error().Err(err).Msg("failed to destroy session")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}
