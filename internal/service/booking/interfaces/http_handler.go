package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staybook/internal/service/booking/application"
	"staybook/internal/service/booking/domain"
)

// BookingHandler 封装了 booking 服务的 HTTP 处理器
type BookingHandler struct {
	service *application.BookingService
	auth    *Authenticator
	hub     *Hub
	health  domain.HealthChecker
}

// NewBookingHandler 创建一个新的 HTTP 处理器实例。hub 为 nil 时不提供 /api/events。
func NewBookingHandler(service *application.BookingService, auth *Authenticator, hub *Hub, health domain.HealthChecker) *BookingHandler {
	return &BookingHandler{service: service, auth: auth, hub: hub, health: health}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *BookingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /readyz", h.readyHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/login", h.auth.Login)
	mux.HandleFunc("GET /api/logout", h.auth.Logout)

	mux.HandleFunc("GET /api/auth/user", h.auth.RequireAuth(h.getCurrentUserHandler))
	mux.HandleFunc("PATCH /api/profile", h.auth.RequireAuth(h.updateProfileHandler))
	mux.HandleFunc("DELETE /api/profile", h.auth.RequireAuth(h.deleteProfileHandler))

	mux.HandleFunc("GET /api/posts", h.auth.RequireAuth(h.listPostsHandler))
	mux.HandleFunc("GET /api/posts/{id}", h.auth.RequireAuth(h.getPostHandler))
	mux.HandleFunc("POST /api/posts", h.auth.RequireAuth(h.createPostHandler))

	mux.HandleFunc("GET /api/promotions", h.auth.RequireAuth(h.listPromotionsHandler))
	mux.HandleFunc("GET /api/promotions/{id}", h.auth.RequireAuth(h.getPromotionHandler))
	mux.HandleFunc("POST /api/promotions", h.auth.RequireAuth(h.createPromotionHandler))

	if h.hub != nil {
		mux.HandleFunc("GET /api/events", h.auth.RequireAuth(h.hub.ServeWS))
	}
}

func (h *BookingHandler) readyHandler(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func currentUserID(r *http.Request) string {
	claims, _ := ClaimsFromContext(r.Context())
	return claims.Sub
}

// --- 用户 ---

func (h *BookingHandler) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), currentUserID(r))
	if err != nil {
		writeFailure(w, r, err, failure{notFound: "User not found", internal: "Failed to fetch user"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *BookingHandler) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	f := failure{notFound: "User not found", invalid: "Invalid profile data", internal: "Failed to update profile"}
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), currentUserID(r), body)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *BookingHandler) deleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context(), currentUserID(r)); err != nil {
		writeFailure(w, r, err, failure{internal: "Failed to delete account"})
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted successfully")
}

// --- 客房 ---

func (h *BookingHandler) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeFailure(w, r, err, failure{internal: "Failed to fetch posts"})
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *BookingHandler) getPostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err, failure{notFound: "Post not found", internal: "Failed to fetch post"})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *BookingHandler) createPostHandler(w http.ResponseWriter, r *http.Request) {
	f := failure{invalid: "Invalid post data", internal: "Failed to create post"}
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	post, err := h.service.CreatePost(r.Context(), body)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// --- 促销 ---

func (h *BookingHandler) listPromotionsHandler(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.service.ListPromotions(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeFailure(w, r, err, failure{internal: "Failed to fetch promotions"})
		return
	}
	writeJSON(w, http.StatusOK, promotions)
}

func (h *BookingHandler) getPromotionHandler(w http.ResponseWriter, r *http.Request) {
	promotion, err := h.service.GetPromotion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err, failure{notFound: "Promotion not found", internal: "Failed to fetch promotion"})
		return
	}
	writeJSON(w, http.StatusOK, promotion)
}

func (h *BookingHandler) createPromotionHandler(w http.ResponseWriter, r *http.Request) {
	f := failure{
		invalid:   "Invalid promotion data",
		duplicate: "code already exists",
		internal:  "Failed to create promotion",
	}
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	promotion, err := h.service.CreatePromotion(r.Context(), body)
	if err != nil {
		writeFailure(w, r, err, f)
		return
	}
	writeJSON(w, http.StatusCreated, promotion)
}
