package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/liuyao-cms/internal/accounts"
	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// AccountServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// ListUsers は特権エンドポイントからユーザー一覧を取得する。
	ListUsers(ctx context.Context, accessToken string) ([]accounts.User, error)

	// UpdateRole はprofilesのロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	pages   *Pages
	service AccountServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(pages *Pages, service AccountServiceInterface) *UserHandler {
	return &UserHandler{pages: pages, service: service}
}

// List はユーザー一覧を表示する。取得に失敗した場合は空の一覧とエラーを表示する。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	body := &view.UsersBody{Roles: accounts.RoleOptions}

	token := ""
	if snap, ok := middleware.SnapshotFromContext(r.Context()); ok && snap.Session != nil {
		token = snap.Session.AccessToken
	}
	if token == "" {
		body.LoadError = model.NewUpstreamError("未登录，请先登录")
	} else {
		users, err := h.service.ListUsers(r.Context(), token)
		if err != nil {
			body.LoadError = toAPIError(err)
		} else {
			body.Users = users
		}
	}

	h.pages.renderer.Render(w, http.StatusOK, view.PageUsers, h.pages.page(w, r, usersMenuKey, body))
}

// UpdateRole はユーザーのロールを変更する。
// POST /users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pages.redirect(w, r, "/"+usersMenuKey, errorFlash("请求格式无效"))
		return
	}

	id := chi.URLParam(r, "id")
	role := model.Role(r.PostForm.Get("role"))

	if err := h.service.UpdateRole(r.Context(), id, role); err != nil {
		h.pages.redirect(w, r, "/"+usersMenuKey, errorFlash("更新失败: "+toAPIError(err).Message))
		return
	}
	h.pages.redirect(w, r, "/"+usersMenuKey, successFlash("更新成功"))
}
