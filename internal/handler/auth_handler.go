// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/identity"
	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// SignInRecorder はサインイン結果を記録する。
type SignInRecorder interface {
	RecordSignIn(outcome string)
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	pages    *Pages
	wait     time.Duration
	recorder SignInRecorder
}

// NewAuthHandler はAuthHandlerを生成する。waitはガードの解決を待つ最大時間。
func NewAuthHandler(pages *Pages, wait time.Duration, recorder SignInRecorder) *AuthHandler {
	return &AuthHandler{pages: pages, wait: wait, recorder: recorder}
}

// Root はガードの状態に応じてログイン画面または既定の画面へ振り分ける。
// GET /
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	g, ok := middleware.GuardFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w, r)
		return
	}

	snap := middleware.WaitForGuard(r.Context(), g, h.wait)
	switch {
	case snap.Resolving():
		w.Header().Set("Retry-After", "1")
		h.pages.Loading(w, r)
	case snap.IsAdmin():
		http.Redirect(w, r, defaultLandingPath, http.StatusSeeOther)
	default:
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
	}
}

// LoginPage はログインフォームを表示する。管理者として解決済みの場合は遷移先へリダイレクトする。
// GET /login?next=/path
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	g, ok := middleware.GuardFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w, r)
		return
	}

	next := r.URL.Query().Get("next")
	snap := middleware.WaitForGuard(r.Context(), g, h.wait)
	switch {
	case snap.Resolving():
		w.Header().Set("Retry-After", "1")
		h.pages.Loading(w, r)
	case snap.IsAdmin():
		http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
	default:
		h.renderLogin(w, r, http.StatusOK, &view.LoginBody{Next: next})
	}
}

// Login はメールアドレスとパスワードでサインインする。
// 失敗時はプロバイダのメッセージをそのまま表示し、ガードの状態は変えない。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	g, ok := middleware.GuardFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, &view.LoginBody{Error: "请求格式无效"})
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	next := r.PostForm.Get("next")

	if err := g.SignIn(r.Context(), email, password); err != nil {
		h.record("failure")
		slog.Info("sign-in rejected", slog.String("error", err.Error()))
		h.renderLogin(w, r, http.StatusUnauthorized, &view.LoginBody{
			Next:  next,
			Email: email,
			Error: signInMessage(err),
		})
		return
	}

	h.record("success")
	h.pages.redirect(w, r, safeNext(next), successFlash("登录成功"))
}

// Logout はサインアウトする。失敗時は元の画面に戻り、エラーを通知する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	g, ok := middleware.GuardFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w, r)
		return
	}

	if err := g.SignOut(r.Context()); err != nil {
		slog.Warn("sign-out failed", slog.String("error", err.Error()))
		h.pages.redirect(w, r, backPath(r), errorFlash("退出登录失败: "+err.Error()))
		return
	}

	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, body *view.LoginBody) {
	h.pages.renderer.Render(w, status, view.PageLogin, h.pages.page(w, r, "", body))
}

func (h *AuthHandler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordSignIn(outcome)
	}
}

// signInMessage はサインイン失敗時に表示するメッセージを返す。
func signInMessage(err error) string {
	if ae, ok := identity.AsAuthError(err); ok && ae.Message != "" {
		return ae.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "登录失败"
}
