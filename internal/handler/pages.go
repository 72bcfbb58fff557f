package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/liuyao-cms/internal/guard"
	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/screen"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// Renderer はページを描画する。
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page *view.Page)
}

// usersMenuKey はユーザー管理画面のメニューキー。
const usersMenuKey = "users"

// usersMenuAfter の直後にユーザー管理をメニューへ挿入する。
const usersMenuAfter = "comments"

// Pages は全ページに共通の描画処理を提供する。
// middleware.GuardPages を実装する。
type Pages struct {
	renderer     Renderer
	menu         []view.MenuItem
	cookieSecure bool
}

// NewPages はPagesを生成する。メニューは画面カタログから組み立てる。
func NewPages(renderer Renderer, catalog *screen.Catalog, cookieSecure bool) *Pages {
	var menu []view.MenuItem
	users := view.MenuItem{Key: usersMenuKey, Title: "用户管理", Path: "/" + usersMenuKey}
	inserted := false
	for _, s := range catalog.Menu() {
		menu = append(menu, view.MenuItem{Key: s.Key, Title: s.Title, Path: "/" + s.Key})
		if s.Key == usersMenuAfter {
			menu = append(menu, users)
			inserted = true
		}
	}
	if !inserted {
		menu = append(menu, users)
	}
	return &Pages{renderer: renderer, menu: menu, cookieSecure: cookieSecure}
}

// Menu はメニュー項目を返す。
func (p *Pages) Menu() []view.MenuItem {
	return p.menu
}

// page は共通データを埋めたPageを生成する。管理者判定を通過したリクエストにだけメニューを付ける。
func (p *Pages) page(w http.ResponseWriter, r *http.Request, active string, body any) *view.Page {
	page := &view.Page{
		Active:    active,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Flashes:   popFlashes(w, r, p.cookieSecure),
		Body:      body,
	}
	if snap, ok := middleware.SnapshotFromContext(r.Context()); ok {
		page.Menu = p.menu
		page.Email = snap.Email()
	}
	return page
}

// Loading は判定中の画面を描画する。
func (p *Pages) Loading(w http.ResponseWriter, r *http.Request) {
	p.renderer.Render(w, http.StatusServiceUnavailable, view.PageLoading, p.page(w, r, "", nil))
}

// Denied は管理者でない利用者に権限不足の画面を描画する。
func (p *Pages) Denied(w http.ResponseWriter, r *http.Request, snap guard.Snapshot) {
	body := &view.DeniedBody{Email: snap.Email(), Role: model.RoleUser}
	p.renderer.Render(w, http.StatusForbidden, view.PageDenied, p.page(w, r, "", body))
}

// renderError はエラー画面を描画する。
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError, back string) {
	body := &view.ErrorBody{Status: status, Err: apiErr, Back: back}
	p.renderer.Render(w, status, view.PageError, p.page(w, r, "", body))
}

// redirect は通知を保存して303でリダイレクトする（Post/Redirect/Get）。
func (p *Pages) redirect(w http.ResponseWriter, r *http.Request, path string, flashes ...view.Flash) {
	setFlashes(w, p.cookieSecure, flashes)
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// toAPIError はサービスのエラーを表示用のAPIErrorにする。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewStoreError(err.Error())
}

// defaultLandingPath はログイン後の既定の遷移先。
const defaultLandingPath = "/modules"

// safeNext はログイン後の遷移先として安全なローカルパスを返す。
// スキーム・ホスト付き、"//"始まり、ログイン画面自身の場合は既定の遷移先にする。
func safeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return defaultLandingPath
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return defaultLandingPath
	}
	if u.Path == middleware.LoginPath {
		return defaultLandingPath
	}
	return u.RequestURI()
}

// backPath はRefererが同一ホストの場合にそのパスを返す。それ以外は"/"。
func backPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	if u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return u.RequestURI()
}
