package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/liuyao-cms/internal/accounts"
	"github.com/hitoshi/liuyao-cms/internal/guard"
	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// --- モック定義 ---

// fakeGuard は固定の状態を返すガード。
type fakeGuard struct {
	snap guard.Snapshot

	signInFn  func(ctx context.Context, email, password string) error
	signOutFn func(ctx context.Context) error
}

func (g *fakeGuard) Snapshot() guard.Snapshot                        { return g.snap }
func (g *fakeGuard) WaitResolved(ctx context.Context) guard.Snapshot { return g.snap }

func (g *fakeGuard) SignIn(ctx context.Context, email, password string) error {
	if g.signInFn != nil {
		return g.signInFn(ctx, email, password)
	}
	return nil
}

func (g *fakeGuard) SignOut(ctx context.Context) error {
	if g.signOutFn != nil {
		return g.signOutFn(ctx)
	}
	return nil
}

// mockRenderer は描画されたページを記録する。
type mockRenderer struct {
	status int
	name   string
	page   *view.Page
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, name string, page *view.Page) {
	m.status = status
	m.name = name
	m.page = page
	w.WriteHeader(status)
}

// mockScreenService はScreenServiceInterfaceのモック実装。
type mockScreenService struct {
	listFn   func(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error)
	getFn    func(ctx context.Context, sc *screen.Screen, id string) (repository.Row, error)
	createFn func(ctx context.Context, sc *screen.Screen, form url.Values, parentID string) (*screen.Result, error)
	updateFn func(ctx context.Context, sc *screen.Screen, id string, form url.Values) (*screen.Result, error)
	deleteFn func(ctx context.Context, sc *screen.Screen, id string) error
}

func (m *mockScreenService) List(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, sc, filter, parentID)
	}
	return &screen.ListResult{}, nil
}

func (m *mockScreenService) Get(ctx context.Context, sc *screen.Screen, id string) (repository.Row, error) {
	if m.getFn != nil {
		return m.getFn(ctx, sc, id)
	}
	return repository.Row{"id": id}, nil
}

func (m *mockScreenService) Create(ctx context.Context, sc *screen.Screen, form url.Values, parentID string) (*screen.Result, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sc, form, parentID)
	}
	return &screen.Result{}, nil
}

func (m *mockScreenService) Update(ctx context.Context, sc *screen.Screen, id string, form url.Values) (*screen.Result, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, sc, id, form)
	}
	return &screen.Result{}, nil
}

func (m *mockScreenService) Delete(ctx context.Context, sc *screen.Screen, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, sc, id)
	}
	return nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	listUsersFn  func(ctx context.Context, accessToken string) ([]accounts.User, error)
	updateRoleFn func(ctx context.Context, id string, role model.Role) error
}

func (m *mockAccountService) ListUsers(ctx context.Context, accessToken string) ([]accounts.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, accessToken)
	}
	return []accounts.User{}, nil
}

func (m *mockAccountService) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, id, role)
	}
	return nil
}

// mockSignInRecorder はサインイン結果を記録する。
type mockSignInRecorder struct {
	outcomes []string
}

func (m *mockSignInRecorder) RecordSignIn(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// --- ヘルパー ---

func adminSnapshot() guard.Snapshot {
	return guard.Snapshot{
		State:    guard.StateAuthenticatedAdmin,
		Identity: &model.CallerIdentity{ID: "u2", Email: "admin@example.com"},
		Session:  &model.Session{AccessToken: "token-u2", User: model.CallerIdentity{ID: "u2"}},
	}
}

func userSnapshot() guard.Snapshot {
	return guard.Snapshot{
		State:    guard.StateAuthenticatedUser,
		Identity: &model.CallerIdentity{ID: "u1", Email: "user@example.com"},
	}
}

func newTestPages(renderer Renderer) *Pages {
	return NewPages(renderer, screen.DefaultCatalog(), false)
}

// withGuard はガードをコンテキストに注入したリクエストを返す。
func withGuard(req *http.Request, g middleware.Guard) *http.Request {
	return req.WithContext(middleware.ContextWithGuard(req.Context(), g))
}

// asAdmin は管理者判定を通過したリクエストを返す。
func asAdmin(req *http.Request) *http.Request {
	return req.WithContext(middleware.ContextWithSnapshot(req.Context(), adminSnapshot()))
}

// withRouteParams はchiのURLパラメータを設定したリクエストを返す。
func withRouteParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// flashesFrom はレスポンスで設定された通知を取り出す。
func flashesFrom(t *testing.T, w *httptest.ResponseRecorder) []view.Flash {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name != flashCookieName || c.Value == "" {
			continue
		}
		data, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			t.Fatalf("flash cookie is not base64: %v", err)
		}
		var flashes []view.Flash
		if err := json.Unmarshal(data, &flashes); err != nil {
			t.Fatalf("flash cookie is not JSON: %v", err)
		}
		return flashes
	}
	return nil
}
