package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

func newTestScreenHandler(renderer *mockRenderer, svc ScreenServiceInterface) *ScreenHandler {
	return NewScreenHandler(newTestPages(renderer), screen.DefaultCatalog(), svc)
}

func screenRequest(method, target string, params map[string]string) *http.Request {
	return asAdmin(withRouteParams(httptest.NewRequest(method, target, nil), params))
}

// --- GET /{screen} テスト ---

func TestScreenHandler_List_UnknownScreenReturns404(t *testing.T) {
	renderer := &mockRenderer{}
	h := newTestScreenHandler(renderer, &mockScreenService{})

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/nope", map[string]string{"screen": "nope"}))

	if renderer.status != http.StatusNotFound || renderer.name != view.PageError {
		t.Fatalf("rendered %q (%d), want error (404)", renderer.name, renderer.status)
	}
	body := renderer.page.Body.(*view.ErrorBody)
	if body.Err.Code != model.ErrCodeScreenNotFound {
		t.Errorf("code = %q", body.Err.Code)
	}
}

func TestScreenHandler_List_RendersRowsSummaryAndChild(t *testing.T) {
	renderer := &mockRenderer{}
	var gotFilter string
	svc := &mockScreenService{
		listFn: func(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error) {
			gotFilter = filter
			return &screen.ListResult{
				Rows:    []repository.Row{{"id": "m1", "name": "张三"}},
				Summary: []screen.SummaryValue{{Label: "总数", Value: 1, Count: true}},
			}, nil
		},
	}
	h := newTestScreenHandler(renderer, svc)

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/masters?filter=all", map[string]string{"screen": "masters"}))

	if renderer.status != http.StatusOK || renderer.name != view.PageScreen {
		t.Fatalf("rendered %q (%d)", renderer.name, renderer.status)
	}
	if gotFilter != "all" {
		t.Errorf("filter = %q, want all", gotFilter)
	}
	body := renderer.page.Body.(*view.ScreenBody)
	if len(body.Rows) != 1 || len(body.Summary) != 1 {
		t.Errorf("rows/summary = %d/%d", len(body.Rows), len(body.Summary))
	}
	if body.Child == nil || body.Child.Key != "master-services" {
		t.Errorf("child = %+v, want master-services", body.Child)
	}
	if renderer.page.Active != "masters" {
		t.Errorf("active = %q", renderer.page.Active)
	}
}

func TestScreenHandler_List_LoadErrorKeepsNoRows(t *testing.T) {
	renderer := &mockRenderer{}
	svc := &mockScreenService{
		listFn: func(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error) {
			return nil, model.NewMissingTableError("modules", screen.MigrationModules)
		},
	}
	h := newTestScreenHandler(renderer, svc)

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/modules", map[string]string{"screen": "modules"}))

	body := renderer.page.Body.(*view.ScreenBody)
	if body.LoadError == nil || body.LoadError.Code != model.ErrCodeSchemaMismatch {
		t.Errorf("LoadError = %+v", body.LoadError)
	}
	if body.Rows != nil {
		t.Errorf("rows should be empty on load error, got %v", body.Rows)
	}
}

func TestScreenHandler_List_ChildWithoutParentRedirects(t *testing.T) {
	h := newTestScreenHandler(&mockRenderer{}, &mockScreenService{})

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/master-services", map[string]string{"screen": "master-services"}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if got := w.Header().Get("Location"); got != "/masters" {
		t.Errorf("Location = %q, want /masters", got)
	}
	flashes := flashesFrom(t, w)
	if len(flashes) != 1 || flashes[0].Message != "请先选择卦师" {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestScreenHandler_List_ChildWithParentShowsParentRef(t *testing.T) {
	renderer := &mockRenderer{}
	var listedParent string
	svc := &mockScreenService{
		getFn: func(ctx context.Context, sc *screen.Screen, id string) (repository.Row, error) {
			if sc.Key != "masters" {
				t.Errorf("parent lookup on %q", sc.Key)
			}
			return repository.Row{"id": id, "name": "李大师"}, nil
		},
		listFn: func(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error) {
			listedParent = parentID
			return &screen.ListResult{}, nil
		},
	}
	h := newTestScreenHandler(renderer, svc)

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/master-services?parent=m1", map[string]string{"screen": "master-services"}))

	body := renderer.page.Body.(*view.ScreenBody)
	if body.Parent == nil || body.Parent.Name != "李大师" || body.Parent.Path != "/masters" {
		t.Errorf("parent = %+v", body.Parent)
	}
	if listedParent != "m1" {
		t.Errorf("list parent = %q, want m1", listedParent)
	}
	if renderer.page.Active != "masters" {
		t.Errorf("active = %q, want masters", renderer.page.Active)
	}
}

func TestScreenHandler_List_EditLoadsRow(t *testing.T) {
	renderer := &mockRenderer{}
	h := newTestScreenHandler(renderer, &mockScreenService{})

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/modules?edit=mod-1", map[string]string{"screen": "modules"}))

	body := renderer.page.Body.(*view.ScreenBody)
	if body.EditingID != "mod-1" || body.Editing["id"] != "mod-1" {
		t.Errorf("editing = %q %v", body.EditingID, body.Editing)
	}
}

func TestScreenHandler_List_EditMissingRowShowsError(t *testing.T) {
	renderer := &mockRenderer{}
	svc := &mockScreenService{
		getFn: func(ctx context.Context, sc *screen.Screen, id string) (repository.Row, error) {
			return nil, model.NewRowNotFoundError(sc.Table, id)
		},
	}
	h := newTestScreenHandler(renderer, svc)

	w := httptest.NewRecorder()
	h.List(w, screenRequest(http.MethodGet, "/modules?edit=gone", map[string]string{"screen": "modules"}))

	body := renderer.page.Body.(*view.ScreenBody)
	if body.Editing != nil {
		t.Error("editing should be empty when the row is missing")
	}
	if len(renderer.page.Flashes) != 1 || renderer.page.Flashes[0].Kind != view.FlashError {
		t.Errorf("flashes = %+v", renderer.page.Flashes)
	}
}

// --- POST /{screen} テスト ---

func TestScreenHandler_Create_SuccessWithSkippedFieldsWarns(t *testing.T) {
	var gotParent string
	var gotName string
	svc := &mockScreenService{
		createFn: func(ctx context.Context, sc *screen.Screen, form url.Values, parentID string) (*screen.Result, error) {
			gotParent = parentID
			gotName = form.Get("name")
			return &screen.Result{Skipped: []string{"服务时长"}}, nil
		},
	}
	h := newTestScreenHandler(&mockRenderer{}, svc)

	form := url.Values{"name": {"六爻详批"}, "parent": {"m1"}}
	req := asAdmin(withRouteParams(postForm("/master-services", form), map[string]string{"screen": "master-services"}))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if got := w.Header().Get("Location"); got != "/master-services?parent=m1" {
		t.Errorf("Location = %q", got)
	}
	if gotParent != "m1" || gotName != "六爻详批" {
		t.Errorf("parent/name = %q/%q", gotParent, gotName)
	}
	flashes := flashesFrom(t, w)
	if len(flashes) != 2 {
		t.Fatalf("flashes = %+v", flashes)
	}
	if flashes[0].Kind != view.FlashSuccess || flashes[0].Message != "服务项目创建成功" {
		t.Errorf("success flash = %+v", flashes[0])
	}
	if flashes[1].Kind != view.FlashWarning {
		t.Errorf("warning flash = %+v", flashes[1])
	}
}

func TestScreenHandler_Create_ErrorFlashesBackendMessage(t *testing.T) {
	svc := &mockScreenService{
		createFn: func(ctx context.Context, sc *screen.Screen, form url.Values, parentID string) (*screen.Result, error) {
			return nil, model.NewDuplicateError("模块名已存在")
		},
	}
	h := newTestScreenHandler(&mockRenderer{}, svc)

	req := asAdmin(withRouteParams(postForm("/modules", url.Values{"name": {"x"}}), map[string]string{"screen": "modules"}))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if got := w.Header().Get("Location"); got != "/modules" {
		t.Errorf("Location = %q", got)
	}
	flashes := flashesFrom(t, w)
	if len(flashes) != 1 || flashes[0].Message != "保存失败: 模块名已存在" {
		t.Errorf("flashes = %+v", flashes)
	}
}

// --- POST /{screen}/{id} テスト ---

func TestScreenHandler_Update_ErrorReturnsToEditForm(t *testing.T) {
	svc := &mockScreenService{
		updateFn: func(ctx context.Context, sc *screen.Screen, id string, form url.Values) (*screen.Result, error) {
			return nil, model.NewMissingColumnError("question_min_length", screen.MigrationServiceColumns)
		},
	}
	h := newTestScreenHandler(&mockRenderer{}, svc)

	req := asAdmin(withRouteParams(postForm("/master-services/s1", url.Values{"parent": {"m1"}}),
		map[string]string{"screen": "master-services", "id": "s1"}))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if got := w.Header().Get("Location"); got != "/master-services?edit=s1&parent=m1" {
		t.Errorf("Location = %q", got)
	}
	flashes := flashesFrom(t, w)
	if len(flashes) != 1 || flashes[0].Kind != view.FlashError {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestScreenHandler_Update_SuccessUsesScreenMessage(t *testing.T) {
	var gotID string
	svc := &mockScreenService{
		updateFn: func(ctx context.Context, sc *screen.Screen, id string, form url.Values) (*screen.Result, error) {
			gotID = id
			return &screen.Result{}, nil
		},
	}
	h := newTestScreenHandler(&mockRenderer{}, svc)

	req := asAdmin(withRouteParams(postForm("/risk-control/v1", url.Values{"is_resolved": {"true"}}),
		map[string]string{"screen": "risk-control", "id": "v1"}))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if gotID != "v1" {
		t.Errorf("id = %q", gotID)
	}
	if got := w.Header().Get("Location"); got != "/risk-control" {
		t.Errorf("Location = %q", got)
	}
	flashes := flashesFrom(t, w)
	if len(flashes) != 1 || flashes[0].Message != "已标记为已处理" {
		t.Errorf("flashes = %+v", flashes)
	}
}

// --- POST /{screen}/{id}/delete テスト ---

func TestScreenHandler_Delete(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    view.FlashKind
		message string
	}{
		{"success", nil, view.FlashSuccess, "删除成功"},
		{"store error", model.NewStoreError("update or delete on table \"posts\" violates foreign key constraint"),
			view.FlashError, "删除失败: update or delete on table \"posts\" violates foreign key constraint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockScreenService{
				deleteFn: func(ctx context.Context, sc *screen.Screen, id string) error { return tt.err },
			}
			h := newTestScreenHandler(&mockRenderer{}, svc)

			req := asAdmin(withRouteParams(postForm("/posts/p1/delete", url.Values{}),
				map[string]string{"screen": "posts", "id": "p1"}))
			w := httptest.NewRecorder()
			h.Delete(w, req)

			if got := w.Header().Get("Location"); got != "/posts" {
				t.Errorf("Location = %q", got)
			}
			flashes := flashesFrom(t, w)
			if len(flashes) != 1 || flashes[0].Kind != tt.kind || flashes[0].Message != tt.message {
				t.Errorf("flashes = %+v", flashes)
			}
		})
	}
}
