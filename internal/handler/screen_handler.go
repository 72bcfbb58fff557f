package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// ScreenServiceInterface は汎用CRUD画面のハンドラーが必要とするサービスインターフェース。
type ScreenServiceInterface interface {
	List(ctx context.Context, sc *screen.Screen, filter, parentID string) (*screen.ListResult, error)
	Get(ctx context.Context, sc *screen.Screen, id string) (repository.Row, error)
	Create(ctx context.Context, sc *screen.Screen, form url.Values, parentID string) (*screen.Result, error)
	Update(ctx context.Context, sc *screen.Screen, id string, form url.Values) (*screen.Result, error)
	Delete(ctx context.Context, sc *screen.Screen, id string) error
}

// ScreenHandler はカタログの全画面に共通のHTTPハンドラー。
type ScreenHandler struct {
	pages   *Pages
	catalog *screen.Catalog
	service ScreenServiceInterface
}

// NewScreenHandler はScreenHandlerを生成する。
func NewScreenHandler(pages *Pages, catalog *screen.Catalog, service ScreenServiceInterface) *ScreenHandler {
	return &ScreenHandler{pages: pages, catalog: catalog, service: service}
}

// List は一覧と作成・編集フォームを表示する。
// GET /{screen}?filter=...&parent=...&edit=...
func (h *ScreenHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := q.Get("filter")
	parentID := q.Get("parent")
	editID := q.Get("edit")
	ctx := r.Context()

	body := &view.ScreenBody{Screen: sc, Filter: filter}
	active := sc.Key

	if sc.Parent != nil {
		if parentID == "" {
			h.pages.redirect(w, r, "/"+sc.Parent.Screen, warningFlash("请先选择"+sc.Parent.Label))
			return
		}
		ref, err := h.parentRef(ctx, sc, parentID)
		if err != nil {
			h.pages.redirect(w, r, "/"+sc.Parent.Screen, errorFlash(toAPIError(err).Message))
			return
		}
		body.Parent = ref
		active = sc.Parent.Screen
	}
	if child, ok := h.catalog.ChildOf(sc.Key); ok {
		body.Child = &view.ChildRef{Key: child.Key, Title: child.Title}
	}

	result, err := h.service.List(ctx, sc, filter, parentID)
	if err != nil {
		body.LoadError = toAPIError(err)
	} else {
		body.Rows = result.Rows
		body.Summary = result.Summary
	}

	var editErr *model.APIError
	if editID != "" && sc.Can(screen.CapUpdate) {
		row, err := h.service.Get(ctx, sc, editID)
		if err != nil {
			editErr = toAPIError(err)
		} else {
			body.Editing = row
			body.EditingID = editID
		}
	}

	page := h.pages.page(w, r, active, body)
	if editErr != nil {
		page.Flashes = append(page.Flashes, errorFlash(editErr.Message))
	}
	h.pages.renderer.Render(w, http.StatusOK, view.PageScreen, page)
}

// Create はフォームの値で行を作成する。
// POST /{screen}
func (h *ScreenHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r, sc) {
		return
	}

	parentID := r.PostForm.Get("parent")
	back := listPath(sc, parentID)

	result, err := h.service.Create(r.Context(), sc, r.PostForm, parentID)
	if err != nil {
		h.pages.redirect(w, r, back, errorFlash("保存失败: "+toAPIError(err).Message))
		return
	}
	h.pages.redirect(w, r, back, savedFlashes(sc, result, true)...)
}

// Update は指定IDの行をフォームの値で更新する。失敗時は編集フォームに戻る。
// POST /{screen}/{id}
func (h *ScreenHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r, sc) {
		return
	}

	id := chi.URLParam(r, "id")
	parentID := r.PostForm.Get("parent")

	result, err := h.service.Update(r.Context(), sc, id, r.PostForm)
	if err != nil {
		h.pages.redirect(w, r, editPath(sc, parentID, id), errorFlash("保存失败: "+toAPIError(err).Message))
		return
	}
	h.pages.redirect(w, r, listPath(sc, parentID), savedFlashes(sc, result, false)...)
}

// Delete は指定IDの行を削除する。
// POST /{screen}/{id}/delete
func (h *ScreenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r, sc) {
		return
	}

	id := chi.URLParam(r, "id")
	back := listPath(sc, r.PostForm.Get("parent"))

	if err := h.service.Delete(r.Context(), sc, id); err != nil {
		h.pages.redirect(w, r, back, errorFlash("删除失败: "+toAPIError(err).Message))
		return
	}
	h.pages.redirect(w, r, back, successFlash(sc.DeleteMessage()))
}

// lookup はURLの画面キーから画面を引く。存在しない場合は404を描画する。
func (h *ScreenHandler) lookup(w http.ResponseWriter, r *http.Request) (*screen.Screen, bool) {
	key := chi.URLParam(r, "screen")
	sc, ok := h.catalog.Lookup(key)
	if !ok {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewScreenNotFoundError(key), defaultLandingPath)
		return nil, false
	}
	middleware.NoteScreen(r.Context(), sc.Key)
	return sc, true
}

func (h *ScreenHandler) parseForm(w http.ResponseWriter, r *http.Request, sc *screen.Screen) bool {
	if err := r.ParseForm(); err != nil {
		h.pages.renderError(w, r, http.StatusBadRequest,
			model.NewValidationError([]string{"请求格式无效"}), "/"+sc.Key)
		return false
	}
	return true
}

// parentRef は親画面の行を取得して表示用の参照を作る。
func (h *ScreenHandler) parentRef(ctx context.Context, sc *screen.Screen, parentID string) (*view.ParentRef, error) {
	parent, ok := h.catalog.Lookup(sc.Parent.Screen)
	if !ok {
		return nil, model.NewScreenNotFoundError(sc.Parent.Screen)
	}
	row, err := h.service.Get(ctx, parent, parentID)
	if err != nil {
		return nil, err
	}
	name := "-"
	if v, ok := row["name"]; ok && v != nil {
		name = fmt.Sprint(v)
	}
	return &view.ParentRef{ID: parentID, Label: sc.Parent.Label, Name: name, Path: "/" + parent.Key}, nil
}

// savedFlashes は保存成功時の通知を返す。外した項目があれば警告を加える。
func savedFlashes(sc *screen.Screen, result *screen.Result, creating bool) []view.Flash {
	flashes := []view.Flash{successFlash(sc.SavedMessage(creating))}
	if result != nil && len(result.Skipped) > 0 {
		flashes = append(flashes, warningFlash(result.Warning()))
	}
	return flashes
}

func listPath(sc *screen.Screen, parentID string) string {
	if parentID == "" {
		return "/" + sc.Key
	}
	return "/" + sc.Key + "?parent=" + url.QueryEscape(parentID)
}

func editPath(sc *screen.Screen, parentID, id string) string {
	v := url.Values{"edit": {id}}
	if parentID != "" {
		v.Set("parent", parentID)
	}
	return "/" + sc.Key + "?" + v.Encode()
}
