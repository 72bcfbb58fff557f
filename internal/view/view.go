// Package view はサーバーサイドレンダリングのHTMLテンプレートを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名
const (
	PageLogin   = "login"
	PageLoading = "loading"
	PageDenied  = "denied"
	PageScreen  = "screen"
	PageUsers   = "users"
	PageError   = "error"
)

var pageNames = []string{PageLogin, PageLoading, PageDenied, PageScreen, PageUsers, PageError}

// AppTitle はコンソールの名称。
const AppTitle = "六爻占卜 CMS 管理系统"

// MenuItem はサイドメニューの項目。
type MenuItem struct {
	Key   string
	Title string
	Path  string
}

// FlashKind は通知の種類。
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash はリダイレクト後に一度だけ表示する通知。
type Flash struct {
	Kind    FlashKind `json:"k"`
	Message string    `json:"m"`
}

// Page はすべてのページに共通のデータ。Bodyにページ固有のデータを入れる。
type Page struct {
	Title     string
	Menu      []MenuItem
	Active    string
	Email     string
	CSRFToken string
	Flashes   []Flash
	Body      any
}

// Renderer はページ名ごとに組み立て済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// New はテンプレートを読み込んでRendererを生成する。
func New() (*Renderer, error) {
	funcs := sprig.FuncMap()
	for name, fn := range helperFuncs() {
		funcs[name] = fn
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render はページを描画してステータスコードとともに書き込む。
// 描画に失敗した場合は500を返す。
func (v *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) {
	t, ok := v.pages[name]
	if !ok {
		slog.Error("unknown page", slog.String("page", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if page.Title == "" {
		page.Title = AppTitle
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", page); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
