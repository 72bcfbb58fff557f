package view

import (
	"github.com/hitoshi/liuyao-cms/internal/accounts"
	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
)

// LoginBody はログイン画面のデータ。
type LoginBody struct {
	Next  string
	Email string
	Error string
}

// DeniedBody は権限不足画面のデータ。
type DeniedBody struct {
	Email string
	Role  model.Role
}

// ErrorBody はエラー画面のデータ。
type ErrorBody struct {
	Status int
	Err    *model.APIError
	Back   string
}

// ParentRef は親画面の行への参照。
type ParentRef struct {
	ID    string
	Label string
	Name  string
	Path  string
}

// ChildRef は行ごとに表示する子画面へのリンク。
type ChildRef struct {
	Key   string
	Title string
}

// ScreenBody は汎用CRUD画面のデータ。
type ScreenBody struct {
	Screen    *screen.Screen
	Rows      []repository.Row
	Summary   []screen.SummaryValue
	Filter    string
	Parent    *ParentRef
	Child     *ChildRef
	Editing   repository.Row
	EditingID string
	// LoadError は一覧の取得に失敗した場合のエラー。前回の表示は保持しない。
	LoadError *model.APIError
}

// Creating は新規作成フォームを表示するかどうかを返す。
func (b *ScreenBody) Creating() bool {
	return b.Editing == nil && b.Screen.Can(screen.CapCreate)
}

// CanUpdate は行の編集リンクを表示するかどうかを返す。
func (b *ScreenBody) CanUpdate() bool {
	return b.Screen.Can(screen.CapUpdate)
}

// CanDelete は行の削除ボタンを表示するかどうかを返す。
func (b *ScreenBody) CanDelete() bool {
	return b.Screen.Can(screen.CapDelete)
}

// HasActions は操作列を表示するかどうかを返す。
func (b *ScreenBody) HasActions() bool {
	return b.CanUpdate() || b.CanDelete() || b.Child != nil
}

// UsersBody はユーザー管理画面のデータ。
type UsersBody struct {
	Users     []accounts.User
	Roles     []model.Role
	LoadError *model.APIError
}
