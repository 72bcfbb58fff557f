// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// ProfileRepository は認可プロファイル（profilesテーブル）の永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロファイルを取得する。行が存在しない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Create はプロファイルを作成する。
	// 同一IDの行が既に存在する場合はKindUniqueViolationのStoreErrorを返す。
	Create(ctx context.Context, profile *model.Profile) error

	// UpdateRole は指定IDのプロファイルのロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error
}

// Row はスキーマ既知・型なしのテーブル行を表す。
type Row map[string]any

// Order は並び順の指定。
type Order struct {
	Column string
	Desc   bool
}

// Query は汎用一覧取得の条件。
type Query struct {
	Table string
	// Columns が空の場合は全列を取得する。
	Columns []string
	// Computed は計算列のSELECT式（例: "(SELECT count(*) ...) AS orders_30d"）。
	// カタログ定義の固定文字列のみを渡すこと。
	Computed []string
	Where    map[string]any
	Order    []Order
	Limit    uint64
}

// RowStore は全CRUD画面が共通で利用する汎用ストアのインターフェース。
// 失敗時は *StoreError を返す。
type RowStore interface {
	// Select は条件に一致する行を取得する。
	Select(ctx context.Context, q Query) ([]Row, error)

	// Insert は1行を挿入する。
	Insert(ctx context.Context, table string, values Row) error

	// Update は指定IDの行を更新する。対象行がない場合はKindNotFoundを返す。
	Update(ctx context.Context, table, id string, values Row) error

	// Delete は指定IDの行を削除する。対象行がない場合はKindNotFoundを返す。
	Delete(ctx context.Context, table, id string) error

	// Exists は条件に一致する行が存在するかを返す。
	// excludeIDが空でない場合はそのIDの行を除外する（更新時の一意性確認用）。
	Exists(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error)
}
