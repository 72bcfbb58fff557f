// Package screen は管理画面の汎用CRUDコンポーネントを提供する。
// 各エンティティの画面はScreenの設定として定義し、Serviceが一覧・作成・更新・削除を共通に処理する。
package screen

import (
	"time"

	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// Capability は画面で許可する操作。
type Capability uint8

const (
	CapCreate Capability = 1 << iota
	CapRead
	CapUpdate
	CapDelete
)

// 操作の組み合わせ
const (
	CapsCRUD     = CapCreate | CapRead | CapUpdate | CapDelete
	CapsReadOnly = CapRead
)

// FieldKind はフォーム項目の型。
type FieldKind int

const (
	KindText FieldKind = iota
	KindTextarea
	KindNumber
	KindInteger
	KindBool
	KindSelect
	KindList
	KindDatetime
	KindJSON
)

// Option は選択肢。
type Option struct {
	Value string
	Label string
}

// Field はフォーム項目の定義。
type Field struct {
	Name  string
	Label string
	Kind  FieldKind
	// Rules はvalidatorのタグ（例: "required,max=64"）。
	Rules   string
	Options []Option
	// Separator はKindListの区切り文字。空の場合は "、"。
	Separator string
	// Default は入力が空の場合の値。
	Default any
	// OmitEmpty が真の場合、入力が空なら値を送らない（DB側の既定値を使う）。
	OmitEmpty bool
	// CreateOnly が真の場合、作成時のみ送る。
	CreateOnly bool
	// Droppable が真の場合、列が存在しないとき項目を外して再試行してよい。
	Droppable bool
	// Migration はこの列を追加するマイグレーション。空の場合は画面のMigration。
	Migration string
	// Sanitize が真の場合、HTMLをサニタイズしてから保存する。
	Sanitize bool
	Help     string
}

// ColumnFormat は一覧の表示形式。
type ColumnFormat int

const (
	FormatText ColumnFormat = iota
	FormatTruncate
	FormatMoney
	FormatDateTime
	FormatBool
	FormatList
	FormatEnum
	FormatImage
)

// Column は一覧の列定義。
type Column struct {
	Name   string
	Label  string
	Format ColumnFormat
	// Labels はFormatEnumの値ごとの表示名。
	Labels map[string]string
}

// Unique はアプリ側で事前確認する一意制約。
type Unique struct {
	Columns []string
	Message string
}

// uniqueFor は違反した列の組に一致する一意制約を返す。列の順序は問わない。
func (s *Screen) uniqueFor(columns []string) (Unique, bool) {
	if len(columns) == 0 {
		return Unique{}, false
	}
	for _, u := range s.Unique {
		if sameColumns(u.Columns, columns) {
			return u, true
		}
	}
	return Unique{}, false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, c := range a {
		seen[c]++
	}
	for _, c := range b {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

// FilterOption は一覧の絞り込み選択肢。Matchがnilの場合はValueで比較する。
type FilterOption struct {
	Value string
	Label string
	Match any
}

// Filter は一覧の絞り込み定義。値 "all" または空は絞り込みなし。
type Filter struct {
	Column  string
	Label   string
	Options []FilterOption
}

// Parent は親エンティティに従属する画面の定義。
type Parent struct {
	Column string
	Screen string
	Label  string
}

// SummaryItem は一覧の集計項目。Countが偽の場合はColumnの合計。
type SummaryItem struct {
	Label       string
	Column      string
	WhereColumn string
	WhereValue  string
	Count       bool
}

// Screen は1つのテーブルに対する管理画面の設定。
type Screen struct {
	Key          string
	Title        string
	Table        string
	Columns      []Column
	Fields       []Field
	Order        []repository.Order
	Filter       *Filter
	Limit        uint64
	Capabilities Capability
	Unique       []Unique
	Migration    string
	Parent       *Parent
	Summary      []SummaryItem
	// Computed は計算列のSELECT式。
	Computed []string
	// Validate は項目間の検証を行い、問題の一覧を返す。
	Validate func(values repository.Row) []string
	// BeforeSave は保存直前に値を補う。
	BeforeSave func(values repository.Row, creating bool, now time.Time)
	// HiddenFromMenu はメニューに表示しない画面。
	HiddenFromMenu bool
	// CreatedMessage, UpdatedMessage, DeletedMessage は成功時の通知。空の場合は既定の文言。
	CreatedMessage string
	UpdatedMessage string
	DeletedMessage string
}

// Can は操作が許可されているかどうかを返す。
func (s *Screen) Can(c Capability) bool {
	return s.Capabilities&c == c
}

// SavedMessage は保存成功時の通知文言を返す。
func (s *Screen) SavedMessage(creating bool) string {
	if creating {
		if s.CreatedMessage != "" {
			return s.CreatedMessage
		}
		return "创建成功"
	}
	if s.UpdatedMessage != "" {
		return s.UpdatedMessage
	}
	return "更新成功"
}

// DeleteMessage は削除成功時の通知文言を返す。
func (s *Screen) DeleteMessage() string {
	if s.DeletedMessage != "" {
		return s.DeletedMessage
	}
	return "删除成功"
}

// Field は名前に一致するフォーム項目を返す。
func (s *Screen) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// droppableFields はドリフト時に外してよい項目を返す。
func (s *Screen) droppableFields() []Field {
	var fields []Field
	for _, f := range s.Fields {
		if f.Droppable {
			fields = append(fields, f)
		}
	}
	return fields
}

// migrationFor は列を追加するマイグレーション名を返す。
func (s *Screen) migrationFor(column string) string {
	if f, ok := s.Field(column); ok && f.Migration != "" {
		return f.Migration
	}
	return s.Migration
}
