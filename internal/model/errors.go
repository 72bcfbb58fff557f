// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, store, schema, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeSignInFailed     = "SIGN_IN_FAILED"
	ErrCodeSignOutFailed    = "SIGN_OUT_FAILED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeDuplicate        = "DUPLICATE"
	ErrCodeRowNotFound      = "ROW_NOT_FOUND"
	ErrCodeStoreError       = "STORE_ERROR"
	ErrCodeSchemaMismatch   = "SCHEMA_MISMATCH"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeScreenNotFound   = "SCREEN_NOT_FOUND"
	ErrCodeOperationDenied  = "OPERATION_NOT_ALLOWED"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
)

// NewValidationError はフォーム入力の検証エラーを生成する。
func NewValidationError(problems []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  strings.Join(problems, "；"),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewDuplicateError は一意制約に抵触する入力のエラーを生成する。
func NewDuplicateError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicate,
		Message:  message,
		Category: "validation",
		Action:   "別の値を指定してください。",
	}
}

// NewRowNotFoundError は対象行が存在しない場合のエラーを生成する。
func NewRowNotFoundError(table, id string) *APIError {
	return &APIError{
		Code:     ErrCodeRowNotFound,
		Message:  fmt.Sprintf("记录不存在: %s/%s", table, id),
		Category: "store",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewStoreError はバックエンドストアの操作失敗エラーを生成する。
// messageにはバックエンドのメッセージをそのまま含める。
func NewStoreError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreError,
		Message:  message,
		Category: "store",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPermissionDeniedError はストアの行レベル権限に拒否された場合のエラーを生成する。
// detailにはバックエンドのメッセージを渡す。
func NewPermissionDeniedError(detail string) *APIError {
	msg := "权限不足。请确保您已登录为管理员账户。"
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  msg,
		Category: "auth",
		Action:   "管理者アカウントでログインし直してください。",
	}
}

// NewMissingColumnError は未適用マイグレーションによる列不足エラーを生成する。
func NewMissingColumnError(column, migration string) *APIError {
	return &APIError{
		Code:     ErrCodeSchemaMismatch,
		Message:  fmt.Sprintf("数据库架构未更新：缺少列 %s。请确保已应用最新的数据库迁移。", column),
		Category: "schema",
		Action:   fmt.Sprintf("マイグレーション %s を適用してください。", migration),
	}
}

// NewMissingTableError は未適用マイグレーションによるテーブル不足エラーを生成する。
func NewMissingTableError(table, migration string) *APIError {
	return &APIError{
		Code:     ErrCodeSchemaMismatch,
		Message:  fmt.Sprintf("表 %s 不存在。请确保已运行迁移文件: %s", table, migration),
		Category: "schema",
		Action:   fmt.Sprintf("マイグレーション %s を適用してください。", migration),
	}
}

// NewScreenNotFoundError は存在しない画面キーが指定された場合のエラーを生成する。
func NewScreenNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeScreenNotFound,
		Message:  fmt.Sprintf("页面不存在: %s", key),
		Category: "validation",
		Action:   "メニューから画面を選択してください。",
	}
}

// NewOperationNotAllowedError は画面で許可されていない操作のエラーを生成する。
func NewOperationNotAllowedError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeOperationDenied,
		Message:  fmt.Sprintf("此页面不支持该操作: %s", op),
		Category: "validation",
		Action:   "一覧画面に戻ってください。",
	}
}

// NewUpstreamError は特権エンドポイント呼び出しの失敗エラーを生成する。
func NewUpstreamError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
