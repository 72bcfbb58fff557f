package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// ErrorKind はストア境界で分類したエラー種別。
// 呼び出し側はメッセージ文字列ではなくこの種別で分岐する。
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindUnknownColumn
	KindUnknownTable
	KindPermissionDenied
	KindUniqueViolation
	KindForeignKeyViolation
	KindCheckViolation
	KindNotFound
)

// String はエラー種別の名前を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownColumn:
		return "unknown_column"
	case KindUnknownTable:
		return "unknown_table"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUniqueViolation:
		return "unique_violation"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindCheckViolation:
		return "check_violation"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// StoreError はストア境界が返す構造化エラー。
// Codeは機械可読なコード（SQLSTATE）、Messageはバックエンドのメッセージをそのまま保持する。
type StoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Column  string // KindUnknownColumn の場合の列名
	Table   string
	// Constraint とKeyColumns は一意制約違反の場合に違反した制約を示す。
	Constraint string
	KeyColumns []string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap は元のドライバエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// UnknownColumn は存在しない列を示すStoreErrorを生成する。
func UnknownColumn(table, column string) *StoreError {
	return &StoreError{
		Kind:    KindUnknownColumn,
		Code:    "42703",
		Message: fmt.Sprintf("column %q of relation %q does not exist", column, table),
		Column:  column,
		Table:   table,
	}
}

// AsStoreError はerrがStoreErrorを含む場合にそれを返す。
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// columnPattern はPostgreSQLの42703メッセージから列名を抽出する。
var columnPattern = regexp.MustCompile(`column "([^"]+)"`)

// keyPattern は23505のDetail（Key (a, b)=(...) already exists.）から列名を抽出する。
var keyPattern = regexp.MustCompile(`^Key \(([^)]+)\)=`)

// translateError はドライバのエラーをStoreErrorに変換する。
// SQLSTATEに基づいて種別を決定する。
func translateError(err error, table string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsStoreError(err); ok {
		return err
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return &StoreError{Kind: KindOther, Message: err.Error(), Table: table, Err: err}
	}

	se := &StoreError{
		Kind:    KindOther,
		Code:    string(pqErr.Code),
		Message: pqErr.Message,
		Column:  pqErr.Column,
		Table:   pqErr.Table,
		Err:     err,
	}
	if se.Table == "" {
		se.Table = table
	}

	switch pqErr.Code {
	case "42703": // undefined_column
		se.Kind = KindUnknownColumn
		if se.Column == "" {
			if m := columnPattern.FindStringSubmatch(pqErr.Message); m != nil {
				se.Column = m[1]
			}
		}
	case "42P01": // undefined_table
		se.Kind = KindUnknownTable
	case "42501": // insufficient_privilege
		se.Kind = KindPermissionDenied
	case "23505": // unique_violation
		se.Kind = KindUniqueViolation
		se.Constraint = pqErr.Constraint
		if m := keyPattern.FindStringSubmatch(pqErr.Detail); m != nil {
			se.KeyColumns = strings.Split(m[1], ", ")
		}
	case "23503": // foreign_key_violation
		se.Kind = KindForeignKeyViolation
	case "23502", "23514": // not_null_violation, check_violation
		se.Kind = KindCheckViolation
	}

	return se
}

// notFound は更新・削除対象の行が存在しない場合のStoreErrorを生成する。
func notFound(table, id string) *StoreError {
	return &StoreError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("no rows in %s with id %s", table, id),
		Table:   table,
	}
}
