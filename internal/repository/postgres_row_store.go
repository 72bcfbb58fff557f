package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// identifierPattern はテーブル名・列名として許可する識別子。
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresRowStore はPostgreSQLを使用した汎用行ストア。
// SQLはsquirrelで組み立て、識別子はidentifierPatternで検証する。
type PostgresRowStore struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// NewPostgresRowStore はPostgresRowStoreを生成する。
func NewPostgresRowStore(db *sql.DB) *PostgresRowStore {
	return &PostgresRowStore{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Select は条件に一致する行を取得する。
func (s *PostgresRowStore) Select(ctx context.Context, q Query) ([]Row, error) {
	query, args, err := s.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, q.Table)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, translateError(err, q.Table)
	}
	return result, nil
}

// Insert は1行を挿入する。
func (s *PostgresRowStore) Insert(ctx context.Context, table string, values Row) error {
	query, args, err := s.buildInsert(table, values)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return translateError(err, table)
	}
	return nil
}

// Update は指定IDの行を更新する。
func (s *PostgresRowStore) Update(ctx context.Context, table, id string, values Row) error {
	query, args, err := s.buildUpdate(table, id, values)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err, table)
	}
	return expectAffected(result, table, id)
}

// Delete は指定IDの行を削除する。
func (s *PostgresRowStore) Delete(ctx context.Context, table, id string) error {
	query, args, err := s.buildDelete(table, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err, table)
	}
	return expectAffected(result, table, id)
}

// Exists は条件に一致する行が存在するかを返す。
func (s *PostgresRowStore) Exists(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error) {
	query, args, err := s.buildExists(table, where, excludeID)
	if err != nil {
		return false, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, translateError(err, table)
	}
	return count > 0, nil
}

func (s *PostgresRowStore) buildSelect(q Query) (string, []any, error) {
	if err := checkIdentifiers(q.Table, q.Columns...); err != nil {
		return "", nil, err
	}

	columns := []string{q.Table + ".*"}
	if len(q.Columns) > 0 {
		columns = make([]string, 0, len(q.Columns))
		for _, c := range q.Columns {
			columns = append(columns, q.Table+"."+c)
		}
	}

	b := s.sb.Select(columns...).Columns(q.Computed...).From(q.Table)
	if len(q.Where) > 0 {
		eq, err := qualifiedEq(q.Table, q.Where)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(eq)
	}
	for _, o := range q.Order {
		if err := checkIdentifiers(q.Table, o.Column); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		b = b.OrderBy(fmt.Sprintf("%s.%s %s", q.Table, o.Column, dir))
	}
	if q.Limit > 0 {
		b = b.Limit(q.Limit)
	}
	return b.ToSql()
}

func (s *PostgresRowStore) buildInsert(table string, values Row) (string, []any, error) {
	columns := sortedColumns(values)
	if len(columns) == 0 {
		return "", nil, &StoreError{Kind: KindOther, Message: "no values to insert", Table: table}
	}
	if err := checkIdentifiers(table, columns...); err != nil {
		return "", nil, err
	}

	args := make([]any, 0, len(columns))
	for _, c := range columns {
		args = append(args, toArg(values[c]))
	}
	return s.sb.Insert(table).Columns(columns...).Values(args...).ToSql()
}

func (s *PostgresRowStore) buildUpdate(table, id string, values Row) (string, []any, error) {
	columns := sortedColumns(values)
	if len(columns) == 0 {
		return "", nil, &StoreError{Kind: KindOther, Message: "no values to update", Table: table}
	}
	if err := checkIdentifiers(table, columns...); err != nil {
		return "", nil, err
	}

	b := s.sb.Update(table)
	for _, c := range columns {
		b = b.Set(c, toArg(values[c]))
	}
	return b.Where(squirrel.Eq{"id": id}).ToSql()
}

func (s *PostgresRowStore) buildDelete(table, id string) (string, []any, error) {
	if err := checkIdentifiers(table); err != nil {
		return "", nil, err
	}
	return s.sb.Delete(table).Where(squirrel.Eq{"id": id}).ToSql()
}

func (s *PostgresRowStore) buildExists(table string, where map[string]any, excludeID string) (string, []any, error) {
	eq, err := qualifiedEq(table, where)
	if err != nil {
		return "", nil, err
	}

	b := s.sb.Select("count(*)").From(table).Where(eq)
	if excludeID != "" {
		b = b.Where(squirrel.NotEq{table + ".id": excludeID})
	}
	return b.ToSql()
}

// checkIdentifiers はテーブル名と列名を検証する。
func checkIdentifiers(table string, columns ...string) error {
	if !identifierPattern.MatchString(table) {
		return &StoreError{Kind: KindOther, Message: fmt.Sprintf("invalid table name %q", table), Table: table}
	}
	for _, c := range columns {
		if !identifierPattern.MatchString(c) {
			return &StoreError{Kind: KindOther, Message: fmt.Sprintf("invalid column name %q", c), Table: table}
		}
	}
	return nil
}

func qualifiedEq(table string, where map[string]any) (squirrel.Eq, error) {
	eq := squirrel.Eq{}
	for c, v := range where {
		if err := checkIdentifiers(table, c); err != nil {
			return nil, err
		}
		eq[table+"."+c] = v
	}
	return eq, nil
}

func sortedColumns(values Row) []string {
	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// toArg は値をドライバに渡せる形式に変換する。
func toArg(v any) any {
	if list, ok := v.([]string); ok {
		return pq.Array(list)
	}
	return v
}

func expectAffected(result sql.Result, table, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return translateError(err, table)
	}
	if n == 0 {
		return notFound(table, id)
	}
	return nil
}

// scanRows は列構成が不定の結果セットをRowのスライスに変換する。
func scanRows(rows *sql.Rows) ([]Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(types))
		for i, t := range types {
			row[t.Name()] = normalizeValue(t.DatabaseTypeName(), values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// normalizeValue はドライバが返す生の値を表示・編集しやすい型に揃える。
// テキスト配列は[]string、その他のバイト列はstringにする。
func normalizeValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if strings.HasPrefix(dbType, "_") {
		var list pq.StringArray
		if err := list.Scan(b); err == nil {
			return []string(list)
		}
	}
	return string(b)
}

// compile-time interface check
var _ RowStore = (*PostgresRowStore)(nil)
