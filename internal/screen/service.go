package screen

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// 操作名（メトリクスのラベル）
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// 操作結果（メトリクスのラベル）
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Sanitizer はリッチテキスト項目のHTMLを無害化する。
type Sanitizer interface {
	Sanitize(html string) string
}

// OperationRecorder は画面操作の結果を記録する。
type OperationRecorder interface {
	RecordStoreOperation(screen, op, outcome string)
	RecordSchemaFallback(screen string)
}

// SummaryValue は一覧の集計結果。
type SummaryValue struct {
	Label string
	Value float64
	Count bool
}

// ListResult は一覧取得の結果。
type ListResult struct {
	Rows    []repository.Row
	Summary []SummaryValue
}

// Result は作成・更新の結果。
// Skipped はスキーマ不一致のため保存されなかった項目の表示名。
type Result struct {
	Skipped []string
}

// Warning はSkippedがある場合の警告文を返す。
func (r *Result) Warning() string {
	if r == nil || len(r.Skipped) == 0 {
		return ""
	}
	return fmt.Sprintf("注意：%s字段因架构缓存未更新而暂时未保存。请刷新数据库架构缓存后重新编辑此记录。", strings.Join(r.Skipped, "、"))
}

// Service は画面設定に従って汎用CRUDを実行する。
type Service struct {
	store     repository.RowStore
	sanitizer Sanitizer
	recorder  OperationRecorder
	decoder   *decoder
	now       func() time.Time
}

// NewService はServiceを生成する。sanitizer, recorderはnilでもよい。
func NewService(store repository.RowStore, sanitizer Sanitizer, recorder OperationRecorder) *Service {
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		recorder:  recorder,
		decoder:   newDecoder(),
		now:       time.Now,
	}
}

// List は画面の一覧を取得する。
// filterは絞り込みの値（空または"all"で絞り込みなし）、parentIDは親画面の行ID。
func (s *Service) List(ctx context.Context, sc *Screen, filter, parentID string) (*ListResult, error) {
	if !sc.Can(CapRead) {
		return nil, model.NewOperationNotAllowedError(OpList)
	}

	q := repository.Query{
		Table:    sc.Table,
		Computed: sc.Computed,
		Order:    sc.Order,
		Limit:    sc.Limit,
		Where:    map[string]any{},
	}
	if sc.Parent != nil && parentID != "" {
		q.Where[sc.Parent.Column] = parentID
	}
	if col, v, ok := sc.filterCondition(filter); ok {
		q.Where[col] = v
	}

	rows, err := s.store.Select(ctx, q)
	if err != nil {
		s.record(sc, OpList, OutcomeError)
		return nil, s.translate(sc, err, "")
	}
	s.record(sc, OpList, OutcomeSuccess)

	return &ListResult{Rows: rows, Summary: summarize(sc.Summary, rows)}, nil
}

// Get は指定IDの行を取得する。見つからない場合はROW_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, sc *Screen, id string) (repository.Row, error) {
	if !sc.Can(CapRead) {
		return nil, model.NewOperationNotAllowedError(OpList)
	}
	rows, err := s.store.Select(ctx, repository.Query{
		Table:    sc.Table,
		Computed: sc.Computed,
		Where:    map[string]any{"id": id},
		Limit:    1,
	})
	if err != nil {
		return nil, s.translate(sc, err, id)
	}
	if len(rows) == 0 {
		return nil, model.NewRowNotFoundError(sc.Table, id)
	}
	return rows[0], nil
}

// Create はフォームの値から行を作成する。
func (s *Service) Create(ctx context.Context, sc *Screen, form url.Values, parentID string) (*Result, error) {
	if !sc.Can(CapCreate) {
		return nil, model.NewOperationNotAllowedError(OpCreate)
	}

	values, problems := s.decoder.decode(sc, form, true)
	if sc.Parent != nil {
		if parentID == "" {
			problems = append(problems, "请先选择"+sc.Parent.Label)
		} else {
			values[sc.Parent.Column] = parentID
		}
	}
	if len(problems) > 0 {
		return nil, model.NewValidationError(problems)
	}
	s.prepare(sc, values, true)

	if err := s.checkUnique(ctx, sc, values, ""); err != nil {
		return nil, err
	}

	return s.write(ctx, sc, OpCreate, "", values, func(v repository.Row) error {
		return s.store.Insert(ctx, sc.Table, v)
	})
}

// Update は指定IDの行をフォームの値で更新する。
func (s *Service) Update(ctx context.Context, sc *Screen, id string, form url.Values) (*Result, error) {
	if !sc.Can(CapUpdate) {
		return nil, model.NewOperationNotAllowedError(OpUpdate)
	}

	values, problems := s.decoder.decode(sc, form, false)
	if len(problems) > 0 {
		return nil, model.NewValidationError(problems)
	}
	s.prepare(sc, values, false)

	if err := s.checkUnique(ctx, sc, values, id); err != nil {
		return nil, err
	}

	return s.write(ctx, sc, OpUpdate, id, values, func(v repository.Row) error {
		return s.store.Update(ctx, sc.Table, id, v)
	})
}

// Delete は指定IDの行を削除する。
func (s *Service) Delete(ctx context.Context, sc *Screen, id string) error {
	if !sc.Can(CapDelete) {
		return model.NewOperationNotAllowedError(OpDelete)
	}
	if err := s.store.Delete(ctx, sc.Table, id); err != nil {
		s.record(sc, OpDelete, OutcomeError)
		return s.translate(sc, err, id)
	}
	s.record(sc, OpDelete, OutcomeSuccess)
	return nil
}

// prepare はサニタイズと保存前フックを適用する。
func (s *Service) prepare(sc *Screen, values repository.Row, creating bool) {
	if s.sanitizer != nil {
		for _, f := range sc.Fields {
			if !f.Sanitize {
				continue
			}
			if html, ok := values[f.Name].(string); ok {
				values[f.Name] = s.sanitizer.Sanitize(html)
			}
		}
	}
	if sc.BeforeSave != nil {
		sc.BeforeSave(values, creating, s.now())
	}
}

// checkUnique は画面に定義された一意制約を事前に確認する。
// 値が揃っていない制約は確認しない（DB側の制約に任せる）。
func (s *Service) checkUnique(ctx context.Context, sc *Screen, values repository.Row, excludeID string) error {
	for _, u := range sc.Unique {
		where := make(map[string]any, len(u.Columns))
		for _, c := range u.Columns {
			v, ok := values[c]
			if !ok || v == nil {
				where = nil
				break
			}
			where[c] = v
		}
		if where == nil {
			continue
		}

		exists, err := s.store.Exists(ctx, sc.Table, where, excludeID)
		if err != nil {
			return s.translate(sc, err, excludeID)
		}
		if exists {
			return model.NewDuplicateError(u.Message)
		}
	}
	return nil
}

// write は保存を実行する。存在しない列が外してよい項目の場合のみ、
// 外してよい項目をすべて除いて1回だけ再試行する。
func (s *Service) write(ctx context.Context, sc *Screen, op, id string, values repository.Row, exec func(repository.Row) error) (*Result, error) {
	err := exec(values)
	if err == nil {
		s.record(sc, op, OutcomeSuccess)
		return &Result{}, nil
	}

	se, ok := repository.AsStoreError(err)
	if !ok || se.Kind != repository.KindUnknownColumn || !sc.isDroppable(se.Column) {
		s.record(sc, op, OutcomeError)
		return nil, s.translate(sc, err, id)
	}

	reduced := make(repository.Row, len(values))
	for k, v := range values {
		reduced[k] = v
	}
	var skipped []string
	for _, f := range sc.droppableFields() {
		if _, ok := reduced[f.Name]; ok {
			delete(reduced, f.Name)
			skipped = append(skipped, f.Label)
		}
	}

	slog.Warn("schema drift detected, retrying without droppable fields",
		slog.String("screen", sc.Key),
		slog.String("column", se.Column),
		slog.Int("skipped", len(skipped)),
	)

	if err := exec(reduced); err != nil {
		s.record(sc, op, OutcomeError)
		return nil, s.translate(sc, err, id)
	}

	s.record(sc, op, OutcomeFallback)
	if s.recorder != nil {
		s.recorder.RecordSchemaFallback(sc.Key)
	}
	return &Result{Skipped: skipped}, nil
}

// translate はストアのエラーを画面に表示するAPIErrorに変換する。
func (s *Service) translate(sc *Screen, err error, id string) error {
	se, ok := repository.AsStoreError(err)
	if !ok {
		slog.Error("store operation failed", slog.String("screen", sc.Key), slog.String("error", err.Error()))
		return model.NewStoreError(err.Error())
	}

	switch se.Kind {
	case repository.KindUnknownColumn:
		return model.NewMissingColumnError(se.Column, sc.migrationFor(se.Column))
	case repository.KindUnknownTable:
		return model.NewMissingTableError(sc.Table, sc.Migration)
	case repository.KindPermissionDenied:
		return model.NewPermissionDeniedError(se.Message)
	case repository.KindUniqueViolation:
		if u, ok := sc.uniqueFor(se.KeyColumns); ok && u.Message != "" {
			return model.NewDuplicateError(u.Message)
		}
		return model.NewDuplicateError(se.Message)
	case repository.KindNotFound:
		return model.NewRowNotFoundError(sc.Table, id)
	default:
		slog.Error("store operation failed",
			slog.String("screen", sc.Key),
			slog.String("kind", se.Kind.String()),
			slog.String("error", se.Error()),
		)
		return model.NewStoreError(se.Message)
	}
}

func (s *Service) record(sc *Screen, op, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordStoreOperation(sc.Key, op, outcome)
	}
}

// filterCondition は絞り込みの値を列と比較値に変換する。
func (s *Screen) filterCondition(value string) (string, any, bool) {
	if s.Filter == nil || value == "" || value == "all" {
		return "", nil, false
	}
	for _, o := range s.Filter.Options {
		if o.Value != value {
			continue
		}
		if o.Match != nil {
			return s.Filter.Column, o.Match, true
		}
		return s.Filter.Column, o.Value, true
	}
	return "", nil, false
}

func (s *Screen) isDroppable(column string) bool {
	f, ok := s.Field(column)
	return ok && f.Droppable
}

// summarize は取得した行から集計値を求める。
func summarize(items []SummaryItem, rows []repository.Row) []SummaryValue {
	if len(items) == 0 {
		return nil
	}
	result := make([]SummaryValue, 0, len(items))
	for _, item := range items {
		sv := SummaryValue{Label: item.Label, Count: item.Count}
		for _, row := range rows {
			if item.WhereColumn != "" && fmt.Sprint(row[item.WhereColumn]) != item.WhereValue {
				continue
			}
			if item.Count {
				sv.Value++
				continue
			}
			sv.Value += toFloat(row[item.Column])
		}
		result = append(result, sv)
	}
	return result
}

// toFloat は数値列の値をfloat64に変換する。numeric型はドライバから文字列で返る。
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
