package screen

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// --- モック定義 ---

type mockRowStore struct {
	selectFn func(ctx context.Context, q repository.Query) ([]repository.Row, error)
	insertFn func(ctx context.Context, table string, values repository.Row) error
	updateFn func(ctx context.Context, table, id string, values repository.Row) error
	deleteFn func(ctx context.Context, table, id string) error
	existsFn func(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error)
}

func (m *mockRowStore) Select(ctx context.Context, q repository.Query) ([]repository.Row, error) {
	if m.selectFn != nil {
		return m.selectFn(ctx, q)
	}
	return nil, nil
}
func (m *mockRowStore) Insert(ctx context.Context, table string, values repository.Row) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, table, values)
	}
	return nil
}
func (m *mockRowStore) Update(ctx context.Context, table, id string, values repository.Row) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, table, id, values)
	}
	return nil
}
func (m *mockRowStore) Delete(ctx context.Context, table, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, table, id)
	}
	return nil
}
func (m *mockRowStore) Exists(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, table, where, excludeID)
	}
	return false, nil
}

type mockRecorder struct {
	operations []string
	fallbacks  []string
}

func (m *mockRecorder) RecordStoreOperation(screen, op, outcome string) {
	m.operations = append(m.operations, screen+"/"+op+"/"+outcome)
}
func (m *mockRecorder) RecordSchemaFallback(screen string) {
	m.fallbacks = append(m.fallbacks, screen)
}

type scriptStripper struct{}

func (scriptStripper) Sanitize(html string) string {
	return strings.ReplaceAll(html, "<script>", "")
}

func newTestService(store repository.RowStore, rec *mockRecorder) *Service {
	svc := NewService(store, scriptStripper{}, rec)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return svc
}

func asAPIError(t *testing.T, err error) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	return apiErr
}

func serviceForm() url.Values {
	return url.Values{
		"name":                          {"六爻详批"},
		"price":                         {"99"},
		"service_type":                  {"图文"},
		"consultation_duration_minutes": {"60"},
		"requires_birth_info":           {"on"},
		"question_min_length":           {"30"},
		"question_max_length":           {"800"},
	}
}

func TestService_Create_RetriesWithoutDroppableFields(t *testing.T) {
	var attempts []repository.Row
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			attempts = append(attempts, values)
			if len(attempts) == 1 {
				return repository.UnknownColumn(table, "question_min_length")
			}
			return nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(store, rec)

	result, err := svc.Create(context.Background(), MasterServices(), serviceForm(), "master-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected exactly 2 insert attempts, got %d", len(attempts))
	}

	retry := attempts[1]
	for _, name := range []string{
		"consultation_duration_minutes", "consultation_session_count",
		"requires_birth_info", "question_min_length", "question_max_length",
	} {
		if _, ok := retry[name]; ok {
			t.Errorf("retry should not include %s", name)
		}
	}
	if retry["name"] != "六爻详批" || retry["master_id"] != "master-1" {
		t.Errorf("retry lost base fields: %v", retry)
	}

	want := []string{"服务时长", "要求出生信息", "问题最小字数", "问题最大字数"}
	if !reflect.DeepEqual(result.Skipped, want) {
		t.Errorf("Skipped = %v, want %v", result.Skipped, want)
	}
	if !strings.Contains(result.Warning(), "服务时长、要求出生信息") {
		t.Errorf("Warning() = %q", result.Warning())
	}
	if len(rec.fallbacks) != 1 || rec.fallbacks[0] != "master-services" {
		t.Errorf("fallbacks = %v", rec.fallbacks)
	}
	if rec.operations[len(rec.operations)-1] != "master-services/create/fallback" {
		t.Errorf("operations = %v", rec.operations)
	}
}

func TestService_Create_RetryFailureIsReported(t *testing.T) {
	calls := 0
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			calls++
			if calls == 1 {
				return repository.UnknownColumn(table, "requires_birth_info")
			}
			return &repository.StoreError{Kind: repository.KindOther, Code: "XX000", Message: "connection reset"}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	_, err := svc.Create(context.Background(), MasterServices(), serviceForm(), "master-1")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeStoreError || apiErr.Message != "connection reset" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestService_Create_UnknownRequiredColumnIsSchemaMismatch(t *testing.T) {
	calls := 0
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			calls++
			return repository.UnknownColumn(table, "service_type")
		},
	}
	svc := newTestService(store, &mockRecorder{})

	_, err := svc.Create(context.Background(), MasterServices(), serviceForm(), "master-1")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeSchemaMismatch {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeSchemaMismatch)
	}
	if !strings.Contains(apiErr.Message, "service_type") || !strings.Contains(apiErr.Action, MigrationMasters) {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if calls != 1 {
		t.Errorf("non-droppable column must not be retried, got %d attempts", calls)
	}
}

func TestService_Create_DroppableColumnNamesItsMigration(t *testing.T) {
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			return repository.UnknownColumn(table, "question_max_length")
		},
	}
	svc := newTestService(store, &mockRecorder{})

	_, err := svc.Create(context.Background(), MasterServices(), serviceForm(), "master-1")
	apiErr := asAPIError(t, err)
	if !strings.Contains(apiErr.Action, MigrationServiceColumns) {
		t.Errorf("Action = %q, want migration %s", apiErr.Action, MigrationServiceColumns)
	}
}

func TestService_Create_RequiresParent(t *testing.T) {
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			t.Fatal("insert must not be called")
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	_, err := svc.Create(context.Background(), MasterServices(), serviceForm(), "")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeValidationFailed || apiErr.Message != "请先选择卦师" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestService_Create_DuplicateIsRejectedBeforeInsert(t *testing.T) {
	var gotWhere map[string]any
	store := &mockRowStore{
		existsFn: func(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error) {
			gotWhere = where
			return true, nil
		},
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			t.Fatal("insert must not be called")
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	form := url.Values{"name": {"divination"}, "display_name": {"占卜"}}
	_, err := svc.Create(context.Background(), Modules(), form, "")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeDuplicate || apiErr.Message != "模块名已存在" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if gotWhere["name"] != "divination" {
		t.Errorf("where = %v", gotWhere)
	}
}

func TestService_Update_UniqueCheckExcludesSelf(t *testing.T) {
	var gotExclude string
	var gotWhere map[string]any
	updated := false
	store := &mockRowStore{
		existsFn: func(ctx context.Context, table string, where map[string]any, excludeID string) (bool, error) {
			gotWhere, gotExclude = where, excludeID
			return false, nil
		},
		updateFn: func(ctx context.Context, table, id string, values repository.Row) error {
			updated = table == "community_subsections" && id == "sub-1"
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	form := url.Values{"section_key": {"study"}, "key": {"basics"}, "label": {"入门"}}
	if _, err := svc.Update(context.Background(), CommunitySubsections(), "sub-1", form); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotExclude != "sub-1" {
		t.Errorf("excludeID = %q, want sub-1", gotExclude)
	}
	if gotWhere["section_key"] != "study" || gotWhere["key"] != "basics" {
		t.Errorf("where = %v", gotWhere)
	}
	if !updated {
		t.Error("expected update to be called")
	}
}

func TestService_Create_UniqueViolationFromStore(t *testing.T) {
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			return &repository.StoreError{
				Kind:       repository.KindUniqueViolation,
				Code:       "23505",
				Message:    "duplicate key",
				KeyColumns: []string{"user_id"},
			}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	form := url.Values{"user_id": {"6f1c2a1e-9d4b-4c1a-8e1f-2b3c4d5e6f70"}, "name": {"张三"}}
	_, err := svc.Create(context.Background(), Masters(), form, "")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeDuplicate || apiErr.Message != "该用户已经是卦师" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestService_Create_UndeclaredUniqueViolationKeepsBackendMessage(t *testing.T) {
	const backendMsg = `duplicate key value violates unique constraint "masters_phone_key"`
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			return &repository.StoreError{
				Kind:       repository.KindUniqueViolation,
				Code:       "23505",
				Message:    backendMsg,
				Constraint: "masters_phone_key",
				KeyColumns: []string{"phone"},
			}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	form := url.Values{"user_id": {"6f1c2a1e-9d4b-4c1a-8e1f-2b3c4d5e6f70"}, "name": {"张三"}}
	_, err := svc.Create(context.Background(), Masters(), form, "")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeDuplicate {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if apiErr.Message != backendMsg {
		t.Errorf("Message = %q, want %q", apiErr.Message, backendMsg)
	}
}

func TestService_Create_SanitizesAndInitializesCounters(t *testing.T) {
	var got repository.Row
	store := &mockRowStore{
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			got = values
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	form := url.Values{
		"user_id":      {"6f1c2a1e-9d4b-4c1a-8e1f-2b3c4d5e6f70"},
		"title":        {"公告"},
		"content":      {"正文"},
		"content_html": {"<p>正文</p><script>"},
	}
	if _, err := svc.Create(context.Background(), Posts(), form, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["content_html"] != "<p>正文</p>" {
		t.Errorf("content_html = %v", got["content_html"])
	}
	for _, c := range []string{"view_count", "like_count", "comment_count"} {
		if got[c] != int64(0) {
			t.Errorf("%s = %v, want 0", c, got[c])
		}
	}
	if _, ok := got["section"]; ok {
		t.Error("empty optional select should be omitted")
	}
}

func TestService_Update_ResolvingStampsTime(t *testing.T) {
	var got repository.Row
	store := &mockRowStore{
		updateFn: func(ctx context.Context, table, id string, values repository.Row) error {
			got = values
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	if _, err := svc.Update(context.Background(), RiskControl(), "v1", url.Values{"is_resolved": {"true"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["is_resolved"] != true {
		t.Errorf("is_resolved = %v", got["is_resolved"])
	}
	if got["resolved_at"] != svc.now() {
		t.Errorf("resolved_at = %v, want %v", got["resolved_at"], svc.now())
	}
}

func TestService_Delete_ErrorCarriesBackendMessage(t *testing.T) {
	store := &mockRowStore{
		deleteFn: func(ctx context.Context, table, id string) error {
			return &repository.StoreError{
				Kind:    repository.KindForeignKeyViolation,
				Code:    "23503",
				Message: `update or delete on table "masters" violates foreign key constraint`,
			}
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(store, rec)

	err := svc.Delete(context.Background(), Masters(), "m1")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeStoreError {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "violates foreign key constraint") {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if len(rec.operations) != 1 || rec.operations[0] != "masters/delete/error" {
		t.Errorf("operations = %v", rec.operations)
	}
}

func TestService_Delete_PermissionDenied(t *testing.T) {
	store := &mockRowStore{
		deleteFn: func(ctx context.Context, table, id string) error {
			return &repository.StoreError{Kind: repository.KindPermissionDenied, Code: "42501", Message: "permission denied for table comments"}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	apiErr := asAPIError(t, svc.Delete(context.Background(), Comments(), "c1"))
	if apiErr.Code != model.ErrCodePermissionDenied {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "permission denied for table comments") {
		t.Errorf("Message = %q, want backend message", apiErr.Message)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	store := &mockRowStore{
		deleteFn: func(ctx context.Context, table, id string) error {
			return &repository.StoreError{Kind: repository.KindNotFound, Table: table}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	apiErr := asAPIError(t, svc.Delete(context.Background(), Records(), "r1"))
	if apiErr.Code != model.ErrCodeRowNotFound || !strings.Contains(apiErr.Message, "divination_records/r1") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestService_OperationsOutsideCapabilities(t *testing.T) {
	store := &mockRowStore{
		deleteFn: func(ctx context.Context, table, id string) error {
			t.Fatal("store must not be called")
			return nil
		},
		insertFn: func(ctx context.Context, table string, values repository.Row) error {
			t.Fatal("store must not be called")
			return nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	if err := svc.Delete(context.Background(), Consultations(), "c1"); asAPIError(t, err).Code != model.ErrCodeOperationDenied {
		t.Errorf("delete on read-only screen: %v", err)
	}
	_, err := svc.Create(context.Background(), Comments(), url.Values{"content": {"x"}}, "")
	if asAPIError(t, err).Code != model.ErrCodeOperationDenied {
		t.Errorf("create on comments: %v", err)
	}
}

func TestService_List_MissingTable(t *testing.T) {
	store := &mockRowStore{
		selectFn: func(ctx context.Context, q repository.Query) ([]repository.Row, error) {
			return nil, &repository.StoreError{Kind: repository.KindUnknownTable, Code: "42P01", Message: `relation "modules" does not exist`}
		},
	}
	svc := newTestService(store, &mockRecorder{})

	_, err := svc.List(context.Background(), Modules(), "", "")
	apiErr := asAPIError(t, err)
	if apiErr.Code != model.ErrCodeSchemaMismatch || !strings.Contains(apiErr.Message, MigrationModules) {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestService_List_BuildsQuery(t *testing.T) {
	tests := []struct {
		name      string
		screen    *Screen
		filter    string
		parentID  string
		wantWhere map[string]any
		wantLimit uint64
	}{
		{name: "no filter", screen: RiskControl(), filter: "", wantWhere: map[string]any{}, wantLimit: 100},
		{name: "all", screen: RiskControl(), filter: "all", wantWhere: map[string]any{}, wantLimit: 100},
		{name: "bool match", screen: RiskControl(), filter: "resolved", wantWhere: map[string]any{"is_resolved": true}, wantLimit: 100},
		{name: "unknown value ignored", screen: Consultations(), filter: "bogus", wantWhere: map[string]any{}, wantLimit: 100},
		{name: "status", screen: Consultations(), filter: "completed", wantWhere: map[string]any{"status": "completed"}, wantLimit: 100},
		{name: "parent", screen: MasterServices(), parentID: "m1", wantWhere: map[string]any{"master_id": "m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got repository.Query
			store := &mockRowStore{
				selectFn: func(ctx context.Context, q repository.Query) ([]repository.Row, error) {
					got = q
					return nil, nil
				},
			}
			svc := newTestService(store, &mockRecorder{})

			if _, err := svc.List(context.Background(), tt.screen, tt.filter, tt.parentID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Table != tt.screen.Table {
				t.Errorf("Table = %s", got.Table)
			}
			if !reflect.DeepEqual(got.Where, tt.wantWhere) {
				t.Errorf("Where = %v, want %v", got.Where, tt.wantWhere)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
		})
	}
}

func TestService_List_Summary(t *testing.T) {
	store := &mockRowStore{
		selectFn: func(ctx context.Context, q repository.Query) ([]repository.Row, error) {
			return []repository.Row{
				{"amount": "100.50", "status": "held"},
				{"amount": "20", "status": "held"},
				{"amount": float64(30), "status": "released"},
				{"amount": nil, "status": "refunded"},
			}, nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	result, err := svc.List(context.Background(), Escrow(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []SummaryValue{
		{Label: "托管中总额", Value: 120.5},
		{Label: "已释放总额", Value: 30},
		{Label: "已退款总额", Value: 0},
	}
	if !reflect.DeepEqual(result.Summary, want) {
		t.Errorf("Summary = %+v, want %+v", result.Summary, want)
	}
}

func TestService_Get(t *testing.T) {
	store := &mockRowStore{
		selectFn: func(ctx context.Context, q repository.Query) ([]repository.Row, error) {
			if q.Where["id"] == "m1" {
				return []repository.Row{{"id": "m1", "name": "张三"}}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(store, &mockRecorder{})

	row, err := svc.Get(context.Background(), Masters(), "m1")
	if err != nil || row["name"] != "张三" {
		t.Fatalf("Get(m1) = %v, %v", row, err)
	}
	_, err = svc.Get(context.Background(), Masters(), "missing")
	if asAPIError(t, err).Code != model.ErrCodeRowNotFound {
		t.Errorf("unexpected error: %v", err)
	}
}
