package guard

import (
	"context"
	"log/slog"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// ロール解決の結果種別（メトリクスのラベル値）
const (
	OutcomeAdmin        = "admin"
	OutcomeUser         = "user"
	OutcomeRepaired     = "repaired"
	OutcomeRepairFailed = "repair_failed"
	OutcomeError        = "error"
	OutcomeNone         = "none"
)

// Resolver は主体IDからロールを解決する。
type Resolver interface {
	Resolve(ctx context.Context, id string) model.Role
}

// ResolutionRecorder はロール解決の結果を記録する。
type ResolutionRecorder interface {
	RecordRoleResolution(outcome string)
}

// RoleResolver は認可プロファイルからロールを解決する。
// 失敗は常に非管理者として扱い、呼び出し元にエラーを返さない。
type RoleResolver struct {
	profiles repository.ProfileRepository
	recorder ResolutionRecorder
}

// NewRoleResolver はRoleResolverを生成する。recorderはnilでもよい。
func NewRoleResolver(profiles repository.ProfileRepository, recorder ResolutionRecorder) *RoleResolver {
	return &RoleResolver{profiles: profiles, recorder: recorder}
}

// Resolve は主体IDのロールを返す。
//
// IDが空の場合はストアにアクセスせずRoleNoneを返す。
// プロファイルが存在しない場合は {id, role:"user"} を1回だけ挿入し（失敗してもログのみ）、RoleUserを返す。
// 取得に失敗した場合はRoleUserを返す。
func (r *RoleResolver) Resolve(ctx context.Context, id string) model.Role {
	if id == "" {
		r.record(OutcomeNone)
		return model.RoleNone
	}

	profile, err := r.profiles.FindByID(ctx, id)
	if err != nil {
		slog.Warn("role lookup failed, treating caller as non-admin",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		r.record(OutcomeError)
		return model.RoleUser
	}

	if profile == nil {
		r.repair(ctx, id)
		return model.RoleUser
	}

	if profile.Role.IsAdmin() {
		r.record(OutcomeAdmin)
		return model.RoleAdmin
	}
	r.record(OutcomeUser)
	return model.RoleUser
}

// repair は欠けているプロファイルを既定ロールで作成する。再試行しない。
func (r *RoleResolver) repair(ctx context.Context, id string) {
	err := r.profiles.Create(ctx, &model.Profile{ID: id, Role: model.RoleUser})
	if err != nil {
		slog.Warn("profile repair insert failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		r.record(OutcomeRepairFailed)
		return
	}
	slog.Info("created missing profile", slog.String("user_id", id))
	r.record(OutcomeRepaired)
}

func (r *RoleResolver) record(outcome string) {
	if r.recorder != nil {
		r.recorder.RecordRoleResolution(outcome)
	}
}

// compile-time interface check
var _ Resolver = (*RoleResolver)(nil)
