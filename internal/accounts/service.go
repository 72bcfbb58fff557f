package accounts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
)

// Service はユーザー管理画面の操作を提供する。
type Service struct {
	lister   UserLister
	profiles repository.ProfileRepository
}

// NewService はServiceを生成する。
func NewService(lister UserLister, profiles repository.ProfileRepository) *Service {
	return &Service{lister: lister, profiles: profiles}
}

// ListUsers はユーザー一覧を取得する。失敗時はUPSTREAM_FAILEDのAPIErrorを返す。
func (s *Service) ListUsers(ctx context.Context, accessToken string) ([]User, error) {
	users, err := s.lister.ListUsers(ctx, accessToken)
	if err != nil {
		slog.Warn("failed to list users", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError("加载用户列表失败: " + err.Error())
	}
	return users, nil
}

// RoleOptions はユーザーに設定できるロール。
var RoleOptions = []model.Role{model.RoleUser, model.RoleAdmin}

// UpdateRole はprofilesのロールを更新する。
func (s *Service) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return model.NewValidationError([]string{"角色无效"})
	}
	if id == "" {
		return model.NewValidationError([]string{"用户ID不能为空"})
	}

	err := s.profiles.UpdateRole(ctx, id, role)
	if err == nil {
		return nil
	}

	se, ok := repository.AsStoreError(err)
	if !ok {
		return model.NewStoreError(err.Error())
	}
	switch se.Kind {
	case repository.KindNotFound:
		// プロファイル行がないユーザーは作成して権限を付与する
		createErr := s.profiles.Create(ctx, &model.Profile{ID: id, Role: role})
		if createErr == nil {
			return nil
		}
		var cse *repository.StoreError
		if errors.As(createErr, &cse) {
			return model.NewStoreError(cse.Message)
		}
		return model.NewStoreError(createErr.Error())
	case repository.KindPermissionDenied:
		return model.NewPermissionDeniedError(se.Message)
	case repository.KindUnknownTable:
		return model.NewMissingTableError("profiles", screen.MigrationProfiles)
	default:
		return model.NewStoreError(se.Message)
	}
}
