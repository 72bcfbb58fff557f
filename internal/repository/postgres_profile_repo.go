package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用した認可プロファイルリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, role, created_at, updated_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &role, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "profiles")
	}

	profile.Role = model.Role(role)
	return profile, nil
}

// Create はプロファイルを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, role, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		profile.ID, string(profile.Role), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "profiles")
	}
	return nil
}

// UpdateRole は指定IDのプロファイルのロールを更新する。
func (r *PostgresProfileRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET role = $1, updated_at = now() WHERE id = $2`,
		string(role), id,
	)
	if err != nil {
		return translateError(err, "profiles")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return translateError(err, "profiles")
	}
	if rowsAffected == 0 {
		return notFound("profiles", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
