// Package model はドメインモデルを定義する。
package model

import "time"

// Role は認可プロファイルのロールを表す。
// 管理者判定は RoleAdmin との完全一致のみで行う（許可リスト方式）。
type Role string

const (
	// RoleNone は呼び出し元が未認証であることを表す。
	RoleNone Role = ""
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を表す。
	RoleAdmin Role = "admin"
)

// IsAdmin はロールが管理者かどうかを返す。
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Label は画面表示用のロール名を返す。
func (r Role) Label() string {
	if r.IsAdmin() {
		return "管理员"
	}
	return "非管理员"
}

// CallerIdentity はサインイン中の主体を識別する最小限の情報。
type CallerIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session はIdPとの認証済みセッションを表す。
// アクセストークン（Bearer）とリフレッシュトークン、有効期限を保持する。
type Session struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         CallerIdentity `json:"user"`
}

// ExpiresWithin はセッションが指定時間以内に期限切れになるかどうかを返す。
// 有効期限が不明なセッションは期限切れとして扱わない。
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// Profile は認可プロファイル（profilesテーブルの1行）を表す。
type Profile struct {
	ID        string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
