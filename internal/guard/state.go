// Package guard はセッションとロールを解決し、管理画面へのアクセス可否を判定する。
package guard

import "github.com/hitoshi/liuyao-cms/internal/model"

// State はガードの状態。
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticatedPendingRole
	StateAuthenticatedUser
	StateAuthenticatedAdmin
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedPendingRole:
		return "authenticated_pending_role"
	case StateAuthenticatedUser:
		return "authenticated_user"
	case StateAuthenticatedAdmin:
		return "authenticated_admin"
	default:
		return "unknown"
	}
}

// Snapshot はある時点のガードの公開状態。
type Snapshot struct {
	State    State
	Identity *model.CallerIdentity
	Session  *model.Session
}

// Resolving はまだアクセス判定ができない状態かどうかを返す。
func (s Snapshot) Resolving() bool {
	return s.State == StateInitializing || s.State == StateAuthenticatedPendingRole
}

// IsAdmin は管理者として解決済みかどうかを返す。
func (s Snapshot) IsAdmin() bool {
	return s.State == StateAuthenticatedAdmin
}

// Email は表示用のメールアドレスを返す。
func (s Snapshot) Email() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}

// UserID は主体のIDを返す。未認証の場合は空文字。
func (s Snapshot) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// stateForRole は解決済みロールに対応する状態を返す。
func stateForRole(role model.Role) State {
	switch {
	case role == model.RoleNone:
		return StateUnauthenticated
	case role.IsAdmin():
		return StateAuthenticatedAdmin
	default:
		return StateAuthenticatedUser
	}
}
