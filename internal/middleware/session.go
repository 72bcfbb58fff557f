// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/liuyao-cms/internal/guard"
)

// ConsoleSessionCookie はコンソールセッションIDを保持するCookieの名前。
const ConsoleSessionCookie = "console_sid"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionIDContextKey = contextKey("console_sid")
	guardContextKey     = contextKey("guard")
	snapshotContextKey  = contextKey("snapshot")
	userIDContextKey    = contextKey("user_id")
)

// Guard はコンソールセッションのガードのうち、HTTP層が使う操作。
type Guard interface {
	Snapshot() guard.Snapshot
	WaitResolved(ctx context.Context) guard.Snapshot
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// GuardLookup はコンソールセッションIDに対応するガードを返す。
type GuardLookup func(sid string) Guard

// SessionConfig はコンソールセッションCookieの設定。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       time.Duration
}

// NewConsoleSessionMiddleware はコンソールセッションCookieを読み取り（なければ発行し）、
// 対応するガードをリクエストコンテキストに注入するミドルウェアを返す。
func NewConsoleSessionMiddleware(lookup GuardLookup, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if cookie, err := r.Cookie(ConsoleSessionCookie); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sid = cookie.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ConsoleSessionCookie,
					Value:    sid,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   int(config.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, sid)
			ctx = context.WithValue(ctx, guardContextKey, lookup(sid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuardFromContext はリクエストコンテキストからガードを取得する。
func GuardFromContext(ctx context.Context) (Guard, bool) {
	g, ok := ctx.Value(guardContextKey).(Guard)
	return g, ok && g != nil
}

// SessionIDFromContext はリクエストコンテキストからコンソールセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDContextKey).(string)
	return sid
}

// ContextWithGuard はコンテキストにガードを注入する。テストで使用する。
func ContextWithGuard(ctx context.Context, g Guard) context.Context {
	return context.WithValue(ctx, guardContextKey, g)
}

// SnapshotFromContext は管理者判定を通過した時点のガードの状態を取得する。
func SnapshotFromContext(ctx context.Context) (guard.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey).(guard.Snapshot)
	return snap, ok
}

// ContextWithSnapshot は管理者判定を通過した状態をコンテキストに注入する。テストで使用する。
func ContextWithSnapshot(ctx context.Context, snap guard.Snapshot) context.Context {
	ctx = context.WithValue(ctx, snapshotContextKey, snap)
	return context.WithValue(ctx, userIDContextKey, snap.UserID())
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 管理者判定ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
