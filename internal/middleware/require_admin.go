package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/guard"
)

// GuardPages はアクセス判定の結果として表示するページ。
type GuardPages interface {
	// Loading は判定中の表示を503で描画する。
	Loading(w http.ResponseWriter, r *http.Request)
	// Denied は管理者でない利用者への表示を403で描画する。
	Denied(w http.ResponseWriter, r *http.Request, snap guard.Snapshot)
}

// LoginPath はログイン画面のパス。
const LoginPath = "/login"

// NewRequireAdminMiddleware は管理者のみが保護されたページに到達できるようにするミドルウェアを返す。
// ガードの解決をwaitまで待ち、その時点の状態で次のいずれか1つを行う:
//   - 解決中: 読み込み中ページ（503, Retry-After: 1）。リダイレクトしない
//   - 未認証: ログイン画面へ303リダイレクト（next付き）
//   - 管理者以外: 権限不足ページ（403）
//   - 管理者: 次のハンドラー（ユーザーIDと状態をコンテキストに注入）
func NewRequireAdminMiddleware(pages GuardPages, wait time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g, ok := GuardFromContext(r.Context())
			if !ok {
				slog.Error("guard not found in context", slog.String("path", r.URL.Path))
				WriteInternalServerError(w, r)
				return
			}

			snap := WaitForGuard(r.Context(), g, wait)
			switch {
			case snap.Resolving():
				w.Header().Set("Retry-After", "1")
				pages.Loading(w, r)
			case snap.Identity == nil:
				http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			case !snap.IsAdmin():
				pages.Denied(w, r, snap)
			default:
				ctx := context.WithValue(r.Context(), snapshotContextKey, snap)
				ctx = context.WithValue(ctx, userIDContextKey, snap.UserID())
				noteUserID(ctx, snap.UserID())
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// WaitForGuard はガードの解決を最大waitまで待ち、その時点の状態を返す。
func WaitForGuard(ctx context.Context, g Guard, wait time.Duration) guard.Snapshot {
	if wait <= 0 {
		return g.Snapshot()
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return g.WaitResolved(ctx)
}
