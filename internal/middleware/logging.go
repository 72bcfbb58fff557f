package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestNote は内側のミドルウェアがアクセスログに残す情報。
// ログ出力はハンドラー完了後に外側で行うため、ポインタで共有する。
type requestNote struct {
	userID string
	screen string
}

var requestNoteContextKey = contextKey("request_note")

// noteUserID はアクセスログに管理者のユーザーIDを記録する。
func noteUserID(ctx context.Context, userID string) {
	if n, ok := ctx.Value(requestNoteContextKey).(*requestNote); ok {
		n.userID = userID
	}
}

// NoteScreen はアクセスログに対象画面のキーを記録する。
func NoteScreen(ctx context.Context, key string) {
	if n, ok := ctx.Value(requestNoteContextKey).(*requestNote); ok {
		n.screen = key
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（管理者判定通過時）、screen（画面操作時）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			note := &requestNote{}
			ctx := context.WithValue(r.Context(), requestNoteContextKey, note)

			next.ServeHTTP(rec, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if note.userID != "" {
				args = append(args, slog.String("user_id", note.userID))
			}
			if note.screen != "" {
				args = append(args, slog.String("screen", note.screen))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
