package identity

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// completeFromClaims はセッションに欠けている主体情報と有効期限をアクセストークンのクレームから補う。
// 署名はIdPが保証するため検証しない。sub, email, exp のみを読む。
func completeFromClaims(s *model.Session) {
	if s == nil || s.AccessToken == "" {
		return
	}
	if s.User.ID != "" && s.User.Email != "" && !s.ExpiresAt.IsZero() {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
		slog.Debug("access token is not a readable JWT", slog.String("error", err.Error()))
		return
	}

	if s.User.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			s.User.ID = sub
		}
	}
	if s.User.Email == "" {
		if email, ok := claims["email"].(string); ok {
			s.User.Email = email
		}
	}
	if s.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time
		}
	}
}
