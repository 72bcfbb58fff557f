// Package identity はIdP（GoTrue互換の認証API）との境界を提供する。
// コンソールセッションごとに1つのClientを持ち、セッションの取得・変更通知・
// パスワードサインイン・サインアウトを扱う。
package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// Event はセッション変更イベントの種類。
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener はセッション変更イベントの受信関数。
// SIGNED_OUTの場合sessionはnil。
type Listener func(event Event, session *model.Session)

// AuthError はIdPが返したエラー。Messageはプロバイダのメッセージをそのまま保持する。
type AuthError struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return e.Message
}

// IsClientError はIdPがリクエストを拒否した（4xx）かどうかを返す。
func (e *AuthError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// sessionGone はIdP側でセッションが既に存在しないことを示すステータスかどうかを返す。
func (e *AuthError) sessionGone() bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// AsAuthError はerrがAuthErrorを含む場合にそれを返す。
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// newAuthError はレスポンスからAuthErrorを生成する。
func newAuthError(status int, body *errorBody) *AuthError {
	ae := &AuthError{Status: status}
	if body != nil {
		ae.Message = body.message()
		ae.Code = body.code()
	}
	if ae.Message == "" {
		ae.Message = fmt.Sprintf("identity provider returned %d %s", status, http.StatusText(status))
	}
	return ae
}
