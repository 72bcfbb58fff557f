// Package accounts は認証システムのユーザー一覧と権限の変更を扱う。
// ユーザー一覧は特権エンドポイント（get-users関数）経由でのみ取得できる。
package accounts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// LoginType はユーザーの登録経路。
type LoginType string

const (
	LoginWechat  LoginType = "wechat"
	LoginEmail   LoginType = "email"
	LoginUnknown LoginType = "unknown"
)

// Label はログイン種別の表示名を返す。
func (t LoginType) Label() string {
	switch t {
	case LoginWechat:
		return "微信登录"
	case LoginEmail:
		return "邮箱登录"
	default:
		return "未知"
	}
}

// wechatEmailSuffix はWeChat登録ユーザーに割り当てられる仮のメールアドレスの接尾辞。
const wechatEmailSuffix = "@wechat.user"

// User はget-users関数が返すユーザー。
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Nickname     string    `json:"nickname"`
	AvatarURL    string    `json:"avatar_url"`
	Role         string    `json:"role"`
	WechatOpenID string    `json:"wechat_openid"`
	LoginType    LoginType `json:"login_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayEmail は画面に表示するメールアドレスを返す。仮のアドレスは "-" にする。
func (u User) DisplayEmail() string {
	if u.Email == "" || strings.HasSuffix(u.Email, wechatEmailSuffix) {
		return "-"
	}
	return u.Email
}

// UserLister はユーザー一覧の取得元。
type UserLister interface {
	ListUsers(ctx context.Context, accessToken string) ([]User, error)
}

// FunctionsClient はEdge Functionsの呼び出しクライアント。
type FunctionsClient struct {
	client *resty.Client
}

// NewFunctionsClient はFunctionsClientを生成する。baseURLはプロジェクトURL。
func NewFunctionsClient(baseURL, anonKey string, timeout time.Duration) *FunctionsClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", anonKey)

	return &FunctionsClient{client: client}
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

type functionError struct {
	Error string `json:"error"`
}

// ListUsers は呼び出し元のアクセストークンでユーザー一覧を取得する。
// 関数が返したエラーメッセージはそのままエラーに含める。
func (c *FunctionsClient) ListUsers(ctx context.Context, accessToken string) ([]User, error) {
	var result listUsersResponse
	var errBody functionError
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&result).
		SetError(&errBody).
		Get("/functions/v1/get-users")
	if err != nil {
		return nil, fmt.Errorf("get-users request: %w", err)
	}
	if resp.IsError() {
		if errBody.Error != "" {
			return nil, &FunctionError{Status: resp.StatusCode(), Message: errBody.Error}
		}
		return nil, &FunctionError{Status: resp.StatusCode(), Message: "获取用户列表失败"}
	}
	if result.Users == nil {
		return []User{}, nil
	}
	return result.Users, nil
}

// FunctionError はEdge Functionが返したエラー。
type FunctionError struct {
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *FunctionError) Error() string {
	return e.Message
}

// Unauthorized は呼び出し元のトークンが拒否されたかどうかを返す。
func (e *FunctionError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// compile-time interface check
var _ UserLister = (*FunctionsClient)(nil)
