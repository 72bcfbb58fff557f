package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// Authenticator はIdPのトークンAPIのインターフェース。
type Authenticator interface {
	PasswordGrant(ctx context.Context, email, password string) (*model.Session, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*model.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// GoTrue はGoTrue互換の認証REST APIクライアント。
type GoTrue struct {
	client *resty.Client
	now    func() time.Time
}

// NewGoTrue はGoTrueクライアントを生成する。
// baseURLはプロジェクトURL（/auth/v1 は付けない）。
func NewGoTrue(baseURL, anonKey string, timeout time.Duration) *GoTrue {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", anonKey)

	return &GoTrue{client: client, now: time.Now}
}

// tokenResponse はトークンAPIのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// errorBody はIdPのエラーレスポンス。バージョンによりフィールド名が異なる。
type errorBody struct {
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
}

func (b *errorBody) message() string {
	for _, m := range []string{b.Msg, b.ErrorDescription, b.Message, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func (b *errorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	return b.Error
}

// PasswordGrant はメールアドレスとパスワードでセッションを取得する。
func (g *GoTrue) PasswordGrant(ctx context.Context, email, password string) (*model.Session, error) {
	return g.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshGrant はリフレッシュトークンで新しいセッションを取得する。
func (g *GoTrue) RefreshGrant(ctx context.Context, refreshToken string) (*model.Session, error) {
	return g.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// Logout はIdP側のセッションを無効化する。
func (g *GoTrue) Logout(ctx context.Context, accessToken string) error {
	var errBody errorBody
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(&errBody).
		Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	if resp.IsError() {
		return newAuthError(resp.StatusCode(), &errBody)
	}
	return nil
}

func (g *GoTrue) token(ctx context.Context, grantType string, body map[string]string) (*model.Session, error) {
	var result tokenResponse
	var errBody errorBody
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("grant_type", grantType).
		SetBody(body).
		SetResult(&result).
		SetError(&errBody).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("token request (%s): %w", grantType, err)
	}
	if resp.IsError() {
		return nil, newAuthError(resp.StatusCode(), &errBody)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token response (%s): missing access_token", grantType)
	}

	session := &model.Session{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		User: model.CallerIdentity{
			ID:    result.User.ID,
			Email: result.User.Email,
		},
	}
	switch {
	case result.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(result.ExpiresAt, 0)
	case result.ExpiresIn > 0:
		session.ExpiresAt = g.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	completeFromClaims(session)
	return session, nil
}

// compile-time interface check
var _ Authenticator = (*GoTrue)(nil)
