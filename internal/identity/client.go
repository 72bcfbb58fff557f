package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// refreshMargin は有効期限のこの時間前からセッションを更新対象とする。
const refreshMargin = 60 * time.Second

// Client は1つのコンソールセッションに紐づくIdPクライアント。
// セッションはstorageのkeyに保存され、変更のたびに登録済みのListenerへ通知される。
type Client struct {
	auth    Authenticator
	storage SessionStorage
	key     string
	now     func() time.Time

	// opMu はセッションを書き換える操作を直列化する。
	opMu sync.Mutex

	mu        sync.Mutex
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// NewClient はClientを生成する。
func NewClient(auth Authenticator, storage SessionStorage, key string) *Client {
	return &Client{
		auth:    auth,
		storage: storage,
		key:     key,
		now:     time.Now,
	}
}

// OnAuthStateChange はセッション変更イベントの購読を登録し、解除関数を返す。
// 解除関数は複数回呼んでもよい。
func (c *Client) OnAuthStateChange(fn Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.listeners {
				if s.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// GetSession は保存済みのセッションを返す。セッションがない場合はnilを返す。
// 有効期限が近い場合はリフレッシュし、TOKEN_REFRESHEDを通知する。
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	session, event, err := c.loadOrRefresh(ctx)
	if event != "" {
		c.emit(event, session)
	}
	return session, err
}

func (c *Client) loadOrRefresh(ctx context.Context) (*model.Session, Event, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	session, err := c.storage.Load(ctx, c.key)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", nil
	}
	completeFromClaims(session)
	if !session.ExpiresWithin(c.now(), refreshMargin) {
		return session, "", nil
	}

	refreshed, err := c.auth.RefreshGrant(ctx, session.RefreshToken)
	if err != nil {
		if ae, ok := AsAuthError(err); ok && ae.IsClientError() {
			// IdPがリフレッシュトークンを拒否した: セッションは失効済み
			slog.Info("session refresh rejected",
				slog.String("user_id", session.User.ID),
				slog.String("error", ae.Message),
			)
			if err := c.storage.Delete(ctx, c.key); err != nil {
				return nil, "", err
			}
			return nil, EventSignedOut, nil
		}
		return nil, "", fmt.Errorf("refresh session: %w", err)
	}

	if err := c.storage.Save(ctx, c.key, refreshed); err != nil {
		return nil, "", err
	}
	return refreshed, EventTokenRefreshed, nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// 失敗時はIdPのエラーをそのまま返し、保存済みのセッションは変更しない。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	session, err := c.signIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *Client) signIn(ctx context.Context, email, password string) (*model.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	session, err := c.auth.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.storage.Save(ctx, c.key, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut はIdP側のセッションを無効化し、保存済みのセッションを削除する。
// IdP呼び出しが失敗した場合はエラーを返し、保存済みのセッションを残す。
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.signOut(ctx); err != nil {
		return err
	}
	c.emit(EventSignedOut, nil)
	return nil
}

func (c *Client) signOut(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	session, err := c.storage.Load(ctx, c.key)
	if err != nil {
		return err
	}
	if session != nil {
		if err := c.auth.Logout(ctx, session.AccessToken); err != nil {
			ae, ok := AsAuthError(err)
			if !ok || !ae.sessionGone() {
				return err
			}
		}
	}
	return c.storage.Delete(ctx, c.key)
}

// emit は登録順にListenerを同期的に呼び出す。ロックの外で呼び出す。
func (c *Client) emit(event Event, session *model.Session) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, s := range c.listeners {
		listeners = append(listeners, s.fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event, session)
	}
}
