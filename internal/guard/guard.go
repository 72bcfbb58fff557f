package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/liuyao-cms/internal/identity"
	"github.com/hitoshi/liuyao-cms/internal/model"
)

// Provider はガードが利用するIdPクライアントの操作。
type Provider interface {
	GetSession(ctx context.Context) (*model.Session, error)
	OnAuthStateChange(fn identity.Listener) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context) error
}

// Options はガードの設定。
type Options struct {
	// RefreshInterval はセッションを再確認する間隔。0の場合は定期確認しない。
	RefreshInterval time.Duration
	// ResolveTimeout は1回のロール解決に許す時間。
	ResolveTimeout time.Duration
}

// DefaultResolveTimeout はOptions.ResolveTimeout未指定時の値。
const DefaultResolveTimeout = 10 * time.Second

// Guard は1つのクライアント（コンソールセッション）のセッションとロールを保持する。
//
// 構築時にセッション変更イベントを購読し、Startで初回のセッション確認を非同期に開始する。
// ロール解決は連番で管理し、最新でない結果は破棄する。
type Guard struct {
	provider Provider
	resolver Resolver
	opts     Options

	mu      sync.Mutex
	state   State
	session *model.Session
	seq     uint64
	changed chan struct{}
	closed  bool
	// eager はSignIn実行中の数。その間のSIGNED_INはSignIn側で解決する。
	eager int

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	stopParent  func() bool
	wg          sync.WaitGroup
	startOnce   sync.Once
	closeOnce   sync.Once
}

// New はGuardを生成し、セッション変更イベントを購読する。
func New(provider Provider, resolver Resolver, opts Options) *Guard {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Guard{
		provider:   provider,
		resolver:   resolver,
		opts:       opts,
		state:      StateInitializing,
		changed:    make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stopParent: func() bool { return false },
	}
	g.unsubscribe = provider.OnAuthStateChange(g.handleEvent)
	return g
}

// Start は初回のセッション確認と定期的なセッション確認を開始する。
// ctxが終了するとガードのバックグラウンド処理も停止する。
func (g *Guard) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return
		}
		g.stopParent = context.AfterFunc(ctx, g.cancel)
		g.wg.Add(1)
		if g.opts.RefreshInterval > 0 {
			g.wg.Add(1)
			go g.refreshLoop()
		}
		g.mu.Unlock()

		go func() {
			defer g.wg.Done()
			g.lookup()
		}()
	})
}

// Close はイベント購読を解除し、バックグラウンド処理の終了を待つ。複数回呼んでもよい。
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.seq++
		g.mu.Unlock()

		g.unsubscribe()
		g.stopParent()
		g.cancel()
		g.wg.Wait()
	})
}

// Snapshot は現在の公開状態を返す。
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// WaitResolved は解決中でなくなるかctxが終了するまで待ち、その時点の状態を返す。
func (g *Guard) WaitResolved(ctx context.Context) Snapshot {
	for {
		g.mu.Lock()
		snap := g.snapshotLocked()
		changed := g.changed
		g.mu.Unlock()

		if !snap.Resolving() {
			return snap
		}
		select {
		case <-ctx.Done():
			return snap
		case <-changed:
		}
	}
}

// SignIn は資格情報でサインインし、ロールを即時に解決する。
// 失敗時はIdPのエラーをそのまま返し、状態は変更しない。
func (g *Guard) SignIn(ctx context.Context, email, password string) error {
	g.mu.Lock()
	g.eager++
	g.mu.Unlock()

	session, err := g.provider.SignInWithPassword(ctx, email, password)

	g.mu.Lock()
	g.eager--
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	seq := g.adoptLocked(session)
	g.mu.Unlock()

	// リクエストの切断でロール解決を失敗させない
	resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.ResolveTimeout)
	defer cancel()

	role := g.resolver.Resolve(resolveCtx, session.User.ID)
	g.applyRole(seq, role)
	return nil
}

// SignOut はIdPのセッションを無効化する。
// 失敗時はエラーを返し、セッションを保持する。成功時は管理者状態を直ちに解除する。
func (g *Guard) SignOut(ctx context.Context) error {
	if err := g.provider.SignOut(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	if g.state == StateAuthenticatedAdmin {
		g.state = StateAuthenticatedUser
		g.notifyLocked()
	}
	return nil
}

// handleEvent はIdPのセッション変更イベントを処理する。
func (g *Guard) handleEvent(event identity.Event, session *model.Session) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}

	if event == identity.EventSignedOut || session == nil {
		g.seq++
		g.clearLocked()
		g.mu.Unlock()
		return
	}

	seq := g.adoptLocked(session)
	if event == identity.EventSignedIn && g.eager > 0 {
		g.mu.Unlock()
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		g.resolveAsync(seq, session.User.ID)
	}()
}

// lookup は保存済みセッションを確認し、ガードの状態と一致させる。
// 確認中にイベントを受信した場合は結果を破棄する。
func (g *Guard) lookup() {
	g.mu.Lock()
	startSeq := g.seq
	g.mu.Unlock()

	session, err := g.provider.GetSession(g.ctx)

	g.mu.Lock()
	if g.closed || g.seq != startSeq {
		g.mu.Unlock()
		return
	}

	if err != nil {
		slog.Warn("session lookup failed", slog.String("error", err.Error()))
		if g.state == StateInitializing {
			// 確認できないセッションは未認証として扱う
			g.seq++
			g.clearLocked()
		}
		g.mu.Unlock()
		return
	}

	switch {
	case session == nil && g.session != nil, session == nil && g.state == StateInitializing:
		g.seq++
		g.clearLocked()
		g.mu.Unlock()
	case session != nil && (g.session == nil || g.session.AccessToken != session.AccessToken):
		seq := g.adoptLocked(session)
		g.mu.Unlock()
		g.resolveAsync(seq, session.User.ID)
	default:
		g.mu.Unlock()
	}
}

func (g *Guard) refreshLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.lookup()
		}
	}
}

func (g *Guard) resolveAsync(seq uint64, id string) {
	ctx, cancel := context.WithTimeout(g.ctx, g.opts.ResolveTimeout)
	defer cancel()

	role := g.resolver.Resolve(ctx, id)
	g.applyRole(seq, role)
}

// applyRole は解決結果を反映する。連番が最新でない結果は破棄する。
func (g *Guard) applyRole(seq uint64, role model.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || seq != g.seq {
		slog.Debug("discarding stale role resolution",
			slog.Uint64("seq", seq),
			slog.Uint64("current_seq", g.seq),
		)
		return
	}

	g.state = stateForRole(role)
	if g.state == StateUnauthenticated {
		g.session = nil
	}
	g.notifyLocked()
}

// adoptLocked は新しいセッションを採用してロール解決待ちに遷移し、解決の連番を返す。
func (g *Guard) adoptLocked(session *model.Session) uint64 {
	g.seq++
	g.session = session
	g.state = StateAuthenticatedPendingRole
	g.notifyLocked()
	return g.seq
}

func (g *Guard) clearLocked() {
	g.session = nil
	g.state = StateUnauthenticated
	g.notifyLocked()
}

// notifyLocked はWaitResolvedの待機者を起こす。
func (g *Guard) notifyLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *Guard) snapshotLocked() Snapshot {
	snap := Snapshot{State: g.state}
	if g.session != nil {
		session := *g.session
		snap.Session = &session
		if session.User.ID != "" {
			user := session.User
			snap.Identity = &user
		}
	}
	return snap
}
