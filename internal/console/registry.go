// Package console はコンソールセッションごとのガードを管理する。
package console

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hitoshi/liuyao-cms/internal/guard"
	"github.com/hitoshi/liuyao-cms/internal/identity"
)

// Factory はコンソールセッションIDに紐づくガードを生成する。
type Factory func(sid string) *guard.Guard

// GuardCounter は稼働中のガード数を記録する。
type GuardCounter interface {
	SetActiveGuards(n int)
}

// NewGuardFactory はコンソールセッションごとに新しいIdPクライアントを持つガードを生成するFactoryを返す。
// セッションはstorageのコンソールセッションIDをキーとする位置に保存される。
func NewGuardFactory(auth identity.Authenticator, storage identity.SessionStorage, resolver guard.Resolver, opts guard.Options) Factory {
	return func(sid string) *guard.Guard {
		client := identity.NewClient(auth, storage, sid)
		return guard.New(client, resolver, opts)
	}
}

// Registry はコンソールセッションIDからガードへの対応を保持する。
// 一定時間アクセスのないガードと容量超過で追い出されたガードはCloseされる。
type Registry struct {
	mu      sync.Mutex
	guards  *expirable.LRU[string, *guard.Guard]
	factory Factory
	counter GuardCounter
	active  atomic.Int64
}

// NewRegistry はRegistryを生成する。counterはnilでもよい。
func NewRegistry(size int, idleTTL time.Duration, factory Factory, counter GuardCounter) *Registry {
	r := &Registry{factory: factory, counter: counter}
	r.guards = expirable.NewLRU[string, *guard.Guard](size, r.onEvict, idleTTL)
	return r
}

// Get はコンソールセッションのガードを返す。存在しない場合は生成して開始する。
// アクセスのたびにアイドル期限を延長する。
func (r *Registry) Get(sid string) *guard.Guard {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.guards.Get(sid); ok {
		r.guards.Add(sid, g)
		return g
	}

	// 期限切れで未回収のエントリがあれば先に閉じる
	r.guards.Remove(sid)

	g := r.factory(sid)
	g.Start(context.Background())
	r.guards.Add(sid, g)
	r.report(r.active.Add(1))

	slog.Debug("guard created", slog.String("console_sid", sid))
	return g
}

// Peek はガードが存在する場合にそれを返す。生成もアイドル期限の延長もしない。
func (r *Registry) Peek(sid string) (*guard.Guard, bool) {
	return r.guards.Peek(sid)
}

// Remove はコンソールセッションのガードを閉じて取り除く。
func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards.Remove(sid)
}

// Len は保持しているガード数を返す。
func (r *Registry) Len() int {
	return r.guards.Len()
}

// Close は全ガードを閉じる。シャットダウン時に呼び出す。
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards.Purge()
}

func (r *Registry) onEvict(sid string, g *guard.Guard) {
	g.Close()
	r.report(r.active.Add(-1))
	slog.Debug("guard closed", slog.String("console_sid", sid))
}

func (r *Registry) report(n int64) {
	if r.counter != nil {
		r.counter.SetActiveGuards(int(n))
	}
}
