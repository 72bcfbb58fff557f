package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/liuyao-cms/internal/guard"
	"github.com/hitoshi/liuyao-cms/internal/model"
)

// --- モック定義 ---

// fakeGuard は固定の状態を返すガード。
type fakeGuard struct {
	snap     guard.Snapshot
	resolved guard.Snapshot
	waited   bool

	signInFn  func(ctx context.Context, email, password string) error
	signOutFn func(ctx context.Context) error
}

func (g *fakeGuard) Snapshot() guard.Snapshot { return g.snap }

func (g *fakeGuard) WaitResolved(ctx context.Context) guard.Snapshot {
	g.waited = true
	if g.resolved.State != guard.StateInitializing || g.resolved.Identity != nil {
		return g.resolved
	}
	return g.snap
}

func (g *fakeGuard) SignIn(ctx context.Context, email, password string) error {
	if g.signInFn != nil {
		return g.signInFn(ctx, email, password)
	}
	return nil
}

func (g *fakeGuard) SignOut(ctx context.Context) error {
	if g.signOutFn != nil {
		return g.signOutFn(ctx)
	}
	return nil
}

// fakePages はどのページが描画されたかを記録する。
type fakePages struct {
	loading int
	denied  []guard.Snapshot
}

func (p *fakePages) Loading(w http.ResponseWriter, r *http.Request) {
	p.loading++
	w.WriteHeader(http.StatusServiceUnavailable)
}

func (p *fakePages) Denied(w http.ResponseWriter, r *http.Request, snap guard.Snapshot) {
	p.denied = append(p.denied, snap)
	w.WriteHeader(http.StatusForbidden)
}

func adminSnapshot(id string) guard.Snapshot {
	return guard.Snapshot{
		State:    guard.StateAuthenticatedAdmin,
		Identity: &model.CallerIdentity{ID: id, Email: id + "@example.com"},
	}
}

func userSnapshot(id string) guard.Snapshot {
	return guard.Snapshot{
		State:    guard.StateAuthenticatedUser,
		Identity: &model.CallerIdentity{ID: id, Email: id + "@example.com"},
	}
}
