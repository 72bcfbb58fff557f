package guard

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/liuyao-cms/internal/identity"
	"github.com/hitoshi/liuyao-cms/internal/model"
)

// --- モック定義 ---

// fakeProvider はメモリ上でセッションを保持するIdPクライアント。
type fakeProvider struct {
	mu        sync.Mutex
	session   *model.Session
	listeners map[int]identity.Listener
	nextID    int

	getSessionFn func(ctx context.Context) (*model.Session, error)
	signInFn     func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn    func(ctx context.Context) error
}

func newFakeProvider(session *model.Session) *fakeProvider {
	return &fakeProvider{session: session, listeners: make(map[int]identity.Listener)}
}

func (p *fakeProvider) GetSession(ctx context.Context) (*model.Session, error) {
	if p.getSessionFn != nil {
		return p.getSessionFn(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

func (p *fakeProvider) OnAuthStateChange(fn identity.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if p.signInFn == nil {
		return nil, errors.New("not implemented")
	}
	session, err := p.signInFn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
	p.emit(identity.EventSignedIn, session)
	return session, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	if p.signOutFn != nil {
		if err := p.signOutFn(ctx); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	p.emit(identity.EventSignedOut, nil)
	return nil
}

func (p *fakeProvider) setStored(session *model.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = session
}

func (p *fakeProvider) emit(event identity.Event, session *model.Session) {
	p.mu.Lock()
	listeners := make([]identity.Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(event, session)
	}
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// fakeResolver はIDごとの固定ロールを返す。blockに登録したIDはチャネルが閉じるまで待つ。
type fakeResolver struct {
	mu    sync.Mutex
	roles map[string]model.Role
	block map[string]chan struct{}
	calls []string
}

func newFakeResolver(roles map[string]model.Role) *fakeResolver {
	return &fakeResolver{roles: roles, block: make(map[string]chan struct{})}
}

func (r *fakeResolver) Resolve(ctx context.Context, id string) model.Role {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	ch := r.block[id]
	role, ok := r.roles[id]
	r.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return model.RoleUser
		}
	}
	if id == "" {
		return model.RoleNone
	}
	if !ok {
		return model.RoleUser
	}
	return role
}

func (r *fakeResolver) hold(id string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.block[id] = ch
	return ch
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type mockProfileRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Profile, error)
	createFn     func(ctx context.Context, profile *model.Profile) error
	updateRoleFn func(ctx context.Context, id string, role model.Role) error
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	if m.createFn != nil {
		return m.createFn(ctx, profile)
	}
	return nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, id, role)
	}
	return nil
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) RecordRoleResolution(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func sessionFor(id string) *model.Session {
	return &model.Session{
		AccessToken:  "at-" + id,
		RefreshToken: "rt-" + id,
		User:         model.CallerIdentity{ID: id, Email: id + "@example.com"},
	}
}
