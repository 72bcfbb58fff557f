package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/liuyao-cms/internal/model"
)

// SessionStorage はIdPセッションの永続化先。
// Loadは保存されていない場合にnilを返す。
type SessionStorage interface {
	Load(ctx context.Context, key string) (*model.Session, error)
	Save(ctx context.Context, key string, session *model.Session) error
	Delete(ctx context.Context, key string) error
}

// RedisKeyPrefix はRedisに保存するセッションのキー接頭辞。
const RedisKeyPrefix = "console:session:"

// RedisStorage はRedisにセッションを保存するストレージ。
type RedisStorage struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStorage はRedisStorageを生成する。
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

// Load は保存済みのセッションを取得する。
func (s *RedisStorage) Load(ctx context.Context, key string) (*model.Session, error) {
	data, err := s.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save はセッションを保存する。TTLは保存のたびに延長される。
func (s *RedisStorage) Save(ctx context.Context, key string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, RedisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete はセッションを削除する。
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, RedisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemoryStorage はプロセス内メモリにセッションを保存するストレージ。
// REDIS_URL未設定時とテストで使用する。
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]model.Session)}
}

// Load は保存済みのセッションのコピーを返す。
func (s *MemoryStorage) Load(_ context.Context, key string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Save はセッションを保存する。
func (s *MemoryStorage) Save(_ context.Context, key string, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key] = *session
	return nil
}

// Delete はセッションを削除する。
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

var (
	_ SessionStorage = (*RedisStorage)(nil)
	_ SessionStorage = (*MemoryStorage)(nil)
)
