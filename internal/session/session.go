// Package session содержит реализации контекста сессии: указатель на текущего
// пользователя. Сессия передаётся в операции аутентификации явно, а не живёт
// в глобальном состоянии.
package session

import (
	"context"
	"sync"

	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

// KV хранит идентификатор текущего пользователя под ключом currentSessionUserId.
// Это режим одного локального клиента, как в исходном браузерном портале.
type KV struct {
	store kv.Store
}

// NewKV создаёт сессию поверх хранилища.
func NewKV(store kv.Store) *KV {
	return &KV{store: store}
}

// UserID возвращает идентификатор пользователя; ошибка чтения означает отсутствие сессии.
func (s *KV) UserID(ctx context.Context) (string, bool) {
	id, found, err := s.store.Get(ctx, records.KeySession)
	if err != nil || !found || id == "" {
		return "", false
	}
	return id, true
}

func (s *KV) SetUserID(ctx context.Context, id string) error {
	return s.store.Set(ctx, records.KeySession, id)
}

func (s *KV) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, records.KeySession)
}

// Memory — сессия в памяти, живущая в пределах одного HTTP-запроса или теста.
type Memory struct {
	mu sync.Mutex
	id string
}

// NewMemory создаёт сессию, уже указывающую на userID (пустая строка — без пользователя).
func NewMemory(userID string) *Memory {
	return &Memory{id: userID}
}

func (s *Memory) UserID(_ context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

func (s *Memory) SetUserID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

func (s *Memory) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	return nil
}
