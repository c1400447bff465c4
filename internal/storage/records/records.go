// Package records реализует хранение списков записей целиком поверх kv.Store:
// загрузка, сохранение с полной заменой, экспорт и проверенный импорт заявок.
//
// Конкурентная запись не защищена: последний записавший побеждает. Вызывающий
// обязан выполнять чтение-изменение-запись одним логическим шагом.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
)

// Ключи хранилища.
const (
	KeyRequests = "requests"
	KeyUsers    = "users"
	KeyMessages = "messages"
	KeySession  = "currentSessionUserId"
)

// Store хранит список записей типа T под одним ключом.
type Store[T any] struct {
	kv  kv.Store
	key string
	log *slog.Logger
}

// New создаёт Store для ключа key.
func New[T any](store kv.Store, key string, log *slog.Logger) *Store[T] {
	return &Store[T]{
		kv:  store,
		key: key,
		log: log.With(slog.String("key", key)),
	}
}

// Load возвращает сохранённый список. Отсутствующий, повреждённый или недоступный
// ключ читается как пустой список: потеря демо-данных лучше падения.
func (s *Store[T]) Load(ctx context.Context) []T {
	const op = "records.Load"
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("failed to read records, treating as empty", sl.Op(op), sl.Err(err))
		return []T{}
	}
	if !found || strings.TrimSpace(raw) == "" {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("stored records are not parsable, treating as empty", sl.Op(op), sl.Err(err))
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}

// Save целиком заменяет сохранённый список.
func (s *Store[T]) Save(ctx context.Context, list []T) error {
	const op = "records.Save"
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Export сериализует текущий список как есть.
func (s *Store[T]) Export(ctx context.Context) ([]byte, error) {
	const op = "records.Export"
	raw, err := json.MarshalIndent(s.Load(ctx), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}
