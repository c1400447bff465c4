// Package kv реализует поверхность хранения ключ-значение, заменяющую localStorage
// браузера: в памяти, в JSON-файле и в redis.
package kv

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/abo-portal/internal/config"
)

// Store — минимальный контракт хранилища строковых значений по ключу.
type Store interface {
	// Get возвращает значение и признак наличия ключа.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set целиком заменяет значение по ключу.
	Set(ctx context.Context, key, value string) error
	// Delete удаляет ключ; отсутствие ключа не ошибка.
	Delete(ctx context.Context, key string) error
}

// Open создаёт хранилище по настройкам storage.backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	const op = "kv.Open"
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.FilePath)
	case "redis":
		return NewRedis(ctx, cfg.RedisConnection, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("%s: unknown storage backend %q", op, cfg.Backend)
	}
}
