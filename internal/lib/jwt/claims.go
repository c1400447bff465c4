// Package jwt реализует генерацию и парсинг JWT токенов сессии портала.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли, которые может нести токен.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

// CustomClaims описывает данные сессии, хранящиеся в JWT.
type CustomClaims struct {
	UserID string `json:"uid,omitempty"` // Пусто для оператора
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(userID, email, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
