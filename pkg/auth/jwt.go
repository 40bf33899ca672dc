package auth

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// Usage-клеймы токенов
const (
	usageAccess   = "access"
	usageWSTicket = "ws_ticket"
)

var (
	// ErrInvalidToken возвращается для просроченных и некорректных токенов
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrTokenInvalidated возвращается, если токены пользователя отозваны
	ErrTokenInvalidated = errors.New("token has been invalidated")
)

// JWTCustomClaims содержит пользовательские поля токена
type JWTCustomClaims struct {
	UserID  uint   `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
	// Usage разделяет access-токены и одноразовые WS-тикеты
	Usage string `json:"usage,omitempty"`
}

// JWTService выпускает и проверяет access-токены и короткоживущие
// WS-тикеты для апгрейда WebSocket-соединений.
type JWTService struct {
	secretKey      []byte
	expiration     time.Duration
	wsTicketExpiry time.Duration

	// Отозванные пользователи: все токены, выпущенные ДО отметки, недействительны
	mu               sync.RWMutex
	invalidatedUsers map[uint]time.Time
}

// NewJWTService создает сервис JWT.
func NewJWTService(secretKey string, expirationHrs int, wsTicketExpirySec int) (*JWTService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("JWT secret key is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second
	}

	return &JWTService{
		secretKey:        []byte(secretKey),
		expiration:       time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry:   wsExpiry,
		invalidatedUsers: make(map[uint]time.Time),
	}, nil
}

// GenerateToken выпускает access-токен для пользователя.
func (s *JWTService) GenerateToken(user *entity.User) (string, error) {
	return s.generate(user, s.expiration, usageAccess)
}

// GenerateWSTicket выпускает короткоживущий тикет для WebSocket-апгрейда.
// Тикет передается в query-параметре, поэтому живет секунды, а не часы.
func (s *JWTService) GenerateWSTicket(user *entity.User) (string, error) {
	return s.generate(user, s.wsTicketExpiry, usageWSTicket)
}

func (s *JWTService) generate(user *entity.User, ttl time.Duration, usage string) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin(),
		Usage:   usage,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет access-токен и возвращает его клеймы.
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	return s.parse(tokenString, usageAccess)
}

// ParseWSTicket проверяет WS-тикет и возвращает его клеймы.
// Access-токен вместо тикета отклоняется: тикеты попадают в логи
// прокси через query string, поэтому права у них минимальные.
func (s *JWTService) ParseWSTicket(tokenString string) (*JWTCustomClaims, error) {
	return s.parse(tokenString, usageWSTicket)
}

func (s *JWTService) parse(tokenString string, expectedUsage string) (*JWTCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Usage != expectedUsage {
		return nil, fmt.Errorf("%w: unexpected token usage %q", ErrInvalidToken, claims.Usage)
	}

	if s.isInvalidated(claims.UserID, claims.IssuedAt) {
		return nil, ErrTokenInvalidated
	}
	return claims, nil
}

// InvalidateTokensForUser отзывает все ранее выпущенные токены пользователя.
func (s *JWTService) InvalidateTokensForUser(userID uint) {
	s.mu.Lock()
	s.invalidatedUsers[userID] = time.Now()
	s.mu.Unlock()
	log.Printf("[JWT] Токены пользователя #%d отозваны", userID)
}

func (s *JWTService) isInvalidated(userID uint, issuedAt *jwt.NumericDate) bool {
	s.mu.RLock()
	invalidatedAt, ok := s.invalidatedUsers[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if issuedAt == nil {
		return true
	}
	return issuedAt.Time.Before(invalidatedAt)
}
