package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	"github.com/yourusername/quizroom-api/internal/domain/repository"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/pkg/auth"
)

// AuthService предоставляет методы для аутентификации и работы с профилем
type AuthService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Register регистрирует нового пользователя.
// Пароль хешируется bcrypt-хуком сущности при сохранении.
func (s *AuthService) Register(username, email, password string) (*entity.User, error) {
	// Проверяем занятость email и username до вставки, чтобы вернуть
	// понятную ошибку; гонку окончательно разрешает уникальный индекс
	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	user := &entity.User{
		Username:     username,
		Email:        email,
		Password:     password,
		Role:         entity.UserRoleUser,
		LastSignedIn: time.Now(),
	}
	if err := s.userRepo.Create(user); err != nil {
		log.Printf("[AuthService] Ошибка создания пользователя %s: %v", email, err)
		if errors.Is(err, apperrors.ErrValidation) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] Зарегистрирован пользователь #%d (%s)", user.ID, username)
	return user, nil
}

// Login проверяет учетные данные и выпускает access-токен
func (s *AuthService) Login(email, password string) (*entity.User, string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.CheckPassword(password) {
		log.Printf("[AuthService] Неверный пароль для %s", email)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	// Отметка входа не на критическом пути
	now := time.Now()
	merged := entity.MergeProfile(*user, entity.ProfilePatch{LastSignedIn: &now})
	if err := s.userRepo.Update(&merged); err != nil {
		log.Printf("[AuthService] WARNING: не удалось обновить last_signed_in пользователя #%d: %v", user.ID, err)
	}

	return user, token, nil
}

// Logout отзывает все выпущенные токены пользователя
func (s *AuthService) Logout(userID uint) {
	s.jwtService.InvalidateTokensForUser(userID)
}

// GetProfile возвращает профиль пользователя
func (s *AuthService) GetProfile(userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(userID)
}

// UpdateProfile применяет патч профиля по явной политике слияния.
// Nil-поле патча означает "не менять".
func (s *AuthService) UpdateProfile(userID uint, patch entity.ProfilePatch) (*entity.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil && *patch.Username != user.Username {
		if _, err := s.userRepo.GetByUsername(*patch.Username); err == nil {
			return nil, ErrUsernameTaken
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	if patch.Email != nil && *patch.Email != user.Email {
		if _, err := s.userRepo.GetByEmail(*patch.Email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	merged := entity.MergeProfile(*user, patch)
	if err := s.userRepo.Update(&merged); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &merged, nil
}

// GenerateWSTicket выпускает короткоживущий тикет для WebSocket-апгрейда
func (s *AuthService) GenerateWSTicket(userID uint) (string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	return s.jwtService.GenerateWSTicket(user)
}
