package dto

import (
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// RegisterRequest - тело запроса регистрации
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest - тело запроса входа
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest - тело запроса обновления профиля.
// Nil-поле означает "не менять".
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// UserResponse представляет пользователя в формате для ответа клиенту
type UserResponse struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	TotalScore   int       `json:"total_score"`
	GamesPlayed  int       `json:"games_played"`
	LastSignedIn time.Time `json:"last_signed_in"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUserResponse создает DTO для пользователя
func NewUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		TotalScore:   user.TotalScore,
		GamesPlayed:  user.GamesPlayed,
		LastSignedIn: user.LastSignedIn,
		CreatedAt:    user.CreatedAt,
	}
}

// AuthResponse - ответ на успешный вход или регистрацию
type AuthResponse struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// LeaderboardUserDTO представляет одного пользователя в глобальном рейтинге
type LeaderboardUserDTO struct {
	Rank        int    `json:"rank"`         // Место пользователя в рейтинге
	UserID      uint   `json:"user_id"`      // ID пользователя
	Username    string `json:"username"`     // Имя пользователя
	TotalScore  int    `json:"total_score"`  // Суммарный счет за все игры
	GamesPlayed int    `json:"games_played"` // Количество сыгранных игр
}

// PaginatedLeaderboardResponse представляет пагинированный ответ для рейтинга
type PaginatedLeaderboardResponse struct {
	Users   []*LeaderboardUserDTO `json:"users"`    // Список пользователей на странице
	Total   int64                 `json:"total"`    // Общее количество пользователей
	Page    int                   `json:"page"`     // Текущая страница
	PerPage int                   `json:"per_page"` // Количество пользователей на странице
}
