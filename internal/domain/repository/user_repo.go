package repository

import (
	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	Update(user *entity.User) error
	// AddGameResult атомарно увеличивает total_score и games_played
	AddGameResult(userID uint, score int) error
	// GetTopPlayers возвращает страницу глобального рейтинга по total_score
	// вместе с общим числом пользователей
	GetTopPlayers(limit, offset int) ([]entity.User, int64, error)
}
