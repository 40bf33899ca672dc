package repository

import (
	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	Create(question *entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	// GetByRoomID возвращает вопросы комнаты в порядке создания
	GetByRoomID(roomID uint) ([]entity.Question, error)
	// GetPersonal возвращает личные вопросы пользователя (без комнаты)
	GetPersonal(createdBy uint, limit int) ([]entity.Question, error)
	Delete(id uint) error
}
