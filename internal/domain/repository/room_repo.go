package repository

import (
	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// RoomRepository определяет методы для работы с комнатами
type RoomRepository interface {
	Create(room *entity.Room) error
	GetByID(id uint) (*entity.Room, error)
	GetByCode(code string) (*entity.Room, error)
	GetWithQuestions(id uint) (*entity.Room, error)
	// UpdateStatus точечно обновляет status без full Save
	UpdateStatus(roomID uint, status string) error
	// UpdateQuestionIndex точечно обновляет current_question_index
	UpdateQuestionIndex(roomID uint, index int) error
	// AddMember добавляет участника; повторное добавление той же пары
	// (room, user) не является ошибкой (идемпотентность join)
	AddMember(member *entity.RoomMember) error
	GetMembers(roomID uint) ([]entity.RoomMember, error)
	// ListByOwner возвращает комнаты владельца, новые первыми
	ListByOwner(ownerID uint, limit, offset int) ([]entity.Room, error)
	Delete(id uint) error
}
