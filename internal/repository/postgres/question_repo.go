package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(question *entity.Question) error {
	return mapStorageError(r.db.Create(question).Error)
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &question, nil
}

// GetByRoomID возвращает вопросы комнаты в порядке создания
func (r *QuestionRepo) GetByRoomID(roomID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return questions, nil
}

// GetPersonal возвращает личные вопросы пользователя (room_id IS NULL)
func (r *QuestionRepo) GetPersonal(createdBy uint, limit int) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("created_by = ? AND room_id IS NULL", createdBy).
		Order("id ASC").
		Limit(limit).
		Find(&questions).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return questions, nil
}

// Delete удаляет вопрос
func (r *QuestionRepo) Delete(id uint) error {
	return mapStorageError(r.db.Delete(&entity.Question{}, id).Error)
}
