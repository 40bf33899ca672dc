package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// RoomRepo реализует repository.RoomRepository
type RoomRepo struct {
	db *gorm.DB
}

// NewRoomRepo создает новый репозиторий комнат
func NewRoomRepo(db *gorm.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create создает новую комнату.
// Нарушение уникальности кода среди живых комнат (гонка двух процессов
// за один код) возвращается как ErrCodeGenerationExhausted, чтобы реестр
// сделал ретрай.
func (r *RoomRepo) Create(room *entity.Room) error {
	err := r.db.Create(room).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: code %s", apperrors.ErrCodeGenerationExhausted, room.Code)
		}
		return mapStorageError(err)
	}
	return nil
}

// GetByID возвращает комнату по ID
func (r *RoomRepo) GetByID(id uint) (*entity.Room, error) {
	var room entity.Room
	err := r.db.First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &room, nil
}

// GetByCode возвращает комнату по коду. Код переиспользуется после
// карантина, поэтому среди завершенных комнат берется самая свежая.
func (r *RoomRepo) GetByCode(code string) (*entity.Room, error) {
	var room entity.Room
	err := r.db.Where("code = ?", code).
		Order("id DESC").
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &room, nil
}

// GetWithQuestions возвращает комнату вместе с вопросами в порядке создания
func (r *RoomRepo) GetWithQuestions(id uint) (*entity.Room, error) {
	var room entity.Room
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id ASC")
	}).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &room, nil
}

// UpdateStatus обновляет статус комнаты
func (r *RoomRepo) UpdateStatus(roomID uint, status string) error {
	return mapStorageError(r.db.Model(&entity.Room{}).
		Where("id = ?", roomID).
		Update("status", status).
		Error)
}

// UpdateQuestionIndex точечно обновляет current_question_index
func (r *RoomRepo) UpdateQuestionIndex(roomID uint, index int) error {
	return mapStorageError(r.db.Model(&entity.Room{}).
		Where("id = ?", roomID).
		Update("current_question_index", index).
		Error)
}

// AddMember добавляет участника комнаты.
// Повторное добавление той же пары (room, user) не является ошибкой:
// unique violation по idx_room_user поглощается (идемпотентный join).
func (r *RoomRepo) AddMember(member *entity.RoomMember) error {
	err := r.db.Create(member).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return mapStorageError(err)
	}
	return nil
}

// GetMembers возвращает участников комнаты в порядке вступления
func (r *RoomRepo) GetMembers(roomID uint) ([]entity.RoomMember, error) {
	var members []entity.RoomMember
	err := r.db.Where("room_id = ?", roomID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return members, nil
}

// ListByOwner возвращает комнаты владельца с пагинацией, новые первыми
func (r *RoomRepo) ListByOwner(ownerID uint, limit, offset int) ([]entity.Room, error) {
	var rooms []entity.Room
	err := r.db.Where("owner_id = ?", ownerID).
		Limit(limit).Offset(offset).
		Order("id DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return rooms, nil
}

// Delete удаляет комнату
func (r *RoomRepo) Delete(id uint) error {
	return mapStorageError(r.db.Delete(&entity.Room{}, id).Error)
}
