package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий игровых сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession создает новую игровую сессию
func (r *SessionRepo) CreateSession(session *entity.GameSession) error {
	return mapStorageError(r.db.Create(session).Error)
}

// GetSessionByID возвращает сессию по ID
func (r *SessionRepo) GetSessionByID(id uint) (*entity.GameSession, error) {
	var session entity.GameSession
	err := r.db.First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &session, nil
}

// GetSessionByRoomAndUser возвращает сессию игрока в комнате
func (r *SessionRepo) GetSessionByRoomAndUser(roomID, userID uint) (*entity.GameSession, error) {
	var session entity.GameSession
	err := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &session, nil
}

// GetSessionsByRoomID возвращает все сессии комнаты в порядке создания
func (r *SessionRepo) GetSessionsByRoomID(roomID uint) ([]entity.GameSession, error) {
	var sessions []entity.GameSession
	err := r.db.Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return sessions, nil
}

// GetActiveSoloSession возвращает незавершенную одиночную сессию пользователя
func (r *SessionRepo) GetActiveSoloSession(userID uint) (*entity.GameSession, error) {
	var session entity.GameSession
	err := r.db.Where("user_id = ? AND room_id IS NULL AND ended_at IS NULL", userID).
		Order("id DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, mapStorageError(err)
	}
	return &session, nil
}

// FinishSession точечно фиксирует ended_at и final_score.
// Обновляются только незавершенные сессии: повторный finish не перезаписывает итог.
func (r *SessionRepo) FinishSession(sessionID uint, finalScore int, endedAt time.Time) error {
	result := r.db.Model(&entity.GameSession{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Updates(map[string]interface{}{
			"ended_at":    endedAt,
			"final_score": finalScore,
		})
	if result.Error != nil {
		return mapStorageError(result.Error)
	}
	return nil
}

// SaveAnswer сохраняет принятый ответ.
// Нарушение уникальности (сессия, вопрос) означает повторную отправку
// и возвращается как ErrDuplicateAnswer.
func (r *SessionRepo) SaveAnswer(answer *entity.PlayerAnswer) error {
	err := r.db.Create(answer).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session #%d question #%d",
				apperrors.ErrDuplicateAnswer, answer.SessionID, answer.QuestionID)
		}
		return mapStorageError(err)
	}
	return nil
}

// SaveAnswers сохраняет пачку ответов одной операцией (закрытие окна).
// Конфликтующие строки пропускаются: ответ, принятый раньше, не затирается.
func (r *SessionRepo) SaveAnswers(answers []entity.PlayerAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for i := range answers {
			if err := tx.Create(&answers[i]).Error; err != nil {
				if isUniqueViolation(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
	return mapStorageError(err)
}

// GetAnswersBySession возвращает ответы сессии в порядке вопросов
func (r *SessionRepo) GetAnswersBySession(sessionID uint) ([]entity.PlayerAnswer, error) {
	var answers []entity.PlayerAnswer
	err := r.db.Where("session_id = ?", sessionID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return answers, nil
}

// GetAnswersByRoomID возвращает ответы всех сессий комнаты (для экспорта результатов)
func (r *SessionRepo) GetAnswersByRoomID(roomID uint) ([]entity.PlayerAnswer, error) {
	var answers []entity.PlayerAnswer
	err := r.db.
		Joins("JOIN game_sessions ON game_sessions.id = player_answers.session_id").
		Where("game_sessions.room_id = ?", roomID).
		Order("player_answers.session_id ASC, player_answers.question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	return answers, nil
}
