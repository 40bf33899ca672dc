package repository

import (
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// SessionRepository определяет методы для работы с игровыми сессиями и ответами
type SessionRepository interface {
	CreateSession(session *entity.GameSession) error
	GetSessionByID(id uint) (*entity.GameSession, error)
	// GetSessionByRoomAndUser возвращает сессию игрока в комнате
	GetSessionByRoomAndUser(roomID, userID uint) (*entity.GameSession, error)
	// GetSessionsByRoomID возвращает все сессии комнаты
	GetSessionsByRoomID(roomID uint) ([]entity.GameSession, error)
	// GetActiveSoloSession возвращает незавершенную одиночную сессию пользователя
	GetActiveSoloSession(userID uint) (*entity.GameSession, error)
	// FinishSession точечно фиксирует ended_at и final_score
	FinishSession(sessionID uint, finalScore int, endedAt time.Time) error

	// SaveAnswer сохраняет принятый ответ. Нарушение уникальности
	// (сессия, вопрос) возвращается как apperrors.ErrDuplicateAnswer.
	SaveAnswer(answer *entity.PlayerAnswer) error
	// SaveAnswers сохраняет пачку ответов одной операцией (закрытие окна)
	SaveAnswers(answers []entity.PlayerAnswer) error
	GetAnswersBySession(sessionID uint) ([]entity.PlayerAnswer, error)
	// GetAnswersByRoomID возвращает ответы всех сессий комнаты (для экспорта)
	GetAnswersByRoomID(roomID uint) ([]entity.PlayerAnswer, error)
}
