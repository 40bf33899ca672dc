package entity

import "time"

// NoAnswerSentinel — значение SelectedAnswer для игроков, не ответивших
// до закрытия окна. Такие записи создаются автоматически при закрытии окна.
const NoAnswerSentinel = ""

// PlayerAnswer представляет принятый ответ игрока на вопрос в рамках сессии.
// На пару (сессия, вопрос) существует не более одной записи.
type PlayerAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      uint      `gorm:"not null;index;uniqueIndex:idx_session_question" json:"session_id"`
	QuestionID     uint      `gorm:"not null;index;uniqueIndex:idx_session_question" json:"question_id"`
	SelectedAnswer string    `gorm:"size:255;not null" json:"selected_answer"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	PointsEarned   int       `gorm:"not null;default:0" json:"points_earned"`
	TimeToAnswerMs int64     `gorm:"not null;default:0" json:"time_to_answer_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (PlayerAnswer) TableName() string {
	return "player_answers"
}

// IsNoAnswer проверяет, является ли запись автоматической (игрок не ответил)
func (a *PlayerAnswer) IsNoAnswer() bool {
	return a.SelectedAnswer == NoAnswerSentinel
}
