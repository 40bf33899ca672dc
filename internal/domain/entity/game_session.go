package entity

import (
	"errors"
	"time"
)

// GameContext описывает контекст игровой сессии: многопользовательская комната
// или одиночная игра. Ровно одно из полей RoomID/UserID заполнено — тип заменяет
// пару nullable-колонок на явный тегированный вариант.
type GameContext struct {
	RoomID *uint
	UserID *uint
}

// MultiplayerContext создает контекст сессии в комнате
func MultiplayerContext(roomID uint) GameContext {
	return GameContext{RoomID: &roomID}
}

// SoloContext создает контекст одиночной сессии
func SoloContext(userID uint) GameContext {
	return GameContext{UserID: &userID}
}

// IsMultiplayer проверяет, привязана ли сессия к комнате
func (c GameContext) IsMultiplayer() bool {
	return c.RoomID != nil
}

// IsSolo проверяет, является ли сессия одиночной
func (c GameContext) IsSolo() bool {
	return c.UserID != nil && c.RoomID == nil
}

// Validate проверяет инвариант контекста: заполнено ровно одно поле
func (c GameContext) Validate() error {
	if c.RoomID != nil && c.UserID == nil {
		return nil
	}
	if c.RoomID == nil && c.UserID != nil {
		return nil
	}
	return errors.New("game context must be either multiplayer or solo")
}

// GameSession представляет игровую сессию: участие игрока в комнате
// или одиночное прохождение набора вопросов.
type GameSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RoomID     *uint      `gorm:"index" json:"room_id,omitempty"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	FinalScore int        `gorm:"not null;default:0" json:"final_score"`
}

// NewGameSession создает сессию игрока в заданном игровом контексте.
// Единственная точка, где контекст превращается в колонки хранилища:
// вне конструктора сессии с невалидной парой RoomID/UserID не собираются.
func NewGameSession(userID uint, gameCtx GameContext, startedAt time.Time) (*GameSession, error) {
	if err := gameCtx.Validate(); err != nil {
		return nil, err
	}
	return &GameSession{
		RoomID:    gameCtx.RoomID,
		UserID:    userID,
		StartedAt: startedAt,
	}, nil
}

// TableName определяет имя таблицы для GORM
func (GameSession) TableName() string {
	return "game_sessions"
}

// Context возвращает контекст сессии в виде тегированного варианта
func (s *GameSession) Context() GameContext {
	if s.RoomID != nil {
		return MultiplayerContext(*s.RoomID)
	}
	return SoloContext(s.UserID)
}

// IsActive проверяет, не завершена ли сессия
func (s *GameSession) IsActive() bool {
	return s.EndedAt == nil
}

// Finish фиксирует завершение сессии с итоговым счетом.
// Повторный вызов не меняет уже зафиксированные значения.
func (s *GameSession) Finish(finalScore int, endedAt time.Time) {
	if s.EndedAt != nil {
		return
	}
	s.EndedAt = &endedAt
	s.FinalScore = finalScore
}
