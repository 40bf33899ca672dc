package entity

import (
	"time"
)

// Константы статусов комнаты
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
)

// Room представляет игровую комнату
type Room struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Code                 string     `gorm:"size:10;not null;uniqueIndex" json:"code"`
	OwnerID              uint       `gorm:"not null;index" json:"owner_id"`
	Status               string     `gorm:"size:20;not null;default:'waiting';index" json:"status"`
	CurrentQuestionIndex int        `gorm:"not null;default:0" json:"current_question_index"`
	Questions            []Question `gorm:"foreignKey:RoomID" json:"questions,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Room) TableName() string {
	return "rooms"
}

// IsWaiting проверяет, принимает ли комната новых игроков
func (r *Room) IsWaiting() bool {
	return r.Status == RoomStatusWaiting
}

// IsPlaying проверяет, идет ли в комнате игра
func (r *Room) IsPlaying() bool {
	return r.Status == RoomStatusPlaying
}

// IsFinished проверяет, завершена ли комната
func (r *Room) IsFinished() bool {
	return r.Status == RoomStatusFinished
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Переходы монотонны: waiting → playing → finished, обратных нет.
func (r *Room) CanTransitionTo(status string) bool {
	switch r.Status {
	case RoomStatusWaiting:
		return status == RoomStatusPlaying || status == RoomStatusFinished
	case RoomStatusPlaying:
		return status == RoomStatusFinished
	default:
		return false
	}
}

// RoomMember представляет участника комнаты
type RoomMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"not null;index;uniqueIndex:idx_room_user" json:"room_id"`
	UserID   uint      `gorm:"not null;index;uniqueIndex:idx_room_user" json:"user_id"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

// TableName определяет имя таблицы для GORM
func (RoomMember) TableName() string {
	return "room_members"
}
