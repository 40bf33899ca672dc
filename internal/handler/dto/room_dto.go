package dto

import (
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// RoomResponse представляет комнату в формате для ответа клиенту
type RoomResponse struct {
	ID                   uint      `json:"id"`
	Code                 string    `json:"code"`
	OwnerID              uint      `json:"owner_id"`
	Status               string    `json:"status"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	MemberCount          int       `json:"member_count,omitempty"`
	QuestionCount        int       `json:"question_count,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewRoomResponse создает DTO для комнаты
func NewRoomResponse(room *entity.Room, memberCount, questionCount int) *RoomResponse {
	if room == nil {
		return nil
	}
	return &RoomResponse{
		ID:                   room.ID,
		Code:                 room.Code,
		OwnerID:              room.OwnerID,
		Status:               room.Status,
		CurrentQuestionIndex: room.CurrentQuestionIndex,
		MemberCount:          memberCount,
		QuestionCount:        questionCount,
		CreatedAt:            room.CreatedAt,
	}
}

// NewListRoomResponse создает слайс DTO для списка комнат
func NewListRoomResponse(rooms []entity.Room) []*RoomResponse {
	list := make([]*RoomResponse, len(rooms))
	for i := range rooms {
		list[i] = NewRoomResponse(&rooms[i], 0, 0)
	}
	return list
}

// CreateQuestionRequest - тело запроса создания вопроса.
// Требуется ровно три неправильных варианта.
type CreateQuestionRequest struct {
	Text          string   `json:"text" binding:"required,max=500"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=255"`
	WrongAnswers  []string `json:"wrong_answers" binding:"required,len=3"`
}

// QuestionResponse представляет вопрос, каким его видит игрок:
// варианты без указания правильного
type QuestionResponse struct {
	ID        uint      `json:"id"`
	RoomID    *uint     `json:"room_id,omitempty"`
	Text      string    `json:"text"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerQuestionResponse представляет вопрос для владельца:
// правильный ответ виден
type OwnerQuestionResponse struct {
	QuestionResponse
	CorrectAnswer string `json:"correct_answer"`
}

// NewQuestionResponse создает DTO вопроса для игрока
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:        q.ID,
		RoomID:    q.RoomID,
		Text:      q.Text,
		Options:   q.Options(),
		CreatedAt: q.CreatedAt,
	}
}

// NewOwnerQuestionResponse создает DTO вопроса для владельца
func NewOwnerQuestionResponse(q *entity.Question) OwnerQuestionResponse {
	return OwnerQuestionResponse{
		QuestionResponse: NewQuestionResponse(q),
		CorrectAnswer:    q.CorrectAnswer,
	}
}

// NewOwnerQuestionListResponse создает слайс DTO вопросов для владельца
func NewOwnerQuestionListResponse(questions []entity.Question) []OwnerQuestionResponse {
	list := make([]OwnerQuestionResponse, len(questions))
	for i := range questions {
		list[i] = NewOwnerQuestionResponse(&questions[i])
	}
	return list
}

// SubmitAnswerRequest - тело запроса отправки ответа
type SubmitAnswerRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

// StartSoloRequest - тело запроса старта одиночной игры
type StartSoloRequest struct {
	QuestionCount int `json:"question_count"`
}
