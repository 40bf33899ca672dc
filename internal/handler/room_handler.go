package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quizroom-api/internal/handler/dto"
	"github.com/yourusername/quizroom-api/internal/service"
)

// RoomHandler обрабатывает запросы жизненного цикла комнат
type RoomHandler struct {
	roomService     *service.RoomService
	questionService *service.QuestionService
}

// NewRoomHandler создает новый обработчик комнат
func NewRoomHandler(roomService *service.RoomService, questionService *service.QuestionService) *RoomHandler {
	return &RoomHandler{
		roomService:     roomService,
		questionService: questionService,
	}
}

// CreateRoom создает новую комнату
// POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	state, err := h.roomService.CreateRoom(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	state.Mu.Lock()
	resp := dto.NewRoomResponse(state.Room, state.MemberCount(), len(state.Questions))
	state.Mu.Unlock()
	c.JSON(http.StatusCreated, resp)
}

// JoinRoom добавляет текущего пользователя в комнату
// POST /api/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	state, err := h.roomService.JoinRoom(c.Request.Context(), code, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	state.Mu.Lock()
	resp := dto.NewRoomResponse(state.Room, state.MemberCount(), len(state.Questions))
	state.Mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

// GetRoom возвращает комнату по коду
// GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}

	if state, err := h.roomService.FindLiveRoom(code); err == nil {
		state.Mu.Lock()
		resp := dto.NewRoomResponse(state.Room, state.MemberCount(), len(state.Questions))
		state.Mu.Unlock()
		c.JSON(http.StatusOK, resp)
		return
	}

	room, err := h.roomService.GetRoomByCode(code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRoomResponse(room, 0, 0))
}

// ListMyRooms возвращает комнаты текущего пользователя
// GET /api/rooms?page=1&per_page=10
func (h *RoomHandler) ListMyRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	rooms, err := h.roomService.ListByOwner(userID, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": dto.NewListRoomResponse(rooms)})
}

// StartGame запускает игру в комнате
// POST /api/rooms/:code/start
func (h *RoomHandler) StartGame(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	if err := h.roomService.StartGame(c.Request.Context(), code, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game started"})
}

// AdvanceQuestion переводит комнату к следующему вопросу
// POST /api/rooms/:code/advance
func (h *RoomHandler) AdvanceQuestion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	if err := h.roomService.AdvanceQuestion(c.Request.Context(), code, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Advanced"})
}

// AbortRoom досрочно закрывает комнату
// POST /api/rooms/:code/abort
func (h *RoomHandler) AbortRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	if err := h.roomService.AbortRoom(c.Request.Context(), code, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room aborted"})
}

// SubmitAnswer принимает ответ игрока на текущий вопрос (HTTP-путь;
// тот же самый путь доступен по WebSocket через user:answer)
// POST /api/rooms/:code/answers
func (h *RoomHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
		return
	}

	answer, err := h.roomService.SubmitAnswer(c.Request.Context(), code, userID, req.QuestionID, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id":       req.QuestionID,
		"is_correct":        answer.IsCorrect,
		"points_earned":     answer.PointsEarned,
		"time_to_answer_ms": answer.TimeToAnswerMs,
	})
}

// Leaderboard возвращает таблицу лидеров комнаты
// GET /api/rooms/:code/leaderboard
func (h *RoomHandler) Leaderboard(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}

	standings, err := h.roomService.Leaderboard(code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_code": code, "leaderboard": standings})
}

// ExportResults выгружает итоги комнаты в файл Excel
// GET /api/rooms/:code/export
func (h *RoomHandler) ExportResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	content, err := h.roomService.ExportResults(code, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("room_%s_results.xlsx", code)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// AddQuestion добавляет вопрос в комнату (только владелец, до старта)
// POST /api/rooms/:code/questions
func (h *RoomHandler) AddQuestion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
		return
	}

	question, err := h.questionService.CreateRoomQuestion(code, userID, req.Text, req.CorrectAnswer, req.WrongAnswers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOwnerQuestionResponse(question))
}

// ListQuestions возвращает вопросы комнаты (только владелец)
// GET /api/rooms/:code/questions
func (h *RoomHandler) ListQuestions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}

	questions, err := h.questionService.GetRoomQuestions(code, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": dto.NewOwnerQuestionListResponse(questions)})
}
