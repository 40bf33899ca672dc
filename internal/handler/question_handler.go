package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quizroom-api/internal/handler/dto"
	"github.com/yourusername/quizroom-api/internal/service"
)

// QuestionHandler обрабатывает запросы личных вопросов пользователя
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler создает новый обработчик вопросов
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// CreatePersonal создает личный вопрос (для одиночных игр)
// POST /api/questions
func (h *QuestionHandler) CreatePersonal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
		return
	}

	question, err := h.questionService.CreatePersonalQuestion(userID, req.Text, req.CorrectAnswer, req.WrongAnswers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOwnerQuestionResponse(question))
}

// ListPersonal возвращает личные вопросы пользователя
// GET /api/questions?limit=20
func (h *QuestionHandler) ListPersonal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	questions, err := h.questionService.GetPersonalQuestions(userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": dto.NewOwnerQuestionListResponse(questions)})
}

// Delete удаляет вопрос (только автор)
// DELETE /api/questions/:id
func (h *QuestionHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	questionID, exists := c.Get("question_id")
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question id"})
		return
	}

	if err := h.questionService.DeleteQuestion(questionID.(uint), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}
