package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quizroom-api/internal/handler/dto"
	"github.com/yourusername/quizroom-api/internal/service"
)

// SoloHandler обрабатывает запросы одиночных игр
type SoloHandler struct {
	soloService *service.SoloService
}

// NewSoloHandler создает новый обработчик одиночных игр
func NewSoloHandler(soloService *service.SoloService) *SoloHandler {
	return &SoloHandler{soloService: soloService}
}

// Start начинает одиночное прохождение личных вопросов
// POST /api/solo/start
func (h *SoloHandler) Start(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.StartSoloRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
		return
	}

	view, err := h.soloService.StartSolo(userID, req.QuestionCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Current возвращает текущий вопрос активного прохождения
// GET /api/solo/current
func (h *SoloHandler) Current(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := h.soloService.CurrentQuestion(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Answer принимает ответ на текущий вопрос прохождения
// POST /api/solo/answer
func (h *SoloHandler) Answer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
		return
	}

	result, err := h.soloService.SubmitAnswer(userID, req.QuestionID, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Abandon досрочно завершает прохождение с текущим счетом
// POST /api/solo/abandon
func (h *SoloHandler) Abandon(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.soloService.Abandon(userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Solo game abandoned"})
}
