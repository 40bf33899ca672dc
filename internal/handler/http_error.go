package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/internal/service"
)

// respondError переводит ошибку сервисного слоя в HTTP-ответ.
// Единая точка соответствия: хендлеры не придумывают статусы сами.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "invalid_transition"})
	case errors.Is(err, apperrors.ErrDuplicateAnswer):
		c.JSON(http.StatusConflict, gin.H{"error": "Answer already submitted", "error_type": "duplicate_answer"})
	case errors.Is(err, apperrors.ErrWindowClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Answer window is closed", "error_type": "window_closed"})
	case errors.Is(err, apperrors.ErrRoomClosed):
		c.JSON(http.StatusGone, gin.H{"error": "Room is closed", "error_type": "room_closed"})
	case errors.Is(err, apperrors.ErrInsufficientPlayers):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "insufficient_players"})
	case errors.Is(err, apperrors.ErrNoQuestions):
		c.JSON(http.StatusConflict, gin.H{"error": "Room has no questions", "error_type": "no_questions"})
	case errors.Is(err, apperrors.ErrCodeGenerationExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not allocate a room code, try again", "error_type": "code_exhausted"})
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage is temporarily unavailable", "error_type": "storage_unavailable"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password", "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "conflict"})
	default:
		log.Printf("[Handler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal"})
	}
}

// currentUserID извлекает ID пользователя, установленный auth middleware
func currentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthorized"})
		return 0, false
	}
	return value.(uint), true
}

// roomCode извлекает код комнаты, установленный param middleware
func roomCode(c *gin.Context) (string, bool) {
	value, exists := c.Get("room_code")
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code"})
		return "", false
	}
	return value.(string), true
}
