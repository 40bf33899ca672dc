package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractUintParam создает middleware для извлечения и валидации числового параметра URL.
// paramName - имя параметра в URL (например, "id").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		// Сохраняем как uint для единообразия
		c.Set(contextKey, uint(id))
		c.Next()
	}
}

// ExtractRoomCode создает middleware для извлечения кода комнаты из URL.
// Код нормализуется к верхнему регистру и проверяется по длине,
// под ключом "room_code" кладется в контекст Gin.
func ExtractRoomCode(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param(paramName)))
		if len(code) < 4 || len(code) > 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code"})
			c.Abort()
			return
		}
		c.Set("room_code", code)
		c.Next()
	}
}
