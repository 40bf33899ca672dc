package roommanager

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// AnswerCollector отвечает за прием ответов в окне текущего вопроса:
// дедупликация по игроку, проверка окна, детерминированное начисление очков.
type AnswerCollector struct {
	// Настройки
	config *Config

	// Зависимости
	deps *Dependencies
}

// NewAnswerCollector создает новый коллектор ответов
func NewAnswerCollector(config *Config, deps *Dependencies) *AnswerCollector {
	return &AnswerCollector{
		config: config,
		deps:   deps,
	}
}

// OpenWindow открывает окно ответов для вопроса по индексу index.
// Вызывается под мьютексом комнаты.
func (ac *AnswerCollector) OpenWindow(state *RoomState, question *entity.Question, index int) *AnswerWindow {
	window := &AnswerWindow{
		Question:   question,
		Index:      index,
		OpenedAtMs: time.Now().UnixNano() / int64(time.Millisecond),
		DurationMs: ac.config.AnswerWindow.Milliseconds(),
		Answers:    make(map[uint]*entity.PlayerAnswer),
	}
	state.SetWindow(window)

	log.Printf("[AnswerCollector] Окно ответов открыто: комната %s, вопрос #%d (индекс %d), окно %d мс",
		state.Room.Code, question.ID, index, window.DurationMs)
	return window
}

// Submit обрабатывает ответ игрока на текущий вопрос.
// Вызывается под мьютексом комнаты. Принимается не более одного ответа
// на игрока: повторная отправка отклоняется с ErrDuplicateAnswer,
// отправка после закрытия окна - с ErrWindowClosed.
func (ac *AnswerCollector) Submit(
	ctx context.Context,
	state *RoomState,
	userID uint,
	questionID uint,
	selectedAnswer string,
) (*entity.PlayerAnswer, error) {
	member, ok := state.MemberByUser(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user #%d is not a member of room %s",
			apperrors.ErrNotFound, userID, state.Room.Code)
	}

	window := state.Window()
	if window == nil || window.Question.ID != questionID {
		return nil, fmt.Errorf("%w: question #%d is not accepting answers",
			apperrors.ErrWindowClosed, questionID)
	}

	// Фиксируем серверное время получения
	nowMs := time.Now().UnixNano() / int64(time.Millisecond)
	if !window.IsOpen(nowMs) {
		log.Printf("[AnswerCollector] Ответ игрока #%d на вопрос #%d получен после закрытия окна",
			userID, questionID)
		return nil, apperrors.ErrWindowClosed
	}

	if _, answered := window.Answers[userID]; answered {
		log.Printf("[AnswerCollector] Игрок #%d уже отвечал на вопрос #%d комнаты %s",
			userID, questionID, state.Room.Code)
		return nil, apperrors.ErrDuplicateAnswer
	}

	latencyMs := nowMs - window.OpenedAtMs
	if latencyMs < 0 {
		latencyMs = 0
	}

	isCorrect := window.Question.IsCorrect(selectedAnswer)
	points := ac.CalculatePoints(isCorrect, latencyMs, window.DurationMs)

	answer := &entity.PlayerAnswer{
		SessionID:      member.SessionID,
		QuestionID:     questionID,
		SelectedAnswer: selectedAnswer,
		IsCorrect:      isCorrect,
		PointsEarned:   points,
		TimeToAnswerMs: latencyMs,
	}
	window.Answers[userID] = answer

	// Накапливаем живые итоги участника
	member.Score += points
	member.TotalLatencyMs += latencyMs

	log.Printf("[AnswerCollector] Принят ответ игрока #%d на вопрос #%d: correct=%t, points=%d, latency=%d мс",
		userID, questionID, isCorrect, points, latencyMs)
	return answer, nil
}

// CloseWindow закрывает окно ответов и доначисляет "нет ответа".
// Вызывается под мьютексом комнаты. Каждый участник без принятого ответа
// получает нулевую запись с сентинельным SelectedAnswer - этот факт
// персистентен наравне с обычными ответами.
// Возвращает полный набор записей окна в порядке вступления участников.
func (ac *AnswerCollector) CloseWindow(state *RoomState) []entity.PlayerAnswer {
	window := state.Window()
	if window == nil {
		return nil
	}
	window.Closed = true

	results := make([]entity.PlayerAnswer, 0, state.MemberCount())
	for _, member := range state.Members() {
		if answer, ok := window.Answers[member.UserID]; ok {
			results = append(results, *answer)
			continue
		}
		// Нет ответа: ноль очков, задержка в тай-брейк не засчитывается
		noAnswer := entity.PlayerAnswer{
			SessionID:      member.SessionID,
			QuestionID:     window.Question.ID,
			SelectedAnswer: entity.NoAnswerSentinel,
			IsCorrect:      false,
			PointsEarned:   0,
			TimeToAnswerMs: 0,
		}
		window.Answers[member.UserID] = &noAnswer
		results = append(results, noAnswer)
	}

	log.Printf("[AnswerCollector] Окно вопроса #%d комнаты %s закрыто: %d записей (%d участников)",
		window.Question.ID, state.Room.Code, len(results), state.MemberCount())
	return results
}

// CalculatePoints детерминированно начисляет очки за ответ.
// Неправильный ответ или его отсутствие - 0 очков. Правильный ответ
// получает BasePoints, линейно убывающие с задержкой внутри окна
// до нижней границы MinPoints. Одинаковые пары (correct, latency)
// всегда дают одинаковый результат - никакой скрытой случайности.
func (ac *AnswerCollector) CalculatePoints(isCorrect bool, latencyMs, windowMs int64) int {
	if !isCorrect {
		return 0
	}
	if windowMs <= 0 || latencyMs <= 0 {
		return ac.config.BasePoints
	}
	if latencyMs >= windowMs {
		return ac.config.MinPoints
	}
	spread := int64(ac.config.BasePoints - ac.config.MinPoints)
	return ac.config.BasePoints - int(spread*latencyMs/windowMs)
}
