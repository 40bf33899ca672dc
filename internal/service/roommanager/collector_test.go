package roommanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

func newCollectorState(t *testing.T, config *Config) (*AnswerCollector, *RoomState) {
	t.Helper()
	room := &entity.Room{ID: 1, Code: "AB12CD", OwnerID: 1, Status: entity.RoomStatusPlaying}
	questions := testQuestions(room.ID, 2)
	state := NewRoomState(room, questions)
	now := time.Now()
	owner, _ := state.AddMember(1, now)
	owner.SessionID = 10
	player, _ := state.AddMember(2, now)
	player.SessionID = 20

	collector := NewAnswerCollector(config, &Dependencies{})
	return collector, state
}

func TestAnswerCollector_CalculatePoints_Deterministic(t *testing.T) {
	config := testConfig()
	collector := NewAnswerCollector(config, &Dependencies{})

	// Одинаковая пара (correct, latency) всегда дает одинаковый результат
	for i := 0; i < 10; i++ {
		assert.Equal(t,
			collector.CalculatePoints(true, 3000, 10000),
			collector.CalculatePoints(true, 3000, 10000))
	}
}

func TestAnswerCollector_CalculatePoints_Bounds(t *testing.T) {
	config := testConfig()
	collector := NewAnswerCollector(config, &Dependencies{})

	// Неправильный ответ — всегда 0
	assert.Equal(t, 0, collector.CalculatePoints(false, 0, 10000))
	assert.Equal(t, 0, collector.CalculatePoints(false, 5000, 10000))

	// Мгновенный правильный ответ — максимум
	assert.Equal(t, config.BasePoints, collector.CalculatePoints(true, 0, 10000))

	// Ответ в конце окна и позже — нижняя граница, не ниже
	assert.Equal(t, config.MinPoints, collector.CalculatePoints(true, 10000, 10000))
	assert.Equal(t, config.MinPoints, collector.CalculatePoints(true, 99999, 10000))

	// Середина окна — линейная интерполяция
	expected := config.BasePoints - (config.BasePoints-config.MinPoints)/2
	assert.Equal(t, expected, collector.CalculatePoints(true, 5000, 10000))
}

func TestAnswerCollector_CalculatePoints_Monotonic(t *testing.T) {
	config := testConfig()
	collector := NewAnswerCollector(config, &Dependencies{})

	// Очки не растут с задержкой
	prev := collector.CalculatePoints(true, 0, 10000)
	for latency := int64(1000); latency <= 10000; latency += 1000 {
		points := collector.CalculatePoints(true, latency, 10000)
		assert.LessOrEqual(t, points, prev, "очки должны монотонно убывать с задержкой")
		assert.GreaterOrEqual(t, points, config.MinPoints)
		prev = points
	}
}

func TestAnswerCollector_Submit_AcceptsAndScores(t *testing.T) {
	// Arrange
	config := testConfig()
	collector, state := newCollectorState(t, config)
	question := &state.Questions[0]
	collector.OpenWindow(state, question, 0)

	// Act
	answer, err := collector.Submit(context.Background(), state, 2, question.ID, "верный")

	// Assert
	assert.NoError(t, err)
	assert.True(t, answer.IsCorrect)
	assert.Greater(t, answer.PointsEarned, 0)
	assert.Equal(t, uint(20), answer.SessionID)

	member, _ := state.MemberByUser(2)
	assert.Equal(t, answer.PointsEarned, member.Score, "очки копятся в живом итоге участника")
}

func TestAnswerCollector_Submit_DuplicateRejected(t *testing.T) {
	// Arrange
	config := testConfig()
	collector, state := newCollectorState(t, config)
	question := &state.Questions[0]
	collector.OpenWindow(state, question, 0)

	first, err := collector.Submit(context.Background(), state, 2, question.ID, "верный")
	assert.NoError(t, err)

	// Act: повторная отправка, даже с другим ответом
	_, err = collector.Submit(context.Background(), state, 2, question.ID, "а")

	// Assert: принят только первый ответ
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
	member, _ := state.MemberByUser(2)
	assert.Equal(t, first.PointsEarned, member.Score, "счет не меняется повторной отправкой")
}

func TestAnswerCollector_Submit_ClosedWindowRejected(t *testing.T) {
	// Arrange
	config := testConfig()
	collector, state := newCollectorState(t, config)
	question := &state.Questions[0]
	window := collector.OpenWindow(state, question, 0)
	window.Closed = true

	// Act
	_, err := collector.Submit(context.Background(), state, 2, question.ID, "верный")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrWindowClosed)
}

func TestAnswerCollector_Submit_ExpiredWindowRejected(t *testing.T) {
	// Arrange: окно, открытое в прошлом и уже истекшее
	config := testConfig()
	collector, state := newCollectorState(t, config)
	question := &state.Questions[0]
	window := collector.OpenWindow(state, question, 0)
	window.OpenedAtMs -= window.DurationMs + 1000

	// Act
	_, err := collector.Submit(context.Background(), state, 2, question.ID, "верный")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrWindowClosed)
}

func TestAnswerCollector_Submit_WrongQuestionRejected(t *testing.T) {
	// Arrange: окно открыто для первого вопроса
	config := testConfig()
	collector, state := newCollectorState(t, config)
	collector.OpenWindow(state, &state.Questions[0], 0)

	// Act: ответ на второй вопрос
	_, err := collector.Submit(context.Background(), state, 2, state.Questions[1].ID, "верный")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrWindowClosed)
}

func TestAnswerCollector_Submit_NonMemberRejected(t *testing.T) {
	// Arrange
	config := testConfig()
	collector, state := newCollectorState(t, config)
	collector.OpenWindow(state, &state.Questions[0], 0)

	// Act: пользователь #99 не участник комнаты
	_, err := collector.Submit(context.Background(), state, 99, state.Questions[0].ID, "верный")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAnswerCollector_CloseWindow_FillsNoAnswers(t *testing.T) {
	// Arrange: отвечает только игрок #2, владелец молчит
	config := testConfig()
	collector, state := newCollectorState(t, config)
	question := &state.Questions[0]
	collector.OpenWindow(state, question, 0)

	_, err := collector.Submit(context.Background(), state, 2, question.ID, "верный")
	assert.NoError(t, err)

	// Act
	results := collector.CloseWindow(state)

	// Assert: по записи на каждого участника
	assert.Len(t, results, 2)

	var noAnswer *entity.PlayerAnswer
	for i := range results {
		if results[i].SessionID == 10 {
			noAnswer = &results[i]
		}
	}
	assert.NotNil(t, noAnswer, "промолчавший участник должен получить запись")
	assert.True(t, noAnswer.IsNoAnswer())
	assert.False(t, noAnswer.IsCorrect)
	assert.Equal(t, 0, noAnswer.PointsEarned)
	assert.Equal(t, int64(0), noAnswer.TimeToAnswerMs)

	// Счет промолчавшего не меняется
	owner, _ := state.MemberByUser(1)
	assert.Equal(t, 0, owner.Score)
	assert.Equal(t, int64(0), owner.TotalLatencyMs, "задержка не засчитывается в тай-брейк")
}
