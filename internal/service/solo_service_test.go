package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/internal/service/roommanager"
)

// ============================================================================
// Моки репозиториев для SoloService
// ============================================================================

type MockQuestionRepoForSolo struct {
	mock.Mock
}

func (m *MockQuestionRepoForSolo) GetPersonal(createdBy uint, limit int) ([]entity.Question, error) {
	args := m.Called(createdBy, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepoForSolo) Create(question *entity.Question) error    { return nil }
func (m *MockQuestionRepoForSolo) GetByID(id uint) (*entity.Question, error) { return nil, nil }
func (m *MockQuestionRepoForSolo) GetByRoomID(roomID uint) ([]entity.Question, error) {
	return nil, nil
}
func (m *MockQuestionRepoForSolo) Delete(id uint) error { return nil }

type MockSessionRepoForSolo struct {
	mock.Mock
}

func (m *MockSessionRepoForSolo) CreateSession(session *entity.GameSession) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionRepoForSolo) FinishSession(sessionID uint, finalScore int, endedAt time.Time) error {
	args := m.Called(sessionID, finalScore, endedAt)
	return args.Error(0)
}

func (m *MockSessionRepoForSolo) SaveAnswer(answer *entity.PlayerAnswer) error {
	args := m.Called(answer)
	return args.Error(0)
}

func (m *MockSessionRepoForSolo) SaveAnswers(answers []entity.PlayerAnswer) error { return nil }
func (m *MockSessionRepoForSolo) GetSessionByID(id uint) (*entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepoForSolo) GetSessionByRoomAndUser(roomID, userID uint) (*entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepoForSolo) GetSessionsByRoomID(roomID uint) ([]entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepoForSolo) GetActiveSoloSession(userID uint) (*entity.GameSession, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GameSession), args.Error(1)
}
func (m *MockSessionRepoForSolo) GetAnswersBySession(sessionID uint) ([]entity.PlayerAnswer, error) {
	return nil, nil
}
func (m *MockSessionRepoForSolo) GetAnswersByRoomID(roomID uint) ([]entity.PlayerAnswer, error) {
	return nil, nil
}

type MockUserRepoForSolo struct {
	mock.Mock
}

func (m *MockUserRepoForSolo) AddGameResult(userID uint, score int) error {
	args := m.Called(userID, score)
	return args.Error(0)
}

func (m *MockUserRepoForSolo) Create(user *entity.User) error                { return nil }
func (m *MockUserRepoForSolo) GetByID(id uint) (*entity.User, error)         { return nil, nil }
func (m *MockUserRepoForSolo) GetByEmail(email string) (*entity.User, error) { return nil, nil }
func (m *MockUserRepoForSolo) GetByUsername(username string) (*entity.User, error) {
	return nil, nil
}
func (m *MockUserRepoForSolo) Update(user *entity.User) error { return nil }
func (m *MockUserRepoForSolo) GetTopPlayers(limit, offset int) ([]entity.User, int64, error) {
	return nil, 0, nil
}

// ============================================================================
// Тесты SoloService
// ============================================================================

func soloQuestions(count int) []entity.Question {
	questions := make([]entity.Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, entity.Question{
			ID:            uint(100 + i),
			CreatedBy:     1,
			Text:          "Вопрос",
			CorrectAnswer: "верный",
			WrongAnswers:  entity.StringArray{"а", "б", "в"},
		})
	}
	return questions
}

func newSoloFixture(t *testing.T, questionCount int) (*SoloService, *MockSessionRepoForSolo, *MockUserRepoForSolo) {
	t.Helper()

	questionRepo := new(MockQuestionRepoForSolo)
	sessionRepo := new(MockSessionRepoForSolo)
	userRepo := new(MockUserRepoForSolo)

	questionRepo.On("GetPersonal", uint(1), mock.Anything).Return(soloQuestions(questionCount), nil)
	sessionRepo.On("GetActiveSoloSession", mock.Anything).Return(nil, apperrors.ErrNotFound)
	sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = 10
	}).Return(nil)
	sessionRepo.On("SaveAnswer", mock.AnythingOfType("*entity.PlayerAnswer")).Return(nil)
	sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userRepo.On("AddGameResult", mock.Anything, mock.Anything).Return(nil)

	config := roommanager.DefaultConfig()
	service := NewSoloService(config, questionRepo, sessionRepo, userRepo)
	return service, sessionRepo, userRepo
}

func TestSoloService_StartAndFinish(t *testing.T) {
	// Arrange
	service, sessionRepo, userRepo := newSoloFixture(t, 2)

	// Act: старт прохождения
	view, err := service.StartSolo(1, 2)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, uint(100), view.QuestionID)
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, 2, view.Total)
	assert.NotContains(t, view.Options, "", "варианты не пустые")

	// Первый ответ правильный
	result, err := service.SubmitAnswer(1, 100, "верный")
	assert.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Greater(t, result.PointsEarned, 0)
	assert.False(t, result.Finished)

	// Второй ответ неправильный — прохождение завершено
	result, err = service.SubmitAnswer(1, 101, "а")
	assert.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, 0, result.PointsEarned)
	assert.Equal(t, "верный", result.CorrectAnswer)
	assert.True(t, result.Finished)

	// Итог зафиксирован в сессии и профиле
	sessionRepo.AssertCalled(t, "FinishSession", uint(10), result.Score, mock.Anything)
	userRepo.AssertCalled(t, "AddGameResult", uint(1), result.Score)

	// Активного прохождения больше нет
	_, err = service.CurrentQuestion(1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSoloService_StartSolo_ResumesActiveRun(t *testing.T) {
	service, _, _ := newSoloFixture(t, 2)

	first, err := service.StartSolo(1, 2)
	assert.NoError(t, err)

	// Повторный старт возвращает текущий вопрос, а не новое прохождение
	second, err := service.StartSolo(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, first.QuestionID, second.QuestionID)
}

func TestSoloService_StartSolo_ClosesStaleStoredSession(t *testing.T) {
	// Arrange: в хранилище висит незавершенная сессия от прежнего процесса
	questionRepo := new(MockQuestionRepoForSolo)
	sessionRepo := new(MockSessionRepoForSolo)
	userRepo := new(MockUserRepoForSolo)
	questionRepo.On("GetPersonal", uint(1), mock.Anything).Return(soloQuestions(1), nil)

	stale, err := entity.NewGameSession(1, entity.SoloContext(1), time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	stale.ID = 5
	sessionRepo.On("GetActiveSoloSession", uint(1)).Return(stale, nil)
	sessionRepo.On("FinishSession", uint(5), 0, mock.Anything).Return(nil)
	sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = 10
	}).Return(nil)

	service := NewSoloService(roommanager.DefaultConfig(), questionRepo, sessionRepo, userRepo)

	// Act
	view, err := service.StartSolo(1, 1)

	// Assert: зависшая сессия закрыта своим счетом, новое прохождение началось
	assert.NoError(t, err)
	assert.Equal(t, uint(100), view.QuestionID)
	sessionRepo.AssertCalled(t, "FinishSession", uint(5), 0, mock.Anything)
	sessionRepo.AssertCalled(t, "CreateSession", mock.AnythingOfType("*entity.GameSession"))
}

func TestSoloService_StartSolo_NoQuestions(t *testing.T) {
	questionRepo := new(MockQuestionRepoForSolo)
	questionRepo.On("GetPersonal", uint(1), mock.Anything).Return([]entity.Question{}, nil)

	service := NewSoloService(roommanager.DefaultConfig(), questionRepo,
		new(MockSessionRepoForSolo), new(MockUserRepoForSolo))

	_, err := service.StartSolo(1, 10)

	assert.ErrorIs(t, err, apperrors.ErrNoQuestions)
}

func TestSoloService_SubmitAnswer_WrongQuestion(t *testing.T) {
	service, _, _ := newSoloFixture(t, 2)

	_, err := service.StartSolo(1, 2)
	assert.NoError(t, err)

	// Ответ не на текущий вопрос
	_, err = service.SubmitAnswer(1, 101, "верный")

	assert.ErrorIs(t, err, apperrors.ErrWindowClosed)
}

func TestSoloService_SubmitAnswer_LateCountsAsIncorrect(t *testing.T) {
	// Arrange: окно ответов уже истекло
	questionRepo := new(MockQuestionRepoForSolo)
	sessionRepo := new(MockSessionRepoForSolo)
	userRepo := new(MockUserRepoForSolo)
	questionRepo.On("GetPersonal", uint(1), mock.Anything).Return(soloQuestions(1), nil)
	sessionRepo.On("GetActiveSoloSession", mock.Anything).Return(nil, apperrors.ErrNotFound)
	sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = 10
	}).Return(nil)
	sessionRepo.On("SaveAnswer", mock.AnythingOfType("*entity.PlayerAnswer")).Return(nil)
	sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userRepo.On("AddGameResult", mock.Anything, mock.Anything).Return(nil)

	config := roommanager.DefaultConfig()
	config.AnswerWindow = 20 * time.Millisecond
	service := NewSoloService(config, questionRepo, sessionRepo, userRepo)

	_, err := service.StartSolo(1, 1)
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	// Act: правильный по тексту, но поздний ответ
	result, err := service.SubmitAnswer(1, 100, "верный")

	// Assert: принят, но засчитан как неправильный
	assert.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, 0, result.PointsEarned)
}

func TestSoloService_Abandon(t *testing.T) {
	service, sessionRepo, _ := newSoloFixture(t, 3)

	_, err := service.StartSolo(1, 3)
	assert.NoError(t, err)

	result, err := service.SubmitAnswer(1, 100, "верный")
	assert.NoError(t, err)

	// Act: досрочное завершение
	err = service.Abandon(1)

	// Assert: итог зафиксирован с текущим счетом
	assert.NoError(t, err)
	sessionRepo.AssertCalled(t, "FinishSession", uint(10), result.Score, mock.Anything)
	_, err = service.CurrentQuestion(1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSoloService_CurrentQuestion_NoActiveRun(t *testing.T) {
	service, _, _ := newSoloFixture(t, 1)

	_, err := service.CurrentQuestion(99)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
