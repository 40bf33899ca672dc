package roommanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// flowFixture собирает GameFlow с моками и живой комнатой в реестре
type flowFixture struct {
	flow        *GameFlow
	registry    *Registry
	state       *RoomState
	roomRepo    *MockRoomRepo
	sessionRepo *MockSessionRepo
	userRepo    *MockUserRepo
	cacheRepo   *MockCacheRepo
	broadcaster *RecorderBroadcaster
}

// newFlowFixture строит комнату AB12CD с владельцем #1, игроком #2
// и questionCount вопросами
func newFlowFixture(t *testing.T, config *Config, questionCount int) *flowFixture {
	t.Helper()

	roomRepo := new(MockRoomRepo)
	sessionRepo := new(MockSessionRepo)
	userRepo := new(MockUserRepo)
	cacheRepo := new(MockCacheRepo)
	broadcaster := &RecorderBroadcaster{}

	deps := &Dependencies{
		RoomRepo:    roomRepo,
		SessionRepo: sessionRepo,
		UserRepo:    userRepo,
		CacheRepo:   cacheRepo,
		Broadcaster: broadcaster,
		Config:      config,
	}

	registry := NewRegistry(config, deps)
	collector := NewAnswerCollector(config, deps)
	flow := NewGameFlow(config, deps, registry, collector)

	room := &entity.Room{ID: 1, Code: "AB12CD", OwnerID: 1, Status: entity.RoomStatusWaiting}
	state := NewRoomState(room, testQuestions(room.ID, questionCount))
	now := time.Now()
	state.AddMember(1, now)
	state.AddMember(2, now)
	registry.rooms[room.Code] = state

	return &flowFixture{
		flow:        flow,
		registry:    registry,
		state:       state,
		roomRepo:    roomRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		cacheRepo:   cacheRepo,
		broadcaster: broadcaster,
	}
}

// stubHappyPath настраивает моки на успешные записи в хранилище
func (f *flowFixture) stubHappyPath() {
	nextSessionID := uint(10)
	f.sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = nextSessionID
		nextSessionID += 10
	}).Return(nil)
	f.sessionRepo.On("SaveAnswer", mock.AnythingOfType("*entity.PlayerAnswer")).Return(nil)
	f.sessionRepo.On("SaveAnswers", mock.AnythingOfType("[]entity.PlayerAnswer")).Return(nil)
	f.sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.roomRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)
	f.roomRepo.On("UpdateQuestionIndex", mock.Anything, mock.Anything).Return(nil)
	f.userRepo.On("AddGameResult", mock.Anything, mock.Anything).Return(nil)
	f.cacheRepo.On("SetNX", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
}

func TestGameFlow_FullScenario(t *testing.T) {
	// Arrange: комната на два вопроса, владелец #1, игроки #2 и #3
	config := testConfig()
	fixture := newFlowFixture(t, config, 2)
	fixture.state.AddMember(3, time.Now())
	fixture.stubHappyPath()
	ctx := context.Background()

	// Act: владелец запускает игру
	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Assert: комната играет, окно первого вопроса открыто
	assert.True(t, fixture.state.Room.IsPlaying())
	assert.NotNil(t, fixture.state.Window())
	assert.Contains(t, fixture.broadcaster.RoomEventTypes(), "room:updated")
	assert.Contains(t, fixture.broadcaster.RoomEventTypes(), "room:question_opened")

	// Игрок #2 отвечает правильно, игрок #3 — неправильно, владелец молчит
	question1 := fixture.state.Questions[0]
	answer, err := fixture.flow.SubmitAnswer(ctx, fixture.state, 2, question1.ID, "верный")
	assert.NoError(t, err)
	assert.True(t, answer.IsCorrect)
	assert.Greater(t, answer.PointsEarned, 0)

	wrong, err := fixture.flow.SubmitAnswer(ctx, fixture.state, 3, question1.ID, "а")
	assert.NoError(t, err)
	assert.False(t, wrong.IsCorrect)
	assert.Equal(t, 0, wrong.PointsEarned)

	// Владелец переходит к следующему вопросу
	err = fixture.flow.AdvanceQuestion(ctx, fixture.state, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, fixture.state.Room.CurrentQuestionIndex)

	// Закрытие окна разослало результаты и таблицу лидеров
	closed := fixture.broadcaster.LastRoomEvent("room:question_closed")
	assert.NotNil(t, closed)
	assert.Equal(t, "верный", closed.Data["correct_answer"])
	assert.NotNil(t, fixture.broadcaster.LastRoomEvent("room:leaderboard"))

	// Второй вопрос: оба молчат, владелец завершает игру
	err = fixture.flow.AdvanceQuestion(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Assert: комната завершена и выселена из реестра
	assert.True(t, fixture.state.Room.IsFinished())
	_, err = fixture.registry.FindRoom("AB12CD")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	finished := fixture.broadcaster.LastRoomEvent("room:finished")
	assert.NotNil(t, finished)
	standings := finished.Data["leaderboard"].([]Standing)
	assert.Len(t, standings, 3)
	assert.Equal(t, uint(2), standings[0].UserID, "правильно ответивший игрок первый")
	assert.Equal(t, 1, standings[0].Rank)
	assert.Greater(t, standings[0].Score, standings[1].Score)
	assert.Equal(t, 0, standings[2].Score)

	// Итоговые счета подтверждены хранилищем до объявления результата
	fixture.sessionRepo.AssertCalled(t, "FinishSession", mock.Anything, standings[0].Score, mock.Anything)
	fixture.userRepo.AssertCalled(t, "AddGameResult", uint(2), standings[0].Score)
	fixture.roomRepo.AssertCalled(t, "UpdateStatus", uint(1), entity.RoomStatusFinished)
}

func TestGameFlow_StartGame_OnlyOwner(t *testing.T) {
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)

	err := fixture.flow.StartGame(context.Background(), fixture.state, 2)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.True(t, fixture.state.Room.IsWaiting())
}

func TestGameFlow_StartGame_RequiresQuestions(t *testing.T) {
	// Arrange: комната без вопросов, хранилище тоже пустое
	config := testConfig()
	fixture := newFlowFixture(t, config, 0)
	questionRepo := new(MockQuestionRepo)
	questionRepo.On("GetByRoomID", uint(1)).Return([]entity.Question{}, nil)
	fixture.flow.deps.QuestionRepo = questionRepo

	err := fixture.flow.StartGame(context.Background(), fixture.state, 1)

	assert.ErrorIs(t, err, apperrors.ErrNoQuestions)
}

func TestGameFlow_StartGame_RequiresMinPlayers(t *testing.T) {
	// Arrange: двое игроков помимо владельца требуются, есть один
	config := testConfig()
	config.MinPlayers = 2
	fixture := newFlowFixture(t, config, 1)

	err := fixture.flow.StartGame(context.Background(), fixture.state, 1)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientPlayers)
	assert.True(t, fixture.state.Room.IsWaiting())
}

func TestGameFlow_StartGame_RejectsRestart(t *testing.T) {
	// Arrange
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)
	fixture.stubHappyPath()
	ctx := context.Background()

	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Act: повторный старт
	err = fixture.flow.StartGame(ctx, fixture.state, 1)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestGameFlow_AdvanceQuestion_RejectedWhileWaiting(t *testing.T) {
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)

	err := fixture.flow.AdvanceQuestion(context.Background(), fixture.state, 1)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestGameFlow_SubmitAnswer_FinishedRoomRejected(t *testing.T) {
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)
	fixture.state.Room.Status = entity.RoomStatusFinished

	_, err := fixture.flow.SubmitAnswer(context.Background(), fixture.state, 2, 100, "верный")

	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)
}

func TestGameFlow_Abort_ClosesRoom(t *testing.T) {
	// Arrange
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)
	fixture.stubHappyPath()
	ctx := context.Background()

	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Act
	err = fixture.flow.Abort(ctx, fixture.state, 1)

	// Assert: комната завершена, окно закрыто, код в карантине
	assert.NoError(t, err)
	assert.True(t, fixture.state.Room.IsFinished())
	assert.True(t, fixture.state.Window().Closed)
	assert.NotNil(t, fixture.broadcaster.LastRoomEvent("room:closed"))
	_, err = fixture.registry.FindRoom("AB12CD")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGameFlow_Abort_FinishedRejected(t *testing.T) {
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)
	fixture.state.Room.Status = entity.RoomStatusFinished

	err := fixture.flow.Abort(context.Background(), fixture.state, 1)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestGameFlow_Finish_TerminalCommitMustSucceed(t *testing.T) {
	// Arrange: хранилище отказывает на терминальной записи сессий
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)

	nextSessionID := uint(10)
	fixture.sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = nextSessionID
		nextSessionID += 10
	}).Return(nil)
	fixture.sessionRepo.On("SaveAnswers", mock.Anything).Return(nil)
	fixture.sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.ErrStorageUnavailable)
	fixture.roomRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Act: переход за последний вопрос должен завершить игру
	err = fixture.flow.AdvanceQuestion(ctx, fixture.state, 1)

	// Assert: терминальный факт не объявлен без подтверждения хранилища
	assert.Error(t, err)
	assert.Nil(t, fixture.broadcaster.LastRoomEvent("room:finished"),
		"room:finished не рассылается при сбое терминальной записи")
	assert.False(t, fixture.state.Room.IsFinished())
}

func TestGameFlow_AutoAdvance_FinishesRoomOnTimeout(t *testing.T) {
	// Arrange: один вопрос с коротким окном и автопереходом
	config := testConfig()
	config.AutoAdvance = true
	config.AnswerWindow = 30 * time.Millisecond
	fixture := newFlowFixture(t, config, 1)
	fixture.stubHappyPath()

	err := fixture.flow.StartGame(context.Background(), fixture.state, 1)
	assert.NoError(t, err)

	// Act: никто не отвечает, ждем срабатывания таймера
	assert.Eventually(t, func() bool {
		fixture.state.Mu.Lock()
		defer fixture.state.Mu.Unlock()
		return fixture.state.Room.IsFinished()
	}, time.Second, 10*time.Millisecond, "окно истекло — комната должна завершиться сама")

	// Assert: обе записи окна — "нет ответа"
	closed := fixture.broadcaster.LastRoomEvent("room:question_closed")
	assert.NotNil(t, closed)
	results := closed.Data["results"].([]entity.PlayerAnswer)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.IsNoAnswer())
		assert.Equal(t, 0, r.PointsEarned)
	}
	assert.NotNil(t, fixture.broadcaster.LastRoomEvent("room:finished"))
}

func TestGameFlow_AutoAdvance_WalksThroughAllQuestions(t *testing.T) {
	// Arrange: два вопроса, короткие окна, никто не отвечает
	config := testConfig()
	config.AutoAdvance = true
	config.AnswerWindow = 30 * time.Millisecond
	fixture := newFlowFixture(t, config, 2)
	fixture.stubHappyPath()

	err := fixture.flow.StartGame(context.Background(), fixture.state, 1)
	assert.NoError(t, err)

	// Act: таймеры должны сами пройти оба окна и завершить игру
	assert.Eventually(t, func() bool {
		fixture.state.Mu.Lock()
		defer fixture.state.Mu.Unlock()
		return fixture.state.Room.IsFinished()
	}, 2*time.Second, 10*time.Millisecond, "молчаливая комната проходит все вопросы по таймеру")

	// Assert: закрылись окна обоих вопросов, комната выселена
	closedCount := 0
	for _, eventType := range fixture.broadcaster.RoomEventTypes() {
		if eventType == "room:question_closed" {
			closedCount++
		}
	}
	assert.Equal(t, 2, closedCount)
	assert.NotNil(t, fixture.broadcaster.LastRoomEvent("room:finished"))
	_, err = fixture.registry.FindRoom("AB12CD")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGameFlow_AutoAdvance_SurvivesCallerContextCancel(t *testing.T) {
	// Arrange: контекст вызова гаснет сразу после ответа клиенту,
	// как у обычного HTTP-запроса
	config := testConfig()
	config.AutoAdvance = true
	config.AnswerWindow = 30 * time.Millisecond
	fixture := newFlowFixture(t, config, 1)
	fixture.stubHappyPath()

	ctx, cancel := context.WithCancel(context.Background())
	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)
	cancel()

	// Act/Assert: таймер принадлежит движку, а не запросу
	assert.Eventually(t, func() bool {
		fixture.state.Mu.Lock()
		defer fixture.state.Mu.Unlock()
		return fixture.state.Room.IsFinished()
	}, time.Second, 10*time.Millisecond, "отмена контекста запроса не глушит таймер")
	assert.NotNil(t, fixture.broadcaster.LastRoomEvent("room:finished"))
}

func TestGameFlow_Advance_RetryAfterFailedFinishKeepsIndexBounded(t *testing.T) {
	// Arrange: терминальная запись падает на первом завершении,
	// владелец повторяет advance
	config := testConfig()
	fixture := newFlowFixture(t, config, 1)

	nextSessionID := uint(10)
	fixture.sessionRepo.On("CreateSession", mock.AnythingOfType("*entity.GameSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.GameSession).ID = nextSessionID
		nextSessionID += 10
	}).Return(nil)
	fixture.sessionRepo.On("SaveAnswers", mock.Anything).Return(nil)
	fixture.sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.ErrStorageUnavailable).Times(config.MaxRetries)
	fixture.sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	fixture.roomRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)
	fixture.userRepo.On("AddGameResult", mock.Anything, mock.Anything).Return(nil)
	fixture.cacheRepo.On("SetNX", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	ctx := context.Background()

	err := fixture.flow.StartGame(ctx, fixture.state, 1)
	assert.NoError(t, err)

	// Act: первый advance упирается в недоступное хранилище
	err = fixture.flow.AdvanceQuestion(ctx, fixture.state, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, fixture.state.Room.CurrentQuestionIndex,
		"индекс не двигается без подтвержденного завершения")

	// Повторный advance завершает игру, индекс равен числу вопросов
	err = fixture.flow.AdvanceQuestion(ctx, fixture.state, 1)
	assert.NoError(t, err)
	assert.True(t, fixture.state.Room.IsFinished())
	assert.Equal(t, 1, fixture.state.Room.CurrentQuestionIndex)
}
