package roommanager

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yourusername/quizroom-api/internal/domain/entity"
)

// ============================================================================
// Общие моки для тестов roommanager
// ============================================================================

// MockRoomRepo реализует repository.RoomRepository
type MockRoomRepo struct {
	mock.Mock
}

func (m *MockRoomRepo) Create(room *entity.Room) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockRoomRepo) UpdateStatus(roomID uint, status string) error {
	args := m.Called(roomID, status)
	return args.Error(0)
}

func (m *MockRoomRepo) UpdateQuestionIndex(roomID uint, index int) error {
	args := m.Called(roomID, index)
	return args.Error(0)
}

func (m *MockRoomRepo) AddMember(member *entity.RoomMember) error {
	args := m.Called(member)
	return args.Error(0)
}

// Остальные методы в тестах компонентов не используются
func (m *MockRoomRepo) GetByID(id uint) (*entity.Room, error)           { return nil, nil }
func (m *MockRoomRepo) GetByCode(code string) (*entity.Room, error)     { return nil, nil }
func (m *MockRoomRepo) GetWithQuestions(id uint) (*entity.Room, error)  { return nil, nil }
func (m *MockRoomRepo) GetMembers(roomID uint) ([]entity.RoomMember, error) {
	return nil, nil
}
func (m *MockRoomRepo) ListByOwner(ownerID uint, limit, offset int) ([]entity.Room, error) {
	return nil, nil
}
func (m *MockRoomRepo) Delete(id uint) error { return nil }

// MockQuestionRepo реализует repository.QuestionRepository
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) GetByRoomID(roomID uint) ([]entity.Question, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) Create(question *entity.Question) error     { return nil }
func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error)  { return nil, nil }
func (m *MockQuestionRepo) GetPersonal(createdBy uint, limit int) ([]entity.Question, error) {
	return nil, nil
}
func (m *MockQuestionRepo) Delete(id uint) error { return nil }

// MockSessionRepo реализует repository.SessionRepository
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) CreateSession(session *entity.GameSession) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionRepo) FinishSession(sessionID uint, finalScore int, endedAt time.Time) error {
	args := m.Called(sessionID, finalScore, endedAt)
	return args.Error(0)
}

func (m *MockSessionRepo) SaveAnswer(answer *entity.PlayerAnswer) error {
	args := m.Called(answer)
	return args.Error(0)
}

func (m *MockSessionRepo) SaveAnswers(answers []entity.PlayerAnswer) error {
	args := m.Called(answers)
	return args.Error(0)
}

func (m *MockSessionRepo) GetSessionByID(id uint) (*entity.GameSession, error) { return nil, nil }
func (m *MockSessionRepo) GetSessionByRoomAndUser(roomID, userID uint) (*entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepo) GetSessionsByRoomID(roomID uint) ([]entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepo) GetActiveSoloSession(userID uint) (*entity.GameSession, error) {
	return nil, nil
}
func (m *MockSessionRepo) GetAnswersBySession(sessionID uint) ([]entity.PlayerAnswer, error) {
	return nil, nil
}
func (m *MockSessionRepo) GetAnswersByRoomID(roomID uint) ([]entity.PlayerAnswer, error) {
	return nil, nil
}

// MockUserRepo реализует repository.UserRepository
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) AddGameResult(userID uint, score int) error {
	args := m.Called(userID, score)
	return args.Error(0)
}

func (m *MockUserRepo) Create(user *entity.User) error                { return nil }
func (m *MockUserRepo) GetByID(id uint) (*entity.User, error)         { return nil, nil }
func (m *MockUserRepo) GetByEmail(email string) (*entity.User, error) { return nil, nil }
func (m *MockUserRepo) GetByUsername(username string) (*entity.User, error) {
	return nil, nil
}
func (m *MockUserRepo) Update(user *entity.User) error { return nil }
func (m *MockUserRepo) GetTopPlayers(limit, offset int) ([]entity.User, int64, error) {
	return nil, 0, nil
}

// MockCacheRepo реализует repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *MockCacheRepo) Get(key string) (string, error)  { return "", nil }
func (m *MockCacheRepo) Delete(key string) error         { return nil }
func (m *MockCacheRepo) Increment(key string) (int64, error) {
	return 0, nil
}
func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error { return nil }
func (m *MockCacheRepo) ExpireAt(key string, expireTime time.Time) error {
	return nil
}

// RecorderBroadcaster записывает рассылки вместо отправки в WebSocket.
// Удобен для проверки порядка событий игрового цикла.
type RecorderBroadcaster struct {
	mu         sync.Mutex
	roomEvents []RecordedRoomEvent
	userEvents []RecordedUserEvent
}

type RecordedRoomEvent struct {
	RoomCode string
	Type     string
	Data     map[string]interface{}
}

type RecordedUserEvent struct {
	UserID string
	Type   string
}

func (b *RecorderBroadcaster) BroadcastEventToRoom(roomCode string, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	envelope, _ := event.(map[string]interface{})
	eventType, _ := envelope["type"].(string)
	data, _ := envelope["data"].(map[string]interface{})
	b.roomEvents = append(b.roomEvents, RecordedRoomEvent{
		RoomCode: roomCode,
		Type:     eventType,
		Data:     data,
	})
	return nil
}

func (b *RecorderBroadcaster) SendEventToUser(userID string, eventType string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userEvents = append(b.userEvents, RecordedUserEvent{UserID: userID, Type: eventType})
	return nil
}

// RoomEventTypes возвращает типы разосланных в комнаты событий по порядку
func (b *RecorderBroadcaster) RoomEventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.roomEvents))
	for _, e := range b.roomEvents {
		types = append(types, e.Type)
	}
	return types
}

// LastRoomEvent возвращает последнее событие заданного типа (nil, если не было)
func (b *RecorderBroadcaster) LastRoomEvent(eventType string) *RecordedRoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.roomEvents) - 1; i >= 0; i-- {
		if b.roomEvents[i].Type == eventType {
			return &b.roomEvents[i]
		}
	}
	return nil
}

// testConfig возвращает конфигурацию для тестов: без автоперехода,
// с короткими ретраями
func testConfig() *Config {
	config := DefaultConfig()
	config.AutoAdvance = false
	config.MinPlayers = 1
	config.MaxRetries = 2
	config.RetryInterval = time.Millisecond
	return config
}

// testQuestions возвращает набор вопросов комнаты для тестов
func testQuestions(roomID uint, count int) []entity.Question {
	questions := make([]entity.Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, entity.Question{
			ID:            uint(100 + i),
			CreatedBy:     1,
			RoomID:        &roomID,
			Text:          "Вопрос",
			CorrectAnswer: "верный",
			WrongAnswers:  entity.StringArray{"а", "б", "в"},
		})
	}
	return questions
}
