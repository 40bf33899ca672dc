package roommanager

import (
	"sync"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	"github.com/yourusername/quizroom-api/internal/domain/repository"
)

// Constants for default values
const (
	DefaultCodeLength   = 6
	DefaultCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789" // Без O/0/I: код диктуют вслух
	DefaultBasePoints   = 1000
	DefaultMinPoints    = 100
)

// Config содержит настройки для всех компонентов RoomManager
type Config struct {
	// Настройки кодов комнат
	CodeLength      int           // Длина кода комнаты (6-10 символов)
	CodeAlphabet    string        // Алфавит генерации кода (верхний регистр, цифры)
	MaxCodeAttempts int           // Максимальное число попыток генерации уникального кода
	CodeGracePeriod time.Duration // Период, в течение которого код закрытой комнаты не переиспользуется

	// Настройки игры
	MinPlayers    int           // Минимальное число игроков (не считая владельца) для старта
	AllowLateJoin bool          // Разрешать вход в комнату после старта игры
	AnswerWindow  time.Duration // Продолжительность окна ответов на вопрос
	AutoAdvance   bool          // Автоматический переход к следующему вопросу по истечении окна

	// Настройки начисления очков
	BasePoints int // Очки за мгновенный правильный ответ
	MinPoints  int // Нижняя граница очков за правильный ответ в конце окна

	// Настройки ретраев персистентности
	MaxRetries    int           // Максимальное количество попыток записи
	RetryInterval time.Duration // Интервал между повторными попытками
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		CodeLength:      DefaultCodeLength,
		CodeAlphabet:    DefaultCodeAlphabet,
		MaxCodeAttempts: 10,
		CodeGracePeriod: 5 * time.Minute,
		MinPlayers:      1,
		AllowLateJoin:   false,
		AnswerWindow:    10 * time.Second,
		AutoAdvance:     true,
		BasePoints:      DefaultBasePoints,
		MinPoints:       DefaultMinPoints,
		MaxRetries:      3,
		RetryInterval:   500 * time.Millisecond,
	}
}

// Broadcaster определяет интерфейс шлюза рассылки событий,
// необходимый компонентам RoomManager. Доставка at-least-once:
// все события строятся идемпотентными к повторному применению.
type Broadcaster interface {
	BroadcastEventToRoom(roomCode string, event interface{}) error
	SendEventToUser(userID string, eventType string, data interface{}) error
}

// Dependencies содержит зависимости для компонентов RoomManager
type Dependencies struct {
	RoomRepo     repository.RoomRepository
	QuestionRepo repository.QuestionRepository
	SessionRepo  repository.SessionRepository
	UserRepo     repository.UserRepository
	CacheRepo    repository.CacheRepository
	Broadcaster  Broadcaster
	Config       *Config
}

// Member хранит живое состояние участника комнаты
type Member struct {
	UserID         uint
	SessionID      uint // 0, пока сессия не записана в хранилище
	JoinOrder      int  // Порядок вступления, начиная с 0 (владелец всегда 0)
	JoinedAt       time.Time
	Score          int   // Накопленный счет по закрытым вопросам
	TotalLatencyMs int64 // Суммарная задержка отвеченных вопросов (тай-брейк)
}

// AnswerWindow хранит состояние окна ответов текущего вопроса.
// Все поля читаются и изменяются под мьютексом комнаты.
type AnswerWindow struct {
	Question   *entity.Question
	Index      int   // Индекс вопроса в комнате
	OpenedAtMs int64 // Серверное время открытия окна (Unix ms)
	DurationMs int64
	Closed     bool
	Answers    map[uint]*entity.PlayerAnswer // Принятые ответы по UserID
}

// IsOpen проверяет, принимает ли окно ответы в момент nowMs
func (w *AnswerWindow) IsOpen(nowMs int64) bool {
	return !w.Closed && nowMs <= w.OpenedAtMs+w.DurationMs
}

// RoomState хранит живое состояние комнаты.
// Реестр — единственный владелец RoomState на протяжении жизни комнаты;
// все мутации сериализуются через Mu (один домен взаимного исключения
// на комнату, разные комнаты не конкурируют).
type RoomState struct {
	Room      *entity.Room
	Questions []entity.Question
	Mu        sync.Mutex

	members []*Member
	byUser  map[uint]*Member
	window  *AnswerWindow
}

// NewRoomState создает новое живое состояние комнаты
func NewRoomState(room *entity.Room, questions []entity.Question) *RoomState {
	return &RoomState{
		Room:      room,
		Questions: questions,
		byUser:    make(map[uint]*Member),
	}
}

// AddMember добавляет участника, сохраняя порядок вступления.
// Повторное добавление той же личности идемпотентно: возвращает false
// и не создает дубликата.
func (s *RoomState) AddMember(userID uint, joinedAt time.Time) (*Member, bool) {
	if m, ok := s.byUser[userID]; ok {
		return m, false
	}
	m := &Member{
		UserID:    userID,
		JoinOrder: len(s.members),
		JoinedAt:  joinedAt,
	}
	s.members = append(s.members, m)
	s.byUser[userID] = m
	return m, true
}

// MemberByUser возвращает участника по идентификатору
func (s *RoomState) MemberByUser(userID uint) (*Member, bool) {
	m, ok := s.byUser[userID]
	return m, ok
}

// Members возвращает участников в порядке вступления
func (s *RoomState) Members() []*Member {
	return s.members
}

// MemberCount возвращает число участников комнаты
func (s *RoomState) MemberCount() int {
	return len(s.members)
}

// PlayerCount возвращает число игроков без учета владельца
func (s *RoomState) PlayerCount() int {
	count := 0
	for _, m := range s.members {
		if m.UserID != s.Room.OwnerID {
			count++
		}
	}
	return count
}

// Window возвращает текущее окно ответов (nil, если окно не открыто)
func (s *RoomState) Window() *AnswerWindow {
	return s.window
}

// SetWindow устанавливает текущее окно ответов
func (s *RoomState) SetWindow(w *AnswerWindow) {
	s.window = w
}

// CurrentQuestion возвращает вопрос по текущему индексу комнаты
func (s *RoomState) CurrentQuestion() *entity.Question {
	idx := s.Room.CurrentQuestionIndex
	if idx < 0 || idx >= len(s.Questions) {
		return nil
	}
	return &s.Questions[idx]
}
