package roommanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// Registry - реестр живых комнат: единственный источник истины для
// "жива ли эта комната". Создается при старте процесса и внедряется
// в обработчики, никаких глобальных синглтонов.
type Registry struct {
	// Настройки
	config *Config

	// Зависимости
	deps *Dependencies

	// Внутреннее состояние
	mu    sync.RWMutex
	rooms map[string]*RoomState // code -> live state

	rng *rand.Rand
}

// NewRegistry создает новый реестр комнат
func NewRegistry(config *Config, deps *Dependencies) *Registry {
	return &Registry{
		config: config,
		deps:   deps,
		rooms:  make(map[string]*RoomState),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// graceKey возвращает ключ Redis для карантина кода закрытой комнаты
func graceKey(code string) string {
	return fmt.Sprintf("room:code:grace:%s", code)
}

// CreateRoom создает новую комнату с уникальным кодом.
// Код проверяется на коллизии против живых комнат и карантинных ключей;
// при исчерпании попыток возвращается ErrCodeGenerationExhausted.
func (r *Registry) CreateRoom(ctx context.Context, ownerID uint) (*RoomState, error) {
	for attempt := 0; attempt < r.config.MaxCodeAttempts; attempt++ {
		code := r.generateCode()

		r.mu.Lock()
		if _, live := r.rooms[code]; live {
			r.mu.Unlock()
			continue
		}
		// Резервируем код плейсхолдером, чтобы конкурирующий CreateRoom
		// не взял его, пока мы ходим в хранилище
		r.rooms[code] = nil
		r.mu.Unlock()

		ok, err := r.codeAvailable(code)
		if err != nil || !ok {
			r.release(code)
			if err != nil {
				return nil, err
			}
			continue
		}

		room := &entity.Room{
			Code:    code,
			OwnerID: ownerID,
			Status:  entity.RoomStatusWaiting,
		}
		if err := r.deps.RoomRepo.Create(room); err != nil {
			r.release(code)
			if errors.Is(err, apperrors.ErrCodeGenerationExhausted) {
				// Гонка за код с другим процессом: пробуем новый код
				log.Printf("[Registry] Коллизия кода %s в хранилище, попытка %d", code, attempt+1)
				continue
			}
			return nil, fmt.Errorf("failed to persist room: %w", err)
		}

		state := NewRoomState(room, nil)

		// Владелец всегда участник номер 0
		now := time.Now()
		state.AddMember(ownerID, now)
		if err := r.deps.RoomRepo.AddMember(&entity.RoomMember{
			RoomID:   room.ID,
			UserID:   ownerID,
			JoinedAt: now,
		}); err != nil {
			log.Printf("[Registry] WARNING: не удалось записать владельца #%d как участника комнаты %s: %v",
				ownerID, code, err)
		}

		r.mu.Lock()
		r.rooms[code] = state
		r.mu.Unlock()

		log.Printf("[Registry] Комната %s создана владельцем #%d", code, ownerID)
		return state, nil
	}

	return nil, apperrors.ErrCodeGenerationExhausted
}

// FindRoom возвращает живую комнату по коду
func (r *Registry) FindRoom(code string) (*RoomState, error) {
	r.mu.RLock()
	state, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok || state == nil {
		return nil, apperrors.ErrNotFound
	}
	return state, nil
}

// JoinRoom добавляет игрока в комнату. Повторный join той же личности
// идемпотентен. Вход после старта игры отклоняется с ErrRoomClosed,
// если политика AllowLateJoin не включена.
func (r *Registry) JoinRoom(ctx context.Context, code string, userID uint) (*RoomState, error) {
	state, err := r.FindRoom(code)
	if err != nil {
		return nil, err
	}

	state.Mu.Lock()
	defer state.Mu.Unlock()

	if state.Room.IsFinished() {
		return nil, apperrors.ErrRoomClosed
	}
	if !state.Room.IsWaiting() && !r.config.AllowLateJoin {
		return nil, apperrors.ErrRoomClosed
	}

	now := time.Now()
	member, added := state.AddMember(userID, now)
	if !added {
		// Идемпотентный повторный join: участник уже есть
		log.Printf("[Registry] Повторный join игрока #%d в комнату %s (идемпотентно)", userID, code)
		return state, nil
	}

	// Запись участника в хранилище не на критическом пути:
	// ошибка поглощается, членство живет в памяти реестра
	if err := r.deps.RoomRepo.AddMember(&entity.RoomMember{
		RoomID:   state.Room.ID,
		UserID:   userID,
		JoinedAt: now,
	}); err != nil {
		log.Printf("[Registry] WARNING: не удалось записать участника #%d комнаты %s: %v", userID, code, err)
	}

	log.Printf("[Registry] Игрок #%d вошел в комнату %s (участник №%d)", userID, code, member.JoinOrder)
	return state, nil
}

// RemoveRoom выселяет комнату из реестра и ставит ее код в карантин:
// код можно переиспользовать только после истечения грейс-периода,
// чтобы переподключающиеся клиенты не попали в чужую комнату.
func (r *Registry) RemoveRoom(code string) {
	r.release(code)

	if _, err := r.deps.CacheRepo.SetNX(graceKey(code), "1", r.config.CodeGracePeriod); err != nil {
		log.Printf("[Registry] WARNING: не удалось поставить код %s в карантин: %v", code, err)
	}

	log.Printf("[Registry] Комната %s удалена из реестра, код в карантине на %v", code, r.config.CodeGracePeriod)
}

// LiveRoomCount возвращает число живых комнат
func (r *Registry) LiveRoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// release удаляет код из карты живых комнат
func (r *Registry) release(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
}

// codeAvailable проверяет, не находится ли код в карантине.
// Ошибка Redis не блокирует создание комнаты: карантин - защита
// от путаницы переподключений, а не инвариант корректности.
func (r *Registry) codeAvailable(code string) (bool, error) {
	inGrace, err := r.deps.CacheRepo.Exists(graceKey(code))
	if err != nil {
		log.Printf("[Registry] WARNING: ошибка проверки карантина кода %s: %v", code, err)
		return true, nil
	}
	return !inGrace, nil
}

// generateCode генерирует случайный код комнаты из настроенного алфавита
func (r *Registry) generateCode() string {
	buf := make([]byte, r.config.CodeLength)
	r.mu.Lock()
	for i := range buf {
		buf[i] = r.config.CodeAlphabet[r.rng.Intn(len(r.config.CodeAlphabet))]
	}
	r.mu.Unlock()
	return string(buf)
}
