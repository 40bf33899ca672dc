package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	"github.com/yourusername/quizroom-api/internal/domain/repository"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/internal/service/roommanager"
)

// RoomService - фасад над движком комнат для HTTP и WebSocket слоев.
// Живые комнаты обслуживает реестр; завершенные восстанавливаются
// из хранилища для просмотра итогов и экспорта.
type RoomService struct {
	registry *roommanager.Registry
	flow     *roommanager.GameFlow

	roomRepo    repository.RoomRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
}

// NewRoomService создает новый сервис комнат
func NewRoomService(
	registry *roommanager.Registry,
	flow *roommanager.GameFlow,
	roomRepo repository.RoomRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
) *RoomService {
	return &RoomService{
		registry:    registry,
		flow:        flow,
		roomRepo:    roomRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
	}
}

// CreateRoom создает новую комнату с уникальным кодом
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uint) (*roommanager.RoomState, error) {
	return s.registry.CreateRoom(ctx, ownerID)
}

// JoinRoom добавляет игрока в комнату и рассылает обновленный снимок
func (s *RoomService) JoinRoom(ctx context.Context, code string, userID uint) (*roommanager.RoomState, error) {
	state, err := s.registry.JoinRoom(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	s.flow.BroadcastRoomUpdated(state)
	return state, nil
}

// FindLiveRoom возвращает живую комнату по коду
func (s *RoomService) FindLiveRoom(code string) (*roommanager.RoomState, error) {
	return s.registry.FindRoom(code)
}

// GetRoomByCode возвращает комнату по коду: живую из реестра,
// завершенную - из хранилища
func (s *RoomService) GetRoomByCode(code string) (*entity.Room, error) {
	if state, err := s.registry.FindRoom(code); err == nil {
		return state.Room, nil
	}
	return s.roomRepo.GetByCode(code)
}

// ListByOwner возвращает комнаты владельца с пагинацией
func (s *RoomService) ListByOwner(ownerID uint, page, pageSize int) ([]entity.Room, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	} else if pageSize > 100 {
		pageSize = 100
	}
	return s.roomRepo.ListByOwner(ownerID, pageSize, (page-1)*pageSize)
}

// StartGame запускает игру в комнате (только владелец)
func (s *RoomService) StartGame(ctx context.Context, code string, callerID uint) error {
	state, err := s.registry.FindRoom(code)
	if err != nil {
		return err
	}
	return s.flow.StartGame(ctx, state, callerID)
}

// AdvanceQuestion переводит комнату к следующему вопросу (только владелец)
func (s *RoomService) AdvanceQuestion(ctx context.Context, code string, callerID uint) error {
	state, err := s.registry.FindRoom(code)
	if err != nil {
		return err
	}
	return s.flow.AdvanceQuestion(ctx, state, callerID)
}

// AbortRoom досрочно закрывает комнату (только владелец)
func (s *RoomService) AbortRoom(ctx context.Context, code string, callerID uint) error {
	state, err := s.registry.FindRoom(code)
	if err != nil {
		return err
	}
	return s.flow.Abort(ctx, state, callerID)
}

// SubmitAnswer принимает ответ игрока на текущий вопрос комнаты
func (s *RoomService) SubmitAnswer(
	ctx context.Context,
	code string,
	userID uint,
	questionID uint,
	selectedAnswer string,
) (*entity.PlayerAnswer, error) {
	state, err := s.registry.FindRoom(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrRoomClosed
		}
		return nil, err
	}
	return s.flow.SubmitAnswer(ctx, state, userID, questionID, selectedAnswer)
}

// Leaderboard возвращает таблицу лидеров комнаты.
// Для живой комнаты таблица считается по состоянию в памяти,
// для завершенной восстанавливается из записанных сессий.
func (s *RoomService) Leaderboard(code string) ([]roommanager.Standing, error) {
	if state, err := s.registry.FindRoom(code); err == nil {
		return s.flow.Leaderboard(state), nil
	}
	return s.finishedLeaderboard(code)
}

// finishedLeaderboard восстанавливает итоги завершенной комнаты из хранилища.
// Порядок тот же, что у живой таблицы: счет по убыванию, тай-брейк по
// суммарной задержке, затем по порядку вступления (началу сессии).
func (s *RoomService) finishedLeaderboard(code string) ([]roommanager.Standing, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessionRepo.GetSessionsByRoomID(room.ID)
	if err != nil {
		return nil, err
	}

	latencyBySession := make(map[uint]int64)
	answers, err := s.sessionRepo.GetAnswersByRoomID(room.ID)
	if err != nil {
		log.Printf("[RoomService] WARNING: не удалось загрузить ответы комнаты %s для тай-брейка: %v", code, err)
	} else {
		for _, a := range answers {
			if !a.IsNoAnswer() {
				latencyBySession[a.SessionID] += a.TimeToAnswerMs
			}
		}
	}

	standings := make([]roommanager.Standing, 0, len(sessions))
	order := make(map[uint]int, len(sessions))
	for i, sess := range sessions {
		order[sess.ID] = i
		standings = append(standings, roommanager.Standing{
			UserID:         sess.UserID,
			SessionID:      sess.ID,
			Score:          sess.FinalScore,
			TotalLatencyMs: latencyBySession[sess.ID],
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		if standings[i].TotalLatencyMs != standings[j].TotalLatencyMs {
			return standings[i].TotalLatencyMs < standings[j].TotalLatencyMs
		}
		return order[standings[i].SessionID] < order[standings[j].SessionID]
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings, nil
}

// ExportResults выгружает итоги комнаты в файл Excel.
// Доступно владельцу комнаты; возвращает содержимое файла .xlsx.
func (s *RoomService) ExportResults(code string, callerID uint) ([]byte, error) {
	room, err := s.GetRoomByCode(code)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the owner can export results", apperrors.ErrForbidden)
	}

	standings, err := s.Leaderboard(code)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Rank", "User ID", "Username", "Score", "Total Latency (ms)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, st := range standings {
		row := i + 2
		username := ""
		if user, err := s.userRepo.GetByID(st.UserID); err == nil {
			username = user.Username
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), st.Rank)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), st.UserID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), username)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), st.Score)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), st.TotalLatencyMs)
	}

	// Лист метаданных комнаты
	meta := "Room"
	if _, err := f.NewSheet(meta); err == nil {
		f.SetCellValue(meta, "A1", "Code")
		f.SetCellValue(meta, "B1", room.Code)
		f.SetCellValue(meta, "A2", "Status")
		f.SetCellValue(meta, "B2", room.Status)
		f.SetCellValue(meta, "A3", "Exported At")
		f.SetCellValue(meta, "B3", time.Now().Format(time.RFC3339))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render xlsx: %w", err)
	}

	log.Printf("[RoomService] Экспорт итогов комнаты %s: %d строк", code, len(standings))
	return buf.Bytes(), nil
}

// LiveRoomCount возвращает число живых комнат (для health/metrics)
func (s *RoomService) LiveRoomCount() int {
	return s.registry.LiveRoomCount()
}
