package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"trivia-arena/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RoomMetadataRepository persists room records: lightweight metadata only,
// the live game stays in memory.
type RoomMetadataRepository interface {
	CreateRoomRecord(ctx context.Context, code, quizID, hostName string) error
	UpdateRoomStatus(ctx context.Context, code string, status domain.RoomStatus, totalPlayers int) error
	CodeExists(ctx context.Context, code string) (bool, error)
}

// PlayerStatsRepository folds a finished game into lifetime player stats.
type PlayerStatsRepository interface {
	UpsertStats(ctx context.Context, userID string, stats domain.GameResultStats) error
}

// GameService contains the room lifecycle use cases. It owns the registry
// and hands timed transitions to the orchestrator.
type GameService struct {
	registry  *Registry
	orch      *Orchestrator
	quizzes   QuizRepository
	rooms     RoomMetadataRepository
	emitter   Emitter
	scheduler Scheduler
	logger    *slog.Logger
	delays    Delays
	baseURL   string
}

func NewGameService(registry *Registry, orch *Orchestrator, quizzes QuizRepository, rooms RoomMetadataRepository, emitter Emitter, scheduler Scheduler, logger *slog.Logger, delays Delays, baseURL string) *GameService {
	return &GameService{
		registry:  registry,
		orch:      orch,
		quizzes:   quizzes,
		rooms:     rooms,
		emitter:   emitter,
		scheduler: scheduler,
		logger:    logger,
		delays:    delays,
		baseURL:   baseURL,
	}
}

// CreateRoomResult is returned to the host only.
type CreateRoomResult struct {
	Room    RoomSnapshot `json:"room"`
	JoinURL string       `json:"joinUrl"`
	QRCode  string       `json:"qrCode"`
}

// CreateRoom resolves the quiz, picks a collision-free code, registers the
// room in LOBBY and records its metadata. The QR encodes the join URL as a
// PNG data URL.
func (s *GameService) CreateRoom(ctx context.Context, quizID, hostName string, mode domain.Mode) (CreateRoomResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return CreateRoomResult{}, err
	}
	if len(quiz.Questions) == 0 {
		return CreateRoomResult{}, domain.ErrQuizEmpty
	}
	if mode != domain.ModeWaitAll {
		mode = domain.ModeFast
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return CreateRoomResult{}, err
	}

	hostID := "host_" + uuid.NewString()
	room := NewRoom(code, quiz, hostID, hostName, mode)
	if !s.registry.Add(room) {
		return CreateRoomResult{}, fmt.Errorf("room code collision on %s", code)
	}

	if err := s.rooms.CreateRoomRecord(ctx, code, quizID, hostName); err != nil {
		s.registry.Remove(code)
		return CreateRoomResult{}, fmt.Errorf("create room record: %w", err)
	}

	joinURL := fmt.Sprintf("%s/join/%s", s.baseURL, code)
	qrDataURL, err := qrPNGDataURL(joinURL)
	if err != nil {
		s.logger.Warn("qr generation failed", "room", code, "err", err)
	}

	s.logger.Info("room created", "room", code, "quiz", quizID, "mode", string(mode), "host", hostName)
	return CreateRoomResult{Room: room.Snapshot(), JoinURL: joinURL, QRCode: qrDataURL}, nil
}

// uniqueCode regenerates until the code is free both in the registry and in
// persisted room records.
func (s *GameService) uniqueCode(ctx context.Context) (string, error) {
	for {
		code, err := GenerateRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.registry.Get(code); taken {
			continue
		}
		exists, err := s.rooms.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}

// JoinRoom adds a player to a lobby and broadcasts the updated roster.
func (s *GameService) JoinRoom(code, playerName, externalID string) (RoomSnapshot, domain.Player, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return RoomSnapshot{}, domain.Player{}, domain.ErrRoomNotFound
	}
	player, err := room.Join(playerName, externalID)
	if err != nil {
		return RoomSnapshot{}, domain.Player{}, err
	}
	snapshot := room.Snapshot()
	s.emitter.ToRoom(code, EventRoomUpdated, snapshot)
	s.logger.Info("player joined", "room", code, "player", playerName)
	return snapshot, player, nil
}

// StartRoom transitions the room to PLAYING and schedules question one. Only
// the recorded host may start.
func (s *GameService) StartRoom(ctx context.Context, code, hostID string) (RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return RoomSnapshot{}, domain.ErrRoomNotFound
	}
	if err := room.Start(hostID); err != nil {
		return RoomSnapshot{}, err
	}

	snapshot := room.Snapshot()
	if err := s.rooms.UpdateRoomStatus(ctx, code, domain.RoomPlaying, len(snapshot.Players)); err != nil {
		s.logger.Warn("room metadata update failed", "room", code, "err", err)
	}

	s.emitter.ToRoom(code, EventRoomStarted, snapshot)
	s.scheduler.AfterFunc(s.delays.FirstQuestion, func() {
		s.orch.StartAllQuestions(code)
	})
	s.logger.Info("room started", "room", code, "players", len(snapshot.Players))
	return snapshot, nil
}

// SubmitAnswer records one answer and hands advancement to the orchestrator.
// The returned answer doubles as the submission acknowledgement. The host
// dashboard gets a stats push on every answer.
func (s *GameService) SubmitAnswer(code, playerID, questionID, optionID string, clientElapsed int64) (domain.PlayerAnswer, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.PlayerAnswer{}, domain.ErrRoomNotFound
	}
	answer, state, err := room.SubmitAnswer(playerID, questionID, optionID, clientElapsed)
	if err != nil {
		return domain.PlayerAnswer{}, err
	}
	s.emitter.ToPlayer(room.HostID(), EventStatsUpdate, room.Stats())
	s.orch.OnAnswer(room, playerID, state)
	return answer, nil
}

// AdvanceRoom is the host's manual skip: unanswered players get timed-out
// answers and the normal advancement sequence runs.
func (s *GameService) AdvanceRoom(code, hostID string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.HostID() != hostID {
		return domain.ErrNotHost
	}
	s.orch.ForceAdvance(room)
	return nil
}

// EndRoom is the host's early termination; the room finishes with whatever
// scores stand.
func (s *GameService) EndRoom(code, hostID string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.HostID() != hostID {
		return domain.ErrNotHost
	}
	s.orch.FinishRoom(room)
	return nil
}

// LeaveRoom removes a player; an emptied roster evicts the room, and in
// WAIT_ALL the departure may release a stalled cohort.
func (s *GameService) LeaveRoom(code, playerID string) {
	room, ok := s.registry.Get(code)
	if !ok {
		return
	}
	questionIndex := -1
	if state, ok := room.State(playerID); ok {
		questionIndex = state.CurrentQuestionIndex
	}
	empty := room.RemovePlayer(playerID)
	if empty {
		s.registry.Remove(code)
		s.logger.Info("room evicted", "room", code)
		return
	}
	s.emitter.ToRoom(code, EventRoomUpdated, room.Snapshot())
	if room.Status() == domain.RoomPlaying {
		s.orch.OnPlayerRemoved(room, questionIndex)
	}
}

// Ranking exposes the live leaderboard.
func (s *GameService) Ranking(code string) ([]domain.RankingEntry, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Ranking(), nil
}

// Stats exposes the host dashboard feed.
func (s *GameService) Stats(code string) (domain.GameStats, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.GameStats{}, domain.ErrRoomNotFound
	}
	return room.Stats(), nil
}

func qrPNGDataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 300)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
