package memory

import (
	"context"
	"sync"
	"time"

	"trivia-arena/internal/domain"
)

// RoomRecord is the persisted-metadata view of a room.
type RoomRecord struct {
	Code         string
	QuizID       string
	HostName     string
	Status       domain.RoomStatus
	TotalPlayers int
	CreatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
}

// RoomMetadataRepository keeps room records in memory; the Postgres
// implementation replaces it in production.
type RoomMetadataRepository struct {
	mu      sync.RWMutex
	records map[string]*RoomRecord
}

func NewRoomMetadataRepository() *RoomMetadataRepository {
	return &RoomMetadataRepository{records: make(map[string]*RoomRecord)}
}

func (r *RoomMetadataRepository) CreateRoomRecord(_ context.Context, code, quizID, hostName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[code] = &RoomRecord{
		Code:      code,
		QuizID:    quizID,
		HostName:  hostName,
		Status:    domain.RoomLobby,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *RoomMetadataRepository) UpdateRoomStatus(_ context.Context, code string, status domain.RoomStatus, totalPlayers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[code]
	if !ok {
		return domain.ErrRoomNotFound
	}
	rec.Status = status
	if totalPlayers > 0 {
		rec.TotalPlayers = totalPlayers
	}
	switch status {
	case domain.RoomPlaying:
		rec.StartedAt = time.Now()
	case domain.RoomFinished:
		rec.FinishedAt = time.Now()
	}
	return nil
}

func (r *RoomMetadataRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[code]
	return ok, nil
}

// Record returns a copy of one stored record, for tests.
func (r *RoomMetadataRepository) Record(code string) (RoomRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[code]
	if !ok {
		return RoomRecord{}, false
	}
	return *rec, true
}

// PlayerStatsRepository accumulates lifetime stats in memory.
type PlayerStatsRepository struct {
	mu    sync.Mutex
	stats map[string]LifetimeStats
}

// LifetimeStats mirrors the persisted player_stats row.
type LifetimeStats struct {
	GamesPlayed       int
	Wins              int
	Podiums           int
	QuestionsAnswered int
	CorrectAnswers    int
	BestStreak        int
	XP                int
}

func NewPlayerStatsRepository() *PlayerStatsRepository {
	return &PlayerStatsRepository{stats: make(map[string]LifetimeStats)}
}

func (r *PlayerStatsRepository) UpsertStats(_ context.Context, userID string, result domain.GameResultStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats[userID]
	s.GamesPlayed++
	if result.IsWin {
		s.Wins++
	}
	if result.IsPodium {
		s.Podiums++
	}
	s.QuestionsAnswered += result.QuestionsAnswered
	s.CorrectAnswers += result.CorrectAnswers
	if result.BestStreak > s.BestStreak {
		s.BestStreak = result.BestStreak
	}
	s.XP += result.XPEarned
	r.stats[userID] = s
	return nil
}

// Stats returns a copy of one user's accumulated stats, for tests.
func (r *PlayerStatsRepository) Stats(userID string) (LifetimeStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	return s, ok
}
