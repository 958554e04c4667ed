package app

import (
	"time"

	"trivia-arena/internal/domain"
)

// Outbound event names. Player-addressed events are unicast because each
// player's question index can differ; room events are broadcast.
const (
	EventRoomCreated    = "room:created"
	EventPlayerJoined   = "player:joined"
	EventRoomUpdated    = "room:updated"
	EventRoomStarted    = "room:started"
	EventQuestionStart  = "player:question_start"
	EventAnswerAccepted = "answer:submitted"
	EventAnswerFeedback = "player:answer_feedback"
	EventShowRanking    = "player:show_ranking"
	EventStatsUpdate    = "room:stats_update"
	EventPlayerFinished = "player:game_finished"
	EventRoomFinished   = "room:finished"
	EventError          = "error"
)

// Emitter is the transport adapter seen from the game core: it addresses a
// single player (by player or host ID) or fans out to everyone in a room.
// Implementations must not call back into the service from Emit paths.
type Emitter interface {
	ToPlayer(playerID, event string, payload any)
	ToRoom(code, event string, payload any)
}

// NopEmitter drops everything; handy in tests that only exercise state.
type NopEmitter struct{}

func (NopEmitter) ToPlayer(string, string, any) {}
func (NopEmitter) ToRoom(string, string, any)   {}

// Scheduler abstracts timer scheduling so the feedback/ranking/advance chain
// runs against a fake clock in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// ClockScheduler schedules on real timers.
type ClockScheduler struct{}

func (ClockScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// QuestionStartPayload opens a question for one player. The question comes
// sanitized: correctness flags never leave the server before feedback.
type QuestionStartPayload struct {
	Question       domain.Question        `json:"question"`
	QuestionNumber int                    `json:"questionNumber"`
	TotalQuestions int                    `json:"totalQuestions"`
	StartedAt      int64                  `json:"startedAt"`
	PlayerState    domain.PlayerGameState `json:"playerState"`
}

// AnswerFeedbackPayload reveals the outcome of the player's own answer.
type AnswerFeedbackPayload struct {
	IsCorrect        bool   `json:"isCorrect"`
	PointsEarned     int    `json:"pointsEarned"`
	CorrectOptionID  string `json:"correctOptionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	TimedOut         bool   `json:"timedOut,omitempty"`
}

// ShowRankingPayload carries the leaderboard during the ranking window.
type ShowRankingPayload struct {
	Ranking           []domain.RankingEntry `json:"ranking"`
	CurrentPlayerRank int                   `json:"currentPlayerRank"`
	TopPlayers        []domain.RankingEntry `json:"topPlayers"`
}

// PlayerFinishedPayload is the individual final screen.
type PlayerFinishedPayload struct {
	FinalRanking    []domain.RankingEntry         `json:"finalRanking"`
	PlayerRank      int                           `json:"playerRank"`
	PlayerScore     int                           `json:"playerScore"`
	Podium          []domain.RankingEntry         `json:"podium"`
	QuestionHistory []domain.QuestionHistoryEntry `json:"questionHistory"`
}

// RoomFinishedPayload is broadcast once when the whole room is done.
type RoomFinishedPayload struct {
	FinalRanking    []domain.RankingEntry         `json:"finalRanking"`
	Podium          []domain.RankingEntry         `json:"podium"`
	QuestionHistory []domain.QuestionHistoryEntry `json:"questionHistory"`
}

const rankingTopN = 5
