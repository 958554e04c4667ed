package domain

import "time"

// RoomStatus is the lifecycle of a whole room.
type RoomStatus string

const (
	RoomLobby    RoomStatus = "LOBBY"
	RoomPlaying  RoomStatus = "PLAYING"
	RoomFinished RoomStatus = "FINISHED"
)

// Mode selects the pacing policy for a room, fixed at creation.
type Mode string

const (
	// ModeFast advances each player individually as soon as they answer.
	ModeFast Mode = "FAST"
	// ModeWaitAll gates advancement on every player at the same question
	// index having answered.
	ModeWaitAll Mode = "WAIT_ALL"
)

// PlayerStatus is a player's position in the question cycle.
type PlayerStatus string

const (
	PlayerInQuestion      PlayerStatus = "IN_QUESTION"
	PlayerAwaitingResults PlayerStatus = "AWAITING_RESULTS"
	PlayerFinished        PlayerStatus = "FINISHED"
)

// Avatar is a cosmetic identity assigned at join time.
type Avatar struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
// TimeLimit is milliseconds on the wire.
type Question struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Options   []Option `json:"options"`
	TimeLimit int64    `json:"timeLimit"`
	ImageURL  string   `json:"imageUrl,omitempty"`
}

// Quiz is the read-only question set a room plays through.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// CorrectOptionID returns the ID of the option flagged correct, or "" when
// no option carries the flag.
func (q Question) CorrectOptionID() string {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt.ID
		}
	}
	return ""
}

// Sanitized returns a copy of the question with correctness flags stripped,
// safe to push to players before they answer.
func (q Question) Sanitized() Question {
	out := q
	out.Options = make([]Option, len(q.Options))
	for i, opt := range q.Options {
		out.Options[i] = Option{ID: opt.ID, Text: opt.Text}
	}
	return out
}

// Player is one roster member of a room. Score, streak and accuracy are
// mutated only through the room aggregate.
type Player struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Avatar         Avatar    `json:"avatar"`
	Score          int       `json:"score"`
	Streak         int       `json:"streak"`
	BestStreak     int       `json:"bestStreak"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalAnswers   int       `json:"totalAnswers"`
	Accuracy       int       `json:"accuracy"`
	IsHost         bool      `json:"isHost"`
	JoinedAt       time.Time `json:"joinedAt"`
	// ExternalID links the player to a persisted account; empty for guests.
	ExternalID string `json:"externalId,omitempty"`
}

// PlayerAnswer is an immutable record of one submission. TimeElapsed holds
// the server-validated elapsed milliseconds, not the raw client claim.
type PlayerAnswer struct {
	PlayerID     string `json:"playerId"`
	QuestionID   string `json:"questionId"`
	OptionID     string `json:"optionId"`
	AnsweredAt   int64  `json:"answeredAt"`
	TimeElapsed  int64  `json:"timeElapsed"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	TimedOut     bool   `json:"timedOut,omitempty"`
}

// PlayerGameState tracks one player's independent position in the quiz.
// Each player owns exactly one; nothing another player does mutates it.
type PlayerGameState struct {
	PlayerID             string         `json:"playerId"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	Status               PlayerStatus   `json:"status"`
	QuestionStartedAt    int64          `json:"questionStartedAt,omitempty"`
	HasAnsweredCurrent   bool           `json:"hasAnsweredCurrent"`
	Answers              []PlayerAnswer `json:"answers"`
	LastActivityAt       int64          `json:"lastActivityAt"`
}

// QuestionResults aggregates every answer recorded for one question index.
// Append-only: entries are never rewritten once added.
type QuestionResults struct {
	QuestionID      string         `json:"questionId"`
	TotalPlayers    int            `json:"totalPlayers"`
	OptionVotes     map[string]int `json:"optionVotes"`
	CorrectOptionID string         `json:"correctOptionId"`
	PlayerAnswers   []PlayerAnswer `json:"playerAnswers"`
}

// RankingEntry is one row of the leaderboard; Rank is 1-based.
type RankingEntry struct {
	Player Player `json:"player"`
	Rank   int    `json:"rank"`
}

// QuestionHistoryEntry pairs a question with its aggregated results for the
// end-of-game review screen.
type QuestionHistoryEntry struct {
	Question Question        `json:"question"`
	Results  QuestionResults `json:"results"`
}

// PlayerStatLine is the host dashboard view of one player.
type PlayerStatLine struct {
	Player              Player  `json:"player"`
	CorrectAnswers      int     `json:"correctAnswers"`
	IncorrectAnswers    int     `json:"incorrectAnswers"`
	TotalAnswers        int     `json:"totalAnswers"`
	CorrectPercentage   float64 `json:"correctPercentage"`
	IncorrectPercentage float64 `json:"incorrectPercentage"`
	Score               int     `json:"score"`
	Accuracy            int     `json:"accuracy"`
}

// GameStats is the live host dashboard payload.
type GameStats struct {
	CurrentQuestionIndex int              `json:"currentQuestionIndex"`
	TotalQuestions       int              `json:"totalQuestions"`
	PlayerStats          []PlayerStatLine `json:"playerStats"`
}

// GameResultStats is what gets folded into a player's lifetime record when a
// room finishes.
type GameResultStats struct {
	IsWin             bool
	IsPodium          bool
	QuestionsAnswered int
	CorrectAnswers    int
	BestStreak        int
	XPEarned          int
}
