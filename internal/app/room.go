package app

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-arena/internal/domain"
	"trivia-arena/internal/scoring"
)

// Timing reconciliation bounds for submitted answers, in milliseconds.
const (
	// answerLatencyBuffer is added to the question time limit when clamping a
	// client-reported elapsed time; it absorbs delivery latency of the
	// question itself.
	answerLatencyBuffer = 3000
	// maxClockDiscrepancy is how far the client-reported elapsed time may
	// diverge from the server measurement before the server value wins.
	maxClockDiscrepancy = 2000
)

// Room is the aggregate root for one live session. All fields are guarded by
// mu; every exported method is a run-to-completion handler that copies data
// out before releasing the lock. Rooms never share state, so two rooms never
// contend on each other.
type Room struct {
	mu sync.Mutex

	code     string
	quiz     domain.Quiz
	hostID   string
	hostName string
	status   domain.RoomStatus
	mode     domain.Mode

	players []*domain.Player
	states  map[string]*domain.PlayerGameState
	results []*domain.QuestionResults

	// released marks question indices whose WAIT_ALL cohort has been handed
	// to the orchestrator, so a cohort fans out exactly once.
	released map[int]bool

	createdAt    time.Time
	finishedAt   time.Time
	lastActivity time.Time

	now func() time.Time
}

// NewRoom constructs a room in LOBBY with an empty roster.
func NewRoom(code string, quiz domain.Quiz, hostID, hostName string, mode domain.Mode) *Room {
	return NewRoomWithClock(code, quiz, hostID, hostName, mode, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code string, quiz domain.Quiz, hostID, hostName string, mode domain.Mode, now func() time.Time) *Room {
	return &Room{
		code:         code,
		quiz:         quiz,
		hostID:       hostID,
		hostName:     hostName,
		status:       domain.RoomLobby,
		mode:         mode,
		states:       make(map[string]*domain.PlayerGameState),
		results:      make([]*domain.QuestionResults, len(quiz.Questions)),
		released:     make(map[int]bool),
		createdAt:    now(),
		lastActivity: now(),
		now:          now,
	}
}

func (r *Room) Code() string      { return r.code }
func (r *Room) HostID() string    { return r.hostID }
func (r *Room) Mode() domain.Mode { return r.mode }

// Status returns the room lifecycle state.
func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastActivity reports when the room last saw a mutation; the registry
// reaper uses it to evict idle rooms.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Join appends a new player to the roster. Names are unique
// case-insensitively; joining is only possible while the room is in LOBBY.
func (r *Room) Join(name, externalID string) (domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.RoomLobby {
		return domain.Player{}, domain.ErrRoomAlreadyStarted
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return domain.Player{}, domain.ErrNameTaken
		}
	}

	player := &domain.Player{
		ID:         "player_" + uuid.NewString(),
		Name:       name,
		Avatar:     domain.AvatarPresets[rand.Intn(len(domain.AvatarPresets))],
		JoinedAt:   r.now(),
		ExternalID: externalID,
	}
	r.players = append(r.players, player)
	r.lastActivity = r.now()
	return *player, nil
}

// Start moves the room to PLAYING and seeds a game state for every roster
// member at index -1, the "not yet begun" sentinel. BeginQuestion advances
// each player into question 0 from there.
func (r *Room) Start(hostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != hostID {
		return domain.ErrNotHost
	}
	switch r.status {
	case domain.RoomLobby:
	case domain.RoomFinished:
		return domain.ErrRoomFinished
	default:
		return domain.ErrRoomAlreadyStarted
	}
	if len(r.quiz.Questions) == 0 {
		return domain.ErrQuizEmpty
	}

	r.status = domain.RoomPlaying
	nowMs := r.now().UnixMilli()
	for _, p := range r.players {
		r.states[p.ID] = &domain.PlayerGameState{
			PlayerID:             p.ID,
			CurrentQuestionIndex: -1,
			Status:               domain.PlayerAwaitingResults,
			LastActivityAt:       nowMs,
		}
	}
	r.lastActivity = r.now()
	return nil
}

// BeginQuestion advances the player's index by one and opens the question.
// This is the only place a player's index changes. When the index runs past
// the quiz, the player is FINISHED and hasQuestion is false.
func (r *Room) BeginQuestion(playerID string) (state domain.PlayerGameState, question domain.Question, hasQuestion bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.states[playerID]
	if !ok {
		return domain.PlayerGameState{}, domain.Question{}, false, domain.ErrPlayerStateNotFound
	}
	if ps.Status == domain.PlayerFinished {
		return copyState(ps), domain.Question{}, false, nil
	}

	ps.CurrentQuestionIndex++
	nowMs := r.now().UnixMilli()
	ps.LastActivityAt = nowMs

	if ps.CurrentQuestionIndex >= len(r.quiz.Questions) {
		ps.Status = domain.PlayerFinished
		ps.QuestionStartedAt = 0
		ps.HasAnsweredCurrent = false
		r.lastActivity = r.now()
		return copyState(ps), domain.Question{}, false, nil
	}

	ps.Status = domain.PlayerInQuestion
	ps.QuestionStartedAt = nowMs
	ps.HasAnsweredCurrent = false
	r.lastActivity = r.now()
	return copyState(ps), r.quiz.Questions[ps.CurrentQuestionIndex], true, nil
}

// SubmitAnswer validates and records one answer. The client-reported elapsed
// time is reconciled against the server's own measurement: it is clamped to
// [0, timeLimit+buffer] and replaced by the server value outright when the
// two diverge by more than maxClockDiscrepancy. Scoring uses the player's
// streak from before this answer.
//
// The question index advances only via BeginQuestion, so concurrent
// submissions from different players touch disjoint player state; the room
// lock serializes their appends to the shared results log.
func (r *Room) SubmitAnswer(playerID, questionID, optionID string, clientElapsed int64) (domain.PlayerAnswer, domain.PlayerGameState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == domain.RoomFinished {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrRoomFinished
	}
	ps, ok := r.states[playerID]
	if !ok {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrPlayerStateNotFound
	}
	if ps.CurrentQuestionIndex < 0 || ps.CurrentQuestionIndex >= len(r.quiz.Questions) {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrNoCurrentQuestion
	}
	question := r.quiz.Questions[ps.CurrentQuestionIndex]
	if questionID != "" && questionID != question.ID {
		// Stale client still showing an earlier question.
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrNoCurrentQuestion
	}
	if ps.HasAnsweredCurrent {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrAlreadyAnswered
	}

	player := r.playerLocked(playerID)
	if player == nil {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrPlayerNotFound
	}

	var selected *domain.Option
	for i := range question.Options {
		if question.Options[i].ID == optionID {
			selected = &question.Options[i]
			break
		}
	}
	if selected == nil {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, domain.ErrInvalidOption
	}

	nowMs := r.now().UnixMilli()
	elapsed := reconcileElapsed(clientElapsed, nowMs-ps.QuestionStartedAt, question.TimeLimit)

	isCorrect := selected.IsCorrect
	points := 0
	if isCorrect {
		points = scoring.Points(question.TimeLimit, elapsed, player.Streak)
	}

	answer := domain.PlayerAnswer{
		PlayerID:     playerID,
		QuestionID:   question.ID,
		OptionID:     optionID,
		AnsweredAt:   nowMs,
		TimeElapsed:  elapsed,
		IsCorrect:    isCorrect,
		PointsEarned: points,
	}
	r.recordAnswerLocked(player, ps, answer)
	return answer, copyState(ps), nil
}

// ForceAnswer records a timed-out incorrect answer for a player who is still
// inside a question. It is the mechanism behind question deadlines and the
// host's forced skip. Returns forced=false when the player has already
// answered or is not in a question.
func (r *Room) ForceAnswer(playerID string) (domain.PlayerAnswer, domain.PlayerGameState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.states[playerID]
	if !ok || r.status != domain.RoomPlaying {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, false
	}
	if ps.Status != domain.PlayerInQuestion || ps.HasAnsweredCurrent {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, false
	}
	if ps.CurrentQuestionIndex < 0 || ps.CurrentQuestionIndex >= len(r.quiz.Questions) {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, false
	}
	player := r.playerLocked(playerID)
	if player == nil {
		return domain.PlayerAnswer{}, domain.PlayerGameState{}, false
	}

	question := r.quiz.Questions[ps.CurrentQuestionIndex]
	nowMs := r.now().UnixMilli()
	answer := domain.PlayerAnswer{
		PlayerID:    playerID,
		QuestionID:  question.ID,
		AnsweredAt:  nowMs,
		TimeElapsed: question.TimeLimit,
		TimedOut:    true,
	}
	r.recordAnswerLocked(player, ps, answer)
	return answer, copyState(ps), true
}

// recordAnswerLocked applies one answer to the player's stats, their own log
// and the room-wide results for the question index. Caller holds r.mu.
func (r *Room) recordAnswerLocked(player *domain.Player, ps *domain.PlayerGameState, answer domain.PlayerAnswer) {
	player.TotalAnswers++
	if answer.IsCorrect {
		player.CorrectAnswers++
		player.Score += answer.PointsEarned
	}
	player.Streak = scoring.NextStreak(player.Streak, answer.IsCorrect)
	if player.Streak > player.BestStreak {
		player.BestStreak = player.Streak
	}
	player.Accuracy = scoring.Accuracy(player.CorrectAnswers, player.TotalAnswers)

	ps.Answers = append(ps.Answers, answer)
	ps.HasAnsweredCurrent = true
	ps.Status = domain.PlayerAwaitingResults
	ps.LastActivityAt = answer.AnsweredAt

	idx := ps.CurrentQuestionIndex
	question := r.quiz.Questions[idx]
	if r.results[idx] == nil {
		r.results[idx] = &domain.QuestionResults{
			QuestionID:      question.ID,
			TotalPlayers:    len(r.players),
			OptionVotes:     make(map[string]int),
			CorrectOptionID: question.CorrectOptionID(),
		}
	}
	res := r.results[idx]
	res.PlayerAnswers = append(res.PlayerAnswers, answer)
	if answer.OptionID != "" {
		res.OptionVotes[answer.OptionID]++
	}
	r.lastActivity = r.now()
}

// reconcileElapsed implements the anti-cheat timing rules.
func reconcileElapsed(client, server, timeLimit int64) int64 {
	if client < 0 {
		client = 0
	}
	if max := timeLimit + answerLatencyBuffer; client > max {
		client = max
	}
	diff := server - client
	if diff < 0 {
		diff = -diff
	}
	if diff > maxClockDiscrepancy {
		return server
	}
	return client
}

// CohortAt returns the IDs of players whose current index equals idx.
func (r *Room) CohortAt(idx int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, p := range r.players {
		if ps, ok := r.states[p.ID]; ok && ps.CurrentQuestionIndex == idx && ps.Status != domain.PlayerFinished {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// TryReleaseCohort reports whether every player positioned at idx has
// answered, and if so claims the release so the fan-out runs exactly once.
// Returns the cohort member IDs on success.
func (r *Room) TryReleaseCohort(idx int) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released[idx] {
		return nil, false
	}
	var ids []string
	for _, p := range r.players {
		ps, ok := r.states[p.ID]
		if !ok || ps.CurrentQuestionIndex != idx || ps.Status == domain.PlayerFinished {
			continue
		}
		if !ps.HasAnsweredCurrent {
			return nil, false
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return nil, false
	}
	r.released[idx] = true
	return ids, true
}

// State returns a copy of one player's game state.
func (r *Room) State(playerID string) (domain.PlayerGameState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.states[playerID]
	if !ok {
		return domain.PlayerGameState{}, false
	}
	return copyState(ps), true
}

// QuestionAt returns the question at idx if it exists.
func (r *Room) QuestionAt(idx int) (domain.Question, bool) {
	if idx < 0 || idx >= len(r.quiz.Questions) {
		return domain.Question{}, false
	}
	return r.quiz.Questions[idx], true
}

// Player returns a copy of one roster member.
func (r *Room) Player(playerID string) (domain.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.playerLocked(playerID); p != nil {
		return *p, true
	}
	return domain.Player{}, false
}

// Ranking sorts players by score, then accuracy, then join time. The join
// timestamp makes the order total, so equal scores never share a rank.
func (r *Room) Ranking() []domain.RankingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rankingLocked()
}

func (r *Room) rankingLocked() []domain.RankingEntry {
	sorted := make([]*domain.Player, len(r.players))
	copy(sorted, r.players)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].Accuracy != sorted[j].Accuracy {
			return sorted[i].Accuracy > sorted[j].Accuracy
		}
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})
	ranking := make([]domain.RankingEntry, len(sorted))
	for i, p := range sorted {
		ranking[i] = domain.RankingEntry{Player: *p, Rank: i + 1}
	}
	return ranking
}

// Stats derives the host dashboard feed: per-player correctness breakdown
// plus the furthest question index any player has reached.
func (r *Room) Stats() domain.GameStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	furthest := -1
	for _, ps := range r.states {
		if ps.CurrentQuestionIndex > furthest {
			furthest = ps.CurrentQuestionIndex
		}
	}

	lines := make([]domain.PlayerStatLine, 0, len(r.players))
	for _, p := range r.players {
		incorrect := p.TotalAnswers - p.CorrectAnswers
		var correctPct, incorrectPct float64
		if p.TotalAnswers > 0 {
			correctPct = roundTenth(float64(p.CorrectAnswers) / float64(p.TotalAnswers) * 100)
			incorrectPct = roundTenth(float64(incorrect) / float64(p.TotalAnswers) * 100)
		}
		lines = append(lines, domain.PlayerStatLine{
			Player:              *p,
			CorrectAnswers:      p.CorrectAnswers,
			IncorrectAnswers:    incorrect,
			TotalAnswers:        p.TotalAnswers,
			CorrectPercentage:   correctPct,
			IncorrectPercentage: incorrectPct,
			Score:               p.Score,
			Accuracy:            p.Accuracy,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Score > lines[j].Score })

	return domain.GameStats{
		CurrentQuestionIndex: furthest,
		TotalQuestions:       len(r.quiz.Questions),
		PlayerStats:          lines,
	}
}

// AllFinished reports whether every roster member's state is FINISHED.
func (r *Room) AllFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		ps, ok := r.states[p.ID]
		if !ok || ps.Status != domain.PlayerFinished {
			return false
		}
	}
	return true
}

// MarkFinished transitions the room to FINISHED exactly once; callers racing
// to finish use the return value to decide who runs the teardown.
func (r *Room) MarkFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == domain.RoomFinished {
		return false
	}
	r.status = domain.RoomFinished
	r.finishedAt = r.now()
	r.lastActivity = r.now()
	return true
}

// FinishSummary builds the final ranking, podium and per-question history.
func (r *Room) FinishSummary() ([]domain.RankingEntry, []domain.RankingEntry, []domain.QuestionHistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ranking := r.rankingLocked()
	podium := ranking
	if len(podium) > 3 {
		podium = podium[:3]
	}
	history := make([]domain.QuestionHistoryEntry, len(r.quiz.Questions))
	for i, q := range r.quiz.Questions {
		entry := domain.QuestionHistoryEntry{Question: q}
		if r.results[i] != nil {
			entry.Results = *r.results[i]
		}
		history[i] = entry
	}
	return ranking, podium, history
}

// RemovePlayer drops a player from the roster and state map. Returns whether
// the roster is now empty, which triggers registry eviction.
func (r *Room) RemovePlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	delete(r.states, playerID)
	r.lastActivity = r.now()
	return len(r.players) == 0
}

// Snapshot is the lobby/roster view pushed on join and start.
type RoomSnapshot struct {
	Code           string            `json:"code"`
	QuizID         string            `json:"quizId"`
	QuizTitle      string            `json:"quizTitle"`
	HostID         string            `json:"hostId"`
	HostName       string            `json:"hostName"`
	Status         domain.RoomStatus `json:"status"`
	Mode           domain.Mode       `json:"mode"`
	Players        []domain.Player   `json:"players"`
	TotalQuestions int               `json:"totalQuestions"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Snapshot copies the shareable room view out under the lock.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]domain.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	return RoomSnapshot{
		Code:           r.code,
		QuizID:         r.quiz.ID,
		QuizTitle:      r.quiz.Title,
		HostID:         r.hostID,
		HostName:       r.hostName,
		Status:         r.status,
		Mode:           r.mode,
		Players:        players,
		TotalQuestions: len(r.quiz.Questions),
		CreatedAt:      r.createdAt,
	}
}

// PlayerIDs returns the roster IDs in join order.
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.players))
	for i, p := range r.players {
		ids[i] = p.ID
	}
	return ids
}

func (r *Room) playerLocked(playerID string) *domain.Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func copyState(ps *domain.PlayerGameState) domain.PlayerGameState {
	out := *ps
	out.Answers = make([]domain.PlayerAnswer, len(ps.Answers))
	copy(out.Answers, ps.Answers)
	return out
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
