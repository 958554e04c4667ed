package app

import (
	"context"
	"log/slog"
	"time"

	"trivia-arena/internal/domain"
)

// Delays are the server-owned windows of the advancement protocol. Clients
// never drive these transitions.
type Delays struct {
	// Feedback is how long the answer feedback screen stays up.
	Feedback time.Duration
	// Ranking is how long the leaderboard screen stays up.
	Ranking time.Duration
	// FirstQuestion is the pause between room-started and question one.
	FirstQuestion time.Duration
	// AnswerGrace extends a question's time limit before the server force
	// answers players who went silent.
	AnswerGrace time.Duration
}

// DefaultDelays mirrors the reference choreography.
func DefaultDelays() Delays {
	return Delays{
		Feedback:      2 * time.Second,
		Ranking:       3 * time.Second,
		FirstQuestion: 2 * time.Second,
		AnswerGrace:   5 * time.Second,
	}
}

// Orchestrator drives every player through feedback -> ranking -> next
// question after an answer lands. In FAST mode each player runs the sequence
// alone; in WAIT_ALL a whole question-index cohort runs it together once its
// last member answers. Scheduled callbacks re-resolve the room by code and
// no-op when it is gone, so timers outliving a room are harmless.
type Orchestrator struct {
	registry  *Registry
	emitter   Emitter
	scheduler Scheduler
	rooms     RoomMetadataRepository
	stats     PlayerStatsRepository
	logger    *slog.Logger
	delays    Delays
}

func NewOrchestrator(registry *Registry, emitter Emitter, scheduler Scheduler, rooms RoomMetadataRepository, stats PlayerStatsRepository, logger *slog.Logger, delays Delays) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		emitter:   emitter,
		scheduler: scheduler,
		rooms:     rooms,
		stats:     stats,
		logger:    logger,
		delays:    delays,
	}
}

// StartAllQuestions opens question zero for every roster member. Called once
// per room, shortly after room-started goes out.
func (o *Orchestrator) StartAllQuestions(code string) {
	room, ok := o.registry.Get(code)
	if !ok || room.Status() != domain.RoomPlaying {
		return
	}
	for _, playerID := range room.PlayerIDs() {
		o.beginQuestionFor(room, playerID)
	}
	o.emitStats(room)
}

// OnAnswer routes a freshly recorded answer into the room's pacing policy.
func (o *Orchestrator) OnAnswer(room *Room, playerID string, state domain.PlayerGameState) {
	switch room.Mode() {
	case domain.ModeWaitAll:
		if cohort, ok := room.TryReleaseCohort(state.CurrentQuestionIndex); ok {
			o.runSequence(room.Code(), state.CurrentQuestionIndex, cohort)
		}
	default: // FAST
		o.runSequence(room.Code(), state.CurrentQuestionIndex, []string{playerID})
	}
}

// OnPlayerRemoved re-checks advancement after a player leaves. In WAIT_ALL
// the departed player may have been the last unanswered member of their
// cohort, which would otherwise stall forever. In either mode the departure
// may leave only FINISHED players behind, so the finish check runs here too.
func (o *Orchestrator) OnPlayerRemoved(room *Room, questionIndex int) {
	if room.Mode() == domain.ModeWaitAll && questionIndex >= 0 {
		if cohort, ok := room.TryReleaseCohort(questionIndex); ok {
			o.runSequence(room.Code(), questionIndex, cohort)
		}
	}
	if room.AllFinished() {
		o.FinishRoom(room)
	}
}

// ForceAdvance is the host's skip: every player still inside a question gets
// a timed-out incorrect answer and the normal advancement runs from there.
func (o *Orchestrator) ForceAdvance(room *Room) {
	forcedByIndex := make(map[int][]string)
	for _, playerID := range room.PlayerIDs() {
		_, state, forced := room.ForceAnswer(playerID)
		if !forced {
			continue
		}
		forcedByIndex[state.CurrentQuestionIndex] = append(forcedByIndex[state.CurrentQuestionIndex], playerID)
	}
	o.emitStats(room)

	if room.Mode() == domain.ModeWaitAll {
		for idx := range forcedByIndex {
			if cohort, ok := room.TryReleaseCohort(idx); ok {
				o.runSequence(room.Code(), idx, cohort)
			}
		}
		return
	}
	for idx, players := range forcedByIndex {
		for _, playerID := range players {
			o.runSequence(room.Code(), idx, []string{playerID})
		}
	}
}

// runSequence fans the feedback -> ranking -> advance chain out to a set of
// players sitting on the same question index. Feedback goes out now; the
// later steps are scheduled server-side.
func (o *Orchestrator) runSequence(code string, questionIndex int, playerIDs []string) {
	room, ok := o.registry.Get(code)
	if !ok {
		return
	}
	question, ok := room.QuestionAt(questionIndex)
	if !ok {
		return
	}

	for _, playerID := range playerIDs {
		state, ok := room.State(playerID)
		if !ok || len(state.Answers) == 0 {
			continue
		}
		last := state.Answers[len(state.Answers)-1]
		o.emitter.ToPlayer(playerID, EventAnswerFeedback, AnswerFeedbackPayload{
			IsCorrect:        last.IsCorrect,
			PointsEarned:     last.PointsEarned,
			CorrectOptionID:  question.CorrectOptionID(),
			SelectedOptionID: last.OptionID,
			TimedOut:         last.TimedOut,
		})
	}

	o.scheduler.AfterFunc(o.delays.Feedback, func() {
		o.showRanking(code, playerIDs)
	})
}

func (o *Orchestrator) showRanking(code string, playerIDs []string) {
	room, ok := o.registry.Get(code)
	if !ok {
		return
	}
	ranking := room.Ranking()
	top := ranking
	if len(top) > rankingTopN {
		top = top[:rankingTopN]
	}
	for _, playerID := range playerIDs {
		if _, ok := room.State(playerID); !ok {
			continue
		}
		o.emitter.ToPlayer(playerID, EventShowRanking, ShowRankingPayload{
			Ranking:           ranking,
			CurrentPlayerRank: rankOf(ranking, playerID),
			TopPlayers:        top,
		})
	}

	o.scheduler.AfterFunc(o.delays.Ranking, func() {
		o.advancePlayers(code, playerIDs)
	})
}

func (o *Orchestrator) advancePlayers(code string, playerIDs []string) {
	room, ok := o.registry.Get(code)
	if !ok || room.Status() != domain.RoomPlaying {
		return
	}
	for _, playerID := range playerIDs {
		o.beginQuestionFor(room, playerID)
	}
	if room.AllFinished() {
		o.FinishRoom(room)
	}
}

// beginQuestionFor opens the player's next question, or their final screen
// when the quiz is exhausted. The sole caller of Room.BeginQuestion.
func (o *Orchestrator) beginQuestionFor(room *Room, playerID string) {
	state, question, hasQuestion, err := room.BeginQuestion(playerID)
	if err != nil {
		// Player left between scheduling and firing.
		return
	}
	if !hasQuestion {
		o.finishPlayer(room, playerID)
		return
	}

	o.emitter.ToPlayer(playerID, EventQuestionStart, QuestionStartPayload{
		Question:       question.Sanitized(),
		QuestionNumber: state.CurrentQuestionIndex + 1,
		TotalQuestions: room.Snapshot().TotalQuestions,
		StartedAt:      state.QuestionStartedAt,
		PlayerState:    state,
	})

	deadline := time.Duration(question.TimeLimit)*time.Millisecond + o.delays.AnswerGrace
	idx := state.CurrentQuestionIndex
	o.scheduler.AfterFunc(deadline, func() {
		o.enforceDeadline(room.Code(), playerID, idx)
	})
}

// enforceDeadline force-answers a player who never responded, then lets the
// normal advancement run. In WAIT_ALL this is what unsticks a cohort whose
// member disappeared without a clean leave.
func (o *Orchestrator) enforceDeadline(code, playerID string, questionIndex int) {
	room, ok := o.registry.Get(code)
	if !ok || room.Status() != domain.RoomPlaying {
		return
	}
	state, ok := room.State(playerID)
	if !ok || state.CurrentQuestionIndex != questionIndex {
		return
	}
	answer, state, forced := room.ForceAnswer(playerID)
	if !forced {
		return
	}
	o.logger.Warn("answer deadline hit",
		"room", code, "player", playerID, "question", answer.QuestionID)
	o.emitStats(room)
	o.OnAnswer(room, playerID, state)
}

func (o *Orchestrator) finishPlayer(room *Room, playerID string) {
	ranking, podium, history := room.FinishSummary()
	player, ok := room.Player(playerID)
	if !ok {
		return
	}
	o.emitter.ToPlayer(playerID, EventPlayerFinished, PlayerFinishedPayload{
		FinalRanking:    ranking,
		PlayerRank:      rankOf(ranking, playerID),
		PlayerScore:     player.Score,
		Podium:          podium,
		QuestionHistory: history,
	})
}

// FinishRoom runs the room teardown exactly once: final broadcast, metadata
// update and lifetime-stat upserts. Multiple players crossing the line in
// the same tick race on MarkFinished; only the winner proceeds.
func (o *Orchestrator) FinishRoom(room *Room) {
	if !room.MarkFinished() {
		return
	}
	code := room.Code()
	ranking, podium, history := room.FinishSummary()

	o.emitter.ToRoom(code, EventRoomFinished, RoomFinishedPayload{
		FinalRanking:    ranking,
		Podium:          podium,
		QuestionHistory: history,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.rooms.UpdateRoomStatus(ctx, code, domain.RoomFinished, len(ranking)); err != nil {
		o.logger.Warn("room metadata update failed", "room", code, "err", err)
	}
	o.persistStats(ctx, code, ranking)
	o.logger.Info("room finished", "room", code, "players", len(ranking))
}

// persistStats upserts lifetime stats per ranked player. Failures are
// isolated: one bad upsert never blocks the rest or the finish itself.
func (o *Orchestrator) persistStats(ctx context.Context, code string, ranking []domain.RankingEntry) {
	for _, entry := range ranking {
		p := entry.Player
		if p.ExternalID == "" {
			continue
		}
		stats := domain.GameResultStats{
			IsWin:             entry.Rank == 1,
			IsPodium:          entry.Rank <= 3,
			QuestionsAnswered: p.TotalAnswers,
			CorrectAnswers:    p.CorrectAnswers,
			BestStreak:        p.BestStreak,
			XPEarned:          p.Score/10 + podiumBonus(entry.Rank),
		}
		if err := o.stats.UpsertStats(ctx, p.ExternalID, stats); err != nil {
			o.logger.Warn("stats upsert failed",
				"room", code, "user", p.ExternalID, "err", err)
		}
	}
}

func podiumBonus(rank int) int {
	switch rank {
	case 1:
		return 500
	case 2:
		return 300
	case 3:
		return 100
	default:
		return 0
	}
}

func (o *Orchestrator) emitStats(room *Room) {
	o.emitter.ToPlayer(room.HostID(), EventStatsUpdate, room.Stats())
}

func rankOf(ranking []domain.RankingEntry, playerID string) int {
	for _, entry := range ranking {
		if entry.Player.ID == playerID {
			return entry.Rank
		}
	}
	return 0
}
