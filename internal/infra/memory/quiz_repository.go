package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-arena/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes in memory so that rooms created from the same
// quiz in quick succession hit the backing store once. Each entry carries its
// own jittered lifetime so a batch of rooms does not expire in lockstep.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]quizEntry
	jitter  *rand.Rand
}

type quizEntry struct {
	quiz      domain.Quiz
	fetchedAt time.Time
	lifetime  time.Duration
}

func (e quizEntry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.lifetime
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		jitter:  rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]quizEntry),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.group.Do(quizID, func() (interface{}, error) {
		// Losers of the singleflight race land here after the winner stored.
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quizID, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) lookup(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.entries[quizID]; ok && entry.fresh(now) {
		return entry.quiz, true
	}
	return domain.Quiz{}, false
}

// store records the quiz under the write lock; the jitter source is only
// touched here, so it needs no locking of its own.
func (r *QuizRepository) store(quizID string, quiz domain.Quiz) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lifetime := r.ttl
	if lifetime > 0 {
		// Up to 10% extra to spread expirations.
		lifetime += time.Duration(r.jitter.Int63n(int64(r.ttl)/10 + 1))
	}
	r.entries[quizID] = quizEntry{
		quiz:      quiz,
		fetchedAt: r.clock(),
		lifetime:  lifetime,
	}
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for
// tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
