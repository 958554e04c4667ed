package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trivia-arena/internal/domain"
)

// Registry is the in-memory map of active rooms. It is the only structure
// shared across rooms; insert and evict are atomic with respect to each
// other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Add registers a room under its code. Returns false on a code collision so
// the creator can regenerate.
func (g *Registry) Add(room *Room) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.rooms[room.Code()]; exists {
		return false
	}
	g.rooms[room.Code()] = room
	return true
}

// Get looks a room up by code.
func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	return room, ok
}

// Remove evicts a room.
func (g *Registry) Remove(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, code)
}

// Len reports the number of active rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func (g *Registry) codes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.rooms))
	for code := range g.rooms {
		out = append(out, code)
	}
	return out
}

// StartReaper evicts rooms with no activity for idleTTL, and finished rooms
// after the shorter finishedLinger, until ctx is cancelled. Roster-empty
// eviction happens inline in LeaveRoom; this covers rooms everyone abandoned
// without a clean leave.
func (g *Registry) StartReaper(ctx context.Context, interval, idleTTL, finishedLinger time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.reap(idleTTL, finishedLinger, logger)
			}
		}
	}()
}

func (g *Registry) reap(idleTTL, finishedLinger time.Duration, logger *slog.Logger) {
	now := time.Now()
	for _, code := range g.codes() {
		room, ok := g.Get(code)
		if !ok {
			continue
		}
		idle := now.Sub(room.LastActivity())
		expired := idle > idleTTL ||
			(room.Status() == domain.RoomFinished && idle > finishedLinger)
		if expired {
			g.Remove(code)
			logger.Info("room reaped", "code", code, "idle", idle.String())
		}
	}
}
