package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no active room matches the code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty indicates the quiz has no questions and cannot be played.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrRoomAlreadyStarted is returned on join or start against a room that
	// has left the lobby.
	ErrRoomAlreadyStarted = errors.New("room already started")
	// ErrRoomFinished is returned for actions against a finished room.
	ErrRoomFinished = errors.New("room already finished")
	// ErrNameTaken is returned when a joining name collides case-insensitively.
	ErrNameTaken = errors.New("name already taken")
	// ErrNotHost is returned when a host-only action comes from someone else.
	ErrNotHost = errors.New("only the host can do that")
	// ErrPlayerNotFound is returned when the player is not on the roster.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrPlayerStateNotFound is returned when a player has no game state yet.
	ErrPlayerStateNotFound = errors.New("player state not found")
	// ErrNoCurrentQuestion is returned when the player's index is out of range.
	ErrNoCurrentQuestion = errors.New("no current question for this player")
	// ErrInvalidOption is returned when the option does not belong to the
	// player's current question.
	ErrInvalidOption = errors.New("option not found")
	// ErrAlreadyAnswered is returned on a second submission for the same
	// question index.
	ErrAlreadyAnswered = errors.New("question already answered")
)
