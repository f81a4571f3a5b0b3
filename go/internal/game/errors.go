package game

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrNoPlayers         = errors.New("room has no players")
	ErrContentProvider   = errors.New("content provider failure")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInvalidPlayer     = errors.New("invalid player")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrInvalidTopic      = errors.New("invalid topic")
	// ErrSuperseded means a fresher transition happened while a result was
	// pending, so the result was dropped.
	ErrSuperseded = errors.New("state superseded")
	ErrClosed     = errors.New("controller closed")
)
