package game

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionEnded     = errors.New("session already ended")
	ErrAlreadyInSession = errors.New("participant already in a session")
	ErrInvalidGuess     = errors.New(`guess must be "human" or "bot"`)
)

type Role string

const (
	RoleDetective Role = "detective"
	RoleResponder Role = "responder"
)

type Guess string

const (
	GuessHuman Guess = "human"
	GuessBot   Guess = "bot"
)

// ParseGuess accepts exactly "human" or "bot".
func ParseGuess(s string) (Guess, error) {
	switch Guess(s) {
	case GuessHuman:
		return GuessHuman, nil
	case GuessBot:
		return GuessBot, nil
	}
	return "", ErrInvalidGuess
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Outcome string

const (
	OutcomeUnset              Outcome = ""
	OutcomeDetectiveCorrect   Outcome = "detectiveCorrect"
	OutcomeDetectiveIncorrect Outcome = "detectiveIncorrect"
)

// Participant is one side of a session. Bots have no connection.
type Participant struct {
	ConnID string `json:"-"`
	Name   string `json:"name"`
	IsBot  bool   `json:"-"`
}

// Persona is the style profile a bot keeps for a whole session.
type Persona struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"-"`
}

type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
