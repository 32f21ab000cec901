package game

import (
	"sync"
	"time"
)

// Session is one timed round between a detective and a responder. All
// mutations go through its mutex; the first terminal transition wins.
type Session struct {
	ID            string
	Detective     Participant
	Responder     Participant
	IsBotOpponent bool
	StartedAt     time.Time
	Duration      time.Duration

	mu         sync.Mutex
	persona    Persona
	transcript []Entry
	status     Status
	guess      Guess
	outcome    Outcome
	endedAt    time.Time
	timer      *time.Timer
}

func NewSession(id string, detective, responder Participant, isBot bool, duration time.Duration, persona Persona) *Session {
	return &Session{
		ID:            id,
		Detective:     detective,
		Responder:     responder,
		IsBotOpponent: isBot,
		StartedAt:     time.Now().UTC(),
		Duration:      duration,
		persona:       persona,
		status:        StatusActive,
	}
}

// AddMessage appends to the transcript while the session is active.
func (s *Session) AddMessage(role Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return ErrSessionEnded
	}
	at := time.Now()
	if n := len(s.transcript); n > 0 && at.Before(s.transcript[n-1].At) {
		at = s.transcript[n-1].At
	}
	s.transcript = append(s.transcript, Entry{Role: role, Text: text, At: at})
	return nil
}

// EndGame adjudicates guess. The bool reports whether this call ended the
// session; later calls return the stored outcome unchanged.
func (s *Session) EndGame(guess Guess) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return s.outcome, false
	}
	s.guess = guess
	if (s.IsBotOpponent && guess == GuessBot) || (!s.IsBotOpponent && guess == GuessHuman) {
		s.outcome = OutcomeDetectiveCorrect
	} else {
		s.outcome = OutcomeDetectiveIncorrect
	}
	s.finishLocked()
	return s.outcome, true
}

// Abort ends the session without an outcome, e.g. when a side disconnects.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return false
	}
	s.finishLocked()
	return true
}

func (s *Session) finishLocked() {
	s.status = StatusEnded
	s.endedAt = time.Now().UTC()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// StartTimer arms the round clock. onTimeUp runs only if the session is
// still active when it fires; it does not end the session.
func (s *Session) StartTimer(onTimeUp func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.Duration, func() {
		s.mu.Lock()
		active := s.status == StatusActive
		s.timer = nil
		s.mu.Unlock()
		if active {
			onTimeUp(s)
		}
	})
}

func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Active() bool { return s.Status() == StatusActive }

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Session) Guess() Guess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guess
}

func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

func (s *Session) Persona() Persona { return s.persona }

// RoleOf reports which side connID plays in s.
func (s *Session) RoleOf(connID string) (Role, bool) {
	switch {
	case connID == "":
		return "", false
	case s.Detective.ConnID == connID:
		return RoleDetective, true
	case s.Responder.ConnID == connID:
		return RoleResponder, true
	}
	return "", false
}

// Counterpart returns the participant opposite role.
func (s *Session) Counterpart(role Role) Participant {
	if role == RoleDetective {
		return s.Responder
	}
	return s.Detective
}
