package ws

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kiliankoe/amiabot/internal/bot"
	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/kiliankoe/amiabot/internal/identity"
	"github.com/kiliankoe/amiabot/internal/leaderboard"
	"github.com/kiliankoe/amiabot/internal/match"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConn   = errors.New("unknown connection")
	ErrAlreadyInGame = errors.New("already in a game")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNotDetective  = errors.New("only the detective can guess")
	ErrStale         = errors.New("participant is no longer connected")
)

// LeaderboardView is how many entries are pushed to clients.
const LeaderboardView = 10

// Conn is one client connection, whatever the transport.
type Conn interface {
	ID() string
	// Emit sends event to the client; a nil payload sends the bare event.
	Emit(event string, payload any)
}

type Options struct {
	GameDuration time.Duration
	Match        match.Config
	Responder    bot.Options
	// ExportFile receives finished transcripts when non-empty.
	ExportFile string
}

type DetectiveResult struct {
	Correct bool           `json:"correct"`
	WasAI   bool           `json:"wasAI"`
	Guess   game.Guess     `json:"guess"`
	Score   identity.Score `json:"score"`
}

type ResponderResult struct {
	Correct        bool           `json:"correct"`
	Role           game.Role      `json:"role"`
	DetectiveGuess game.Guess     `json:"detectiveGuess"`
	Score          identity.Score `json:"score"`
}

type Stats struct {
	TotalGames     int `json:"totalGames"`
	ActiveGames    int `json:"activeGames"`
	WaitingPlayers int `json:"waitingPlayers"`
}

// Hub routes inbound events to the game components and fans outbound
// notifications back to connections. It owns the connection table and the
// responder adapter of every running session.
type Hub struct {
	Users    *identity.Registry
	Sessions *game.Manager
	Board    *leaderboard.Board
	Match    *match.Matchmaker

	opts     Options
	rand     game.Rand
	exporter *game.Exporter

	// lifecycle serializes session starts and ends with disconnects, so a
	// pairing can never register a session for a connection that is gone.
	lifecycle sync.Mutex

	mu         sync.RWMutex
	conns      map[string]Conn
	responders map[string]bot.Responder // session ID -> adapter
}

func NewHub(users *identity.Registry, sessions *game.Manager, board *leaderboard.Board, r game.Rand, opts Options) *Hub {
	h := &Hub{
		Users:      users,
		Sessions:   sessions,
		Board:      board,
		opts:       opts,
		rand:       r,
		conns:      make(map[string]Conn),
		responders: make(map[string]bot.Responder),
	}
	if opts.ExportFile != "" {
		h.exporter = game.NewExporter(opts.ExportFile)
	}
	h.Match = match.New(opts.Match, r, h, h)
	return h
}

func (h *Hub) Connect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Emit implements game.Notifier.
func (h *Hub) Emit(connID, event string, payload any) {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.Emit(event, payload)
}

// Broadcast sends event to every connection, without holding the table lock.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Emit(event, payload)
	}
}

// Available reports whether connID has joined and is free to play.
func (h *Hub) Available(connID string) bool {
	if !h.Users.Connected(connID) {
		return false
	}
	_, err := h.Sessions.ForConn(connID)
	return errors.Is(err, game.ErrSessionNotFound)
}

// Join registers the user and starts matchmaking.
func (h *Hub) Join(connID, username string) error {
	h.lifecycle.Lock()
	h.mu.RLock()
	_, known := h.conns[connID]
	h.mu.RUnlock()
	if !known {
		h.lifecycle.Unlock()
		return ErrUnknownConn
	}
	if _, err := h.Sessions.ForConn(connID); err == nil {
		h.lifecycle.Unlock()
		return ErrAlreadyInGame
	}
	if h.Match.Waiting(connID) {
		h.lifecycle.Unlock()
		return nil
	}
	u := h.Users.Register(connID, username)
	h.lifecycle.Unlock()

	log.Info().Str("conn", connID).Str("user", u.Name).Msg("join-game")
	h.Emit(connID, game.EventMatchingStarted, nil)
	h.Match.Enqueue(connID)
	return nil
}

// StartHuman implements match.Starter.
func (h *Hub) StartHuman(detective, responder string) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	det, ok1 := h.Users.Get(detective)
	resp, ok2 := h.Users.Get(responder)
	if !ok1 || !ok2 {
		return ErrStale
	}
	s, err := h.Sessions.Create(
		game.Participant{ConnID: det.ID, Name: det.Name},
		game.Participant{ConnID: resp.ID, Name: resp.Name},
		false, h.opts.GameDuration, game.Persona{},
	)
	if err != nil {
		return err
	}
	h.start(s)
	return nil
}

// StartBot implements match.Starter.
func (h *Hub) StartBot(detective string) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	det, ok := h.Users.Get(detective)
	if !ok {
		return ErrStale
	}
	s, err := h.Sessions.Create(
		game.Participant{ConnID: det.ID, Name: det.Name},
		bot.Identity(h.rand),
		true, h.opts.GameDuration, bot.PickPersona(h.rand),
	)
	if err != nil {
		return err
	}
	h.start(s)
	return nil
}

func (h *Hub) start(s *game.Session) {
	r := bot.New(s, h, h.opts.Responder)
	h.mu.Lock()
	h.responders[s.ID] = r
	h.mu.Unlock()

	opponent := "human"
	if s.IsBotOpponent {
		opponent = "unknown"
	}
	h.Emit(s.Detective.ConnID, game.EventGameStarted, game.GameStartedPayload{Role: game.RoleDetective, Opponent: opponent, GameID: s.ID})
	if !s.IsBotOpponent {
		h.Emit(s.Responder.ConnID, game.EventGameStarted, game.GameStartedPayload{Role: game.RoleResponder, Opponent: opponent, GameID: s.ID})
	}
	s.StartTimer(h.timeUp)
	r.Greet()

	evt := log.Info().Str("game", s.ID).Str("detective", s.Detective.Name).Bool("bot", s.IsBotOpponent)
	if s.IsBotOpponent {
		evt = evt.Str("persona", s.Persona().Name)
	}
	evt.Msg("game started")
}

func (h *Hub) timeUp(s *game.Session) {
	h.Emit(s.Detective.ConnID, game.EventTimeUp, nil)
	if !s.IsBotOpponent {
		h.Emit(s.Responder.ConnID, game.EventTimeUp, nil)
	}
}

func (h *Hub) responder(sessionID string) bot.Responder {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.responders[sessionID]
}

// session resolves the active session for connID and the caller's role in it.
func (h *Hub) session(connID string) (*game.Session, game.Role, bool) {
	s, err := h.Sessions.ForConn(connID)
	if err != nil || s == nil {
		return nil, "", false
	}
	role, ok := s.RoleOf(connID)
	return s, role, ok
}

// SendMessage appends text to the caller's transcript and routes it to the
// other side. Without an active session it is dropped.
func (h *Hub) SendMessage(connID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	s, role, ok := h.session(connID)
	if !ok {
		log.Debug().Str("conn", connID).Msg("send-message without game")
		return nil
	}
	if err := s.AddMessage(role, text); err != nil {
		return nil
	}
	if r := h.responder(s.ID); r != nil {
		r.OnMessage(role, text)
	}
	return nil
}

func (h *Hub) Typing(connID string, typing bool) {
	s, role, ok := h.session(connID)
	if !ok {
		return
	}
	if r := h.responder(s.ID); r != nil {
		r.OnTyping(role, typing)
	}
}

// SubmitGuess ends the caller's game and scores it.
func (h *Hub) SubmitGuess(connID, raw string) error {
	guess, err := game.ParseGuess(raw)
	if err != nil {
		return err
	}
	s, role, ok := h.session(connID)
	if !ok {
		return nil
	}
	if role != game.RoleDetective {
		return ErrNotDetective
	}
	h.lifecycle.Lock()
	outcome, first := s.EndGame(guess)
	if first {
		h.finish(s)
	}
	h.lifecycle.Unlock()
	if !first {
		return nil
	}

	correct := outcome == game.OutcomeDetectiveCorrect
	h.Board.RecordOutcome(s.Detective.Name, correct)
	h.Emit(s.Detective.ConnID, game.EventGameResult, DetectiveResult{
		Correct: correct,
		WasAI:   s.IsBotOpponent,
		Guess:   guess,
		Score:   h.Users.Score(s.Detective.Name),
	})
	if !s.IsBotOpponent {
		h.Board.RecordOutcome(s.Responder.Name, !correct)
		h.Emit(s.Responder.ConnID, game.EventGameResult, ResponderResult{
			Correct:        !correct,
			Role:           game.RoleResponder,
			DetectiveGuess: guess,
			Score:          h.Users.Score(s.Responder.Name),
		})
	}
	log.Info().Str("game", s.ID).Str("guess", string(guess)).Str("outcome", string(outcome)).Msg("game result")

	h.Broadcast(game.EventLeaderboardUpdated, h.Board.Top(LeaderboardView))
	return nil
}

// EndEarly lets the caller skip to the guess phase; the game keeps running.
func (h *Hub) EndEarly(connID string) {
	if _, _, ok := h.session(connID); !ok {
		return
	}
	h.Emit(connID, game.EventProceedToGuess, nil)
}

func (h *Hub) Leaderboard(connID string) {
	h.Emit(connID, game.EventLeaderboardData, h.Board.Top(LeaderboardView))
}

// Disconnect cleans up after connID wherever it is: queue, game or idle.
func (h *Hub) Disconnect(connID string) {
	h.lifecycle.Lock()
	h.Match.Dequeue(connID)
	s, role, ok := h.session(connID)
	abandoned := ok && s.Abort()
	if abandoned {
		h.finish(s)
	}
	h.Users.Remove(connID)
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
	h.lifecycle.Unlock()

	if abandoned {
		if !s.IsBotOpponent {
			h.Emit(s.Counterpart(role).ConnID, game.EventOpponentDisconnected, nil)
		}
		log.Info().Str("game", s.ID).Str("conn", connID).Msg("game abandoned")
	}
}

// finish releases an ended session's adapter and participants. Callers hold
// lifecycle.
func (h *Hub) finish(s *game.Session) {
	h.mu.Lock()
	r := h.responders[s.ID]
	delete(h.responders, s.ID)
	h.mu.Unlock()
	if r != nil {
		r.Stop()
	}
	h.Sessions.Remove(s.ID)

	if h.exporter != nil {
		if err := h.exporter.Export(s); err != nil {
			log.Error().Err(err).Str("game", s.ID).Msg("failed to export game data")
		}
	}
}

func (h *Hub) Stats() Stats {
	return Stats{
		TotalGames:     h.Users.ScoredCount(),
		ActiveGames:    h.Sessions.ActiveCount(),
		WaitingPlayers: h.Match.Len(),
	}
}

// Shutdown cancels pending matchmaking and bot timers.
func (h *Hub) Shutdown() {
	h.Match.Stop()
	h.mu.Lock()
	rs := h.responders
	h.responders = make(map[string]bot.Responder)
	h.mu.Unlock()
	for _, r := range rs {
		r.Stop()
	}
}
