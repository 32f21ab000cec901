package match

import (
	"sync"
	"time"

	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBotDelay         = 3 * time.Second
	DefaultHumanProbability = 0.5
)

// Starter turns a pairing into a running session and notifies both sides.
type Starter interface {
	StartHuman(detective, responder string) error
	StartBot(detective string) error
}

// Availability reports whether a connection is live and not already playing.
type Availability interface {
	Available(connID string) bool
}

type Config struct {
	// HumanProbability is the chance of pairing with a waiting human
	// instead of a bot when someone is waiting.
	HumanProbability float64
	// BotDelay is the minimum time between Enqueue and a bot pairing.
	BotDelay time.Duration
}

// Matchmaker owns the waiting queue. Every waiting connection has exactly
// one pending bot timer; pairing it with a human cancels that timer.
type Matchmaker struct {
	cfg     Config
	rand    game.Rand
	avail   Availability
	starter Starter

	mu     sync.Mutex
	queue  []string
	timers map[string]*time.Timer
}

func New(cfg Config, r game.Rand, avail Availability, starter Starter) *Matchmaker {
	if cfg.BotDelay <= 0 {
		cfg.BotDelay = DefaultBotDelay
	}
	return &Matchmaker{
		cfg:     cfg,
		rand:    r,
		avail:   avail,
		starter: starter,
		timers:  make(map[string]*time.Timer),
	}
}

// Enqueue pairs connID with a waiting human, or queues it for a bot after
// BotDelay. A connection already waiting is left alone.
func (m *Matchmaker) Enqueue(connID string) {
	m.mu.Lock()
	if _, waiting := m.timers[connID]; waiting {
		m.mu.Unlock()
		return
	}
	opponent := ""
	if len(m.queue) > 0 && m.rand.Float64() < m.cfg.HumanProbability {
		opponent = m.popAvailableLocked()
	}
	if opponent == "" {
		m.waitLocked(connID)
		m.mu.Unlock()
		log.Debug().Str("conn", connID).Dur("botDelay", m.cfg.BotDelay).Msg("queued for match")
		return
	}
	m.mu.Unlock()
	m.pairHumans(connID, opponent)
}

// Dequeue removes connID from the queue and cancels its bot timer. Idempotent.
func (m *Matchmaker) Dequeue(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID)
}

func (m *Matchmaker) Waiting(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[connID]
	return ok
}

func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Stop cancels every pending bot timer and empties the queue.
func (m *Matchmaker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = make(map[string]*time.Timer)
	m.queue = nil
}

// popAvailableLocked takes the oldest waiting connection that can still
// play, discarding stale ones.
func (m *Matchmaker) popAvailableLocked() string {
	for len(m.queue) > 0 {
		id := m.queue[0]
		m.removeLocked(id)
		if m.avail.Available(id) {
			return id
		}
		log.Debug().Str("conn", id).Msg("discarding stale queue entry")
	}
	return ""
}

func (m *Matchmaker) waitLocked(connID string) {
	m.queue = append(m.queue, connID)
	var t *time.Timer
	t = time.AfterFunc(m.cfg.BotDelay, func() {
		m.mu.Lock()
		current := m.timers[connID] == t
		if current {
			m.removeLocked(connID)
		}
		m.mu.Unlock()
		if current {
			m.startBot(connID)
		}
	})
	m.timers[connID] = t
}

func (m *Matchmaker) removeLocked(connID string) {
	if t, ok := m.timers[connID]; ok {
		t.Stop()
		delete(m.timers, connID)
	}
	for i, id := range m.queue {
		if id == connID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}

func (m *Matchmaker) startBot(connID string) {
	if !m.avail.Available(connID) {
		return
	}
	if err := m.starter.StartBot(connID); err != nil {
		log.Warn().Err(err).Str("conn", connID).Msg("bot pairing failed")
	}
}

func (m *Matchmaker) pairHumans(requester, waiting string) {
	detective, responder := requester, waiting
	if m.rand.Intn(2) == 1 {
		detective, responder = waiting, requester
	}
	err := m.starter.StartHuman(detective, responder)
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("detective", detective).Str("responder", responder).Msg("human pairing failed, retrying")
	for _, id := range []string{requester, waiting} {
		if m.avail.Available(id) {
			m.requeue(id)
		}
	}
}

// requeue puts a connection back in line without trying to pair it, so a
// failed start can never bounce between the same two connections.
func (m *Matchmaker) requeue(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, waiting := m.timers[connID]; !waiting {
		m.waitLocked(connID)
	}
}
