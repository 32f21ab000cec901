package identity

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Score is a user's running tally of adjudicated games.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy is Correct/Total, or 0 before the first game.
func (s Score) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// AccuracyPercent is Accuracy rounded to a whole percentage.
func (s Score) AccuracyPercent() int {
	return int(math.Round(s.Accuracy() * 100))
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"username"`
}

// Intn is the slice of a random source the registry needs to name guests.
type Intn interface {
	Intn(n int) int
}

// Registry maps live connections to users. Scores are keyed by display name
// so a reconnecting player keeps their tally for the lifetime of the process.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]User
	scores map[string]Score
	rand   Intn
}

func NewRegistry(r Intn) *Registry {
	return &Registry{
		users:  make(map[string]User),
		scores: make(map[string]Score),
		rand:   r,
	}
}

// Register records connID under name, generating a guest name when name is blank.
func (r *Registry) Register(connID, name string) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player%d", r.rand.Intn(10000))
	}
	u := User{ID: connID, Name: name}
	r.users[connID] = u
	return u
}

func (r *Registry) Get(connID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[connID]
	return u, ok
}

// Connected reports whether connID is still registered.
func (r *Registry) Connected(connID string) bool {
	_, ok := r.Get(connID)
	return ok
}

// Remove forgets the connection; the score stays with the name.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, connID)
}

func (r *Registry) Score(name string) Score {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scores[name]
}

// Record adds one game to name's tally and returns the new score.
func (r *Registry) Record(name string, won bool) Score {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.scores[name]
	s.Total++
	if won {
		s.Correct++
	}
	r.scores[name] = s
	return s
}

// ScoredCount is the number of names with at least one recorded game.
func (r *Registry) ScoredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scores)
}
