package leaderboard

import (
	"sort"
	"sync"

	"github.com/kiliankoe/amiabot/internal/identity"
)

const DefaultSize = 100

type Entry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
	Accuracy int    `json:"accuracy"` // percent

	ratio float64
}

// Recorder owns the per-user scores the board ranks.
type Recorder interface {
	Record(name string, won bool) identity.Score
}

// Board is the ranked top-N view, ordered by correct guesses then accuracy.
type Board struct {
	mu      sync.RWMutex
	scores  Recorder
	size    int
	entries []Entry
}

func New(scores Recorder, size int) *Board {
	if size <= 0 {
		size = DefaultSize
	}
	return &Board{scores: scores, size: size}
}

// RecordOutcome counts one game for name and re-ranks the board.
func (b *Board) RecordOutcome(name string, won bool) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.scores.Record(name, won)
	e := Entry{
		Username: name,
		Score:    s.Correct,
		Total:    s.Total,
		Accuracy: s.AccuracyPercent(),
		ratio:    s.Accuracy(),
	}

	kept := b.entries[:0]
	for _, old := range b.entries {
		if old.Username != name {
			kept = append(kept, old)
		}
	}
	b.entries = append(kept, e)
	sort.SliceStable(b.entries, func(i, j int) bool {
		if b.entries[i].Score != b.entries[j].Score {
			return b.entries[i].Score > b.entries[j].Score
		}
		return b.entries[i].ratio > b.entries[j].ratio
	})
	if len(b.entries) > b.size {
		b.entries = b.entries[:b.size]
	}
	return e
}

// Top returns a copy of the first n entries.
func (b *Board) Top(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > len(b.entries) || n < 0 {
		n = len(b.entries)
	}
	out := make([]Entry, n)
	copy(out, b.entries[:n])
	return out
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
