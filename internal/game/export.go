package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Exporter appends ended sessions to one text file. Appends from
// concurrently ending sessions are serialized.
type Exporter struct {
	mu       sync.Mutex
	filename string
}

func NewExporter(filename string) *Exporter {
	return &Exporter{filename: filename}
}

// Export appends an ended session's transcript and verdict to the file.
func (e *Exporter) Export(s *Session) error {
	if s.Active() {
		return fmt.Errorf("export %s: session still active", s.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	filename := e.filename
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder

	opponent := "human"
	if s.IsBotOpponent {
		opponent = "bot"
		if p := s.Persona(); p.Name != "" {
			opponent = fmt.Sprintf("bot (%s)", p.Name)
		}
	}
	sb.WriteString(fmt.Sprintf("AmIaBot Game %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("Started: %s\n", s.StartedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Detective: %s\n", s.Detective.Name))
	sb.WriteString(fmt.Sprintf("Responder: %s, %s\n", s.Responder.Name, opponent))
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	for _, e := range s.Transcript() {
		sb.WriteString(fmt.Sprintf("[%s] %s: %q\n", e.At.Format("15:04:05"), e.Role, e.Text))
	}

	sb.WriteString(strings.Repeat("-", 40) + "\n")
	switch s.Outcome() {
	case OutcomeUnset:
		sb.WriteString("Abandoned before a guess\n")
	default:
		sb.WriteString(fmt.Sprintf("Guess: %s, outcome: %s\n", s.Guess(), s.Outcome()))
	}
	sb.WriteString(fmt.Sprintf("Ended: %s\n", s.EndedAt().Format(time.DateTime)))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}
