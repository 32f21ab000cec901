package bot

import (
	"context"
	"time"

	"github.com/kiliankoe/amiabot/internal/ai"
	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/rs/zerolog/log"
)

const openerPrompt = "Start the conversation with a short, casual greeting."

// Generator produces bot replies from the completion service and falls back
// to canned text whenever the service is missing, slow or failing.
type Generator struct {
	Provider ai.Provider
	Model    string
	Timeout  time.Duration
	Rand     game.Rand
}

// Reply never fails: any provider error is logged and replaced by Fallback.
func (g *Generator) Reply(ctx context.Context, persona game.Persona, transcript []game.Entry) string {
	last := lastDetectiveText(transcript)
	if g.Provider == nil || !g.Provider.Configured() {
		return Fallback(g.Rand, last)
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	text, err := g.Provider.Chat(ctx, g.Model, persona.SystemPrompt, History(transcript))
	if err != nil || text == "" {
		log.Warn().Err(err).Str("persona", persona.Name).Msg("completion failed, using fallback reply")
		return Fallback(g.Rand, last)
	}
	return text
}

// History maps a transcript onto chat roles: the detective is the user and
// the bot is the assistant.
func History(transcript []game.Entry) []ai.Message {
	if len(transcript) == 0 {
		return []ai.Message{{Role: ai.RoleUser, Content: openerPrompt}}
	}
	out := make([]ai.Message, 0, len(transcript))
	for _, e := range transcript {
		role := ai.RoleUser
		if e.Role == game.RoleResponder {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: e.Text})
	}
	return out
}

func lastDetectiveText(transcript []game.Entry) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == game.RoleDetective {
			return transcript[i].Text
		}
	}
	return ""
}
