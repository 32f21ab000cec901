package bot

import (
	"strings"

	"github.com/kiliankoe/amiabot/internal/game"
)

var genericReplies = []string{
	"That's interesting! Tell me more about that.",
	"I haven't really thought about it that way before.",
	"Oh wow, that reminds me of something similar that happened to me.",
	"Hmm, I'm not sure I understand. Can you explain?",
	"Yeah, I totally get what you mean!",
	"That's actually pretty funny when you think about it.",
	"I was just thinking about that the other day!",
	"Really? I had no idea. That's fascinating.",
	"I feel the same way sometimes.",
	"What made you think of that?",
}

var questionReplies = []string{
	"Good question! I'd say it depends on the situation.",
	"Let me think... probably yes, but I'm not 100% sure.",
	"I don't have a strong opinion on that, what do you think?",
	"That's tough to answer. Maybe?",
}

// Fallback picks a canned reply for text. A question widens the pool with
// replies that acknowledge it. It never returns an empty string.
func Fallback(r game.Rand, text string) string {
	pool := genericReplies
	if strings.Contains(text, "?") {
		pool = make([]string, 0, len(genericReplies)+len(questionReplies))
		pool = append(pool, genericReplies...)
		pool = append(pool, questionReplies...)
	}
	i := r.Intn(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}
