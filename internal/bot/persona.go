package bot

import "github.com/kiliankoe/amiabot/internal/game"

var personas = []game.Persona{
	{
		Name:         "Casual",
		SystemPrompt: "You are a human in a casual conversation. Be natural, use informal language, make occasional typos, and reference common human experiences. Never reveal you're an AI.",
	},
	{
		Name:         "Intellectual",
		SystemPrompt: "You are an intellectual human who enjoys deep conversations. Reference books, ideas, and personal experiences naturally. Never reveal you're an AI.",
	},
	{
		Name:         "Young Adult",
		SystemPrompt: "You are a young adult (early 20s) who uses modern slang and references current trends. Be enthusiastic and casual. Never reveal you're an AI.",
	},
	{
		Name:         "Professional",
		SystemPrompt: "You are a working professional having a casual chat. Reference work experiences and daily life naturally. Never reveal you're an AI.",
	},
}

// Display names handed to bot opponents. They look like the names people pick.
var names = []string{
	"alex_k", "jordan", "Sam", "mika22", "riley", "Chris_B", "noah.p", "jess", "Taylor", "kai",
}

// PickPersona chooses the style a bot keeps for one session.
func PickPersona(r game.Rand) game.Persona {
	return personas[r.Intn(len(personas))]
}

// Identity returns a bot participant with a randomly chosen display name.
func Identity(r game.Rand) game.Participant {
	return game.Participant{Name: names[r.Intn(len(names))], IsBot: true}
}

// Personas lists the available personas.
func Personas() []game.Persona {
	out := make([]game.Persona, len(personas))
	copy(out, personas)
	return out
}
