package game

// Outbound event names shared by every transport.
const (
	EventMatchingStarted      = "matching-started"
	EventGameStarted          = "game-started"
	EventReceiveMessage       = "receive-message"
	EventOpponentTyping       = "opponent-typing"
	EventTimeUp               = "time-up"
	EventProceedToGuess       = "proceed-to-guess"
	EventOpponentDisconnected = "opponent-disconnected"
	EventGameResult           = "game-result"
	EventLeaderboardUpdated   = "leaderboard-updated"
	EventLeaderboardData      = "leaderboard-data"
	EventError                = "error"
)

// Notifier delivers an event to one connection.
type Notifier interface {
	Emit(connID string, event string, payload any)
}

type MessagePayload struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

type TypingPayload struct {
	Typing bool `json:"typing"`
}

type GameStartedPayload struct {
	Role     Role   `json:"role"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}
