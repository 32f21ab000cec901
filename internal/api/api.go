package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/amiabot/internal/ai"
	"github.com/kiliankoe/amiabot/internal/leaderboard"
	"github.com/kiliankoe/amiabot/internal/ws"
	"github.com/rs/zerolog/log"
)

// LeaderboardView is how many entries GET /api/leaderboard returns.
const LeaderboardView = 20

const chatPrompt = "You are participating in a Turing Test game. You are an AI trying to convince a human that you are also human. Be natural, conversational, and human-like. Don't reveal that you're an AI. Respond as a normal person would."

type StatsSource interface {
	Stats() ws.Stats
}

type Ranking interface {
	Top(n int) []leaderboard.Entry
}

// Handlers serves the read-only status endpoints and the single-player chat.
type Handlers struct {
	Stats    StatsSource
	Board    Ranking
	Provider ai.Provider
	Model    string
	Timeout  time.Duration
}

type chatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []chatMessage `json:"conversationHistory"`
}

func (h *Handlers) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.GET("/health", h.health)
	g.GET("/leaderboard", h.leaderboard)
	g.GET("/stats", h.stats)
	g.POST("/chat", h.chat)
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "activeGames": h.Stats.Stats().ActiveGames})
}

func (h *Handlers) leaderboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.Board.Top(LeaderboardView))
}

func (h *Handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stats.Stats())
}

func (h *Handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	if h.Provider == nil || !h.Provider.Configured() {
		log.Error().Msg("chat requested but no completion service is configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service not configured"})
		return
	}

	history := make([]ai.Message, 0, len(req.ConversationHistory)+1)
	for _, m := range req.ConversationHistory {
		switch m.Sender {
		case "user":
			history = append(history, ai.Message{Role: ai.RoleUser, Content: m.Text})
		case "bot":
			history = append(history, ai.Message{Role: ai.RoleAssistant, Content: m.Text})
		}
	}
	history = append(history, ai.Message{Role: ai.RoleUser, Content: req.Message})

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	text, err := h.Provider.Chat(ctx, h.Model, chatPrompt, history)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service not configured"})
			return
		}
		log.Error().Err(err).Msg("chat completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate AI response"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": text})
}
