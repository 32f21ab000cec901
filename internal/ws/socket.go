package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/rs/zerolog/log"
)

// Server exposes the hub over socket.io and plain WebSockets.
type Server struct {
	Hub    *Hub
	origin string
}

func New(hub *Hub, allowedOrigin string) *Server {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &Server{Hub: hub, origin: allowedOrigin}
}

type socketConn struct {
	c socketio.Conn
}

func (s socketConn) ID() string { return "sio-" + s.c.ID() }

func (s socketConn) Emit(event string, payload any) {
	if payload == nil {
		s.c.Emit(event)
		return
	}
	s.c.Emit(event, payload)
}

type joinPayload struct {
	Username string `json:"username"`
}

type messagePayload struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (p messagePayload) body() string {
	if p.Text != "" {
		return p.Text
	}
	return p.Message
}

type typingPayload struct {
	Typing bool `json:"typing"`
}

type guessPayload struct {
	Guess string `json:"guess"`
}

// Mount attaches the socket.io server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		c := socketConn{c: s}
		s.SetContext(c.ID())
		srv.Hub.Connect(c)
		log.Info().Str("sid", c.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "join-game", func(s socketio.Conn, payload joinPayload) map[string]any {
		if err := srv.Hub.Join(connID(s), payload.Username); err != nil {
			return srv.err(s, "bad_request", err.Error())
		}
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "send-message", func(s socketio.Conn, payload messagePayload) map[string]any {
		if err := srv.Hub.SendMessage(connID(s), payload.body()); err != nil {
			return srv.err(s, "bad_request", err.Error())
		}
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "typing", func(s socketio.Conn, payload typingPayload) {
		srv.Hub.Typing(connID(s), payload.Typing)
	})

	io.OnEvent("/", "submit-guess", func(s socketio.Conn, payload guessPayload) map[string]any {
		if err := srv.Hub.SubmitGuess(connID(s), payload.Guess); err != nil {
			return srv.err(s, "bad_request", err.Error())
		}
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "end-game-early", func(s socketio.Conn) {
		srv.Hub.EndEarly(connID(s))
	})

	io.OnEvent("/", "get-leaderboard", func(s socketio.Conn) {
		srv.Hub.Leaderboard(connID(s))
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", connID(s)).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		id := connID(s)
		srv.Hub.Disconnect(id)
		log.Info().Str("sid", id).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", srv.origin)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Status(http.StatusNoContent)
	})

	return io
}

func connID(s socketio.Conn) string {
	if id, ok := s.Context().(string); ok {
		return id
	}
	return socketConn{c: s}.ID()
}

func (srv *Server) err(s socketio.Conn, code, message string) map[string]any {
	s.Emit(game.EventError, map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}
