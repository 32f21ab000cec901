package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendTimeout = 2 * time.Second
	sendBuffer  = 32
)

var errUnknownEvent = errors.New("unknown event")

// Frame is the envelope used in both directions on /ws.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan outFrame
	done chan struct{}
	once sync.Once
}

func (c *wsConn) ID() string { return c.id }

// Emit queues a frame for the write pump, giving up after sendTimeout so a
// slow client cannot stall the game.
func (c *wsConn) Emit(event string, payload any) {
	select {
	case c.send <- outFrame{Event: event, Data: payload}:
	case <-c.done:
	case <-time.After(sendTimeout):
		log.Warn().Str("conn", c.id).Str("event", event).Msg("dropping frame for slow client")
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// MountWebSocket serves the plain WebSocket transport at /ws.
func (srv *Server) MountWebSocket(r *gin.Engine) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || srv.origin == "*" || origin == srv.origin
		},
	}

	r.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		wc := &wsConn{
			id:   "ws-" + uuid.NewString(),
			conn: conn,
			send: make(chan outFrame, sendBuffer),
			done: make(chan struct{}),
		}
		srv.Hub.Connect(wc)
		log.Info().Str("sid", wc.id).Msg("websocket connected")

		go srv.writePump(wc)
		srv.readPump(wc)
	})
}

func (srv *Server) readPump(c *wsConn) {
	defer func() {
		c.close()
		srv.Hub.Disconnect(c.id)
		log.Info().Str("sid", c.id).Msg("websocket disconnected")
	}()

	c.conn.SetReadLimit(8 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Emit(game.EventError, map[string]any{"code": "bad_request", "message": "malformed frame"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("sid", c.id).Msg("websocket read")
			}
			return
		}
		srv.dispatch(c, f)
	}
}

func (srv *Server) writePump(c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// dispatch maps a frame onto the same hub operations the socket.io
// handlers use.
func (srv *Server) dispatch(c *wsConn, f Frame) {
	var err error
	switch f.Event {
	case "join-game":
		var p joinPayload
		if err = decode(f.Data, &p); err == nil {
			err = srv.Hub.Join(c.id, p.Username)
		}
	case "send-message":
		var p messagePayload
		if err = decode(f.Data, &p); err == nil {
			err = srv.Hub.SendMessage(c.id, p.body())
		}
	case "typing":
		var p typingPayload
		if err = decode(f.Data, &p); err == nil {
			srv.Hub.Typing(c.id, p.Typing)
		}
	case "submit-guess":
		var p guessPayload
		if err = decode(f.Data, &p); err == nil {
			err = srv.Hub.SubmitGuess(c.id, p.Guess)
		}
	case "end-game-early":
		srv.Hub.EndEarly(c.id)
	case "get-leaderboard":
		srv.Hub.Leaderboard(c.id)
	default:
		err = errUnknownEvent
	}
	if err != nil {
		c.Emit(game.EventError, map[string]any{"code": "bad_request", "message": err.Error()})
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
