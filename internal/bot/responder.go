package bot

import (
	"context"
	"sync"
	"time"

	"github.com/kiliankoe/amiabot/internal/game"
)

// Responder hides whether the detective is talking to a person or a bot.
type Responder interface {
	// OnMessage is called after text from role has been added to the transcript.
	OnMessage(from game.Role, text string)
	OnTyping(from game.Role, typing bool)
	// Greet lets the responder open the conversation.
	Greet()
	// Stop cancels anything still pending. Safe to call more than once.
	Stop()
}

type Options struct {
	Generator     *Generator
	Rand          game.Rand
	ReplyMin      time.Duration
	ReplyMax      time.Duration
	GreetingDelay time.Duration
}

// New returns the responder variant matching the session's opponent kind.
func New(s *game.Session, n game.Notifier, opts Options) Responder {
	if s.IsBotOpponent {
		return newBotResponder(s, n, opts)
	}
	return &humanResponder{session: s, notify: n}
}

type humanResponder struct {
	session *game.Session
	notify  game.Notifier
}

func (h *humanResponder) OnMessage(from game.Role, text string) {
	to := h.session.Counterpart(from)
	h.notify.Emit(to.ConnID, game.EventReceiveMessage, game.MessagePayload{Text: text, Sender: "opponent"})
}

func (h *humanResponder) OnTyping(from game.Role, typing bool) {
	to := h.session.Counterpart(from)
	h.notify.Emit(to.ConnID, game.EventOpponentTyping, game.TypingPayload{Typing: typing})
}

func (h *humanResponder) Greet() {}

func (h *humanResponder) Stop() {}

type botResponder struct {
	session *game.Session
	notify  game.Notifier
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[*time.Timer]bool // value: timer answers a typing indicator
	stopped bool
}

func newBotResponder(s *game.Session, n game.Notifier, opts Options) *botResponder {
	ctx, cancel := context.WithCancel(context.Background())
	return &botResponder{
		session: s,
		notify:  n,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[*time.Timer]bool),
	}
}

// OnMessage answers detective messages after a human-like typing delay.
func (b *botResponder) OnMessage(from game.Role, _ string) {
	if from != game.RoleDetective {
		return
	}
	b.typeAndReply()
}

// typeAndReply opens a typing indicator, then after a typing delay closes it
// and sends a generated reply.
func (b *botResponder) typeAndReply() {
	detective := b.session.Detective.ConnID
	b.notify.Emit(detective, game.EventOpponentTyping, game.TypingPayload{Typing: true})
	armed := b.schedule(b.typingDelay(), true, func() {
		reply := b.opts.Generator.Reply(b.ctx, b.session.Persona(), b.session.Transcript())
		err := b.session.AddMessage(game.RoleResponder, reply)
		b.notify.Emit(detective, game.EventOpponentTyping, game.TypingPayload{Typing: false})
		if err == nil {
			b.notify.Emit(detective, game.EventReceiveMessage, game.MessagePayload{Text: reply, Sender: "opponent"})
		}
	})
	if !armed {
		b.notify.Emit(detective, game.EventOpponentTyping, game.TypingPayload{Typing: false})
	}
}

// OnTyping is a no-op: bots don't watch the detective type.
func (b *botResponder) OnTyping(game.Role, bool) {}

// Greet starts typing an opening line after GreetingDelay.
func (b *botResponder) Greet() {
	b.schedule(b.opts.GreetingDelay, false, func() {
		if b.session.Active() {
			b.typeAndReply()
		}
	})
}

func (b *botResponder) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.cancel()
	typing := false
	for t, reply := range b.timers {
		if t.Stop() && reply {
			typing = true
		}
	}
	b.timers = nil
	b.mu.Unlock()

	// close the indicator opened for a reply that will never come
	if typing {
		b.notify.Emit(b.session.Detective.ConnID, game.EventOpponentTyping, game.TypingPayload{Typing: false})
	}
}

func (b *botResponder) typingDelay() time.Duration {
	lo, hi := b.opts.ReplyMin, b.opts.ReplyMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(b.opts.Rand.Float64()*float64(hi-lo))
}

// schedule runs fn after d unless the responder is stopped first. It reports
// whether fn was armed.
func (b *botResponder) schedule(d time.Duration, reply bool, fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		b.mu.Lock()
		if b.stopped {
			b.mu.Unlock()
			if reply {
				b.notify.Emit(b.session.Detective.ConnID, game.EventOpponentTyping, game.TypingPayload{Typing: false})
			}
			return
		}
		delete(b.timers, t)
		b.mu.Unlock()
		fn()
	})
	b.timers[t] = reply
	return true
}
