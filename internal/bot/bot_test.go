package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiliankoe/amiabot/internal/ai"
	"github.com/kiliankoe/amiabot/internal/game"
)

// fixedRand always returns the same choice, clamped to the range asked for.
type fixedRand struct {
	n int
	f float64
}

func (r fixedRand) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func (r fixedRand) Float64() float64 { return r.f }

type emitted struct {
	conn    string
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{connID, event, payload})
}

func (r *recorder) snapshot() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]emitted, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.event == event {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, event string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(event) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q events, have %d", n, event, r.count(event))
}

type stubProvider struct {
	text       string
	err        error
	configured bool
	block      bool
	calls      int
	mu         sync.Mutex
}

func (p *stubProvider) Configured() bool { return p.configured }

func (p *stubProvider) Chat(ctx context.Context, model, systemPrompt string, history []ai.Message) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.text, p.err
}

func TestFallbackNeverEmpty(t *testing.T) {
	r := game.NewRand(1)
	for _, in := range []string{"", "hello", "are you a bot?", "???", strings.Repeat("x", 5000)} {
		for i := 0; i < 50; i++ {
			if out := Fallback(r, in); out == "" {
				t.Fatalf("fallback returned empty text for %q", in)
			}
		}
	}
}

func TestFallbackUsesQuestionPool(t *testing.T) {
	last := fixedRand{n: 1 << 30}
	if got := Fallback(last, "what's up?"); got != questionReplies[len(questionReplies)-1] {
		t.Fatalf("expected a question reply, got %q", got)
	}
	if got := Fallback(last, "nice weather"); got != genericReplies[len(genericReplies)-1] {
		t.Fatalf("expected a generic reply, got %q", got)
	}
}

func TestGeneratorFallsBack(t *testing.T) {
	transcript := []game.Entry{{Role: game.RoleDetective, Text: "hi?"}}
	cases := map[string]*Generator{
		"no provider":    {Rand: fixedRand{}},
		"not configured": {Provider: &stubProvider{text: "nope"}, Rand: fixedRand{}},
		"error":          {Provider: &stubProvider{configured: true, err: errors.New("boom")}, Rand: fixedRand{}},
		"empty":          {Provider: &stubProvider{configured: true}, Rand: fixedRand{}},
		"timeout":        {Provider: &stubProvider{configured: true, block: true}, Rand: fixedRand{}, Timeout: 20 * time.Millisecond},
	}
	for name, g := range cases {
		got := g.Reply(context.Background(), game.Persona{Name: "Casual"}, transcript)
		if got != genericReplies[0] {
			t.Fatalf("%s: expected fallback reply, got %q", name, got)
		}
	}
}

func TestGeneratorUsesProvider(t *testing.T) {
	p := &stubProvider{configured: true, text: "haha yeah"}
	g := &Generator{Provider: p, Model: "m", Rand: fixedRand{}}
	if got := g.Reply(context.Background(), game.Persona{}, nil); got != "haha yeah" {
		t.Fatalf("expected provider text, got %q", got)
	}
	if p.calls != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls)
	}
}

func TestHistoryRoles(t *testing.T) {
	h := History([]game.Entry{
		{Role: game.RoleResponder, Text: "hey"},
		{Role: game.RoleDetective, Text: "who are you"},
	})
	if h[0].Role != ai.RoleAssistant || h[1].Role != ai.RoleUser {
		t.Fatalf("unexpected role mapping: %+v", h)
	}
	if opener := History(nil); len(opener) != 1 || opener[0].Role != ai.RoleUser {
		t.Fatalf("empty transcript should produce an opener, got %+v", opener)
	}
}

func TestHumanResponderForwards(t *testing.T) {
	s := game.NewSession("g", game.Participant{ConnID: "a"}, game.Participant{ConnID: "b"}, false, time.Minute, game.Persona{})
	rec := &recorder{}
	r := New(s, rec, Options{})

	r.OnMessage(game.RoleDetective, "hello")
	r.OnTyping(game.RoleResponder, true)
	r.Greet()
	r.Stop()

	ev := rec.snapshot()
	if len(ev) != 2 {
		t.Fatalf("expected 2 events, got %+v", ev)
	}
	if ev[0].conn != "b" || ev[0].event != game.EventReceiveMessage || ev[0].payload.(game.MessagePayload).Text != "hello" {
		t.Fatalf("message should be forwarded verbatim to b, got %+v", ev[0])
	}
	if ev[1].conn != "a" || ev[1].event != game.EventOpponentTyping || !ev[1].payload.(game.TypingPayload).Typing {
		t.Fatalf("typing should be forwarded to a, got %+v", ev[1])
	}
}

func newBotSession() *game.Session {
	return game.NewSession("g", game.Participant{ConnID: "det"}, Identity(fixedRand{}), true, time.Minute, PickPersona(fixedRand{}))
}

func botOptions(p ai.Provider) Options {
	return Options{
		Generator: &Generator{Provider: p, Rand: fixedRand{}},
		Rand:      fixedRand{f: 0.5},
		ReplyMin:  5 * time.Millisecond,
		ReplyMax:  15 * time.Millisecond,
	}
}

func TestBotResponderBracketsReplyWithTyping(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	r := New(s, rec, botOptions(&stubProvider{configured: true, err: errors.New("down")}))
	defer r.Stop()

	_ = s.AddMessage(game.RoleDetective, "hi")
	r.OnMessage(game.RoleDetective, "hi")
	rec.waitFor(t, game.EventReceiveMessage, 1)

	ev := rec.snapshot()
	if len(ev) != 3 {
		t.Fatalf("expected typing on, typing off, message; got %+v", ev)
	}
	if ev[0].payload.(game.TypingPayload).Typing != true || ev[1].payload.(game.TypingPayload).Typing != false {
		t.Fatalf("typing indicators out of order: %+v", ev)
	}
	for _, e := range ev {
		if e.conn != "det" {
			t.Fatalf("bot events must go to the detective, got %+v", e)
		}
	}
	tr := s.Transcript()
	if len(tr) != 2 || tr[1].Role != game.RoleResponder || tr[1].Text != genericReplies[0] {
		t.Fatalf("expected fallback reply in transcript, got %+v", tr)
	}
}

func TestBotResponderThreeMessages(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	r := New(s, rec, botOptions(&stubProvider{configured: true, text: "yeah"}))
	defer r.Stop()

	for _, text := range []string{"one", "two", "three"} {
		_ = s.AddMessage(game.RoleDetective, text)
		r.OnMessage(game.RoleDetective, text)
		time.Sleep(time.Millisecond)
	}
	rec.waitFor(t, game.EventReceiveMessage, 3)
	s.EndGame(game.GuessBot)

	tr := s.Transcript()
	detective := 0
	for i, e := range tr {
		if e.Role == game.RoleDetective {
			detective++
		}
		if i > 0 && e.At.Before(tr[i-1].At) {
			t.Fatalf("transcript out of order at %d", i)
		}
	}
	if detective != 3 {
		t.Fatalf("expected 3 detective entries, got %d", detective)
	}
	if len(tr) != 6 {
		t.Fatalf("expected 3 replies interleaved, got %d entries", len(tr))
	}
}

func TestBotResponderIgnoresResponderSide(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	r := New(s, rec, botOptions(nil))
	defer r.Stop()

	r.OnMessage(game.RoleResponder, "x")
	r.OnTyping(game.RoleDetective, true)
	time.Sleep(30 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestBotResponderStopCancelsPendingReply(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	opts := botOptions(nil)
	opts.ReplyMin, opts.ReplyMax = 200*time.Millisecond, 200*time.Millisecond
	r := New(s, rec, opts)

	_ = s.AddMessage(game.RoleDetective, "hi")
	r.OnMessage(game.RoleDetective, "hi")
	r.Stop()
	r.Stop()
	time.Sleep(250 * time.Millisecond)

	if rec.count(game.EventReceiveMessage) != 0 {
		t.Fatal("stopped responder must not reply")
	}
	ev := rec.snapshot()
	if len(ev) != 2 || ev[1].payload.(game.TypingPayload).Typing {
		t.Fatalf("expected typing to be closed on stop, got %+v", ev)
	}
	if len(s.Transcript()) != 1 {
		t.Fatal("no reply should be appended after stop")
	}
}

func TestBotGreeting(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	opts := botOptions(&stubProvider{configured: true, text: "hey whats up"})
	opts.GreetingDelay = 5 * time.Millisecond
	r := New(s, rec, opts)
	defer r.Stop()

	r.Greet()
	rec.waitFor(t, game.EventReceiveMessage, 1)
	ev := rec.snapshot()
	if len(ev) != 3 || ev[0].event != game.EventOpponentTyping || ev[1].event != game.EventOpponentTyping || ev[2].event != game.EventReceiveMessage {
		t.Fatalf("greeting should be bracketed by typing like any reply, got %+v", ev)
	}
	if !ev[0].payload.(game.TypingPayload).Typing || ev[1].payload.(game.TypingPayload).Typing {
		t.Fatalf("typing indicators out of order: %+v", ev)
	}
	tr := s.Transcript()
	if len(tr) != 1 || tr[0].Role != game.RoleResponder || tr[0].Text != "hey whats up" {
		t.Fatalf("expected greeting in transcript, got %+v", tr)
	}
}

func TestStopBeforeGreetingSendsNothing(t *testing.T) {
	s := newBotSession()
	rec := &recorder{}
	opts := botOptions(&stubProvider{configured: true, text: "hey"})
	opts.GreetingDelay = 5 * time.Millisecond
	r := New(s, rec, opts)

	r.Greet()
	r.Stop()
	time.Sleep(40 * time.Millisecond)
	if ev := rec.snapshot(); len(ev) != 0 {
		t.Fatalf("stopped responder should stay silent, got %+v", ev)
	}
}

func TestPersonaFixedPerPick(t *testing.T) {
	p := PickPersona(fixedRand{n: 2})
	if p.Name != "Young Adult" || p.SystemPrompt == "" {
		t.Fatalf("unexpected persona %+v", p)
	}
	if len(Personas()) != 4 {
		t.Fatalf("expected 4 personas, got %d", len(Personas()))
	}
	if id := Identity(fixedRand{}); !id.IsBot || id.ConnID != "" || id.Name == "" {
		t.Fatalf("bot identity should have a name and no connection: %+v", id)
	}
}
