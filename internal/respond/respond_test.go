package respond

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/groq"
	"github.com/duetbots/adam/internal/intent"
	"github.com/duetbots/adam/internal/memory"
	"github.com/duetbots/adam/internal/persona"
)

// scriptedCompleter returns canned outcomes and records what it was asked.
type scriptedCompleter struct {
	response string
	err      error

	gotMessages []groq.Message
	gotParams   groq.Params
	calls       int
}

func (s *scriptedCompleter) Complete(_ context.Context, messages []groq.Message, params groq.Params) (string, error) {
	s.calls++
	s.gotMessages = messages
	s.gotParams = params
	return s.response, s.err
}

func newTestGenerator(c Completer) (*Generator, *memory.Store) {
	log := logrus.NewEntry(logrus.New())
	store := memory.New(log)
	g := New(c, persona.Default(), store, log)
	g.intn = func(n int) int { return 0 }
	return g, store
}

// Scenario: a fresh greeting with no history gets the greeting-specific
// system prompt, not the general persona prompt.
func TestFreshAddressUsesContextualPrompt(t *testing.T) {
	c := &scriptedCompleter{response: "Ciao! 🧠"}
	g, _ := newTestGenerator(c)

	out := g.Generate(context.Background(), "ciao", "chat1", false, intent.StyleGreeting)

	if out != "Ciao! 🧠" {
		t.Fatalf("unexpected output %q", out)
	}
	want := persona.Default().ContextualPrompt(intent.StyleGreeting)
	if c.gotMessages[0].Role != "system" || c.gotMessages[0].Content != want {
		t.Error("first message should be the greeting contextual prompt")
	}
}

func TestOngoingConversationUsesSystemPrompt(t *testing.T) {
	c := &scriptedCompleter{response: "ok"}
	g, store := newTestGenerator(c)
	store.AddTurn("chat1", memory.RoleUser, "prima battuta", "")

	g.Generate(context.Background(), "seconda", "chat1", false, intent.StyleGreeting)

	if c.gotMessages[0].Content != persona.Default().SystemPrompt {
		t.Error("conversation with history should use the general prompt")
	}
	// system + 1 history turn + current user message
	if len(c.gotMessages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(c.gotMessages))
	}
	if c.gotMessages[1].Content != "prima battuta" {
		t.Error("history turn missing from prompt")
	}
	if c.gotMessages[2] != (groq.Message{Role: "user", Content: "seconda"}) {
		t.Error("current message should be last")
	}
}

func TestReplyParamsAreTighter(t *testing.T) {
	c := &scriptedCompleter{response: "ok"}
	g, _ := newTestGenerator(c)

	g.Generate(context.Background(), "x", "chat1", true, intent.StyleStandard)
	if c.gotParams.Temperature != 0.8 || c.gotParams.MaxTokens != 80 {
		t.Errorf("reply params = %+v", c.gotParams)
	}

	g.Generate(context.Background(), "x", "chat1", false, intent.StyleStandard)
	if c.gotParams.Temperature != 0.9 || c.gotParams.MaxTokens != 150 {
		t.Errorf("fresh params = %+v", c.gotParams)
	}
}

// Scenario: the completion API is down. The caller still gets a line, drawn
// from the style's fallback pool.
func TestCompleterFailureFallsBack(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("api down")}
	g, _ := newTestGenerator(c)

	out := g.Generate(context.Background(), "domanda?", "chat1", false, intent.StyleQuestion)

	pool := persona.Default().FallbackPool(intent.StyleQuestion, false)
	if out != pool[0] {
		t.Errorf("expected first question fallback, got %q", out)
	}
}

func TestEmptyCompletionFallsBack(t *testing.T) {
	c := &scriptedCompleter{response: "   \n  "}
	g, _ := newTestGenerator(c)

	out := g.Generate(context.Background(), "x", "chat1", true, intent.StyleStandard)

	pool := persona.Default().FallbackPool(intent.StyleStandard, true)
	if out != pool[0] {
		t.Errorf("expected first reply fallback, got %q", out)
	}
}
