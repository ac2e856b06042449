package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/access"
	"github.com/duetbots/adam/internal/dialogue"
	"github.com/duetbots/adam/internal/groq"
	"github.com/duetbots/adam/internal/intent"
	"github.com/duetbots/adam/internal/memory"
	"github.com/duetbots/adam/internal/persona"
	"github.com/duetbots/adam/internal/ratelimit"
	"github.com/duetbots/adam/internal/respond"
	"github.com/duetbots/adam/internal/webhook"
)

type noopTransport struct{}

func (noopTransport) Send(context.Context, string, map[string]any, string) error { return nil }

// recordingCompleter captures the prompt it was handed.
type recordingCompleter struct {
	messages []groq.Message
}

func (r *recordingCompleter) Complete(_ context.Context, messages []groq.Message, _ groq.Params) (string, error) {
	r.messages = messages
	return "risposta generata", nil
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	log := logrus.NewEntry(logger)

	bank := persona.Default()
	b := &Bot{
		log:     log,
		memory:  memory.New(log),
		limiter: ratelimit.New(),
		access:  access.New(nil, []string{"admin1"}, log),
		transport: webhook.New(webhook.Config{
			Secret: "test-secret-12345",
		}, bank, log),
		bank: bank,
	}
	b.coordinator = dialogue.New(dialogue.Config{}, noopTransport{}, nil, bank, log)
	return b
}

// Scenario: the very first evocation of a chat. The generator must see the
// history as it was before the message, so the style-specific opener is
// used, the message enters the prompt exactly once, and the turn is in
// memory afterwards.
func TestFirstEvocationGetsContextualPrompt(t *testing.T) {
	b := newTestBot(t)
	completer := &recordingCompleter{}
	b.generator = respond.New(completer, b.bank, b.memory, b.log)

	out := b.composeResponse(context.Background(), "ciao", "chat1", false, intent.StyleGreeting)
	if out != "risposta generata" {
		t.Fatalf("unexpected response %q", out)
	}

	want := b.bank.ContextualPrompt(intent.StyleGreeting)
	if completer.messages[0].Role != "system" || completer.messages[0].Content != want {
		t.Error("first evocation should use the greeting contextual prompt")
	}

	occurrences := 0
	for _, msg := range completer.messages {
		if msg.Role == "user" && msg.Content == "ciao" {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Errorf("user message appears %d times in the prompt, want 1", occurrences)
	}

	history := b.memory.History("chat1")
	if len(history) != 1 || history[0].Content != "ciao" {
		t.Errorf("user turn should be recorded after generation, got %v", history)
	}
}

// Scenario: the second evocation of the same chat sees the first one as
// history and switches to the general persona prompt.
func TestSecondEvocationSeesHistory(t *testing.T) {
	b := newTestBot(t)
	completer := &recordingCompleter{}
	b.generator = respond.New(completer, b.bank, b.memory, b.log)

	b.composeResponse(context.Background(), "ciao", "chat1", false, intent.StyleGreeting)
	b.composeResponse(context.Background(), "come stai?", "chat1", false, intent.StyleQuestion)

	if completer.messages[0].Content != b.bank.SystemPrompt {
		t.Error("second evocation should use the general persona prompt")
	}
	// system + prior user turn + current message
	if len(completer.messages) != 3 {
		t.Fatalf("expected 3 prompt messages, got %d", len(completer.messages))
	}
	if completer.messages[1].Content != "ciao" {
		t.Error("prior turn missing from the prompt")
	}
}

func TestErrorNoticeMatchesInteractionKind(t *testing.T) {
	b := newTestBot(t)

	if got := b.errorNotice(true); got != b.bank.ErrorReply {
		t.Errorf("reply failure should use the reply notice, got %q", got)
	}
	if got := b.errorNotice(false); got != b.bank.ErrorEvocation {
		t.Errorf("evocation failure should use the evocation notice, got %q", got)
	}
}

func TestNonCommandTextPassesThrough(t *testing.T) {
	b := newTestBot(t)

	if _, isCommand := b.commandReply("admin1", "ciao adam"); isCommand {
		t.Error("plain text should not be a command")
	}
	if _, isCommand := b.commandReply("admin1", "!sconosciuto"); isCommand {
		t.Error("unknown prefix words should fall through")
	}
}

func TestCommandsRequireAdmin(t *testing.T) {
	b := newTestBot(t)

	reply, isCommand := b.commandReply("stranger", "!status")
	if !isCommand {
		t.Fatal("!status should be recognized")
	}
	if !strings.Contains(reply, "permessi") {
		t.Errorf("non-admin should be refused, got %q", reply)
	}
}

// Scenario: the full authorize / list / revoke admin flow through the
// command surface.
func TestAuthorizeFlow(t *testing.T) {
	b := newTestBot(t)

	reply, _ := b.commandReply("admin1", "!authorize 12345")
	if !strings.Contains(reply, "12345") {
		t.Errorf("authorize reply should name the user, got %q", reply)
	}
	if !b.access.IsAuthorized("12345") {
		t.Error("user should be authorized after !authorize")
	}

	reply, _ = b.commandReply("admin1", "!list")
	if !strings.Contains(reply, "12345") {
		t.Errorf("!list should show the user, got %q", reply)
	}

	b.commandReply("admin1", "!revoke 12345")
	if b.access.IsAuthorized("12345") {
		t.Error("user should be revoked after !revoke")
	}
}

func TestAuthorizeValidatesArgs(t *testing.T) {
	b := newTestBot(t)

	reply, _ := b.commandReply("admin1", "!authorize")
	if !strings.Contains(reply, "Uso:") {
		t.Errorf("missing arg should show usage, got %q", reply)
	}
}

func TestStatusAndDebugReplies(t *testing.T) {
	b := newTestBot(t)
	b.memory.AddTurn("c1", memory.RoleUser, "ciao", "")

	reply, _ := b.commandReply("admin1", "!status")
	if !strings.Contains(reply, "Chat in memoria: 1") {
		t.Errorf("status should report memory stats, got %q", reply)
	}

	reply, _ = b.commandReply("admin1", "!debug")
	if !strings.Contains(reply, "Sessioni attive (0)") {
		t.Errorf("debug should report sessions, got %q", reply)
	}
}
