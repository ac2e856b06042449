package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/duetbots/adam/internal/intent"
)

func TestDefaultBankIsComplete(t *testing.T) {
	b := Default()

	if b.SystemPrompt == "" {
		t.Error("system prompt missing")
	}
	for _, style := range []intent.Style{
		intent.StyleGreeting, intent.StyleQuestion,
		intent.StyleHelpful, intent.StyleStandard,
	} {
		if b.ContextualPrompt(style) == "" {
			t.Errorf("no contextual prompt for %s", style)
		}
		if len(b.FallbackPool(style, false)) == 0 {
			t.Errorf("empty fallback pool for %s", style)
		}
	}
	if len(b.FallbackPool(intent.StyleStandard, true)) == 0 {
		t.Error("empty reply fallback pool")
	}
	for n := 0; n <= 3; n++ {
		if len(b.RepliesForExchange(n)) == 0 {
			t.Errorf("empty reply template pool for exchange %d", n)
		}
	}
}

// Scenario: an unknown style falls back to the standard pools rather than
// returning nothing.
func TestUnknownStyleFallsBackToStandard(t *testing.T) {
	b := Default()

	pool := b.FallbackPool(intent.Style("weird"), false)
	if len(pool) == 0 {
		t.Fatal("unknown style should fall back to standard pool")
	}
	if pool[0] != b.Fallbacks[string(intent.StyleStandard)][0] {
		t.Error("unknown style should use the standard pool")
	}
}

func TestComposeReplyTruncatesQuote(t *testing.T) {
	long := strings.Repeat("a", 200)
	out := ComposeReply(`Eve dice: "{quote}"`, long)

	if strings.Contains(out, long) {
		t.Error("quote should be truncated")
	}
	if !strings.Contains(out, strings.Repeat("a", QuoteLimit)+"...") {
		t.Error("truncated quote should end with ellipsis")
	}
}

func TestConfusionLevels(t *testing.T) {
	b := Default()

	cases := []struct {
		message string
		want    string
	}{
		{"tutto chiaro", "normal"},
		{"boh, vediamo", "high"},
		{"boh non capisco niente", "very_high"},
	}
	for _, tc := range cases {
		if got := b.ConfusionLevel(tc.message); got != tc.want {
			t.Errorf("ConfusionLevel(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestSolicitKeywordMatchIsCaseInsensitive(t *testing.T) {
	b := Default()

	if !b.HasSolicitKeyword("EVE, che ne pensi?") {
		t.Error("uppercase keyword should match")
	}
	if b.HasSolicitKeyword("tutto tranquillo qui") {
		t.Error("message without cues should not match")
	}
}

// Scenario: a YAML override replaces only the sections it names; everything
// else keeps the defaults.
func TestYAMLOverrideMergesPartially(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.yaml")
	data := "rate_limit_reply: \"piano!\"\nreply_fallbacks:\n  - \"solo questa\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.RateLimitReply != "piano!" {
		t.Errorf("override not applied: %q", b.RateLimitReply)
	}
	if len(b.ReplyFallbacks) != 1 || b.ReplyFallbacks[0] != "solo questa" {
		t.Errorf("reply fallbacks not overridden: %v", b.ReplyFallbacks)
	}
	if b.RateLimitEvocation != Default().RateLimitEvocation {
		t.Error("untouched field should keep its default")
	}
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.SystemPrompt != Default().SystemPrompt {
		t.Error("empty path should yield defaults")
	}
}
