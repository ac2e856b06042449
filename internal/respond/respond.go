// Package respond turns an evocation into Adam's reply text. It builds the
// prompt from the persona bank and conversation history, calls the completion
// API, and degrades to canned persona lines when the API fails. Callers
// always get something to send.
package respond

import (
	"context"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/groq"
	"github.com/duetbots/adam/internal/intent"
	"github.com/duetbots/adam/internal/logging"
	"github.com/duetbots/adam/internal/memory"
	"github.com/duetbots/adam/internal/persona"
)

// Completer is the completion API surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, messages []groq.Message, params groq.Params) (string, error)
}

// Sampling knobs, split by interaction kind. Replies stay short and a bit
// cooler; fresh evocations get more room.
const (
	replyTemperature = 0.8
	replyMaxTokens   = 80
	freshTemperature = 0.9
	freshMaxTokens   = 150
	topP             = 0.95
)

// Generator composes prompts and produces reply text.
type Generator struct {
	completer Completer
	bank      *persona.Bank
	history   *memory.Store
	log       *logrus.Entry
	intn      func(n int) int
}

// New creates a generator. The rand source is seeded from the global source;
// tests overwrite intn for determinism.
func New(completer Completer, bank *persona.Bank, history *memory.Store, log *logrus.Entry) *Generator {
	return &Generator{
		completer: completer,
		bank:      bank,
		history:   history,
		log:       log,
		intn:      rand.Intn,
	}
}

// Generate produces the reply for one user message. It never fails: any
// completion problem falls back to a canned persona line for the style.
func (g *Generator) Generate(ctx context.Context, userText, chatID string, reply bool, style intent.Style) string {
	history := g.history.History(chatID)

	// A fresh address with no prior context gets the style-specific
	// opener; everything else runs on the general persona prompt.
	systemPrompt := g.bank.SystemPrompt
	if !reply && len(history) == 0 {
		systemPrompt = g.bank.ContextualPrompt(style)
	}

	messages := make([]groq.Message, 0, len(history)+2)
	messages = append(messages, groq.Message{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, groq.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, groq.Message{Role: "user", Content: userText})

	params := groq.Params{
		Temperature: freshTemperature,
		MaxTokens:   freshMaxTokens,
		TopP:        topP,
	}
	if reply {
		params.Temperature = replyTemperature
		params.MaxTokens = replyMaxTokens
	}

	out, err := g.completer.Complete(ctx, messages, params)
	if err != nil {
		g.log.WithError(err).Warn("completion failed, using fallback")
		return g.fallback(style, reply)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		g.log.Warn("completion returned empty text, using fallback")
		return g.fallback(style, reply)
	}

	g.log.WithFields(logrus.Fields{
		"style": style,
		"reply": reply,
	}).Debugf("generated: %s", logging.Truncate(out, 120))
	return out
}

func (g *Generator) fallback(style intent.Style, reply bool) string {
	pool := g.bank.FallbackPool(style, reply)
	return pool[g.intn(len(pool))]
}
