// Package intent classifies raw chat text into "is this bot being addressed,
// and how". It is a pure function of the input and the static pattern tables:
// no I/O, no state, same input always yields the same result.
package intent

import (
	"regexp"
	"strings"
)

// Category is the rhetorical category of an evocation.
type Category string

const (
	CategoryDirectCall  Category = "direct_call"
	CategoryGreeting    Category = "greeting"
	CategoryQuestion    Category = "question"
	CategoryRequest     Category = "request"
	CategoryContextCall Category = "context_call"
	CategoryNone        Category = "none"
)

// Style is the coarse response style used to pick prompts and fallbacks.
type Style string

const (
	StyleGreeting Style = "greeting_response"
	StyleQuestion Style = "question_response"
	StyleHelpful  Style = "helpful_response"
	StyleStandard Style = "standard_response"
	StyleNone     Style = "none"
)

// Match is the result of classifying one message.
type Match struct {
	Addressed   bool
	Category    Category
	Confidence  float64
	CleanedText string
}

// DefaultGreeting is substituted when stripping the address leaves nothing.
const DefaultGreeting = "Ciao!"

var directCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^adam[\s,!.?]`),
	regexp.MustCompile(`(?i)^adam$`),
}

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^ciao\s+adam\b`),
	regexp.MustCompile(`(?i)^hey\s+adam\b`),
	regexp.MustCompile(`(?i)^salve\s+adam\b`),
	regexp.MustCompile(`(?i)^buongiorno\s+adam\b`),
	regexp.MustCompile(`(?i)^buonasera\s+adam\b`),
	regexp.MustCompile(`(?i)^buonanotte\s+adam\b`),
	regexp.MustCompile(`(?i)^hello\s+adam\b`),
	regexp.MustCompile(`(?i)^hi\s+adam\b`),
}

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)adam[\s,]+.+\?$`),
	regexp.MustCompile(`(?i)che\s+ne\s+pensi\s+adam\?`),
	regexp.MustCompile(`(?i)cosa\s+dici\s+adam\?`),
}

var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)adam[\s,]+puoi\b`),
	regexp.MustCompile(`(?i)adam[\s,]+potresti\b`),
	regexp.MustCompile(`(?i)adam[\s,]+mi\s+(aiuti|dici|spieghi)`),
}

var contextCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bciao\s+adam\b`),
	regexp.MustCompile(`(?i)\behì\s+adam\b`),
	regexp.MustCompile(`(?i)\beh\s+adam\b`),
	regexp.MustCompile(`(?i)\bdimmi\s+adam\b`),
	regexp.MustCompile(`(?i)\bascolta\s+adam\b`),
	regexp.MustCompile(`(?i)\bsenti\s+adam\b`),
}

// patternGroups is the precedence order: the first group with any matching
// pattern wins, later groups are never consulted. This resolves ambiguous
// messages to the stricter category, always.
var patternGroups = []struct {
	category   Category
	confidence float64
	patterns   []*regexp.Regexp
}{
	{CategoryDirectCall, 1.0, directCallPatterns},
	{CategoryGreeting, 0.9, greetingPatterns},
	{CategoryQuestion, 0.9, questionPatterns},
	{CategoryRequest, 0.8, requestPatterns},
	{CategoryContextCall, 0.7, contextCallPatterns},
}

// Analyze classifies a message. Empty or whitespace-only input is never an
// address.
func Analyze(text string) Match {
	cleanText := strings.TrimSpace(text)
	if cleanText == "" {
		return Match{Addressed: false, Category: CategoryNone, Confidence: 0}
	}

	for _, group := range patternGroups {
		for _, pattern := range group.patterns {
			if pattern.MatchString(cleanText) {
				return Match{
					Addressed:   true,
					Category:    group.category,
					Confidence:  group.confidence,
					CleanedText: cleanMessage(cleanText),
				}
			}
		}
	}

	return Match{Addressed: false, Category: CategoryNone, Confidence: 0}
}

// cleanStrips is the fixed ordered substitution sequence that removes the
// address token and salutation from a recognized evocation.
var cleanStrips = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)^adam[\s,!.?]+`), ""},
	{regexp.MustCompile(`(?i)^adam$`), ""},
	{regexp.MustCompile(`(?i)^(ciao|hey|salve|buongiorno|buonasera|buonanotte|hello|hi)\s+adam\b`), ""},
	{regexp.MustCompile(`(?i)\b(ciao|ehì|eh|dimmi|ascolta|senti)\s+adam\b`), ""},
	{regexp.MustCompile(`(?i)adam[\s,]+`), ""},
	{regexp.MustCompile(`(?i)\s+adam\?`), "?"},
}

func cleanMessage(text string) string {
	cleaned := text
	for _, strip := range cleanStrips {
		cleaned = replaceFirst(strip.pattern, cleaned, strip.repl)
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return DefaultGreeting
	}
	return cleaned
}

// replaceFirst substitutes only the first match of pattern; each strip rule
// fires at most once per message.
func replaceFirst(pattern *regexp.Regexp, s, repl string) string {
	loc := pattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

// ResponseStyle maps a match to the coarse style tag.
func ResponseStyle(m Match) Style {
	if !m.Addressed {
		return StyleNone
	}
	switch m.Category {
	case CategoryGreeting:
		return StyleGreeting
	case CategoryQuestion:
		return StyleQuestion
	case CategoryRequest:
		return StyleHelpful
	default:
		return StyleStandard
	}
}
