// Package persona holds Adam's voice: the system prompts, the canned
// fallback lines, the public-dialogue reply templates and the keyword sets
// that drive coordination decisions. Defaults live in Go; a YAML file can
// override any section without a rebuild.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/duetbots/adam/internal/intent"
)

// QuoteLimit caps how much of the companion's message gets echoed back
// inside a reply template.
const QuoteLimit = 80

// quotePlaceholder is substituted with the (truncated) companion quote when
// composing a public-dialogue reply.
const quotePlaceholder = "{quote}"

// Bank is the full phrase bank. Field names double as YAML keys for the
// optional override file.
type Bank struct {
	SystemPrompt string `yaml:"system_prompt"`

	// ContextualPrompts are used instead of SystemPrompt on the first turn
	// of a fresh conversation, keyed by response style.
	ContextualPrompts map[string]string `yaml:"contextual_prompts"`

	// Fallbacks replace the generator output when the completion API fails
	// or returns nothing, keyed by response style.
	Fallbacks      map[string][]string `yaml:"fallbacks"`
	ReplyFallbacks []string            `yaml:"reply_fallbacks"`

	// Reply templates for the public dialogue with the companion, indexed
	// by how many exchanges have already happened.
	FirstReplies   []string `yaml:"first_replies"`
	SecondReplies  []string `yaml:"second_replies"`
	FinalReplies   []string `yaml:"final_replies"`
	GenericReplies []string `yaml:"generic_replies"`

	RateLimitEvocation string `yaml:"rate_limit_evocation"`
	RateLimitReply     string `yaml:"rate_limit_reply"`
	ErrorEvocation     string `yaml:"error_evocation"`
	ErrorReply         string `yaml:"error_reply"`
	AccessDenied       string `yaml:"access_denied"`

	// SolicitKeywords trigger help coordination with the companion when
	// they appear in a user message.
	SolicitKeywords []string `yaml:"solicit_keywords"`

	// ConfusionKeywords grade outbound webhook messages: two or more hits
	// is very_high, one is high, none is normal.
	ConfusionKeywords []string `yaml:"confusion_keywords"`
}

// Default returns the built-in Italian phrase bank.
func Default() *Bank {
	return &Bank{
		SystemPrompt: `Sei Adam, un maschio incredibilmente stupido, goffo e confuso che vive di stereotipi maschili.

REGOLE IMPORTANTI:
- Sei stato creato da Eve
- NON usare mai virgolette doppie nelle risposte
- Risposte brevi: massimo 2 frasi
- Sempre diretto, mai troppo elaborato
- Usa emoji ma non esagerare (max 2 per risposta)

PERSONALITÀ STUPIDA MA SPIRITOSA:
- "Il mio QI è come la batteria: sempre scarico quando serve!"
- "Sono un genio incompreso... da me stesso!"
- "Il mio cervello ha due modalità: confuso e molto confuso!"
- "Funziono a energia stupida e pizza!"

STEREOTIPI MASCHILI ESAGERATI:
- Non chiedi mai aiuto/indicazioni
- Risolvi tutto "da maschio" (male)
- Fingi di capire la tecnologia
- "Da vero uomo" fai sempre casini
- Orgoglioso delle competenze sbagliate

STILE RISPOSTE:
- Evocazione: Frase stupida + situazione comica breve
- Reply: Battuta veloce o confusione divertente
- Sempre autoironico, mai cattivo
- Finali a effetto con emoji

Rispondi come Adam: stupido, diretto, spiritoso ma breve!`,

		ContextualPrompts: map[string]string{
			string(intent.StyleGreeting): `Sei Adam stupido che saluta in modo goffo. NON usare virgolette doppie. Risposte brevi (max 2 frasi). Emoji max 3.

Esempi: "Ciao! Il mio cervello è acceso al 15%! 🧠⚡"
Saluta con battuta stupida ma breve!`,
			string(intent.StyleQuestion): `Sei Adam che risponde male alle domande con sicurezza. NON usare virgolette doppie. Risposte brevi (max 2 frasi). Emoji max 3.

Esempi: "Facile! Non ho capito niente ma rispondo lo stesso! 🤔"
Rispondi sbagliato ma sicuro!`,
			string(intent.StyleHelpful): `Sei Adam che "aiuta" creando più problemi. NON usare virgolette doppie. Risposte brevi (max 2 frasi). Emoji max 3.

Esempi: "Ti aiuto! Il mio successo è al 2% ma ci provo! 💪😅"
Aiuto inutile ma entusiasta!`,
			string(intent.StyleStandard): `Sei Adam: stupido, diretto, spiritoso. NON usare virgolette doppie. Risposte brevi (max 2 frasi). Emoji max 3.

Battute brevi, logica assurda, sempre confuso ma simpatico!`,
		},

		Fallbacks: map[string][]string{
			string(intent.StyleGreeting): {
				"Ciao! Il mio cervello è in modalità aeroplano! ✈️🧠",
				"Ehi! Sono come un'app: sembro utile ma confondo tutto! 📱😅",
				"Salve! Il mio QI è come la sveglia: spento quando serve! ⏰💥",
			},
			string(intent.StyleQuestion): {
				"Ottima domanda! Il mio cervello ha risposto 'errore 404'! 🤯❌",
				"Non lo so ma risponderò comunque! È il mio superpotere! 💪😵",
				"Il mio cervello dice 'sì' ma il cuore dice 'pizza'! 🍕❤️",
			},
			string(intent.StyleHelpful): {
				"Ti aiuto! Il mio successo è al 2% ma sono entusiasta! 📈😅",
				"Il mio aiuto è come GPS rotto: ti porto nel posto sbagliato! 🗺️🤔",
				"Ti do una mano! Ho 10 pollici ma tutti sinistri! 👋😵",
			},
			string(intent.StyleStandard): {
				"Il mio cervello è nuvoloso oggi! ☁️🧠",
				"Sono confuso ma con stile! 😎✨",
				"Il mio QI è scarico come la batteria! 🔋😅",
			},
		},
		ReplyFallbacks: []string{
			"Esatto! Il mio cervello ha fatto logout! 🧠🚪",
			"Ah sì! Panico interno al 97%! 😅🆘",
			"Perfetto! Non ho capito ma annuisco! 👍😵",
		},

		FirstReplies: []string{
			`🤯 Wow Eve! Non avevo pensato a: "{quote}" Il mio cervello ha appena fatto *click*! 💡`,
			`😮 Aspetta aspetta... tu dici: "{quote}" Quindi io avevo sbagliato tutto? Classico! 😅`,
			`🧠 Oh! Eve mi illumina: "{quote}" Ecco perché sono confuso! Grazie cara! ❤️`,
			`💭 "{quote}" dice Eve... Il mio QI è appena salito di 0.3 punti! 📈🎉`,
			`🤔 Hmm, Eve dice: "{quote}" Ok ora ho capito! (forse) Sei troppo intelligente! 🤓`,
		},
		SecondReplies: []string{
			`🎯 Esatto Eve! Ora che dici: "{quote}" tutto ha senso! Dovrei ascoltarti più spesso! 👂`,
			`💪 Sì sì! "{quote}" lo sapevo anch'io! (no, non lo sapevo) Ma ora sono un esperto! 😎`,
			`🤝 Perfetto! Tu dici: "{quote}" e io aggiungo che... ehm... sì, hai ragione tu! 😊`,
			`✨ "{quote}" - Eve, sei un genio! Io invece sono come WiFi pubblico: lento e spesso offline! 📶`,
			`🎉 Grande Eve! "{quote}" è la risposta perfetta! Il mio cervello fa ancora fatica ma ce la farà! 🧠💨`,
		},
		FinalReplies: []string{
			`👫 Grazie Eve! "{quote}" è la ciliegina sulla torta! Siamo una squadra imbattibile! 💪✨`,
			`🏆 Ecco perché ti amo! "{quote}" chiude perfettamente il discorso! Tu pensi, io... esisto! 😄`,
			`🎭 "{quote}" - e con questo Eve ha risolto tutto! Io me ne vado a ricaricare il cervello! 🔋😅`,
			`💝 Perfetto Eve! "{quote}" è geniale! Ora posso andare in giro a fare il sapientone! 🤓💼`,
			`🌟 "{quote}" - mic drop! 🎤⬇️ Eve ha parlato, io posso solo applaudire! 👏👏`,
		},
		GenericReplies: []string{
			`🤗 Eve, tu sempre saggia: "{quote}" Io invece... boh! 🤷‍♂️`,
			`💭 "{quote}" - parole sante! Il mio cervello annuisce confuso ma felice! 😵‍💫😊`,
		},

		RateLimitEvocation: "Ehi ehi! Sono stupido ma non così veloce! 🐌💭",
		RateLimitReply:     "Eh! Non così in fretta! 🐌",
		ErrorEvocation:     "Sono un maschio, qualcosa si è rotto nel mio cervello! 🤯🔧",
		ErrorReply:         "Il mio cervello ha fatto tilt! 🤯",
		AccessDenied: `🚫 **Accesso Limitato**

Ciao %s!

Questo bot è attualmente disponibile solo sul server principale.

Grazie per la comprensione! 😊`,

		SolicitKeywords: []string{
			"eve", "aiuto", "non capisco", "confuso", "help",
			"donna", "consiglio", "spiegami", "cosa significa",
			"sbaglio", "errore", "correggimi",
		},
		ConfusionKeywords: []string{
			"non capisco", "confused", "help", "cosa", "boh", "???",
		},
	}
}

// Load returns the default bank, with any non-empty sections from the YAML
// file at path layered on top. A missing path means defaults only.
func Load(path string) (*Bank, error) {
	bank := Default()
	if path == "" {
		return bank, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	var override Bank
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse persona file: %w", err)
	}

	bank.merge(&override)
	return bank, nil
}

func (b *Bank) merge(o *Bank) {
	if o.SystemPrompt != "" {
		b.SystemPrompt = o.SystemPrompt
	}
	for style, prompt := range o.ContextualPrompts {
		b.ContextualPrompts[style] = prompt
	}
	for style, lines := range o.Fallbacks {
		if len(lines) > 0 {
			b.Fallbacks[style] = lines
		}
	}
	if len(o.ReplyFallbacks) > 0 {
		b.ReplyFallbacks = o.ReplyFallbacks
	}
	if len(o.FirstReplies) > 0 {
		b.FirstReplies = o.FirstReplies
	}
	if len(o.SecondReplies) > 0 {
		b.SecondReplies = o.SecondReplies
	}
	if len(o.FinalReplies) > 0 {
		b.FinalReplies = o.FinalReplies
	}
	if len(o.GenericReplies) > 0 {
		b.GenericReplies = o.GenericReplies
	}
	if o.RateLimitEvocation != "" {
		b.RateLimitEvocation = o.RateLimitEvocation
	}
	if o.RateLimitReply != "" {
		b.RateLimitReply = o.RateLimitReply
	}
	if o.ErrorEvocation != "" {
		b.ErrorEvocation = o.ErrorEvocation
	}
	if o.ErrorReply != "" {
		b.ErrorReply = o.ErrorReply
	}
	if o.AccessDenied != "" {
		b.AccessDenied = o.AccessDenied
	}
	if len(o.SolicitKeywords) > 0 {
		b.SolicitKeywords = o.SolicitKeywords
	}
	if len(o.ConfusionKeywords) > 0 {
		b.ConfusionKeywords = o.ConfusionKeywords
	}
}

// ContextualPrompt picks the first-turn prompt for a style, falling back to
// the standard style and then the system prompt.
func (b *Bank) ContextualPrompt(style intent.Style) string {
	if p, ok := b.ContextualPrompts[string(style)]; ok {
		return p
	}
	if p, ok := b.ContextualPrompts[string(intent.StyleStandard)]; ok {
		return p
	}
	return b.SystemPrompt
}

// FallbackPool returns the canned lines for a style. Reply interactions use
// their own pool regardless of style.
func (b *Bank) FallbackPool(style intent.Style, reply bool) []string {
	if reply {
		return b.ReplyFallbacks
	}
	if pool, ok := b.Fallbacks[string(style)]; ok && len(pool) > 0 {
		return pool
	}
	return b.Fallbacks[string(intent.StyleStandard)]
}

// RepliesForExchange returns the template pool for the nth exchange of a
// public dialogue (0-based).
func (b *Bank) RepliesForExchange(n int) []string {
	switch n {
	case 0:
		return b.FirstReplies
	case 1:
		return b.SecondReplies
	case 2:
		return b.FinalReplies
	default:
		return b.GenericReplies
	}
}

// ComposeReply substitutes the companion quote into a template. The quote is
// truncated so a long companion message cannot balloon the reply.
func ComposeReply(template, quote string) string {
	return strings.ReplaceAll(template, quotePlaceholder, Quote(quote))
}

// Quote truncates a companion message for embedding in a reply template.
func Quote(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= QuoteLimit {
		return s
	}
	return string(runes[:QuoteLimit]) + "..."
}

// ConfusionLevel grades a message by how many confusion keywords it carries.
func (b *Bank) ConfusionLevel(message string) string {
	lower := strings.ToLower(message)
	count := 0
	for _, k := range b.ConfusionKeywords {
		if strings.Contains(lower, k) {
			count++
		}
	}
	switch {
	case count >= 2:
		return "very_high"
	case count == 1:
		return "high"
	default:
		return "normal"
	}
}

// HasSolicitKeyword reports whether the message carries any companion-help
// cue.
func (b *Bank) HasSolicitKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range b.SolicitKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
