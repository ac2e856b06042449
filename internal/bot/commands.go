package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const commandPrefix = "!"

// commandReply handles admin prefix commands. Returns the reply text and
// whether the message was a command at all. Non-admins get a refusal for
// any recognized command.
func (b *Bot) commandReply(userID, content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(fields) == 0 {
		return "", false
	}
	command, args := fields[0], fields[1:]

	switch command {
	case "authorize", "revoke", "status", "list", "debug":
	default:
		// Not one of ours; let it fall through as a normal message.
		return "", false
	}

	if !b.access.IsAdmin(userID) {
		return "❌ Non hai i permessi per questo comando.", true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch command {
	case "authorize":
		if len(args) != 1 {
			return "Uso: !authorize <user_id>", true
		}
		b.access.Authorize(ctx, args[0])
		return fmt.Sprintf("✅ Utente %s autorizzato con successo!", args[0]), true

	case "revoke":
		if len(args) != 1 {
			return "Uso: !revoke <user_id>", true
		}
		b.access.Revoke(ctx, args[0])
		return fmt.Sprintf("❌ Accesso revocato per l'utente %s.", args[0]), true

	case "status":
		return b.statusReply(ctx), true

	case "list":
		ids := b.access.AuthorizedList()
		if len(ids) == 0 {
			return "👥 Nessun utente autorizzato.", true
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "👥 Utenti autorizzati (%d):\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(&sb, "• %s\n", id)
		}
		return sb.String(), true

	case "debug":
		return b.debugReply(), true
	}
	return "", false
}

func (b *Bot) statusReply(ctx context.Context) string {
	authorized, pending, attempts := b.access.Stats(ctx)
	sent, received, errors, _ := b.transport.Stats()
	dialogueStats := b.coordinator.Stats()
	memStats := b.memory.Stats()

	var sb strings.Builder
	sb.WriteString("📊 Status Bot\n\n")
	fmt.Fprintf(&sb, "👥 Utenti autorizzati: %d\n", authorized)
	fmt.Fprintf(&sb, "⏳ Richieste pending: %d\n", pending)
	fmt.Fprintf(&sb, "🚫 Tentativi negati: %d\n\n", attempts)
	fmt.Fprintf(&sb, "📡 Webhook: %d inviati, %d ricevuti, %d errori\n", sent, received, errors)
	fmt.Fprintf(&sb, "🎭 Dialoghi attivi: %d\n", dialogueStats["activeSessions"])
	fmt.Fprintf(&sb, "🆘 Richieste aiuto totali: %d\n", dialogueStats["totalHelpRequests"])
	fmt.Fprintf(&sb, "🧠 Chat in memoria: %d (%d turni)\n", memStats["active_chats"], memStats["total_turns"])

	if reqs := b.access.PendingRequests(); len(reqs) > 0 {
		sb.WriteString("\n🔄 Richieste pending:\n")
		for _, req := range reqs {
			fmt.Fprintf(&sb, "• %s (@%s) - ID: %s\n", req.DisplayName, req.Username, req.UserID)
		}
	}
	return sb.String()
}

func (b *Bot) debugReply() string {
	sessions, cooldowns := b.coordinator.Debug()

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Debug dialogo\n\n🎭 Sessioni attive (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&sb, "• Chat %s: %d scambi, stage %s\n", s.ChatID, s.Exchanges, s.Stage)
	}
	fmt.Fprintf(&sb, "\n⏰ Cooldown (%d):\n", len(cooldowns))
	for _, cd := range cooldowns {
		fmt.Fprintf(&sb, "• Chat %s: %ds rimanenti\n", cd.ChatID, int(cd.Remaining.Seconds()))
	}
	return sb.String()
}
