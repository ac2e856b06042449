// Package bot wires Adam to Discord: it listens for evocations and replies,
// gates access and rate, routes companion messages into the dialogue
// coordinator, and exposes the admin commands.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/access"
	"github.com/duetbots/adam/internal/config"
	"github.com/duetbots/adam/internal/dialogue"
	"github.com/duetbots/adam/internal/intent"
	"github.com/duetbots/adam/internal/logging"
	"github.com/duetbots/adam/internal/memory"
	"github.com/duetbots/adam/internal/persona"
	"github.com/duetbots/adam/internal/ratelimit"
	"github.com/duetbots/adam/internal/respond"
	"github.com/duetbots/adam/internal/webhook"
)

// healthInterval is how often the liveness summary lands in the log.
const healthInterval = 5 * time.Minute

// staleUserAge bounds the rate limiter map between sweeps.
const staleUserAge = time.Hour

// Bot is the Discord-facing orchestrator.
type Bot struct {
	cfg     *config.Config
	session *discordgo.Session
	log     *logrus.Entry

	memory      *memory.Store
	limiter     *ratelimit.Limiter
	generator   *respond.Generator
	coordinator *dialogue.Coordinator
	transport   *webhook.Service
	access      *access.Controller
	bank        *persona.Bank

	botID    string
	stopChan chan struct{}
}

// Deps are the subsystems the bot orchestrates.
type Deps struct {
	Memory      *memory.Store
	Limiter     *ratelimit.Limiter
	Generator   *respond.Generator
	Coordinator *dialogue.Coordinator
	Transport   *webhook.Service
	Access      *access.Controller
	Bank        *persona.Bank
}

// New creates the bot and its Discord session without connecting.
func New(cfg *config.Config, deps Deps, log *logrus.Entry) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create Discord session: %w", err)
	}

	b := &Bot{
		cfg:         cfg,
		session:     session,
		log:         log,
		memory:      deps.Memory,
		limiter:     deps.Limiter,
		generator:   deps.Generator,
		coordinator: deps.Coordinator,
		transport:   deps.Transport,
		access:      deps.Access,
		bank:        deps.Bank,
		stopChan:    make(chan struct{}),
	}

	session.AddHandler(b.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return b, nil
}

// Start connects to Discord, starts the webhook server, fires the startup
// ping and kicks off the housekeeping loop.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open Discord connection: %w", err)
	}
	b.botID = b.session.State.User.ID
	b.log.WithField("username", b.session.State.User.Username).Info("connected to Discord")

	b.transport.OnCompanionMessage(b.coordinator.HandleCoordination)
	b.transport.Start()

	// Best-effort hello to the companion; she may not be up yet.
	go func() {
		time.Sleep(3 * time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
		defer cancel()
		msg := fmt.Sprintf("Hello %s, %s is online!", b.cfg.CompanionName, b.cfg.BotName)
		if err := b.transport.Send(ctx, msg, map[string]any{"test": true}, "startup_test"); err != nil {
			b.log.WithError(err).Warn("companion startup ping failed")
		}
	}()

	go b.housekeeping()
	return nil
}

// Stop tears everything down.
func (b *Bot) Stop(ctx context.Context) error {
	close(b.stopChan)
	if err := b.transport.Stop(ctx); err != nil {
		b.log.WithError(err).Error("webhook shutdown failed")
	}
	return b.session.Close()
}

func (b *Bot) housekeeping() {
	sweep := time.NewTicker(b.cfg.CleanupInterval)
	health := time.NewTicker(healthInterval)
	defer sweep.Stop()
	defer health.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-sweep.C:
			b.memory.SweepExpired()
			b.coordinator.Sweep()
			b.limiter.SweepStale(staleUserAge)
			b.log.Debug("housekeeping sweep complete")
		case <-health.C:
			sent, received, errors, _ := b.transport.Stats()
			b.log.WithFields(logrus.Fields{
				"memory":   b.memory.Stats(),
				"dialogue": b.coordinator.Stats(),
				"webhook":  fmt.Sprintf("%d sent / %d received / %d errors", sent, received, errors),
			}).Info("health check")
		}
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == b.botID {
		return
	}

	// Other bots only matter if they are the companion mid-dialogue.
	if m.Author.Bot {
		b.coordinator.HandleCompanionMessage(dialogue.CompanionMessage{
			AuthorID:       m.Author.ID,
			AuthorUsername: m.Author.Username,
			IsBot:          true,
			ChatID:         m.ChannelID,
			MessageID:      m.ID,
			Content:        m.Content,
		})
		return
	}

	if reply, isCommand := b.commandReply(m.Author.ID, m.Content); isCommand {
		if reply != "" {
			b.send(m.ChannelID, reply)
		}
		return
	}

	isDM := m.GuildID == ""
	if isDM && !b.access.IsAuthorized(m.Author.ID) {
		b.denyAccess(m)
		return
	}

	match := intent.Analyze(m.Content)
	isReply := b.isReplyToBot(m)
	if !match.Addressed && !isReply {
		return
	}

	userID := m.Author.ID
	chatID := m.ChannelID

	if b.limiter.Limited(userID, isReply) {
		notice := b.bank.RateLimitEvocation
		if isReply {
			notice = b.bank.RateLimitReply
		}
		b.sendReplyTo(m, notice)
		return
	}

	if err := s.ChannelTyping(chatID); err != nil {
		b.log.WithError(err).Debug("typing indicator failed")
	}

	userText := m.Content
	if match.Addressed {
		userText = match.CleanedText
		b.log.WithFields(logrus.Fields{
			"category":   match.Category,
			"confidence": match.Confidence,
		}).Infof("evocation: %s", logging.Truncate(userText, 120))
	}

	style := intent.ResponseStyle(match)
	if style == intent.StyleNone {
		style = intent.StyleStandard
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
	defer cancel()

	// Adam answers either way; the companion solicitation runs first so
	// she can join while he is still typing.
	if b.coordinator.ShouldSolicit(userText, style, chatID) {
		if err := b.coordinator.Solicit(ctx, userText, chatID, m.ID, style); err != nil {
			b.log.WithError(err).Warn("companion solicitation failed")
		}
	}

	started := time.Now()
	response := b.composeResponse(ctx, userText, chatID, isReply, style)

	sent, err := s.ChannelMessageSendReply(chatID, response, m.Reference())
	if err != nil {
		b.log.WithError(err).Error("failed to send response")
		b.sendReplyTo(m, b.errorNotice(isReply))
		return
	}
	b.memory.AddTurn(chatID, memory.RoleAssistant, response, sent.ID)

	b.log.WithFields(logrus.Fields{
		"user":     m.Author.Username,
		"reply":    isReply,
		"duration": time.Since(started),
	}).Infof("responded: %s", logging.Truncate(response, 120))
}

// composeResponse generates the reply and only then records the user turn:
// the generator must see the history as it was before this message, so a
// fresh first address still gets its style-specific prompt and the current
// message enters the prompt exactly once.
func (b *Bot) composeResponse(ctx context.Context, userText, chatID string, isReply bool, style intent.Style) string {
	response := b.generator.Generate(ctx, userText, chatID, isReply, style)
	b.memory.AddTurn(chatID, memory.RoleUser, userText, "")
	return response
}

// errorNotice picks the canned line sent when the response pipeline fails.
func (b *Bot) errorNotice(isReply bool) string {
	if isReply {
		return b.bank.ErrorReply
	}
	return b.bank.ErrorEvocation
}

// isReplyToBot reports whether the message is a reply to something the bot
// itself sent.
func (b *Bot) isReplyToBot(m *discordgo.MessageCreate) bool {
	ref := m.MessageReference
	return ref != nil && ref.MessageID != "" && b.memory.IsOwnMessage(ref.MessageID)
}

func (b *Bot) denyAccess(m *discordgo.MessageCreate) {
	displayName := m.Author.GlobalName
	if displayName == "" {
		displayName = m.Author.Username
	}

	b.send(m.ChannelID, fmt.Sprintf(b.bank.AccessDenied, displayName))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.access.RequestAccess(ctx, m.Author.ID, m.Author.Username, displayName)

	notice := fmt.Sprintf("🔔 Nuova richiesta accesso: %s (@%s)\nID: %s\nPer autorizzare: !authorize %s",
		displayName, m.Author.Username, m.Author.ID, m.Author.ID)
	b.notifyAdmins(notice)

	b.log.WithFields(logrus.Fields{
		"user": m.Author.Username,
		"id":   m.Author.ID,
	}).Warn("unauthorized DM attempt")
}

func (b *Bot) notifyAdmins(message string) {
	for _, adminID := range b.access.AdminIDs() {
		channel, err := b.session.UserChannelCreate(adminID)
		if err != nil {
			b.log.WithError(err).WithField("admin", adminID).Error("failed to open admin DM")
			continue
		}
		if _, err := b.session.ChannelMessageSend(channel.ID, message); err != nil {
			b.log.WithError(err).WithField("admin", adminID).Error("failed to notify admin")
		}
	}
}

func (b *Bot) send(chatID, text string) {
	if _, err := b.session.ChannelMessageSend(chatID, text); err != nil {
		b.log.WithError(err).Error("failed to send message")
	}
}

func (b *Bot) sendReplyTo(m *discordgo.MessageCreate, text string) {
	if _, err := b.session.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
		b.log.WithError(err).Error("failed to send reply")
	}
}

// SendReply posts a dialogue reply into a chat and records it as the bot's
// own message. Satisfies dialogue.Messenger.
func (b *Bot) SendReply(chatID, text, replyToMessageID string) (string, error) {
	var sent *discordgo.Message
	var err error
	if replyToMessageID != "" {
		sent, err = b.session.ChannelMessageSendReply(chatID, text, &discordgo.MessageReference{
			MessageID: replyToMessageID,
			ChannelID: chatID,
		})
	} else {
		sent, err = b.session.ChannelMessageSend(chatID, text)
	}
	if err != nil {
		return "", fmt.Errorf("send dialogue reply: %w", err)
	}
	b.memory.AddTurn(chatID, memory.RoleAssistant, text, sent.ID)
	return sent.ID, nil
}

// Typing shows the typing indicator. Satisfies dialogue.Messenger.
func (b *Bot) Typing(chatID string) {
	if err := b.session.ChannelTyping(chatID); err != nil {
		b.log.WithError(err).Debug("typing indicator failed")
	}
}
