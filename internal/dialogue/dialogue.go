// Package dialogue coordinates the public Adam/Eve double act. Adam
// privately asks the companion for help over the webhook; when she shows up
// in the chat, the coordinator runs a short scripted exchange and then bows
// out. All per-chat state lives behind one mutex, which is the
// serialization point for session decisions.
package dialogue

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/intent"
	"github.com/duetbots/adam/internal/logging"
	"github.com/duetbots/adam/internal/persona"
)

// Stage is where a public dialogue session currently sits.
type Stage string

const (
	// StageWaitingForCompanion means the next public word belongs to the
	// companion.
	StageWaitingForCompanion Stage = "waiting_for_companion"
	// StageSelfResponding means a reply to the companion is in flight.
	StageSelfResponding Stage = "self_responding"
)

// longMessageLen is the length past which a message counts as "complex"
// for solicitation probability purposes.
const longMessageLen = 50

// teardownGrace is how long a finished session lingers before teardown, so
// the final reply lands while the session still exists.
const teardownGrace = 2 * time.Second

// Transport sends private coordination messages to the companion.
type Transport interface {
	Send(ctx context.Context, message string, msgContext map[string]any, messageType string) error
}

// Messenger posts dialogue replies into the public chat. SendReply returns
// the platform ID of the sent message.
type Messenger interface {
	SendReply(chatID, text, replyToMessageID string) (string, error)
	Typing(chatID string)
}

// CompanionMessage is a public chat message that might be the companion
// speaking.
type CompanionMessage struct {
	AuthorID       string
	AuthorUsername string
	IsBot          bool
	ChatID         string
	MessageID      string
	Content        string
}

// Session is one active public dialogue in one chat.
type Session struct {
	StartedAt     time.Time
	ExchangeCount int
	Stage         Stage
	Context       map[string]any
}

type quotaState struct {
	helpCount  int
	lastHelpAt time.Time
}

// Config tunes the coordinator.
type Config struct {
	CompanionName   string
	SolicitProb     float64
	PublicChance    float64
	MaxHelpPerChat  int
	HelpCooldown    time.Duration
	SessionTimeout  time.Duration
	ConversationLen int
	DelayMin        time.Duration
	DelayMax        time.Duration
}

// Coordinator owns all public-dialogue state.
type Coordinator struct {
	cfg       Config
	transport Transport
	messenger Messenger
	bank      *persona.Bank
	log       *logrus.Entry

	mu          sync.Mutex
	sessions    map[string]*Session
	quota       map[string]*quotaState
	cooldown    map[string]time.Time
	companionID string

	now       func() time.Time
	randFloat func() float64
	intn      func(n int) int
	sleep     func(d time.Duration)
}

// New creates a coordinator. Zero-value config fields get the standard
// defaults; clock, rand and sleep hooks are overridable for tests.
func New(cfg Config, transport Transport, messenger Messenger, bank *persona.Bank, log *logrus.Entry) *Coordinator {
	if cfg.MaxHelpPerChat == 0 {
		cfg.MaxHelpPerChat = 5
	}
	if cfg.ConversationLen == 0 {
		cfg.ConversationLen = 3
	}
	if cfg.HelpCooldown == 0 {
		cfg.HelpCooldown = 2 * time.Minute
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 5 * time.Minute
	}
	if cfg.SolicitProb == 0 {
		cfg.SolicitProb = 0.35
	}
	if cfg.PublicChance == 0 {
		cfg.PublicChance = 0.85
	}
	if cfg.DelayMin == 0 {
		cfg.DelayMin = 2 * time.Second
	}
	if cfg.DelayMax == 0 {
		cfg.DelayMax = 5 * time.Second
	}
	if cfg.CompanionName == "" {
		cfg.CompanionName = "eve"
	}

	return &Coordinator{
		cfg:       cfg,
		transport: transport,
		messenger: messenger,
		bank:      bank,
		log:       log,
		sessions:  make(map[string]*Session),
		quota:     make(map[string]*quotaState),
		cooldown:  make(map[string]time.Time),
		now:       time.Now,
		randFloat: defaultRandFloat,
		intn:      defaultIntn,
		sleep:     time.Sleep,
	}
}

// SetMessenger binds the public chat sender. The platform layer is built
// after the coordinator, so it attaches itself here before Start.
func (c *Coordinator) SetMessenger(m Messenger) {
	c.messenger = m
}

// ShouldSolicit decides whether this user message warrants asking the
// companion for public help. One critical section, no I/O.
func (c *Coordinator) ShouldSolicit(message string, style intent.Style, chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.cooldown[chatID]; ok && c.now().Sub(last) < c.cfg.HelpCooldown {
		return false
	}
	if _, ok := c.sessions[chatID]; ok {
		return false
	}
	if q, ok := c.quota[chatID]; ok && q.helpCount >= c.cfg.MaxHelpPerChat {
		return false
	}

	if c.bank.HasSolicitKeyword(message) {
		return true
	}
	if len(message) <= longMessageLen {
		return false
	}
	if style == intent.StyleQuestion {
		return c.randFloat() < c.cfg.SolicitProb
	}
	return c.randFloat() < c.cfg.SolicitProb/10
}

// Solicit sends the private coordinate_public_help request. Quota and the
// cooldown anchor are committed before the send outcome is known; a failed
// send still counts and is never retried.
func (c *Coordinator) Solicit(ctx context.Context, message, chatID, messageID string, style intent.Style) error {
	msgContext := map[string]any{
		"correlationId":             uuid.NewString(),
		"originalChatId":            chatID,
		"originalMessageId":         messageID,
		"adamResponseType":          string(style),
		"userQuestion":              message,
		"requestPublicConversation": c.randFloat() < c.cfg.PublicChance,
	}

	c.mu.Lock()
	q, ok := c.quota[chatID]
	if !ok {
		q = &quotaState{}
		c.quota[chatID] = q
	}
	q.helpCount++
	q.lastHelpAt = c.now()
	c.cooldown[chatID] = c.now()
	c.mu.Unlock()

	if err := c.transport.Send(ctx, message, msgContext, "coordinate_public_help"); err != nil {
		c.log.WithError(err).Warn("help coordination failed")
		return fmt.Errorf("coordinate with companion: %w", err)
	}

	c.log.WithField("chat", chatID).Info("help coordination sent to companion")
	return nil
}

// HandleCoordination processes a private webhook message from the
// companion. Unknown types are logged and ignored.
func (c *Coordinator) HandleCoordination(message string, msgContext map[string]any, messageType string) {
	switch messageType {
	case "start_public_conversation":
		c.startSession(msgContext)
	case "conversation_context":
		c.mergeContext(msgContext)
	case "end_conversation":
		c.EndSession(ctxString(msgContext, "originalChatId"))
	default:
		c.log.WithField("type", messageType).Info("unhandled coordination message")
	}
}

func (c *Coordinator) startSession(msgContext map[string]any) {
	chatID := ctxString(msgContext, "originalChatId")
	if chatID == "" {
		c.log.Warn("start_public_conversation without a chat ID")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[chatID]; ok {
		return
	}
	c.sessions[chatID] = &Session{
		StartedAt: c.now(),
		Stage:     StageWaitingForCompanion,
		Context:   msgContext,
	}
	c.log.WithField("chat", chatID).Info("public dialogue started")
}

func (c *Coordinator) mergeContext(msgContext map[string]any) {
	chatID := ctxString(msgContext, "originalChatId")

	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[chatID]
	if !ok {
		return
	}
	for k, v := range msgContext {
		session.Context[k] = v
	}
}

// EndSession tears a session down and anchors the chat cooldown.
func (c *Coordinator) EndSession(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endSessionLocked(chatID)
}

func (c *Coordinator) endSessionLocked(chatID string) {
	if _, ok := c.sessions[chatID]; !ok {
		return
	}
	delete(c.sessions, chatID)
	c.cooldown[chatID] = c.now()
	c.log.WithField("chat", chatID).Info("public dialogue ended")
}

// HandleCompanionMessage reacts to a public chat message if it is the
// companion speaking inside an active session. Returns true when the
// message was consumed by the dialogue.
func (c *Coordinator) HandleCompanionMessage(msg CompanionMessage) bool {
	if !c.isCompanion(msg) {
		return false
	}

	c.mu.Lock()
	session, ok := c.sessions[msg.ChatID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if session.Stage != StageWaitingForCompanion {
		c.mu.Unlock()
		return true
	}
	session.Stage = StageSelfResponding
	exchange := session.ExchangeCount
	replyTo := ctxString(session.Context, "originalMessageId")
	stretch := ctxString(session.Context, "confusionLevel") == "very_high"
	c.mu.Unlock()

	pool := c.bank.RepliesForExchange(exchange)
	reply := persona.ComposeReply(pool[c.intn(len(pool))], msg.Content)

	delay := c.thinkingDelay(stretch)
	c.messenger.Typing(msg.ChatID)
	c.sleep(delay)

	if _, err := c.messenger.SendReply(msg.ChatID, reply, replyTo); err != nil {
		c.log.WithError(err).Error("dialogue reply failed")
		if _, err := c.messenger.SendReply(msg.ChatID, c.bank.ErrorEvocation, replyTo); err != nil {
			c.log.WithError(err).Error("dialogue error notice failed")
		}
	} else {
		c.log.WithField("chat", msg.ChatID).Infof("replied to companion: %s", logging.Truncate(reply, 120))
	}

	c.mu.Lock()
	session, ok = c.sessions[msg.ChatID]
	if !ok {
		c.mu.Unlock()
		return true
	}
	session.ExchangeCount++
	session.Stage = StageWaitingForCompanion
	done := session.ExchangeCount >= c.cfg.ConversationLen
	c.mu.Unlock()

	if done {
		go func() {
			c.sleep(teardownGrace)
			c.EndSession(msg.ChatID)
		}()
	}
	return true
}

func (c *Coordinator) thinkingDelay(stretch bool) time.Duration {
	span := c.cfg.DelayMax - c.cfg.DelayMin
	delay := c.cfg.DelayMin + time.Duration(c.randFloat()*float64(span))
	if stretch {
		delay = delay * 3 / 2
	}
	return delay
}

// isCompanion checks whether the author is the companion bot: cached ID
// first, then exact username, then a name-substring fallback. The fallback
// can false-positive on lookalike bot names; the ID cache limits the window.
func (c *Coordinator) isCompanion(msg CompanionMessage) bool {
	if !msg.IsBot {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.companionID != "" {
		return msg.AuthorID == c.companionID
	}

	name := strings.ToLower(msg.AuthorUsername)
	companion := strings.ToLower(c.cfg.CompanionName)
	if name == companion || strings.Contains(name, companion) {
		c.companionID = msg.AuthorID
		return true
	}
	return false
}

// Sweep expires stale sessions and quota/cooldown entries. Safe to call on
// a timer.
func (c *Coordinator) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for chatID, session := range c.sessions {
		if now.Sub(session.StartedAt) > c.cfg.SessionTimeout {
			c.endSessionLocked(chatID)
		}
	}

	stale := 3 * c.cfg.HelpCooldown
	for chatID, q := range c.quota {
		if now.Sub(q.lastHelpAt) > stale {
			delete(c.quota, chatID)
		}
	}
	for chatID, last := range c.cooldown {
		if now.Sub(last) > stale {
			delete(c.cooldown, chatID)
		}
	}
}

// Stats summarizes dialogue state for status reporting.
func (c *Coordinator) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, q := range c.quota {
		total += q.helpCount
	}
	return map[string]int{
		"activeSessions":    len(c.sessions),
		"chatsOnCooldown":   len(c.cooldown),
		"totalHelpRequests": total,
	}
}

// SessionDebug is one row of debug output for the admin command.
type SessionDebug struct {
	ChatID    string
	Exchanges int
	Stage     Stage
}

// CooldownDebug is the remaining cooldown for one chat.
type CooldownDebug struct {
	ChatID    string
	Remaining time.Duration
}

// Debug snapshots sessions and cooldowns for the admin debug command.
func (c *Coordinator) Debug() ([]SessionDebug, []CooldownDebug) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := make([]SessionDebug, 0, len(c.sessions))
	for chatID, s := range c.sessions {
		sessions = append(sessions, SessionDebug{ChatID: chatID, Exchanges: s.ExchangeCount, Stage: s.Stage})
	}

	now := c.now()
	cooldowns := make([]CooldownDebug, 0, len(c.cooldown))
	for chatID, last := range c.cooldown {
		remaining := c.cfg.HelpCooldown - now.Sub(last)
		if remaining > 0 {
			cooldowns = append(cooldowns, CooldownDebug{ChatID: chatID, Remaining: remaining})
		}
	}
	return sessions, cooldowns
}

func defaultRandFloat() float64 { return rand.Float64() }

func defaultIntn(n int) int { return rand.Intn(n) }

func ctxString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
