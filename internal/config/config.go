package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the bot reads from the environment.
// Resolved once at startup; components receive the values they need,
// never the whole struct.
type Config struct {
	// Platform
	DiscordToken string
	AdminIDs     []string

	// Completion API
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// Companion coordination
	BotName           string
	CompanionName     string
	CompanionURL      string
	WebhookPort       string
	WebhookSecret     string
	RequestTimeout    time.Duration
	SolicitProb       float64
	PublicChance      float64
	MaxHelpPerChat    int
	HelpCooldown      time.Duration
	SessionTimeout    time.Duration
	ConversationLen   int
	ResponseDelayMin  time.Duration
	ResponseDelayMax  time.Duration

	// Housekeeping
	CleanupInterval time.Duration
	StatePath       string
	PersonaPath     string
	LogLevel        string
}

// Load reads configuration from the environment, applying the defaults the
// companion bot pair has always shipped with.
func Load() *Config {
	return &Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		AdminIDs:     splitList(os.Getenv("ADMIN_IDS")),

		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),

		BotName:          getEnv("BOT_NAME", "adam"),
		CompanionName:    getEnv("COMPANION_NAME", "eve"),
		CompanionURL:     getEnv("COMPANION_WEBHOOK_URL", "http://localhost:3000/webhook/companion"),
		WebhookPort:      getEnv("WEBHOOK_PORT", "3001"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT_MS", 15000),
		SolicitProb:      getEnvFloat("HELP_PROBABILITY", 0.35),
		PublicChance:     getEnvFloat("PUBLIC_CONVERSATION_CHANCE", 0.85),
		MaxHelpPerChat:   getEnvInt("MAX_HELP_PER_CHAT", 5),
		HelpCooldown:     getEnvDuration("HELP_COOLDOWN_MS", 120000),
		SessionTimeout:   getEnvDuration("CONVERSATION_TIMEOUT_MS", 300000),
		ConversationLen:  getEnvInt("CONVERSATION_LENGTH", 3),
		ResponseDelayMin: getEnvDuration("RESPONSE_DELAY_MIN_MS", 2000),
		ResponseDelayMax: getEnvDuration("RESPONSE_DELAY_MAX_MS", 5000),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL_MS", 600000),
		StatePath:       getEnv("STATE_PATH", "state"),
		PersonaPath:     os.Getenv("PERSONA_PATH"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports the startup-fatal omissions. Everything else has a default.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if len(c.WebhookSecret) < 10 {
		return fmt.Errorf("WEBHOOK_SECRET must be at least 10 characters")
	}
	if c.ResponseDelayMax < c.ResponseDelayMin {
		return fmt.Errorf("RESPONSE_DELAY_MAX_MS must be >= RESPONSE_DELAY_MIN_MS")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultMS int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(intValue) * time.Millisecond
		}
	}
	return time.Duration(defaultMS) * time.Millisecond
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
