package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port            int
	ClientURL       string
	DefaultProvider string
	DefaultModel    string
	OpenAIKey       string
	OpenAIBaseURL   string
	OllamaHost      string

	GameDuration          time.Duration
	BotMatchDelay         time.Duration
	HumanMatchProbability float64
	BotReplyMin           time.Duration
	BotReplyMax           time.Duration
	BotGreetingDelay      time.Duration
	CompletionTimeout     time.Duration
	LeaderboardSize       int

	ExportEnabled bool
	ExportFile    string
	LogLevel      string
	Seed          int64
}

// Defaults mirrors the flag defaults registered by BindFlags.
func Defaults() Config {
	return Config{
		Port:                  3001,
		ClientURL:             "http://localhost:3000",
		DefaultProvider:       "openai",
		DefaultModel:          "gpt-3.5-turbo",
		OllamaHost:            "http://localhost:11434",
		GameDuration:          3 * time.Minute,
		BotMatchDelay:         3 * time.Second,
		HumanMatchProbability: 0.5,
		BotReplyMin:           time.Second,
		BotReplyMax:           3 * time.Second,
		BotGreetingDelay:      2 * time.Second,
		CompletionTimeout:     10 * time.Second,
		LeaderboardSize:       100,
		ExportFile:            "./amiabot-results.txt",
		LogLevel:              "info",
	}
}

// BindFlags registers every setting on fs and binds it to v, so each key can
// come from a flag, an environment variable (PORT, OPENAI_API_KEY, ...) or .env.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	d := Defaults()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntP("port", "p", d.Port, "port to listen on (env: PORT)")
	fs.String("client-url", d.ClientURL, "origin allowed by CORS (env: CLIENT_URL)")
	fs.String("default-provider", d.DefaultProvider, `completion provider, "openai" or "ollama" (env: DEFAULT_PROVIDER)`)
	fs.String("default-model", d.DefaultModel, "completion model (env: DEFAULT_MODEL)")
	fs.String("openai-api-key", "", "OpenAI API key (env: OPENAI_API_KEY)")
	fs.String("openai-base-url", "", "custom OpenAI API base URL (env: OPENAI_BASE_URL)")
	fs.String("ollama-host", d.OllamaHost, "Ollama host URL (env: OLLAMA_HOST)")
	fs.Duration("game-duration", d.GameDuration, "length of a round before time-up (env: GAME_DURATION)")
	fs.Duration("bot-match-delay", d.BotMatchDelay, "minimum wait before pairing with a bot (env: BOT_MATCH_DELAY)")
	fs.Float64("human-match-probability", d.HumanMatchProbability, "chance of pairing two humans when someone is waiting (env: HUMAN_MATCH_PROBABILITY)")
	fs.Duration("bot-reply-min", d.BotReplyMin, "minimum bot typing delay (env: BOT_REPLY_MIN)")
	fs.Duration("bot-reply-max", d.BotReplyMax, "maximum bot typing delay (env: BOT_REPLY_MAX)")
	fs.Duration("bot-greeting-delay", d.BotGreetingDelay, "delay before the bot says hello (env: BOT_GREETING_DELAY)")
	fs.Duration("completion-timeout", d.CompletionTimeout, "deadline for a completion request (env: COMPLETION_TIMEOUT)")
	fs.Int("leaderboard-size", d.LeaderboardSize, "number of ranked users kept (env: LEADERBOARD_SIZE)")
	fs.Bool("export-enabled", d.ExportEnabled, "append finished games to the export file (env: EXPORT_ENABLED)")
	fs.String("export-file", d.ExportFile, "path of the export file (env: EXPORT_FILE)")
	fs.String("log-level", d.LogLevel, "zerolog level (env: LOG_LEVEL)")
	fs.Int64("seed", 0, "random seed, 0 picks one from the clock (env: SEED)")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")))
	})
}

// Load reads .env (if present) and resolves the typed configuration from v.
func Load(v *viper.Viper) (Config, error) {
	_ = godotenv.Load()

	c := Config{
		Port:                  v.GetInt("port"),
		ClientURL:             v.GetString("client-url"),
		DefaultProvider:       strings.ToLower(v.GetString("default-provider")),
		DefaultModel:          v.GetString("default-model"),
		OpenAIKey:             v.GetString("openai-api-key"),
		OpenAIBaseURL:         v.GetString("openai-base-url"),
		OllamaHost:            v.GetString("ollama-host"),
		GameDuration:          v.GetDuration("game-duration"),
		BotMatchDelay:         v.GetDuration("bot-match-delay"),
		HumanMatchProbability: v.GetFloat64("human-match-probability"),
		BotReplyMin:           v.GetDuration("bot-reply-min"),
		BotReplyMax:           v.GetDuration("bot-reply-max"),
		BotGreetingDelay:      v.GetDuration("bot-greeting-delay"),
		CompletionTimeout:     v.GetDuration("completion-timeout"),
		LeaderboardSize:       v.GetInt("leaderboard-size"),
		ExportEnabled:         v.GetBool("export-enabled"),
		ExportFile:            v.GetString("export-file"),
		LogLevel:              v.GetString("log-level"),
		Seed:                  v.GetInt64("seed"),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DefaultProvider != "openai" && c.DefaultProvider != "ollama" {
		return fmt.Errorf("unknown provider %q", c.DefaultProvider)
	}
	if c.HumanMatchProbability < 0 || c.HumanMatchProbability > 1 {
		return fmt.Errorf("human match probability out of range: %v", c.HumanMatchProbability)
	}
	if c.BotReplyMin < 0 || c.BotReplyMax < c.BotReplyMin {
		return errors.New("bot reply delay range is invalid")
	}
	if c.GameDuration <= 0 {
		return errors.New("game duration must be positive")
	}
	if c.LeaderboardSize < 1 {
		return errors.New("leaderboard size must be at least 1")
	}
	return nil
}
