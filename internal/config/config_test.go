package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// chdir changes into dir for the duration of the test (t.Chdir needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	chdir(t, t.TempDir()) // keep a developer's .env out of the test
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	BindFlags(fs, v)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	c, err := load(t)
	if err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	d := Defaults()
	if c.Port != d.Port || c.GameDuration != d.GameDuration || c.DefaultModel != d.DefaultModel {
		t.Fatalf("expected defaults, got %+v", c)
	}
	if c.HumanMatchProbability != 0.5 || c.LeaderboardSize != 100 {
		t.Fatalf("unexpected matchmaking defaults: %+v", c)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DEFAULT_PROVIDER", "Ollama")
	t.Setenv("GAME_DURATION", "90s")
	t.Setenv("EXPORT_ENABLED", "true")

	c, err := load(t)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 4000 || c.OpenAIKey != "sk-env" || c.DefaultProvider != "ollama" {
		t.Fatalf("env values not applied: %+v", c)
	}
	if c.GameDuration != 90*time.Second || !c.ExportEnabled {
		t.Fatalf("env values not applied: %+v", c)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	c, err := load(t, "--port", "5000", "--bot-match-delay", "100ms")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 5000 || c.BotMatchDelay != 100*time.Millisecond {
		t.Fatalf("flags should win: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"provider", func(c *Config) { c.DefaultProvider = "gemini" }},
		{"probability", func(c *Config) { c.HumanMatchProbability = 1.5 }},
		{"reply range", func(c *Config) { c.BotReplyMin, c.BotReplyMax = 3*time.Second, time.Second }},
		{"duration", func(c *Config) { c.GameDuration = 0 }},
		{"leaderboard", func(c *Config) { c.LeaderboardSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
