package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/amiabot/internal/ai"
	"github.com/kiliankoe/amiabot/internal/ai/ollama"
	"github.com/kiliankoe/amiabot/internal/ai/openai"
	"github.com/kiliankoe/amiabot/internal/api"
	"github.com/kiliankoe/amiabot/internal/bot"
	"github.com/kiliankoe/amiabot/internal/config"
	"github.com/kiliankoe/amiabot/internal/game"
	"github.com/kiliankoe/amiabot/internal/identity"
	"github.com/kiliankoe/amiabot/internal/leaderboard"
	"github.com/kiliankoe/amiabot/internal/match"
	"github.com/kiliankoe/amiabot/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "amiabot",
		Short:         "Real-time chat game: talk for three minutes, then guess whether it was a human or a bot.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	config.BindFlags(cmd.Flags(), v)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("AmIaBot {{.Version}}\n")
	return cmd
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func newProvider(cfg config.Config) ai.Provider {
	if cfg.DefaultProvider == "ollama" {
		return ollama.New(cfg.OllamaHost)
	}
	return openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL)
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})
	return r
}

func serve(ctx context.Context, cfg config.Config) error {
	setupLogging(cfg.LogLevel)

	rnd := game.NewRand(cfg.Seed)
	provider := newProvider(cfg)
	if !provider.Configured() {
		log.Warn().Str("provider", cfg.DefaultProvider).Msg("completion service not configured, bots will use canned replies")
	}

	users := identity.NewRegistry(rnd)
	board := leaderboard.New(users, cfg.LeaderboardSize)
	opts := ws.Options{
		GameDuration: cfg.GameDuration,
		Match: match.Config{
			HumanProbability: cfg.HumanMatchProbability,
			BotDelay:         cfg.BotMatchDelay,
		},
		Responder: bot.Options{
			Generator: &bot.Generator{
				Provider: provider,
				Model:    cfg.DefaultModel,
				Timeout:  cfg.CompletionTimeout,
				Rand:     rnd,
			},
			Rand:          rnd,
			ReplyMin:      cfg.BotReplyMin,
			ReplyMax:      cfg.BotReplyMax,
			GreetingDelay: cfg.BotGreetingDelay,
		},
	}
	if cfg.ExportEnabled {
		opts.ExportFile = cfg.ExportFile
	}
	hub := ws.NewHub(users, game.NewManager(), board, rnd, opts)
	defer hub.Shutdown()

	r := newEngine()
	sock := ws.New(hub, cfg.ClientURL)
	io := sock.Mount(r)
	defer io.Close()
	sock.MountWebSocket(r)

	h := &api.Handlers{
		Stats:    hub,
		Board:    board,
		Provider: provider,
		Model:    cfg.DefaultModel,
		Timeout:  cfg.CompletionTimeout,
	}
	h.Register(r)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           r,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.DefaultProvider).Str("model", cfg.DefaultModel).Msg("AmIaBot server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if ok {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
