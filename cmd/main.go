package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/duelist/internal/adapters/discord"
	"github.com/okian/duelist/internal/adapters/http/api"
	"github.com/okian/duelist/internal/adapters/http/swagger"
	app "github.com/okian/duelist/internal/app"
	"github.com/okian/duelist/internal/config"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	maxHistoryLimit           = 1000
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "duelist exited", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{app.WithConfig(cfg), app.WithLogger(log.Named("service"))}

	var (
		dg   *discordgo.Session
		dcfg discord.Config
	)
	if cfg.DiscordToken != "" {
		dg, err = openDiscord(cfg.DiscordToken)
		if err != nil {
			return err
		}
		defer func() { _ = dg.Close() }()

		dcfg = discordConfig(cfg, botUserID(dg))
		platform := discord.NewPlatform(dg, dcfg)
		opts = append(opts, app.WithPlatform(platform, platform, platform))
	} else {
		log.Info(ctx, "discord token not set, running without the bot")
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Stop(context.Background()); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	if dg != nil {
		handler := discord.NewHandler(dg, dcfg, svc)
		dg.AddHandler(handler.HandleInteraction)
		if err := discord.RegisterCommands(ctx, dg, dcfg); err != nil {
			return err
		}
		log.Info(ctx, "discord bot ready", logger.String("guild", dcfg.GuildID))
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg.Addr, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newHTTPServer(addr string, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, maxHistoryLimit).Register(mux)
	swagger.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func openDiscord(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return dg, nil
}

func botUserID(dg *discordgo.Session) string {
	if dg.State == nil || dg.State.User == nil {
		return ""
	}
	return dg.State.User.ID
}

// discordConfig maps service configuration onto the adapter's. A bot's
// application ID equals its user ID unless configured otherwise.
func discordConfig(cfg *config.Config, botID string) discord.Config {
	appID := cfg.DiscordAppID
	if appID == "" {
		appID = botID
	}
	return discord.Config{
		AppID:              appID,
		GuildID:            cfg.DiscordGuildID,
		BotUserID:          botID,
		ChallengeChannelID: cfg.DiscordChallengeChannelID,
		DuelsCategoryID:    cfg.DiscordDuelsCategoryID,
		StaffRoleIDs:       cfg.DiscordStaffRoleIDs,
		RankRoleIDs:        cfg.DiscordRankRoleIDs,
		RefusalPenalty:     cfg.RefusalPenalty,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges; GetStats updates them.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
