package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/signal-relay-bot/cmd/common"
	"github.com/ducminhle1904/signal-relay-bot/internal/bot"
	"github.com/ducminhle1904/signal-relay-bot/internal/config"
	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/signal-relay-bot/internal/feed"
	"github.com/ducminhle1904/signal-relay-bot/internal/journal"
	"github.com/ducminhle1904/signal-relay-bot/internal/logger"
	"github.com/ducminhle1904/signal-relay-bot/internal/monitoring"
	"github.com/ducminhle1904/signal-relay-bot/internal/notifications"
	"github.com/ducminhle1904/signal-relay-bot/internal/risk"
	"github.com/ducminhle1904/signal-relay-bot/internal/safety"
)

const appName = "signal-bot"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	var (
		configFile  = fs.String("config", "", "Configuration file (e.g., signal_bot or configs/signal_bot.json)")
		envFile     = fs.String("env", ".env", "Environment file path")
		demo        = fs.Bool("demo", false, "Use the Bybit demo trading environment")
		paper       = fs.Bool("paper", false, "Paper trading - orders go to an in-memory exchange")
		headless    = fs.Bool("headless", false, "Run Chrome headless (login must already be stored in the profile)")
		debug       = fs.Bool("debug", false, "Write DEBUG lines to the log file")
		showVersion = fs.Bool("version", false, "Show version information")
	)

	usage := common.NewUsageFormatter(appName, "Trades signals posted in a Discord channel").
		AddExample(appName+" -config signal_bot -demo", "Bybit demo account, Discord feed").
		AddExample(appName+" -config replay_paper -paper", "Replay a JSON file against the paper exchange")
	fs.Usage = func() { usage.PrintUsage(os.Stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		common.PrintVersion(os.Stdout, appName)
		return 0
	}

	validator := common.NewFlagValidator().ValidateExclusive(map[string]bool{"demo": *demo, "paper": *paper})
	if *configFile != "" {
		validator.ValidateFile("config", config.ResolvePath(*configFile), true)
	}
	if err := validator.GetError(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️ %v, using process environment\n", err)
	}

	cfg, err := config.LoadBotConfig(*configFile, config.Overrides{Paper: *paper, Demo: *demo, Headless: *headless})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		return 1
	}

	fileLogger, err := logger.NewLoggerWithOptions("signal_bot", logger.Options{
		Debug:   *debug || os.Getenv("SIGNAL_BOT_DEBUG") == "true",
		Console: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create logger: %v\n", err)
		return 1
	}
	defer fileLogger.Close()
	fileLogger.Info("%s %s starting", common.ProjectName, common.GetFullVersion())

	if err := runBot(cfg, fileLogger); err != nil {
		fileLogger.LogError("Bot stopped with error", err)
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	fmt.Println("✅ Bot stopped successfully")
	return 0
}

func runBot(cfg *config.BotConfig, fileLogger *logger.Logger) error {
	executor, err := adapters.NewExecutor(cfg.Exchange, cfg.Trading.QuoteAsset, cfg.CallTimeout())
	if err != nil {
		return fmt.Errorf("failed to create exchange: %w", err)
	}
	executor.Breaker().SetStateChangeCallback(func(name string, from, to safety.CircuitBreakerState) {
		fileLogger.Warning("Circuit breaker %s: %s -> %s", name, from, to)
	})

	msgFeed, err := buildFeed(cfg, fileLogger)
	if err != nil {
		return err
	}
	defer msgFeed.Close()

	errorStats := boterrors.NewErrorStats(100)
	metrics := monitoring.NewMetrics()
	staleAfter := 3*cfg.PollInterval() + 3*cfg.CallTimeout()
	health := monitoring.NewHealthChecker(errorStats, staleAfter, 5)

	var notifier notifications.Notifier = notifications.Nop{}
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}

	opts := bot.Options{
		Feed:         msgFeed,
		Executor:     executor,
		Sizer:        risk.NewFixedRiskSizer(cfg.Risk.Amount, cfg.Risk.MaxNotional),
		ClosePolicy:  cfg.ClosePolicy(),
		Interval:     cfg.PollInterval(),
		ExchangeName: executor.GetName(),
		Logger:       fileLogger,
		Metrics:      metrics,
		Health:       health,
		Errors:       errorStats,
		Notifier:     notifier,
		Console:      os.Stdout,
	}
	journalPath := ""
	if cfg.Journal.Enabled {
		opts.Journal = journal.New(cfg.Journal.Path)
		journalPath = cfg.Journal.Path
	}

	signalBot, err := bot.New(opts)
	if err != nil {
		return err
	}

	monitoringAddr := ""
	if cfg.Monitoring.Enabled {
		monitoringAddr = cfg.Monitoring.Addr
	}
	signalBot.PrintStartupInfo(bot.StartupInfo{
		Feed:        msgFeed.Name(),
		Exchange:    executor.GetName(),
		Environment: executor.GetEnvironment(),
		RiskAmount:  cfg.Risk.Amount,
		QuoteAsset:  cfg.Trading.QuoteAsset,
		LogPath:     fileLogger.GetLogPath(),
		JournalPath: journalPath,
		Monitoring:  monitoringAddr,
	})
	if executor.GetEnvironment() == "mainnet" {
		fmt.Println("⚠️  LIVE TRADING MODE - Real money will be used!")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return signalBot.Run(gctx)
	})
	if cfg.Monitoring.Enabled {
		srv := monitoring.NewServer(monitoring.ServerConfig{
			Addr:    cfg.Monitoring.Addr,
			Metrics: metrics,
			Health:  health,
			Status:  signalBot.Machine(),
			Logf:    fileLogger.Debug,
		})
		g.Go(func() error {
			return srv.Start(gctx)
		})
		fmt.Printf("📈 Monitoring on %s (/healthz, /metrics, /status)\n", srv.Addr())
	}

	fmt.Printf("🔄 Bot is running... (activity logged to %s)\n", fileLogger.GetLogPath())
	err = g.Wait()
	fmt.Println("\n🛑 Shutdown signal received...")
	return err
}

func buildFeed(cfg *config.BotConfig, fileLogger *logger.Logger) (feed.Feed, error) {
	switch cfg.Feed.Type {
	case config.FeedReplay:
		return feed.NewReplayFeed(cfg.Feed.ReplayFile), nil
	case config.FeedDiscord:
		return feed.NewDiscordFeed(feed.DiscordConfig{
			ChannelURL:     cfg.Feed.ChannelURL,
			Email:          cfg.Feed.Email,
			Password:       cfg.Feed.Password,
			ProfileDir:     cfg.Feed.ProfileDir,
			Headless:       cfg.Feed.Headless,
			LoginTimeout:   cfg.LoginTimeout(),
			ChannelTimeout: time.Minute,
			Notify: func(format string, args ...interface{}) {
				fmt.Printf(format+"\n", args...)
				fileLogger.Info(format, args...)
			},
		})
	default:
		return nil, boterrors.NewConfigurationError("feed", "build", fmt.Sprintf("unknown feed type %q", cfg.Feed.Type))
	}
}
