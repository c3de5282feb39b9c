package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"broski-bot/config"
	"broski-bot/internal/bot"
	"broski-bot/internal/database"
	"broski-bot/internal/events"
	"broski-bot/internal/exchange"
	"broski-bot/internal/execution"
	"broski-bot/internal/ledger"
	"broski-bot/internal/logging"
	"broski-bot/internal/market"
	"broski-bot/internal/notification"
	"broski-bot/internal/risk"
	"broski-bot/internal/strategy"
)

const defaultHistoryPath = "logs/trade_history.json"

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	genConfig := flag.Bool("generate-config", false, "write a sample config file and exit")
	flag.Parse()

	if *genConfig {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "could not write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample config written to %s\n", *configPath)
		return
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		JSONFormat: cfg.Logging.JSONFormat,
	})

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot failed")
	}
}

func run(cfg *config.Config, configPath string, logger zerolog.Logger) error {
	client := buildClient(cfg, logger)
	if err := client.TestConnection(); err != nil {
		return fmt.Errorf("exchange connection check: %w", err)
	}

	provider := market.NewProvider(client, logging.Component(logger, "market"))

	strat, err := buildStrategy(cfg)
	if err != nil {
		return err
	}

	riskMgr := risk.NewManager(cfg.RiskManagement, cfg.Trading, logging.Component(logger, "risk"))
	if cfg.Redis.Enabled {
		stateStore, err := risk.NewRedisStateStore(cfg.Redis, logging.Component(logger, "redis"))
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, risk state will not survive restarts")
		} else {
			defer stateStore.Close()
			riskMgr.SetStateStore(stateStore)
		}
	}

	store, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	book, err := ledger.New(store, logging.Component(logger, "ledger"))
	if err != nil {
		return err
	}

	gateway, err := execution.NewGateway(client, cfg.Trading.Symbol(), cfg.Trading.AutoTrade,
		logging.Component(logger, "execution"))
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	notifier := notification.NewManager(cfg.Notification, logging.Component(logger, "notification"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Stream.Enabled && !cfg.Exchange.MockMode {
		stream := exchange.NewStream(cfg.Stream.URL, cfg.Trading.Symbol(), strat.Timeframe(),
			provider, logging.Component(logger, "stream"))
		go stream.Run(ctx)
	}

	b := bot.New(cfg, configPath, bot.Deps{
		Client:   client,
		Provider: provider,
		Strategy: strat,
		Risk:     riskMgr,
		Gateway:  gateway,
		Ledger:   book,
		Notifier: notifier,
		Bus:      bus,
	}, logging.Component(logger, "bot"))

	b.Run(ctx)
	return nil
}

func buildClient(cfg *config.Config, logger zerolog.Logger) exchange.ExchangeClient {
	if cfg.Exchange.MockMode {
		logger.Info().Msg("mock mode: using simulated exchange")
		return exchange.NewMockClient(50000, 1000)
	}
	return exchange.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.BaseURL,
		logging.Component(logger, "exchange"))
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	switch cfg.Strategies.ActiveStrategy {
	case "rsi_strategy":
		return strategy.NewRSIStrategy(cfg.Strategies.RSI), nil
	case "macd_strategy":
		return strategy.NewMACDStrategy(cfg.Strategies.MACD), nil
	case "hyperfocus_strategy":
		return strategy.NewHyperFocusStrategy(cfg.Strategies.HyperFocus), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Strategies.ActiveStrategy)
}

// buildStore picks PostgreSQL when enabled, otherwise the JSON history file.
func buildStore(cfg *config.Config, logger zerolog.Logger) (ledger.Store, func(), error) {
	if !cfg.Database.Enabled {
		return ledger.NewJSONStore(defaultHistoryPath), func() {}, nil
	}

	db, err := database.NewDB(cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.RunMigrations(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return database.NewTradeRepository(db), db.Close, nil
}
