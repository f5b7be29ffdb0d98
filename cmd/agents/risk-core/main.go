// Risk Core
// Resolves price and market context, places stops, sizes positions, and
// validates every trade intent before it becomes an exchange-bound order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/celikh/agentflux/internal/audit"
	"github.com/celikh/agentflux/internal/db"
	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/metrics"
	"github.com/celikh/agentflux/internal/orchestrator"
	"github.com/celikh/agentflux/internal/risk"
)

// RiskCoreConfig holds the risk core's configuration.
type RiskCoreConfig struct {
	NATSUrl         string  `mapstructure:"nats_url"`
	SessionID       string  `mapstructure:"session_id"`
	InitialCapital  float64 `mapstructure:"initial_capital"`
	PriceInterval   string  `mapstructure:"price_interval"`
	ContextInterval string  `mapstructure:"context_interval"`
	ContextDays     int     `mapstructure:"context_days"`
	MetricsPort     int     `mapstructure:"metrics_port"`
}

func loadConfig() RiskCoreConfig {
	viper.SetConfigName("agents")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("CRYPTOFUNK")
	viper.AutomaticEnv()

	viper.SetDefault("risk_core.nats_url", "nats://localhost:4222")
	viper.SetDefault("risk_core.initial_capital", 10000.0)
	viper.SetDefault("risk_core.price_interval", "1m")
	viper.SetDefault("risk_core.context_interval", "1h")
	viper.SetDefault("risk_core.context_days", 14)
	viper.SetDefault("risk_core.metrics_port", 9110)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
	}

	var cfg RiskCoreConfig
	if err := viper.UnmarshalKey("risk_core", &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse risk_core configuration")
	}
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = viper.GetString("risk_core.nats_url")
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = viper.GetFloat64("risk_core.initial_capital")
	}
	if cfg.PriceInterval == "" {
		cfg.PriceInterval = viper.GetString("risk_core.price_interval")
	}
	if cfg.ContextInterval == "" {
		cfg.ContextInterval = viper.GetString("risk_core.context_interval")
	}
	if cfg.ContextDays == 0 {
		cfg.ContextDays = viper.GetInt("risk_core.context_days")
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = viper.GetInt("risk_core.metrics_port")
	}
	return cfg
}

// resolveSession returns the configured session, creating a fresh paper
// session if none was given.
func resolveSession(ctx context.Context, database *db.DB, cfg RiskCoreConfig) (uuid.UUID, error) {
	if cfg.SessionID != "" {
		if id, err := uuid.Parse(cfg.SessionID); err == nil {
			return id, nil
		}
	}
	session := &db.TradingSession{
		ID:             uuid.New(),
		Mode:           db.TradingModePaper,
		Exchange:       "mock",
		StartedAt:      time.Now(),
		InitialCapital: cfg.InitialCapital,
	}
	if err := database.CreateSession(ctx, session); err != nil {
		return uuid.Nil, err
	}
	return session.ID, nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Msg("Starting Risk Core")
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	sessionID, err := resolveSession(ctx, database, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve trading session")
	}
	log.Info().Str("session_id", sessionID.String()).Msg("Trading session resolved")

	calculator := risk.NewCalculatorWithPool(database.Pool())
	prices := risk.NewCalculatorPriceSource(calculator, cfg.PriceInterval, "1h")
	marketCtx := risk.NewCalculatorMarketContextSource(calculator, cfg.ContextInterval, cfg.ContextDays)
	account := db.NewAccountSource(database, sessionID, cfg.InitialCapital)
	store := audit.NewPipelineStore(audit.NewLogger(database.Pool(), true))

	bus, err := orchestrator.NewTopicBus(cfg.NATSUrl, orchestrator.DefaultTopicBusConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to message bus")
	}
	defer bus.Close()

	core := risk.NewCore(risk.DefaultConfig(), prices, marketCtx, account, bus, store, log.Logger)

	metricsServer := metrics.NewServer(cfg.MetricsPort, log.Logger)
	if err := metricsServer.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start metrics server")
	}

	_, err = bus.Subscribe(ctx, "risk-core", "trade.intent", 1, func(ctx context.Context, env *domain.Envelope) error {
		var intent domain.TradeIntent
		if err := env.Decode(&intent); err != nil {
			return err
		}
		return core.HandleIntent(ctx, &intent)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to trade.intent")
	}
	log.Info().Msg("Subscribed to trade.intent")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down Risk Core")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}
}
