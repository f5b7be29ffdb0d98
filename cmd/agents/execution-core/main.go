// Execution Core
// Submits risk-approved orders to the exchange, reconciles fills into the
// position ledger, and publishes execution reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/celikh/agentflux/internal/audit"
	"github.com/celikh/agentflux/internal/config"
	"github.com/celikh/agentflux/internal/db"
	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/exchange"
	"github.com/celikh/agentflux/internal/execution"
	"github.com/celikh/agentflux/internal/market"
	"github.com/celikh/agentflux/internal/metrics"
	"github.com/celikh/agentflux/internal/orchestrator"
)

// ExecutionCoreConfig holds the execution core's configuration.
type ExecutionCoreConfig struct {
	NATSUrl          string  `mapstructure:"nats_url"`
	RedisURL         string  `mapstructure:"redis_url"`
	CoinGeckoAPIKey  string  `mapstructure:"coingecko_api_key"`
	PriceCacheTTLSec int     `mapstructure:"price_cache_ttl_seconds"`
	ExchangeFeeRate  float64 `mapstructure:"exchange_fee_rate"`
	MonitorSecs      int     `mapstructure:"monitor_interval_seconds"`
	MetricsPort      int     `mapstructure:"metrics_port"`
}

func loadConfig() ExecutionCoreConfig {
	viper.SetConfigName("agents")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("CRYPTOFUNK")
	viper.AutomaticEnv()

	viper.SetDefault("execution_core.nats_url", "nats://localhost:4222")
	viper.SetDefault("execution_core.redis_url", "localhost:6379")
	viper.SetDefault("execution_core.price_cache_ttl_seconds", 10)
	viper.SetDefault("execution_core.exchange_fee_rate", 0.001)
	viper.SetDefault("execution_core.monitor_interval_seconds", 10)
	viper.SetDefault("execution_core.metrics_port", 9111)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
	}

	var cfg ExecutionCoreConfig
	if err := viper.UnmarshalKey("execution_core", &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse execution_core configuration")
	}
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = viper.GetString("execution_core.nats_url")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = viper.GetString("execution_core.redis_url")
	}
	if cfg.PriceCacheTTLSec == 0 {
		cfg.PriceCacheTTLSec = viper.GetInt("execution_core.price_cache_ttl_seconds")
	}
	if cfg.ExchangeFeeRate == 0 {
		cfg.ExchangeFeeRate = viper.GetFloat64("execution_core.exchange_fee_rate")
	}
	if cfg.MonitorSecs == 0 {
		cfg.MonitorSecs = viper.GetInt("execution_core.monitor_interval_seconds")
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = viper.GetInt("execution_core.metrics_port")
	}
	return cfg
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Msg("Starting Execution Core")
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	coingecko, err := market.NewCoinGeckoClient(cfg.CoinGeckoAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create CoinGecko client")
	}
	cachedPrices := market.NewCachedCoinGeckoClient(coingecko, redisClient, time.Duration(cfg.PriceCacheTTLSec)*time.Second)

	mockExchange := exchange.NewMockExchangeWithFees(database, config.FeeConfig{Maker: cfg.ExchangeFeeRate, Taker: cfg.ExchangeFeeRate})
	gateway := execution.NewExchangeGateway(mockExchange, cachedPrices)
	store := audit.NewPipelineStore(audit.NewLogger(database.Pool(), true))

	bus, err := orchestrator.NewTopicBus(cfg.NATSUrl, orchestrator.DefaultTopicBusConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to message bus")
	}
	defer bus.Close()

	execCfg := execution.DefaultConfig()
	execCfg.ExchangeFeeRate = cfg.ExchangeFeeRate
	execCfg.MonitorInterval = time.Duration(cfg.MonitorSecs) * time.Second

	core := execution.NewCore(execCfg, gateway, bus, store, log.Logger)

	metricsServer := metrics.NewServer(cfg.MetricsPort, log.Logger)
	if err := metricsServer.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start metrics server")
	}

	_, err = bus.Subscribe(ctx, "execution-core", "trade.order", 1, func(ctx context.Context, env *domain.Envelope) error {
		var order domain.Order
		if err := env.Decode(&order); err != nil {
			return err
		}
		return core.HandleOrder(ctx, &order)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to trade.order")
	}
	log.Info().Msg("Subscribed to trade.order")

	go core.RunMonitorLoop(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down Execution Core")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}
}
