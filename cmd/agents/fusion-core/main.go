// Signal Fusion Core
// Buffers per-symbol signals and periodically fuses them into trade intents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/celikh/agentflux/internal/audit"
	"github.com/celikh/agentflux/internal/db"
	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/fusion"
	"github.com/celikh/agentflux/internal/metrics"
	"github.com/celikh/agentflux/internal/orchestrator"
)

// FusionCoreConfig holds the fusion core's configuration.
type FusionCoreConfig struct {
	NATSUrl      string  `mapstructure:"nats_url"`
	Strategy     string  `mapstructure:"strategy"`
	MinSignals   int     `mapstructure:"min_signals"`
	MinConf      float64 `mapstructure:"min_confidence"`
	TimeoutSecs  int     `mapstructure:"signal_timeout_seconds"`
	IntervalSecs int     `mapstructure:"decision_interval_seconds"`
	MetricsPort  int     `mapstructure:"metrics_port"`
}

func loadConfig() FusionCoreConfig {
	viper.SetConfigName("agents")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("CRYPTOFUNK")
	viper.AutomaticEnv()

	viper.SetDefault("fusion_core.nats_url", "nats://localhost:4222")
	viper.SetDefault("fusion_core.strategy", "hybrid")
	viper.SetDefault("fusion_core.min_signals", 2)
	viper.SetDefault("fusion_core.min_confidence", 0.60)
	viper.SetDefault("fusion_core.signal_timeout_seconds", 300)
	viper.SetDefault("fusion_core.decision_interval_seconds", 30)
	viper.SetDefault("fusion_core.metrics_port", 9109)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
	}

	var cfg FusionCoreConfig
	if err := viper.UnmarshalKey("fusion_core", &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse fusion_core configuration")
	}
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = viper.GetString("fusion_core.nats_url")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = viper.GetString("fusion_core.strategy")
	}
	if cfg.MinSignals == 0 {
		cfg.MinSignals = viper.GetInt("fusion_core.min_signals")
	}
	if cfg.MinConf == 0 {
		cfg.MinConf = viper.GetFloat64("fusion_core.min_confidence")
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = viper.GetInt("fusion_core.signal_timeout_seconds")
	}
	if cfg.IntervalSecs == 0 {
		cfg.IntervalSecs = viper.GetInt("fusion_core.decision_interval_seconds")
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = viper.GetInt("fusion_core.metrics_port")
	}
	return cfg
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Msg("Starting Signal Fusion Core")
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to database, running without decision persistence")
	}
	var recorder fusion.DecisionRecorder
	if database != nil {
		defer database.Close()
		recorder = audit.NewPipelineStore(audit.NewLogger(database.Pool(), true))
	}

	bus, err := orchestrator.NewTopicBus(cfg.NATSUrl, orchestrator.DefaultTopicBusConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to message bus")
	}
	defer bus.Close()

	fusionCfg := fusion.Config{
		Strategy:         fusion.Strategy(cfg.Strategy),
		MinSignals:       cfg.MinSignals,
		SignalTimeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		MinConfidence:    cfg.MinConf,
		DecisionInterval: time.Duration(cfg.IntervalSecs) * time.Second,
	}
	core := fusion.NewCore(fusionCfg, fusion.NewFuser(fusionCfg.Strategy), bus, recorder, log.Logger)

	metricsServer := metrics.NewServer(cfg.MetricsPort, log.Logger)
	if err := metricsServer.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start metrics server")
	}

	for _, topic := range []string{"signals.tech", "signals.fundamental", "signals.sentiment"} {
		topic := topic
		_, err := bus.Subscribe(ctx, "fusion-core", topic, 8, func(ctx context.Context, env *domain.Envelope) error {
			var sig domain.TradingSignal
			if err := env.Decode(&sig); err != nil {
				return err
			}
			core.Admit(sig)
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Str("topic", topic).Msg("Failed to subscribe to signal topic")
		}
		log.Info().Str("topic", topic).Msg("Subscribed")
	}

	go core.RunDecisionLoop(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down Signal Fusion Core")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}
}
