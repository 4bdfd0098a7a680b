package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ezvizswitch/internal/api"
	"ezvizswitch/internal/config"
	"ezvizswitch/internal/ha"
	"ezvizswitch/internal/mirror"
	"ezvizswitch/internal/mqtt"
	"ezvizswitch/internal/poller"
	"ezvizswitch/pkg/entity"
	"ezvizswitch/pkg/plugin"

	// Platforms register themselves from init()
	_ "ezvizswitch/internal/plugins/ezviz"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg, cfgErr := config.FromEnv()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("No .env file found, using environment variables")
	}
	if cfgErr != nil {
		logger.Fatal("Invalid configuration", zap.Error(cfgErr))
	}

	logger.Info("Starting EZVIZ switch service",
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("read_only", cfg.ReadOnly),
		zap.Bool("ha_mirror", cfg.HAEnabled()),
		zap.Bool("mqtt", cfg.MQTTEnabled()))
	if cfg.ReadOnly {
		logger.Info("Running in READ-ONLY mode - commands are logged, not sent")
	}

	loader := config.NewLoader(cfg.ConfigDir, logger)
	if err := loader.LoadPlugsConfig(); err != nil {
		logger.Fatal("Failed to load plugs config", zap.Error(err))
	}

	registry := entity.NewRegistry()
	pctx := plugin.NewContext(logger, registry, cfg, loader.GetPlugsConfig())

	for _, info := range plugin.List() {
		logger.Info("Plugin registered",
			zap.String("plugin", info.Name),
			zap.Int("priority", info.Priority),
			zap.Int("order", info.Order),
			zap.String("description", info.Description))
	}

	plugins, err := plugin.CreateAll(pctx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started, err := plugin.StartAll(ctx, plugins, logger)
	if err != nil {
		logger.Warn("Some plugins failed to start", zap.Error(err))
	}
	defer plugin.StopAll(started)

	logger.Info("Entities registered", zap.Strings("ids", registry.IDs()))

	p := poller.NewPoller(registry, cfg.PollInterval, logger)

	if cfg.HAEnabled() {
		haClient := ha.NewClient(cfg.HAURL, cfg.HAToken, logger)
		if err := haClient.Connect(); err != nil {
			logger.Error("Failed to connect to Home Assistant, mirror disabled", zap.Error(err))
		} else {
			defer haClient.Disconnect()

			m := mirror.New(haClient, registry, logger)
			defer m.Close()
			p.AddSink(m)
		}
	}

	if cfg.MQTTEnabled() {
		mqttClient, err := mqtt.Connect(mqtt.BrokerConfig{
			Broker:   cfg.MQTTBroker,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Error("MQTT discovery disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect(250)

			discovery := mqtt.NewDiscovery(mqttClient, registry, cfg.MQTTDiscoveryPrefix, logger)
			defer discovery.Close()
			p.AddSink(discovery)
		}
	}

	p.Start()
	defer p.Stop()

	if cfg.APIPort > 0 {
		server := api.NewServer(registry, logger, cfg.APIPort)
		server.SetPollStatus(p)
		if err := server.Start(); err != nil {
			logger.Error("Failed to start API server", zap.Error(err))
		} else {
			defer server.Stop()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg != nil && cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
