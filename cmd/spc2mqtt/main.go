package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daemonp/spc2mqtt/internal/config"
	"github.com/daemonp/spc2mqtt/internal/homeassistant"
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/mqtt"
	"github.com/daemonp/spc2mqtt/internal/panel"
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Create panel
	p := panel.New(cfg, logger)

	// Create MQTT client
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, p, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Login, seed the snapshot and start the poll loop and EDP listener
	if err := p.Start(); err != nil {
		logger.Error("Failed to start panel operations: %v", err)
		os.Exit(1)
	}

	// Connect to MQTT broker
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		p.Stop()
		os.Exit(1)
	}

	// Initialize Home Assistant discovery if enabled
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(&cfg.HomeAssistant, cfg.Zones, mqttClient, p, logger)
		ha.Start()
	}

	// Wait for termination signal
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	mqttClient.Close()
	p.Stop()
}
