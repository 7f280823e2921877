package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

type Config struct {
	SPC           SPCConfig           `yaml:"spc"`
	EDP           EDPConfig           `yaml:"edp"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Zones         []ZoneConfig        `yaml:"zones"`
	Log           string              `yaml:"log" env:"SPC2MQTT_LOG"`
}

type SPCConfig struct {
	URL          string `yaml:"url" env:"SPC2MQTT_SPC_URL"`
	UserID       string `yaml:"userid" env:"SPC2MQTT_SPC_USERID"`
	Password     string `yaml:"password" env:"SPC2MQTT_SPC_PASSWORD"`
	PollInterval int    `yaml:"poll_interval" env:"SPC2MQTT_SPC_POLL_INTERVAL"`
}

type EDPConfig struct {
	// Port 0 disables the EDP listener entirely.
	Port int `yaml:"port" env:"SPC2MQTT_EDP_PORT"`
	// SystemID 0 accepts events from any system id.
	SystemID int `yaml:"system_id" env:"SPC2MQTT_EDP_SYSTEM_ID"`
}

type MQTTConfig struct {
	ClientID  string `yaml:"client_id" env:"SPC2MQTT_MQTT_CLIENT_ID"`
	Host      string `yaml:"host" env:"SPC2MQTT_MQTT_HOST"`
	Port      int    `yaml:"port" env:"SPC2MQTT_MQTT_PORT"`
	Keepalive int    `yaml:"keepalive"`
	Password  string `yaml:"password" env:"SPC2MQTT_MQTT_PASSWORD"`
	QOS       int    `yaml:"qos"`
	Retain    bool   `yaml:"retain"`
	Username  string `yaml:"username" env:"SPC2MQTT_MQTT_USERNAME"`
	Prefix    string `yaml:"prefix"`
	Clean     bool   `yaml:"clean"`
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

type ZoneConfig struct {
	Number      int    `yaml:"number"`
	Name        string `yaml:"name"`
	DeviceClass string `yaml:"device_class"`
}

func Load(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Environment variables override file values
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("error parsing environment: %v", err)
	}

	// Set default values
	if config.SPC.PollInterval == 0 {
		config.SPC.PollInterval = 30
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "spc2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 60
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "spc2mqtt"
	}
	if config.HomeAssistant.Prefix == "" {
		config.HomeAssistant.Prefix = "homeassistant"
	}
	if config.Log == "" {
		config.Log = "info"
	}

	if config.SPC.URL == "" {
		return nil, fmt.Errorf("spc.url is required")
	}

	return &config, nil
}
