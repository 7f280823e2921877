package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/daemonp/spc2mqtt/internal/config"
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/panel"
	"github.com/daemonp/spc2mqtt/internal/types"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"
)

type MQTT struct {
	config *config.MQTTConfig
	panel  *panel.Panel
	log    *log.Logger
	topics *Topics

	// client is nil until Connect; the panel's callbacks can fire
	// before then, so every publish goes through the guard in
	// publishRaw.
	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTT(cfg *config.MQTTConfig, p *panel.Panel, logger *log.Logger) *MQTT {
	m := &MQTT{
		config: cfg,
		panel:  p,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
	}

	p.OnArmState(m.PublishArmState)
	p.OnZone(m.PublishZoneStatus)
	p.OnEvent(m.PublishEvent)

	return m
}

func (m *MQTT) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.config.Host, m.config.Port))
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), m.config.Retain)

	client := mqtt.NewClient(opts)
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publishOnlineStatus()
	m.subscribeTopics()
	m.publishPanelInfo()
	m.publishCurrentState()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

func (m *MQTT) subscribeTopics() {
	topic := m.topics.PanelCommand()
	token := m.client.Subscribe(topic, byte(m.config.QOS), m.handleMessage)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Subscribed to topic: %s", topic)
	}
}

func (m *MQTT) handleMessage(client mqtt.Client, msg mqtt.Message) {
	command := string(msg.Payload())
	m.log.Debug("Received command on topic %s: %s", msg.Topic(), command)

	var err error
	switch command {
	case "full_arm":
		err = m.panel.Arm(types.ArmStateFullset)
	case "part_arm":
		err = m.panel.Arm(types.ArmStatePartset)
	case "disarm":
		err = m.panel.Disarm()
	default:
		m.log.Warning("Unknown panel command: %s", command)
		return
	}
	if err != nil {
		m.log.Error("Panel command %s failed: %v", command, err)
	}
}

func (m *MQTT) publishOnlineStatus() {
	m.publishRaw(m.topics.Status(), onlinePayload, true)
}

func (m *MQTT) publishPanelInfo() {
	device := m.panel.Device()
	info := map[string]interface{}{
		"model":         device.Model,
		"serial_number": device.SerialNumber,
		"site":          device.Site,
	}
	m.publish(m.topics.Config(), info, true)
}

func (m *MQTT) publishCurrentState() {
	snapshot := m.panel.Snapshot()
	if snapshot == nil {
		return
	}
	m.PublishArmState(snapshot.ArmState)
	for _, zone := range snapshot.Zones {
		m.PublishZoneStatus(zone)
	}
}

func (m *MQTT) PublishArmState(armState types.ArmState) {
	status := map[string]interface{}{
		"status": armState.String(),
	}
	m.publish(m.topics.Panel(), status, true)
}

func (m *MQTT) PublishZoneStatus(zone types.Zone) {
	status := map[string]interface{}{
		"name":   zone.Name,
		"number": zone.Number,
		"area":   zone.Area,
		"input":  zone.Input.String(),
		"status": zone.Status.String(),
	}
	m.publish(m.topics.Zone(zone), status, true)
}

func (m *MQTT) PublishEvent(event types.Event) {
	m.publish(m.topics.Event(), event, false)
}

func (m *MQTT) Publish(topic string, payload interface{}, retain bool) {
	m.publish(topic, payload, retain)
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) {
	payload, err := json.Marshal(message)
	if err != nil {
		m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
		return
	}
	m.publishRaw(topic, string(payload), retain)
}

func (m *MQTT) publishRaw(topic, payload string, retain bool) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		m.log.Debug("MQTT not connected yet, dropping message for topic: %s", topic)
		return
	}
	token := client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client != nil && client.IsConnected() {
		m.publishRaw(m.topics.Status(), offlinePayload, true)
		client.Disconnect(250)
	}
}
