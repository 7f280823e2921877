package homeassistant

import (
	"fmt"

	"github.com/daemonp/spc2mqtt/internal/config"
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/mqtt"
	"github.com/daemonp/spc2mqtt/internal/panel"
	"github.com/daemonp/spc2mqtt/internal/types"
)

type HomeAssistant struct {
	config      *config.HomeAssistantConfig
	zoneClasses map[int]string
	mqtt        mqtt.MQTTClient
	panel       *panel.Panel
	log         *log.Logger
}

func New(cfg *config.HomeAssistantConfig, zones []config.ZoneConfig, mqttClient mqtt.MQTTClient, p *panel.Panel, logger *log.Logger) *HomeAssistant {
	zoneClasses := make(map[int]string, len(zones))
	for _, z := range zones {
		if z.DeviceClass != "" {
			zoneClasses[z.Number] = z.DeviceClass
		}
	}
	return &HomeAssistant{
		config:      cfg,
		zoneClasses: zoneClasses,
		mqtt:        mqttClient,
		panel:       p,
		log:         logger,
	}
}

func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishDiscoveryConfig()
}

func (ha *HomeAssistant) publishDiscoveryConfig() {
	ha.publishAlarmConfig()

	snapshot := ha.panel.Snapshot()
	if snapshot == nil {
		return
	}
	for _, zone := range snapshot.Zones {
		ha.publishZoneConfig(zone)
	}
}

func (ha *HomeAssistant) deviceInfo() map[string]interface{} {
	device := ha.panel.Device()
	name := device.Site
	if name == "" {
		name = fmt.Sprintf("SPC %s", device.Model)
	}
	return map[string]interface{}{
		"identifiers":   []string{fmt.Sprintf("spc_%s", device.SerialNumber)},
		"name":          name,
		"manufacturer":  "Vanderbilt",
		"model":         device.Model,
		"serial_number": device.SerialNumber,
	}
}

// publishAlarmConfig announces a single alarm entity covering all
// areas, matching how the panel's web interface arms the system.
func (ha *HomeAssistant) publishAlarmConfig() {
	config := map[string]interface{}{
		"name":              "All Areas",
		"unique_id":         fmt.Sprintf("%s_all_areas", ha.mqtt.GetPrefix()),
		"state_topic":       ha.mqtt.Topics().Panel(),
		"command_topic":     ha.mqtt.Topics().PanelCommand(),
		"payload_disarm":    "disarm",
		"payload_arm_home":  "part_arm",
		"payload_arm_away":  "full_arm",
		"value_template":    "{{ {'unset': 'disarmed', 'partset': 'armed_home', 'fullset': 'armed_away'}.get(value_json.status) }}",
		"code_arm_required": false,
		"device":            ha.deviceInfo(),
	}

	ha.publishConfig("alarm_control_panel", "all_areas", config)
}

func (ha *HomeAssistant) publishZoneConfig(zone types.Zone) {
	config := map[string]interface{}{
		"name":           zone.Name,
		"unique_id":      fmt.Sprintf("%s_zone_%d", ha.mqtt.GetPrefix(), zone.Number),
		"state_topic":    ha.mqtt.Topics().Zone(zone),
		"device_class":   ha.deviceClass(zone),
		"value_template": "{{ value_json.input }}",
		"payload_on":     "open",
		"payload_off":    "closed",
		"device":         ha.deviceInfo(),
	}

	ha.publishConfig("binary_sensor", fmt.Sprintf("zone_%d", zone.Number), config)
}

func (ha *HomeAssistant) publishConfig(component, objectID string, config map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", ha.config.Prefix, component, ha.mqtt.GetPrefix(), objectID)
	ha.mqtt.Publish(topic, config, true)
}
