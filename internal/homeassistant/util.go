package homeassistant

import (
	"strings"

	"github.com/daemonp/spc2mqtt/internal/types"
)

func (ha *HomeAssistant) deviceClass(zone types.Zone) string {
	// Per-zone override from the config file wins
	if class, ok := ha.zoneClasses[zone.Number]; ok {
		return class
	}

	// Try to guess the device class based on the zone name
	name := strings.ToLower(zone.Name)
	if strings.Contains(name, "pir") || strings.Contains(name, "motion") {
		return "motion"
	}
	if strings.Contains(name, "door") {
		return "door"
	}
	if strings.Contains(name, "window") {
		return "window"
	}
	if strings.Contains(name, "smoke") || strings.Contains(name, "fire") {
		return "smoke"
	}
	if strings.Contains(name, "gas") {
		return "gas"
	}
	if strings.Contains(name, "water") {
		return "moisture"
	}

	return "opening"
}
