package types

import (
	"fmt"
	"time"
)

// Device holds the panel identification reported by the web interface.
type Device struct {
	Model        string
	SerialNumber string
	Site         string
}

// Event is a single decoded EDP notification from the panel.
type Event struct {
	SystemID   int
	Timestamp  time.Time
	Class      string
	DeviceID   int
	DeviceName string
	AreaID     *int
	AreaName   string

	// FallbackTime is set when the timestamp field could not be parsed
	// and Timestamp holds the arrival time instead.
	FallbackTime bool
}

// Zone represents a monitored input point in the SPC system.
type Zone struct {
	Number int
	Name   string
	AreaID int
	Area   string
	Input  ZoneInput
	Status ZoneStatus
}

// Snapshot is the cached panel state: replaced wholesale on each poll
// and patched incrementally by EDP events. It is treated as immutable;
// Clone produces the copy a patch is applied to.
type Snapshot struct {
	ArmState ArmState
	Zones    map[int]Zone
}

// Clone returns a copy of the snapshot with its own zone map.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	zones := make(map[int]Zone, len(s.Zones))
	for number, zone := range s.Zones {
		zones[number] = zone
	}
	return &Snapshot{
		ArmState: s.ArmState,
		Zones:    zones,
	}
}

// ArmState represents the arm status of the panel.
type ArmState int

const (
	ArmStateUnknown ArmState = iota
	ArmStateUnset
	ArmStateFullset
	ArmStatePartset
)

func (a ArmState) String() string {
	switch a {
	case ArmStateUnset:
		return "unset"
	case ArmStateFullset:
		return "fullset"
	case ArmStatePartset:
		return "partset"
	case ArmStateUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Unknown ArmState(%d)", a)
	}
}

// ZoneInput represents the physical input state of a zone.
type ZoneInput int

const (
	ZoneInputUnknown ZoneInput = iota
	ZoneInputClosed
	ZoneInputOpen
)

func (z ZoneInput) String() string {
	switch z {
	case ZoneInputClosed:
		return "closed"
	case ZoneInputOpen:
		return "open"
	case ZoneInputUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Unknown ZoneInput(%d)", z)
	}
}

// ZoneStatus represents the alarm status of a zone.
type ZoneStatus int

const (
	ZoneStatusUnknown ZoneStatus = iota
	ZoneStatusNormal
	ZoneStatusActuated
	ZoneStatusTamper
)

func (z ZoneStatus) String() string {
	switch z {
	case ZoneStatusNormal:
		return "normal"
	case ZoneStatusActuated:
		return "actuated"
	case ZoneStatusTamper:
		return "tamper"
	case ZoneStatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Unknown ZoneStatus(%d)", z)
	}
}
