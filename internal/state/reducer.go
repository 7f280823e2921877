// Package state merges decoded EDP events into the poll-derived panel
// snapshot.
package state

import (
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/types"
)

// armClasses maps arm-status class codes to the resulting arm state.
var armClasses = map[string]types.ArmState{
	"CG": types.ArmStateFullset,
	"OG": types.ArmStateUnset,
	"NL": types.ArmStatePartset,
}

// zonePatch is a partial zone update. A zero Input leaves the zone's
// input untouched; Status is always overwritten.
type zonePatch struct {
	input  types.ZoneInput
	status types.ZoneStatus
}

// zoneClasses maps zone-status class codes to the fields they set.
var zoneClasses = map[string]zonePatch{
	"ZO": {input: types.ZoneInputOpen, status: types.ZoneStatusActuated},
	"ZC": {input: types.ZoneInputClosed, status: types.ZoneStatusNormal},
	"ZD": {status: types.ZoneStatusTamper},
	"BA": {status: types.ZoneStatusActuated},
	"FA": {status: types.ZoneStatusActuated},
	"BR": {status: types.ZoneStatusNormal},
	"FR": {status: types.ZoneStatusNormal},
}

type Reducer struct {
	log *log.Logger
}

func NewReducer(logger *log.Logger) *Reducer {
	return &Reducer{log: logger}
}

// Apply merges an event into the snapshot. The given snapshot is never
// mutated: on a match Apply returns a fresh snapshot and true,
// otherwise the original snapshot and false. The same (snapshot, event)
// pair always yields the same result.
func (r *Reducer) Apply(snap *types.Snapshot, event types.Event) (*types.Snapshot, bool) {
	if snap == nil {
		// No poll has completed yet; nothing to merge into.
		return nil, false
	}

	if armState, ok := armClasses[event.Class]; ok {
		next := snap.Clone()
		next.ArmState = armState
		return next, true
	}

	patch, ok := zoneClasses[event.Class]
	if !ok {
		r.log.Debug("Unhandled event class %s for device %d", event.Class, event.DeviceID)
		return snap, false
	}

	zone, ok := snap.Zones[event.DeviceID]
	if !ok {
		// The poll has not discovered this zone yet.
		r.log.Debug("Event class %s for unknown zone %d", event.Class, event.DeviceID)
		return snap, false
	}

	if patch.input != types.ZoneInputUnknown {
		zone.Input = patch.input
	}
	zone.Status = patch.status

	next := snap.Clone()
	next.Zones[event.DeviceID] = zone
	return next, true
}
