package panel

import (
	"testing"

	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/state"
	"github.com/daemonp/spc2mqtt/internal/types"
)

func testPanel() *Panel {
	logger := log.NewLogger("error")
	return &Panel{
		log:     logger,
		reducer: state.NewReducer(logger),
		snapshot: &types.Snapshot{
			ArmState: types.ArmStateUnset,
			Zones: map[int]types.Zone{
				12: {Number: 12, Name: "Front Door", Input: types.ZoneInputClosed, Status: types.ZoneStatusNormal},
			},
		},
	}
}

func TestHandleEventPatchesSnapshot(t *testing.T) {
	p := testPanel()

	var notified []types.Zone
	p.OnZone(func(zone types.Zone) { notified = append(notified, zone) })

	p.handleEvent(types.Event{Class: "ZO", DeviceID: 12})

	zone := p.Snapshot().Zones[12]
	if zone.Input != types.ZoneInputOpen || zone.Status != types.ZoneStatusActuated {
		t.Fatalf("snapshot not patched: %+v", zone)
	}
	if len(notified) != 1 || notified[0].Number != 12 {
		t.Fatalf("zone callback: %+v", notified)
	}
}

func TestHandleEventUnknownZoneKeepsSnapshot(t *testing.T) {
	p := testPanel()
	before := p.Snapshot()

	fired := false
	p.OnZone(func(types.Zone) { fired = true })

	p.handleEvent(types.Event{Class: "ZO", DeviceID: 99})

	if p.Snapshot() != before {
		t.Fatalf("snapshot replaced on a no-op")
	}
	if fired {
		t.Fatalf("callback fired on a no-op")
	}
}

func TestHandleEventArmStateCallback(t *testing.T) {
	p := testPanel()

	var got types.ArmState
	p.OnArmState(func(armState types.ArmState) { got = armState })

	p.handleEvent(types.Event{Class: "CG"})

	if got != types.ArmStateFullset {
		t.Fatalf("arm callback: %v", got)
	}
	if p.Snapshot().ArmState != types.ArmStateFullset {
		t.Fatalf("snapshot arm state: %v", p.Snapshot().ArmState)
	}
}

func TestNotifyChangesOnPollReplacement(t *testing.T) {
	p := testPanel()

	var notified []int
	p.OnZone(func(zone types.Zone) { notified = append(notified, zone.Number) })

	next := p.Snapshot().Clone()
	zone := next.Zones[12]
	zone.Status = types.ZoneStatusTamper
	next.Zones[12] = zone

	previous := p.Snapshot()
	p.mu.Lock()
	p.snapshot = next
	p.mu.Unlock()
	p.notifyChanges(previous, next)

	if len(notified) != 1 || notified[0] != 12 {
		t.Fatalf("changed zone not notified: %v", notified)
	}
}
