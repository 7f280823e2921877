package panel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daemonp/spc2mqtt/internal/config"
	"github.com/daemonp/spc2mqtt/internal/edp"
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/spc"
	"github.com/daemonp/spc2mqtt/internal/state"
	"github.com/daemonp/spc2mqtt/internal/types"
)

// Panel ties the slow HTTP poll and the EDP push feed together. It is
// the single owner of the snapshot: the poll replaces it wholesale,
// accepted EDP events patch it through the reducer, and both paths are
// serialized on the panel's mutex.
type Panel struct {
	config   *config.Config
	log      *log.Logger
	spc      *spc.Session
	reducer  *state.Reducer
	listener *edp.Listener

	mu       sync.Mutex
	snapshot *types.Snapshot

	onArmState func(types.ArmState)
	onZone     func(types.Zone)
	onEvent    func(types.Event)

	pollNow chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	stopMu  sync.Mutex
	stopped bool
}

func New(cfg *config.Config, logger *log.Logger) *Panel {
	return &Panel{
		config:  cfg,
		log:     logger,
		spc:     spc.NewSession(cfg.SPC.URL, cfg.SPC.UserID, cfg.SPC.Password, logger),
		reducer: state.NewReducer(logger),
		pollNow: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// OnArmState registers a callback fired when the arm state changes.
// Register before Start.
func (p *Panel) OnArmState(fn func(types.ArmState)) {
	p.onArmState = fn
}

// OnZone registers a callback fired when a zone record changes.
// Register before Start. Notifications from the poll path and the EDP
// path run on different goroutines, so their relative ordering is not
// guaranteed.
func (p *Panel) OnZone(fn func(types.Zone)) {
	p.onZone = fn
}

// OnEvent registers a callback fired once per accepted EDP event, in
// arrival order, whether or not it changed the snapshot. Register
// before Start.
func (p *Panel) OnEvent(fn func(types.Event)) {
	p.onEvent = fn
}

// Start logs in to the panel, seeds the snapshot with a first poll,
// then runs the poll loop and, when configured, the EDP listener.
func (p *Panel) Start() error {
	p.log.Info("Connecting to panel at %s...", p.config.SPC.URL)
	if err := p.spc.Login(context.Background()); err != nil {
		return fmt.Errorf("failed to log in to panel: %v", err)
	}

	p.log.Debug("Running initial poll")
	if err := p.poll(); err != nil {
		return fmt.Errorf("initial poll failed: %v", err)
	}

	p.wg.Add(1)
	go p.pollLoop()

	if p.config.EDP.Port != 0 {
		p.listener = edp.NewListener(p.config.EDP.Port, p.config.EDP.SystemID, p.log)
		if err := p.listener.Start(); err != nil {
			p.Stop()
			return fmt.Errorf("failed to start EDP listener: %v", err)
		}
		p.wg.Add(1)
		go p.eventLoop()
	} else {
		p.log.Info("EDP port not configured, running poll-only")
	}

	p.log.Info("Panel operations started")
	return nil
}

// Stop shuts down the listener and the poll loop and waits for both to
// exit. It is idempotent.
func (p *Panel) Stop() {
	p.stopMu.Lock()
	if p.stopped {
		p.stopMu.Unlock()
		return
	}
	p.stopped = true
	p.stopMu.Unlock()

	if p.listener != nil {
		p.listener.Stop()
	}
	close(p.done)
	p.wg.Wait()
	p.spc.Close()
	p.log.Info("Panel operations stopped")
}

// Snapshot returns the current snapshot, or nil before the first poll
// has completed. The returned value must not be mutated.
func (p *Panel) Snapshot() *types.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Device returns the panel identification captured at login.
func (p *Panel) Device() types.Device {
	return p.spc.Device()
}

// Arm requests fullset or partset and schedules an immediate refresh.
func (p *Panel) Arm(mode types.ArmState) error {
	if err := p.spc.SetState(context.Background(), mode); err != nil {
		return fmt.Errorf("failed to arm panel: %v", err)
	}
	p.RequestRefresh()
	return nil
}

// Disarm requests unset and schedules an immediate refresh.
func (p *Panel) Disarm() error {
	if err := p.spc.SetState(context.Background(), types.ArmStateUnset); err != nil {
		return fmt.Errorf("failed to disarm panel: %v", err)
	}
	p.RequestRefresh()
	return nil
}

// RequestRefresh asks the poll loop to poll as soon as possible.
func (p *Panel) RequestRefresh() {
	select {
	case p.pollNow <- struct{}{}:
	default:
	}
}

func (p *Panel) pollLoop() {
	defer p.wg.Done()

	interval := time.Duration(p.config.SPC.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		case <-p.pollNow:
		}

		if err := p.poll(); err != nil {
			// Keep the last snapshot; the next tick retries.
			p.log.Error("Poll failed: %v", err)
		}
	}
}

func (p *Panel) poll() error {
	snapshot, err := p.spc.GetState(context.Background())
	if err != nil {
		return err
	}

	p.mu.Lock()
	previous := p.snapshot
	p.snapshot = snapshot
	p.mu.Unlock()

	p.notifyChanges(previous, snapshot)
	return nil
}

func (p *Panel) eventLoop() {
	defer p.wg.Done()
	for event := range p.listener.Events() {
		p.handleEvent(event)
	}
}

func (p *Panel) handleEvent(event types.Event) {
	if p.onEvent != nil {
		p.onEvent(event)
	}

	p.mu.Lock()
	previous := p.snapshot
	next, changed := p.reducer.Apply(previous, event)
	if changed {
		p.snapshot = next
	}
	p.mu.Unlock()

	if !changed {
		return
	}
	p.notifyChanges(previous, next)
}

func (p *Panel) notifyChanges(previous, next *types.Snapshot) {
	if next == nil {
		return
	}

	if p.onArmState != nil && (previous == nil || previous.ArmState != next.ArmState) {
		p.log.Panel("Arm state changed to %s", next.ArmState)
		p.onArmState(next.ArmState)
	}

	if p.onZone == nil {
		return
	}
	for number, zone := range next.Zones {
		if previous != nil {
			if old, ok := previous.Zones[number]; ok && old == zone {
				continue
			}
		}
		p.log.Panel("Zone %s (%d) changed to input=%s status=%s", zone.Name, zone.Number, zone.Input, zone.Status)
		p.onZone(zone)
	}
}
