package edp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/types"
)

// Listener receives EDP datagrams from the panel and delivers decoded
// events on Events() in arrival order.
type Listener struct {
	log      *log.Logger
	port     int
	systemID int

	conn     *net.UDPConn
	eventCh  chan types.Event
	done     chan struct{}
	loopDone chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewListener creates a listener for the given UDP port. A non-zero
// systemID drops events from any other panel; zero accepts all.
func NewListener(port, systemID int, logger *log.Logger) *Listener {
	return &Listener{
		log:      logger,
		port:     port,
		systemID: systemID,
		eventCh:  make(chan types.Event, 100),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start binds the UDP socket on all interfaces and starts the receive
// loop. A bind failure is returned synchronously and is not retried.
func (l *Listener) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: l.port})
	if err != nil {
		return fmt.Errorf("failed to bind UDP port %d: %v", l.port, err)
	}

	l.mu.Lock()
	l.conn = conn
	l.started = true
	l.mu.Unlock()

	go l.readLoop()

	l.log.Info("EDP listener started on UDP port %d", conn.LocalAddr().(*net.UDPAddr).Port)
	return nil
}

// Events returns the channel of accepted events. The channel is closed
// once the receive loop has exited after Stop.
func (l *Listener) Events() <-chan types.Event {
	return l.eventCh
}

// Addr returns the bound socket address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop closes the socket, which unblocks the pending receive, then
// waits for the receive loop to exit. Calling Stop more than once is a
// no-op.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true

	close(l.done)
	l.conn.Close()
	l.mu.Unlock()

	<-l.loopDone
	l.log.Info("EDP listener stopped")
}

func (l *Listener) readLoop() {
	defer close(l.loopDone)
	defer close(l.eventCh)

	buf := make([]byte, 2048)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient receive errors keep the loop alive.
			l.log.Warning("EDP receive error: %v", err)
			continue
		}

		event, err := Decode(buf[:n])
		if err != nil {
			// One bad datagram never terminates the listener.
			l.log.Warning("EDP parse error from %s: %v", addr, err)
			continue
		}

		if l.systemID != 0 && event.SystemID != l.systemID {
			l.log.Debug("EDP ignoring system %d (expecting %d)", event.SystemID, l.systemID)
			continue
		}

		l.log.Debug("EDP event: class=%s device=%d (%s)", event.Class, event.DeviceID, event.DeviceName)

		select {
		case l.eventCh <- event:
		case <-l.done:
			return
		}
	}
}
