package edp

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/types"
)

func startTestListener(t *testing.T, systemID int) (*Listener, net.Conn) {
	t.Helper()

	l := NewListener(0, systemID, log.NewLogger("error"))
	if err := l.Start(); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	t.Cleanup(l.Stop)

	port := l.Addr().(*net.UDPAddr).Port
	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return l, conn
}

func waitForEvent(t *testing.T, l *Listener) types.Event {
	t.Helper()
	select {
	case event, ok := <-l.Events():
		if !ok {
			t.Fatalf("event channel closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return types.Event{}
}

func TestListenerDeliversEvents(t *testing.T) {
	l, conn := startTestListener(t, 0)

	if _, err := conn.Write(packet(t, "#1|21155703112020|ZO|12|Front Door¦ZONE¦3¦Garden")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	event := waitForEvent(t, l)
	if event.Class != "ZO" || event.DeviceID != 12 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestListenerSurvivesMalformedDatagrams(t *testing.T) {
	l, conn := startTestListener(t, 0)

	if _, err := conn.Write([]byte("garbage")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}
	if _, err := conn.Write(packet(t, "#1|21155703112020|OG|1|House¦John Smith¦1")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	event := waitForEvent(t, l)
	if event.Class != "OG" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestListenerSystemIDFilter(t *testing.T) {
	l, conn := startTestListener(t, 5)

	// The first event comes from the wrong system and must be dropped.
	if _, err := conn.Write(packet(t, "#1|21155703112020|ZO|12|Front Door¦ZONE¦3¦Garden")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}
	if _, err := conn.Write(packet(t, "#5|21155703112020|ZC|12|Front Door¦ZONE¦3¦Garden")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	event := waitForEvent(t, l)
	if event.SystemID != 5 {
		t.Fatalf("filtered event delivered: %+v", event)
	}
}

func TestListenerFilterZeroAcceptsAll(t *testing.T) {
	l, conn := startTestListener(t, 0)

	if _, err := conn.Write(packet(t, "#7|21155703112020|ZO|12|Front Door¦ZONE¦3¦Garden")); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	event := waitForEvent(t, l)
	if event.SystemID != 7 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l := NewListener(0, 0, log.NewLogger("error"))
	if err := l.Start(); err != nil {
		t.Fatalf("start listener: %v", err)
	}

	l.Stop()
	l.Stop()

	select {
	case _, ok := <-l.Events():
		if ok {
			t.Fatalf("unexpected event after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event channel not closed after stop")
	}
}

func TestListenerStopWaitsForLoopExit(t *testing.T) {
	l := NewListener(0, 0, log.NewLogger("error"))
	if err := l.Start(); err != nil {
		t.Fatalf("start listener: %v", err)
	}

	l.Stop()

	// Stop joins the receive loop, so the event channel is already
	// closed by the time it returns.
	select {
	case _, ok := <-l.Events():
		if ok {
			t.Fatalf("unexpected event after stop")
		}
	default:
		t.Fatalf("event channel not closed when Stop returned")
	}
}

func TestListenerStopBeforeStart(t *testing.T) {
	l := NewListener(0, 0, log.NewLogger("error"))
	l.Stop() // must not panic on an unstarted listener
}
