package mqtt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/daemonp/spc2mqtt/internal/config"
	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/panel"
	"github.com/daemonp/spc2mqtt/internal/types"
)

const statusXML = `<?xml version="1.0" encoding="UTF-8"?>
<status>
  <system>
    <model>SPC4300</model>
    <serial>00123456</serial>
    <site>Home</site>
    <arm_mode>unset</arm_mode>
  </system>
  <zones>
    <zone id="12">
      <name>Front Door</name>
      <area_id>3</area_id>
      <area>Garden</area>
      <input>closed</input>
      <status>normal</status>
    </zone>
  </zones>
</status>`

func newPanelServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login.cgi", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "test"})
	})
	mux.HandleFunc("/status.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(statusXML))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(url string) *config.Config {
	return &config.Config{
		SPC: config.SPCConfig{
			URL:          url,
			UserID:       "1000",
			Password:     "secret",
			PollInterval: 300,
		},
		MQTT: config.MQTTConfig{
			ClientID: "spc2mqtt",
			Host:     "localhost",
			Port:     1883,
			Prefix:   "spc2mqtt",
		},
	}
}

// The panel fires its callbacks from the initial poll, before Connect
// has been called. Those publishes must be dropped, not dereference a
// nil client.
func TestPanelStartBeforeConnect(t *testing.T) {
	server := newPanelServer(t)
	cfg := testConfig(server.URL)
	logger := log.NewLogger("error")

	p := panel.New(cfg, logger)
	NewMQTT(&cfg.MQTT, p, logger)

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Stop()
}

func TestPublishBeforeConnectIsDropped(t *testing.T) {
	server := newPanelServer(t)
	cfg := testConfig(server.URL)
	logger := log.NewLogger("error")

	m := NewMQTT(&cfg.MQTT, panel.New(cfg, logger), logger)

	m.PublishArmState(types.ArmStateFullset)
	m.PublishZoneStatus(types.Zone{Number: 12, Name: "Front Door"})
	m.PublishEvent(types.Event{Class: "ZO", DeviceID: 12, Timestamp: time.Now()})
	m.Publish("spc2mqtt/test", "payload", false)
	m.Close()
}
