// Package spc talks to the panel's embedded web server: session
// login, state polling and arm mode commands.
package spc

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/daemonp/spc2mqtt/internal/log"
	"github.com/daemonp/spc2mqtt/internal/types"
	"github.com/daemonp/spc2mqtt/internal/util"
)

// LoginError indicates the panel rejected the configured credentials.
type LoginError struct {
	Status string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("spc: login rejected: %s", e.Status)
}

// errSessionExpired is returned internally when the panel invalidates
// the session cookie; the caller re-logs-in once and retries.
var errSessionExpired = errors.New("spc: session expired")

type Session struct {
	log      *log.Logger
	baseURL  string
	userID   string
	password string
	client   *http.Client
	device   types.Device
}

func NewSession(baseURL, userID, password string, logger *log.Logger) *Session {
	jar, _ := cookiejar.New(nil)
	return &Session{
		log:      logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		userID:   userID,
		password: password,
		client: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}
}

// statusDocument is the XML document served by the panel's status
// endpoint.
type statusDocument struct {
	XMLName xml.Name `xml:"status"`
	System  struct {
		Model   string `xml:"model"`
		Serial  string `xml:"serial"`
		Site    string `xml:"site"`
		ArmMode string `xml:"arm_mode"`
	} `xml:"system"`
	Zones []struct {
		ID     int    `xml:"id,attr"`
		Name   string `xml:"name"`
		AreaID int    `xml:"area_id"`
		Area   string `xml:"area"`
		Input  string `xml:"input"`
		Status string `xml:"status"`
	} `xml:"zones>zone"`
}

// Login authenticates against the panel and records its
// identification. It must be called before GetState or SetState.
func (s *Session) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("userid", s.userID)
	form.Set("password", s.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login.cgi", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &LoginError{Status: resp.Status}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("login failed: unexpected status %s", resp.Status)
	}

	doc, err := s.fetchStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read panel identification: %v", err)
	}
	s.device = types.Device{
		Model:        util.Normalize(doc.System.Model),
		SerialNumber: util.Normalize(doc.System.Serial),
		Site:         util.Normalize(doc.System.Site),
	}

	s.log.Info("Logged in to %s (%s, serial %s)", s.device.Site, s.device.Model, s.device.SerialNumber)
	return nil
}

// GetState polls the panel and returns a fresh snapshot of the arm
// state and all zones.
func (s *Session) GetState(ctx context.Context) (*types.Snapshot, error) {
	doc, err := s.fetchStatus(ctx)
	if errors.Is(err, errSessionExpired) {
		s.log.Debug("Session expired, logging in again")
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
		doc, err = s.fetchStatus(ctx)
	}
	if err != nil {
		return nil, err
	}

	snapshot := &types.Snapshot{
		ArmState: parseArmState(doc.System.ArmMode),
		Zones:    make(map[int]types.Zone, len(doc.Zones)),
	}
	for _, z := range doc.Zones {
		snapshot.Zones[z.ID] = types.Zone{
			Number: z.ID,
			Name:   util.Normalize(z.Name),
			AreaID: z.AreaID,
			Area:   util.Normalize(z.Area),
			Input:  parseZoneInput(z.Input),
			Status: parseZoneStatus(z.Status),
		}
	}
	return snapshot, nil
}

// SetState requests an arm mode change (unset, partset or fullset).
func (s *Session) SetState(ctx context.Context, mode types.ArmState) error {
	err := s.postArm(ctx, mode)
	if errors.Is(err, errSessionExpired) {
		s.log.Debug("Session expired, logging in again")
		if err := s.Login(ctx); err != nil {
			return err
		}
		err = s.postArm(ctx, mode)
	}
	if err != nil {
		return err
	}

	s.log.Info("Panel arm mode set to %s", mode)
	return nil
}

func (s *Session) postArm(ctx context.Context, mode types.ArmState) error {
	form := url.Values{}
	form.Set("mode", mode.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/arm.cgi", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build arm request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("arm request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return errSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arm command failed: unexpected status %s", resp.Status)
	}
	return nil
}

// Device returns the panel identification captured at login.
func (s *Session) Device() types.Device {
	return s.device
}

func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

func (s *Session) fetchStatus(ctx context.Context) (*statusDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/status.xml", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %v", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, errSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status request failed: unexpected status %s", resp.Status)
	}

	var doc statusDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse status document: %v", err)
	}
	return &doc, nil
}

func parseArmState(s string) types.ArmState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unset":
		return types.ArmStateUnset
	case "fullset":
		return types.ArmStateFullset
	case "partset":
		return types.ArmStatePartset
	default:
		return types.ArmStateUnknown
	}
}

func parseZoneInput(s string) types.ZoneInput {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed":
		return types.ZoneInputClosed
	case "open":
		return types.ZoneInputOpen
	default:
		return types.ZoneInputUnknown
	}
}

func parseZoneStatus(s string) types.ZoneStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "ok":
		return types.ZoneStatusNormal
	case "actuated", "alarm":
		return types.ZoneStatusActuated
	case "tamper":
		return types.ZoneStatusTamper
	default:
		return types.ZoneStatusUnknown
	}
}
