// Package edp implements the SPC Event Distribution Protocol: a UDP
// push feed of near-real-time panel events in a pipe-delimited text
// format.
package edp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/daemonp/spc2mqtt/internal/types"
)

// HeaderSize is the fixed binary header preceding the text payload.
// The header is skipped, not validated.
const HeaderSize = 23

// subDelim is the broken-bar character separating the sub-fields of
// the name field.
const subDelim = "¦" // ¦

// timeLayout matches the HHMMSSDDMMYYYY timestamp field.
const timeLayout = "15040502012006"

// DecodeError reports a datagram that could not be decoded. Raw holds
// the offending text.
type DecodeError struct {
	Reason string
	Raw    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("edp: %s: %q", e.Reason, e.Raw)
}

// Decode parses a raw EDP datagram into an Event. Failures are
// reported as a *DecodeError; a failed decode never yields a partial
// Event.
func Decode(data []byte) (types.Event, error) {
	if len(data) < HeaderSize+5 {
		return types.Event{}, &DecodeError{
			Reason: fmt.Sprintf("packet too short (%d bytes)", len(data)),
			Raw:    string(data),
		}
	}

	// The payload is ISO-8859-1, one byte per character.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data[HeaderSize:])
	if err != nil {
		return types.Event{}, &DecodeError{Reason: "undecodable payload", Raw: string(data[HeaderSize:])}
	}

	text := strings.TrimSpace(string(decoded))
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")

	fields := strings.Split(text, "|")
	if len(fields) < 5 {
		return types.Event{}, &DecodeError{Reason: "too few fields", Raw: text}
	}

	systemID, err := strconv.Atoi(strings.TrimPrefix(fields[0], "#"))
	if err != nil {
		return types.Event{}, &DecodeError{Reason: "invalid system id", Raw: fields[0]}
	}

	timestamp, fallback := parseTimestamp(fields[1])

	deviceID, err := strconv.Atoi(fields[3])
	if err != nil {
		return types.Event{}, &DecodeError{Reason: "invalid device id", Raw: fields[3]}
	}

	deviceName, areaID, areaName := parseNameField(fields[4])

	return types.Event{
		SystemID:     systemID,
		Timestamp:    timestamp,
		Class:        strings.ToUpper(strings.TrimSpace(fields[2])),
		DeviceID:     deviceID,
		DeviceName:   deviceName,
		AreaID:       areaID,
		AreaName:     areaName,
		FallbackTime: fallback,
	}, nil
}

// parseTimestamp parses the HHMMSSDDMMYYYY field. The panel clock is
// not always sane, so an unparseable value falls back to the arrival
// time instead of failing the datagram. The second return value
// reports whether the fallback was taken.
func parseTimestamp(s string) (time.Time, bool) {
	if len(s) > 14 {
		s = s[:14]
	}
	timestamp, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Now().UTC(), true
	}
	return timestamp, false
}

// parseNameField decodes the ¦-delimited name field. The shape depends
// on the event source:
//
//	zone:   DeviceName ¦ ZONE ¦ AreaID ¦ AreaName
//	area:   AreaName ¦ UserName ¦ AreaID
//	system: Description ¦ ID
//
// The ZONE-tagged form must be checked before the generic 3-part form,
// otherwise a 4-part payload would parse as an area event.
func parseNameField(raw string) (deviceName string, areaID *int, areaName string) {
	parts := strings.Split(raw, subDelim)

	switch {
	case len(parts) >= 4 && parts[1] == "ZONE":
		deviceName = strings.TrimSpace(parts[0])
		areaID = parseAreaID(parts[2])
		areaName = strings.TrimSpace(parts[3])
	case len(parts) >= 3:
		areaName = strings.TrimSpace(parts[0])
		deviceName = strings.TrimSpace(parts[1])
		areaID = parseAreaID(parts[2])
	case len(parts) == 2:
		deviceName = strings.TrimSpace(parts[0])
	default:
		deviceName = strings.TrimSpace(raw)
	}
	return deviceName, areaID, areaName
}

// parseAreaID parses an area id sub-field; a non-numeric value means
// the area is absent, not an error.
func parseAreaID(s string) *int {
	id, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &id
}
