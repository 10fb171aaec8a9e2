// Package uaparse extracts browser, OS and device information from raw
// user-agent strings. Parsing is best-effort; unknown agents yield empty
// fields, never errors.
package uaparse

import "github.com/mileusna/useragent"

// ClientInfo holds the technology fields derived from a user-agent string.
type ClientInfo struct {
	Browser         string
	OperatingSystem string
	DeviceType      string
	IsMobile        bool
}

// Parser is the parsing contract consumed by the click recorder.
type Parser interface {
	Parse(userAgent string) *ClientInfo
}

// UAParser parses user-agent strings with the mileusna/useragent library.
type UAParser struct{}

// NewParser returns a ready-to-use UAParser.
func NewParser() *UAParser {
	return &UAParser{}
}

// Parse derives browser, OS and device type from the raw user-agent string.
// An empty string returns nil; anything else returns a ClientInfo, with
// "Unknown" as the device type when no category matched.
func (p *UAParser) Parse(userAgent string) *ClientInfo {
	if userAgent == "" {
		return nil
	}

	ua := useragent.Parse(userAgent)

	deviceType := "Unknown"
	switch {
	case ua.Mobile:
		deviceType = "Mobile"
	case ua.Tablet:
		deviceType = "Tablet"
	case ua.Desktop:
		deviceType = "Computer"
	case ua.Bot:
		deviceType = "Bot"
	}

	return &ClientInfo{
		Browser:         ua.Name,
		OperatingSystem: ua.OS,
		DeviceType:      deviceType,
		// Tablets count as mobile for the mobile/desktop breakdown
		IsMobile: ua.Mobile || ua.Tablet,
	}
}
