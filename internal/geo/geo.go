// Package geo resolves client IP addresses to geographic information.
// Lookup is strictly best-effort: when no database is configured or an
// address is unknown, clicks are simply recorded without geographic fields.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location holds the geographic fields derived from an IP address.
type Location struct {
	CountryCode string
	CountryName string
	City        string
}

// Locator is the lookup contract consumed by the click recorder.
// Implementations return (nil, nil) when nothing is known about the address.
type Locator interface {
	Locate(ip string) (*Location, error)
}

// MaxMindLocator resolves addresses against a local MaxMind city database.
type MaxMindLocator struct {
	reader *geoip2.Reader
}

// Open loads the MaxMind database at path. An empty path returns (nil, nil):
// the recorder treats a nil Locator as "geo lookup disabled".
func Open(path string) (*MaxMindLocator, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &MaxMindLocator{reader: reader}, nil
}

// Locate returns the country and city recorded for ip, or (nil, nil) when the
// address does not parse or the database has no entry for it.
func (m *MaxMindLocator) Locate(ip string) (*Location, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, nil
	}

	record, err := m.reader.City(addr)
	if err != nil {
		return nil, fmt.Errorf("GeoIP lookup failed for %s: %w", ip, err)
	}
	if record.Country.IsoCode == "" && record.City.Names["en"] == "" {
		return nil, nil
	}

	return &Location{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}, nil
}

// Close releases the underlying database reader.
func (m *MaxMindLocator) Close() error {
	return m.reader.Close()
}
