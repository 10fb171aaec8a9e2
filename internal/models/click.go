package models

import "time"

// Click represents a single recorded redirect event. Clicks are append-only:
// once written they are never updated or deleted by the application.
// This model tracks user interactions for analytics and statistics purposes.
type Click struct {
	// ID is the primary key with auto-increment functionality
	ID uint `gorm:"primaryKey"`

	// LinkID is the foreign key referencing the Link that was clicked.
	// A click only ever carries the id of its link, never a live object
	// reference back to it.
	// - index: creates a database index for efficient per-link queries
	LinkID uint `gorm:"index;not null"`

	// IPAddress stores the IP address of the user who clicked the link
	// - size:50: sufficient for both IPv4 and IPv6 addresses
	IPAddress string `gorm:"size:50"`

	// UserAgent stores the raw browser/client string from the HTTP request
	UserAgent string

	// Referer stores the Referer header, when the client sent one
	Referer string

	// Geographic fields derived from the IP address at record time.
	// All of them stay empty when no GeoIP database is available.
	CountryCode string `gorm:"size:2"`
	CountryName string
	CityName    string

	// Technology fields derived from the user-agent string at record time
	Browser         string
	OperatingSystem string
	DeviceType      string
	IsMobile        bool

	// IsBot marks traffic whose user-agent matched a known bot keyword
	IsBot bool

	// ClickedAt records the exact moment when the click occurred.
	// Assigned once at creation, immutable afterwards.
	ClickedAt time.Time `gorm:"index"`
}

// ClickEvent is the raw click payload passed through the click-events channel.
// This lightweight struct is used for asynchronous processing between the
// redirect path and the recording workers. It carries the cache keys of the
// link so the workers can invalidate them without re-reading the link.
type ClickEvent struct {
	LinkID      uint
	ShortCode   string
	CustomAlias string    // empty when the link has no alias
	Timestamp   time.Time // when the click occurred
	IPAddress   string
	UserAgent   string
	Referer     string
}
