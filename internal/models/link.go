package models

import "time"

// Link represents a shortened link stored in the database.
// The short code is assigned once at creation time and never changes;
// the custom alias is user-chosen and may be added, changed or removed later.
type Link struct {
	ID                uint    `gorm:"primaryKey"`
	OriginalURL       string  `gorm:"not null"`
	ShortCode         string  `gorm:"uniqueIndex;size:10;not null"`
	CustomAlias       *string `gorm:"uniqueIndex"`
	Title             string
	Description       string
	ClickCount        int64 `gorm:"not null;default:0"`
	IsActive          bool  `gorm:"not null;default:true"`
	ExpiresAt         *time.Time
	PasswordProtected bool `gorm:"not null;default:false"`
	PasswordHash      string
	QRCodePath        string
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// IsExpired reports whether the link carries an expiration date in the past.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsResolvable reports whether a lookup is allowed to return this link:
// it must be active and not expired. Inactive and expired links are
// indistinguishable from absent ones on the redirect path.
func (l *Link) IsResolvable(now time.Time) bool {
	return l.IsActive && !l.IsExpired(now)
}

// CacheKeys returns every key under which this link may be cached:
// its short code, plus the custom alias when one is set.
func (l *Link) CacheKeys() []string {
	keys := []string{l.ShortCode}
	if l.CustomAlias != nil && *l.CustomAlias != "" {
		keys = append(keys, *l.CustomAlias)
	}
	return keys
}
