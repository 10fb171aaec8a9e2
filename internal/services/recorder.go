package services

import (
	"log"
	"strings"
	"time"

	"github.com/marcvidal/linkshortener/internal/cache"
	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/geo"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/uaparse"
)

// botKeywords are matched case-insensitively against the user-agent string.
// First match wins; no match means real traffic.
var botKeywords = []string{
	"bot", "crawler", "spider", "scraper", "archiver", "indexer",
	"google", "bing", "yahoo", "facebook", "twitter", "linkedin",
	"whatsapp", "telegram", "slack", "discord",
}

// IsBotUserAgent reports whether the user-agent string matches a known bot
// keyword.
func IsBotUserAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, keyword := range botKeywords {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}

// RecorderService turns click events into persisted click facts and keeps the
// store counter and the resolution cache consistent.
//
// Record never reports an error to its caller: the redirect has already been
// served by the time an event reaches the recorder, so every step is
// best-effort from the redirect's point of view. Failures are logged.
type RecorderService struct {
	clickRepo repository.ClickRepository
	linkRepo  repository.LinkRepository
	cache     *cache.ResolutionCache
	locator   geo.Locator    // nil disables geographic enrichment
	parser    uaparse.Parser // nil disables user-agent enrichment
}

// NewRecorderService creates a RecorderService. locator and parser may be nil;
// the corresponding click fields then stay empty.
func NewRecorderService(clickRepo repository.ClickRepository, linkRepo repository.LinkRepository, resolutionCache *cache.ResolutionCache, locator geo.Locator, parser uaparse.Parser) *RecorderService {
	return &RecorderService{
		clickRepo: clickRepo,
		linkRepo:  linkRepo,
		cache:     resolutionCache,
		locator:   locator,
		parser:    parser,
	}
}

// Record processes one click event:
//
//  1. derive geographic fields from the IP (best-effort)
//  2. derive technology fields from the user-agent (best-effort)
//  3. classify bot vs. real traffic
//  4. persist the click fact
//  5. increment the link's click counter atomically at the store
//  6. invalidate the cached snapshots for the short code and the alias
//
// The cache invalidation runs strictly after the increment has committed, so
// a concurrent resolver can never re-cache a counter older than the one just
// written. Each step may fail without aborting the ones after it.
func (s *RecorderService) Record(event models.ClickEvent) {
	clickedAt := event.Timestamp
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}

	click := &models.Click{
		LinkID:    event.LinkID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Referer:   event.Referer,
		IsBot:     IsBotUserAgent(event.UserAgent),
		ClickedAt: clickedAt,
	}

	s.applyGeo(click)
	s.applyUserAgent(click)

	if err := s.clickRepo.CreateClick(click); err != nil {
		log.Printf("ERROR: %v", apperrors.ErrClickRecordingFailed{LinkID: event.LinkID, Reason: err.Error()})
	}

	if _, err := s.linkRepo.IncrementClickCount(event.LinkID); err != nil {
		log.Printf("ERROR: failed to increment click count for link %d: %v", event.LinkID, err)
	}

	// The cached snapshot now carries a stale counter: evict it instead of
	// patching it in place, the next resolution re-fetches a consistent one.
	s.cache.Invalidate(event.ShortCode)
	if event.CustomAlias != "" {
		s.cache.Invalidate(event.CustomAlias)
	}
}

// applyGeo fills the geographic click fields from the IP address, when a
// locator is available and knows the address.
func (s *RecorderService) applyGeo(click *models.Click) {
	if s.locator == nil || click.IPAddress == "" {
		return
	}

	location, err := s.locator.Locate(click.IPAddress)
	if err != nil {
		log.Printf("Failed to get geographic info for %s: %v", click.IPAddress, err)
		return
	}
	if location == nil {
		return
	}

	click.CountryCode = location.CountryCode
	click.CountryName = location.CountryName
	click.CityName = location.City
}

// applyUserAgent fills the technology click fields from the user-agent
// string, when a parser is available.
func (s *RecorderService) applyUserAgent(click *models.Click) {
	if s.parser == nil || click.UserAgent == "" {
		return
	}

	info := s.parser.Parse(click.UserAgent)
	if info == nil {
		return
	}

	click.Browser = info.Browser
	click.OperatingSystem = info.OperatingSystem
	click.DeviceType = info.DeviceType
	click.IsMobile = info.IsMobile
}
