package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/repository"
)

// DailyCount is the number of clicks on one calendar date ("2006-01-02").
type DailyCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// HourlyCount is the number of clicks during one hour of the day (0-23).
type HourlyCount struct {
	Hour   int   `json:"hour"`
	Clicks int64 `json:"clicks"`
}

// CountryCount is the number of clicks attributed to one country.
type CountryCount struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Clicks      int64  `json:"clicks"`
}

// CityCount is the number of clicks attributed to one city.
type CityCount struct {
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Clicks      int64  `json:"clicks"`
}

// LabelCount is a generic grouped count (browser, OS, device, referrer).
type LabelCount struct {
	Label  string `json:"label"`
	Clicks int64  `json:"clicks"`
}

// DeviceBreakdown is the binary mobile/desktop split.
type DeviceBreakdown struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
}

// LinkAnalytics is the full analytics summary for one link.
//
// TotalClicks, UniqueClicks and LastClickAt cover the link's whole history;
// every other field only covers the trailing window passed to Aggregate.
type LinkAnalytics struct {
	LinkID       uint       `json:"link_id"`
	ShortCode    string     `json:"short_code"`
	OriginalURL  string     `json:"original_url"`
	CreatedAt    time.Time  `json:"created_at"`
	TotalClicks  int64      `json:"total_clicks"`
	UniqueClicks int64      `json:"unique_clicks"`
	LastClickAt  *time.Time `json:"last_click_at,omitempty"`

	DailyClicks  []DailyCount  `json:"daily_clicks"`
	HourlyClicks []HourlyCount `json:"hourly_clicks"`

	ClicksByCountry []CountryCount `json:"clicks_by_country"`
	ClicksByCity    []CityCount    `json:"clicks_by_city"`

	ClicksByBrowser  []LabelCount `json:"clicks_by_browser"`
	ClicksByOS       []LabelCount `json:"clicks_by_os"`
	ClicksByDevice   []LabelCount `json:"clicks_by_device"`
	ClicksByReferrer []LabelCount `json:"clicks_by_referrer"`

	DeviceTypeBreakdown DeviceBreakdown `json:"device_type_breakdown"`

	BotClicks  int64 `json:"bot_clicks"`
	RealClicks int64 `json:"real_clicks"`
}

// groupLimit caps the city and referrer lists.
const groupLimit = 10

// AnalyticsService reduces recorded click facts into per-link summaries.
// It is a pure read-side aggregation: it never mutates anything and is safe
// to run concurrently with recording.
type AnalyticsService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	now       func() time.Time
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(linkRepo repository.LinkRepository, clickRepo repository.ClickRepository) *AnalyticsService {
	return &AnalyticsService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		now:       time.Now,
	}
}

// Aggregate computes the analytics summary for a link over the trailing
// windowDays calendar days. Returns ErrLinkNotFound when no such link exists.
func (s *AnalyticsService) Aggregate(linkID uint, windowDays int) (*LinkAnalytics, error) {
	link, err := s.linkRepo.GetLinkByID(linkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	if windowDays <= 0 {
		windowDays = 1
	}

	// Most-recent-first, the whole history of the link.
	clicks, err := s.clickRepo.FindClicksByLinkID(linkID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	summary := &LinkAnalytics{
		LinkID:      link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		TotalClicks: int64(len(clicks)),
	}

	uniqueIPs := make(map[string]struct{}, len(clicks))
	for _, click := range clicks {
		uniqueIPs[click.IPAddress] = struct{}{}
	}
	summary.UniqueClicks = int64(len(uniqueIPs))

	if len(clicks) > 0 {
		last := clicks[0].ClickedAt
		summary.LastClickAt = &last
	}

	now := s.now()
	since := now.AddDate(0, 0, -windowDays)
	var recent []models.Click
	for _, click := range clicks {
		if click.ClickedAt.After(since) {
			recent = append(recent, click)
		}
	}

	summary.DailyClicks = dailyBuckets(recent, now, windowDays)
	summary.HourlyClicks = hourlyBuckets(recent)
	summary.ClicksByCountry = countryCounts(recent)
	summary.ClicksByCity = cityCounts(recent)
	summary.ClicksByBrowser = labelCounts(recent, func(c *models.Click) string { return c.Browser }, 0)
	summary.ClicksByOS = labelCounts(recent, func(c *models.Click) string { return c.OperatingSystem }, 0)
	summary.ClicksByDevice = labelCounts(recent, func(c *models.Click) string { return c.DeviceType }, 0)
	summary.ClicksByReferrer = labelCounts(recent, func(c *models.Click) string { return c.Referer }, groupLimit)

	for _, click := range recent {
		if click.IsMobile {
			summary.DeviceTypeBreakdown.Mobile++
		}
		if click.IsBot {
			summary.BotClicks++
		}
	}
	summary.DeviceTypeBreakdown.Desktop = int64(len(recent)) - summary.DeviceTypeBreakdown.Mobile
	summary.RealClicks = int64(len(recent)) - summary.BotClicks

	return summary, nil
}

// dailyBuckets counts clicks per calendar date over the last windowDays days,
// today included. Days without clicks appear with a zero count, so the result
// always has exactly windowDays entries, oldest first.
func dailyBuckets(clicks []models.Click, now time.Time, windowDays int) []DailyCount {
	perDate := make(map[string]int64)
	for _, click := range clicks {
		perDate[click.ClickedAt.Format("2006-01-02")]++
	}

	buckets := make([]DailyCount, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		buckets = append(buckets, DailyCount{Date: date, Clicks: perDate[date]})
	}
	return buckets
}

// hourlyBuckets counts clicks per hour of the day, zero-filled over 0-23.
func hourlyBuckets(clicks []models.Click) []HourlyCount {
	var perHour [24]int64
	for _, click := range clicks {
		perHour[click.ClickedAt.Hour()]++
	}

	buckets := make([]HourlyCount, 24)
	for hour, count := range perHour {
		buckets[hour] = HourlyCount{Hour: hour, Clicks: count}
	}
	return buckets
}

// grouped accumulates counts per key while remembering first-seen order, so
// that the final descending sort breaks ties stably.
type grouped struct {
	counts map[string]int64
	order  []string
}

func newGrouped() *grouped {
	return &grouped{counts: make(map[string]int64)}
}

func (g *grouped) add(key string) {
	if key == "" {
		return
	}
	if _, seen := g.counts[key]; !seen {
		g.order = append(g.order, key)
	}
	g.counts[key]++
}

// sortedKeys returns the keys in descending count order, first-seen order on
// ties, truncated to limit when limit > 0.
func (g *grouped) sortedKeys(limit int) []string {
	keys := make([]string, len(g.order))
	copy(keys, g.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return g.counts[keys[i]] > g.counts[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func countryCounts(clicks []models.Click) []CountryCount {
	groups := newGrouped()
	names := make(map[string]string)
	for i := range clicks {
		code := clicks[i].CountryCode
		groups.add(code)
		if _, ok := names[code]; !ok {
			names[code] = clicks[i].CountryName
		}
	}

	counts := make([]CountryCount, 0, len(groups.order))
	for _, code := range groups.sortedKeys(0) {
		counts = append(counts, CountryCount{
			CountryCode: code,
			CountryName: names[code],
			Clicks:      groups.counts[code],
		})
	}
	return counts
}

func cityCounts(clicks []models.Click) []CityCount {
	groups := newGrouped()
	countries := make(map[string]string)
	for i := range clicks {
		city := clicks[i].CityName
		groups.add(city)
		if _, ok := countries[city]; !ok {
			countries[city] = clicks[i].CountryCode
		}
	}

	counts := make([]CityCount, 0, len(groups.order))
	for _, city := range groups.sortedKeys(groupLimit) {
		counts = append(counts, CityCount{
			City:        city,
			CountryCode: countries[city],
			Clicks:      groups.counts[city],
		})
	}
	return counts
}

func labelCounts(clicks []models.Click, field func(*models.Click) string, limit int) []LabelCount {
	groups := newGrouped()
	for i := range clicks {
		groups.add(field(&clicks[i]))
	}

	counts := make([]LabelCount, 0, len(groups.order))
	for _, label := range groups.sortedKeys(limit) {
		counts = append(counts, LabelCount{Label: label, Clicks: groups.counts[label]})
	}
	return counts
}
