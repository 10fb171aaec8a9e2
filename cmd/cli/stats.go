package cli

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/cmd"
	"github.com/marcvidal/linkshortener/internal/config"
	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/services"
)

var windowDaysFlag int

// StatsCmd represents the 'stats' command
var StatsCmd = &cobra.Command{
	Use:   "stats [short-code]",
	Short: "Prints the analytics summary for a short link",
	Long:  `Aggregates the recorded clicks of the given short code into a summary: totals, daily and hourly buckets, countries, browsers and bot split.`,
	Args:  cobra.ExactArgs(1),
	Run:   runStats,
}

func init() {
	StatsCmd.Flags().IntVar(&windowDaysFlag, "days", 0, "Trailing window in days (default from config)")
	cmd.RootCmd.AddCommand(StatsCmd)
}

// runStats executes the logic for the stats command
func runStats(cobraCmd *cobra.Command, args []string) {
	shortCode := args[0]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying SQL database: %v", err)
	}
	defer sqlDB.Close()

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	analyticsService := services.NewAnalyticsService(linkRepo, clickRepo)

	link, err := linkRepo.GetLinkByShortCode(shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Error: Short code '%s' not found\n", shortCode)
		} else {
			fmt.Printf("Error retrieving link: %v\n", err)
		}
		os.Exit(1)
	}

	days := windowDaysFlag
	if days <= 0 {
		days = cfg.Analytics.DefaultWindowDays
	}

	summary, err := analyticsService.Aggregate(link.ID, days)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			fmt.Printf("Error: Short code '%s' not found\n", shortCode)
		} else {
			fmt.Printf("Error retrieving statistics: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Statistics for short code: %s\n", shortCode)
	fmt.Printf("Destination URL: %s\n", summary.OriginalURL)
	fmt.Printf("Total clicks: %d (unique IPs: %d)\n", summary.TotalClicks, summary.UniqueClicks)
	if summary.LastClickAt != nil {
		fmt.Printf("Last click: %s\n", summary.LastClickAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Created: %s\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))

	fmt.Printf("\nLast %d day(s):\n", days)
	for _, day := range summary.DailyClicks {
		if day.Clicks > 0 {
			fmt.Printf("  %s: %d\n", day.Date, day.Clicks)
		}
	}
	if len(summary.ClicksByCountry) > 0 {
		fmt.Println("\nTop countries:")
		for _, country := range summary.ClicksByCountry {
			fmt.Printf("  %s (%s): %d\n", country.CountryName, country.CountryCode, country.Clicks)
		}
	}
	if len(summary.ClicksByBrowser) > 0 {
		fmt.Println("\nTop browsers:")
		for _, browser := range summary.ClicksByBrowser {
			fmt.Printf("  %s: %d\n", browser.Label, browser.Clicks)
		}
	}
	fmt.Printf("\nBot clicks: %d, real clicks: %d\n", summary.BotClicks, summary.RealClicks)
	fmt.Printf("Mobile: %d, desktop: %d\n", summary.DeviceTypeBreakdown.Mobile, summary.DeviceTypeBreakdown.Desktop)
}
