package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/cmd"
	"github.com/marcvidal/linkshortener/internal/cache"
	"github.com/marcvidal/linkshortener/internal/config"
	"github.com/marcvidal/linkshortener/internal/qrcode"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/services"
	"github.com/marcvidal/linkshortener/internal/shortcode"
)

var (
	urlFlag         string
	aliasFlag       string
	titleFlag       string
	descriptionFlag string
	passwordFlag    string
	expiresFlag     string
)

// CreateCmd represents the 'create' command
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a short link from a destination URL.",
	Long: `This command shortens the provided destination URL and prints the generated
short code.

Example:
  linkshortener create --url="https://www.google.com/search?q=go+lang" --alias=goquery`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		var expiresAt *time.Time
		if expiresFlag != "" {
			parsed, err := time.Parse(time.RFC3339, expiresFlag)
			if err != nil {
				log.Fatalf("Invalid --expires value (want RFC3339, e.g. 2026-12-31T23:59:59Z): %v", err)
			}
			expiresAt = &parsed
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
		resolutionCache, err := cache.New(cfg.Cache.Capacity)
		if err != nil {
			log.Fatalf("Failed to create resolution cache: %v", err)
		}

		linkService := services.NewLinkService(
			linkRepo,
			clickRepo,
			shortcode.NewGenerator(cfg.ShortCode.Length),
			resolutionCache,
			qrcode.NewService(cfg.QRCode.Dir, cfg.QRCode.Size),
			cfg.Server.BaseURL,
		)

		link, err := linkService.CreateLink(services.LinkParams{
			OriginalURL: urlFlag,
			CustomAlias: aliasFlag,
			Title:       titleFlag,
			Description: descriptionFlag,
			Password:    passwordFlag,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			log.Fatalf("Failed to create short link: %v", err)
		}

		fmt.Printf("Short link created successfully:\n")
		fmt.Printf("Code: %s\n", link.ShortCode)
		if link.CustomAlias != nil {
			fmt.Printf("Alias: %s\n", *link.CustomAlias)
		}
		fmt.Printf("Full URL: %s\n", linkService.BuildShortURL(link))
	},
}

func init() {
	CreateCmd.Flags().StringVar(&urlFlag, "url", "", "The destination URL to shorten")
	CreateCmd.Flags().StringVar(&aliasFlag, "alias", "", "Optional custom alias")
	CreateCmd.Flags().StringVar(&titleFlag, "title", "", "Optional title")
	CreateCmd.Flags().StringVar(&descriptionFlag, "description", "", "Optional description")
	CreateCmd.Flags().StringVar(&passwordFlag, "password", "", "Optional password protecting the link")
	CreateCmd.Flags().StringVar(&expiresFlag, "expires", "", "Optional expiration timestamp (RFC3339)")

	CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
