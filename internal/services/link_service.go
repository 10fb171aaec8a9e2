// Package services contains the business logic layer for the link shortener:
// link CRUD, the resolution hot path, click recording and analytics.
package services

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/internal/cache"
	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/qrcode"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/shortcode"
)

// LinkParams carries the caller-supplied fields for creating or updating a
// link. The zero value of the optional fields means "not set".
type LinkParams struct {
	OriginalURL string
	CustomAlias string
	Title       string
	Description string
	Password    string
	ExpiresAt   *time.Time
}

// LinkService provides the create/update/delete side of link management.
// Every mutation that can make a cached snapshot stale invalidates the
// affected cache keys explicitly.
type LinkService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	generator *shortcode.Generator
	cache     *cache.ResolutionCache
	qr        *qrcode.Service // nil disables QR generation
	baseURL   string
}

// NewLinkService creates and returns a new instance of LinkService.
func NewLinkService(linkRepo repository.LinkRepository, clickRepo repository.ClickRepository, generator *shortcode.Generator, resolutionCache *cache.ResolutionCache, qr *qrcode.Service, baseURL string) *LinkService {
	return &LinkService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		generator: generator,
		cache:     resolutionCache,
		qr:        qr,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// CreateLink creates a new shortened link: validates the destination URL,
// claims the custom alias when one was requested, generates a unique short
// code, hashes the optional password and persists the result. QR generation
// happens after the insert and is best-effort: its failure never fails the
// creation.
func (s *LinkService) CreateLink(params LinkParams) (*models.Link, error) {
	if err := validateURL(params.OriginalURL); err != nil {
		return nil, err
	}

	link := &models.Link{
		OriginalURL: params.OriginalURL,
		Title:       params.Title,
		Description: params.Description,
		IsActive:    true,
		ExpiresAt:   params.ExpiresAt,
	}

	alias := strings.TrimSpace(params.CustomAlias)
	if alias != "" {
		taken, err := s.linkRepo.ExistsByAlias(alias)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
		}
		if taken {
			return nil, apperrors.ErrAliasTaken
		}
		link.CustomAlias = &alias
	}

	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.PasswordProtected = true
		link.PasswordHash = string(hash)
	}

	code, err := s.generateUniqueShortCode()
	if err != nil {
		return nil, err
	}
	link.ShortCode = code

	if err := s.linkRepo.CreateLink(link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	if s.qr != nil {
		path, err := s.qr.Generate(s.BuildShortURL(link), link.ID)
		if err != nil {
			log.Printf("Failed to generate QR code for link %d: %v", link.ID, err)
		} else {
			link.QRCodePath = path
			if err := s.linkRepo.UpdateLink(link); err != nil {
				log.Printf("Failed to save QR code path for link %d: %v", link.ID, err)
			}
		}
	}

	return link, nil
}

// UpdateLink applies new parameters to an existing link. The previous cache
// keys are invalidated even when the alias changes, so no stale snapshot can
// survive under the old alias.
func (s *LinkService) UpdateLink(linkID uint, params LinkParams) (*models.Link, error) {
	link, err := s.getLink(linkID)
	if err != nil {
		return nil, err
	}
	oldKeys := link.CacheKeys()

	if err := validateURL(params.OriginalURL); err != nil {
		return nil, err
	}
	link.OriginalURL = params.OriginalURL
	link.Title = params.Title
	link.Description = params.Description
	link.ExpiresAt = params.ExpiresAt

	alias := strings.TrimSpace(params.CustomAlias)
	if alias == "" {
		link.CustomAlias = nil
	} else if link.CustomAlias == nil || *link.CustomAlias != alias {
		taken, err := s.linkRepo.ExistsByAlias(alias)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
		}
		if taken {
			return nil, apperrors.ErrAliasTaken
		}
		link.CustomAlias = &alias
	}

	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.PasswordProtected = true
		link.PasswordHash = string(hash)
	} else {
		link.PasswordProtected = false
		link.PasswordHash = ""
	}

	if err := s.linkRepo.UpdateLink(link); err != nil {
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	for _, key := range oldKeys {
		s.cache.Invalidate(key)
	}
	s.cache.InvalidateLink(link)

	return link, nil
}

// DeleteLink removes a link, its clicks, its cached snapshots and its QR
// artifact.
func (s *LinkService) DeleteLink(linkID uint) error {
	link, err := s.getLink(linkID)
	if err != nil {
		return err
	}

	if err := s.linkRepo.DeleteLink(linkID); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	s.cache.InvalidateLink(link)
	if s.qr != nil {
		s.qr.Delete(link.QRCodePath)
	}
	return nil
}

// ToggleActive flips the active flag of a link and evicts its cached
// snapshots, so the change is visible to the next resolution.
func (s *LinkService) ToggleActive(linkID uint) (*models.Link, error) {
	link, err := s.getLink(linkID)
	if err != nil {
		return nil, err
	}

	link.IsActive = !link.IsActive
	if err := s.linkRepo.UpdateLink(link); err != nil {
		return nil, fmt.Errorf("failed to toggle link status: %w", err)
	}

	s.cache.InvalidateLink(link)
	return link, nil
}

// GetLinkByID retrieves a link by its id.
func (s *LinkService) GetLinkByID(linkID uint) (*models.Link, error) {
	return s.getLink(linkID)
}

// ListLinks returns every stored link.
func (s *LinkService) ListLinks() ([]models.Link, error) {
	links, err := s.linkRepo.GetAllLinks()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return links, nil
}

// GetLinkStats retrieves a link by its short code together with its recorded
// click total.
func (s *LinkService) GetLinkStats(shortCode string) (*models.Link, int64, error) {
	link, err := s.linkRepo.GetLinkByShortCode(shortCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, apperrors.ErrLinkNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	totalClicks, err := s.clickRepo.CountClicksByLinkID(link.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return link, totalClicks, nil
}

// BuildShortURL returns the public short URL of a link, preferring the custom
// alias over the generated code when one is set.
func (s *LinkService) BuildShortURL(link *models.Link) string {
	key := link.ShortCode
	if link.CustomAlias != nil && *link.CustomAlias != "" {
		key = *link.CustomAlias
	}
	return s.baseURL + "/" + key
}

// generateUniqueShortCode draws random codes until one is free in the store.
// Collisions are retried without an upper bound (they are vanishingly rare at
// the configured lengths); only a store error aborts the loop.
func (s *LinkService) generateUniqueShortCode() (string, error) {
	for {
		code, err := s.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrCodeGenerationFailed, err)
		}

		exists, err := s.linkRepo.ExistsByShortCode(code)
		if err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrCodeGenerationFailed, err)
		}
		if !exists {
			return code, nil
		}

		log.Printf("Short code '%s' already exists, retrying generation...", code)
	}
}

func (s *LinkService) getLink(linkID uint) (*models.Link, error) {
	link, err := s.linkRepo.GetLinkByID(linkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return link, nil
}

// validateURL accepts only non-empty http(s) URLs with a host.
func validateURL(raw string) error {
	if raw == "" {
		return apperrors.ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return apperrors.ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return apperrors.ErrInvalidURL
	}
	return nil
}
