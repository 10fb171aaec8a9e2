package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/internal/cache"
	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/repository"
)

// Outcome classifies the result of a resolution attempt.
type Outcome int

const (
	// OutcomeSuccess means the link resolved and the caller may redirect.
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound covers absent, inactive and expired links alike.
	OutcomeNotFound
	// OutcomePasswordRequired means the link is protected and no password
	// was supplied.
	OutcomePasswordRequired
	// OutcomeUnauthorized means the supplied password did not match.
	OutcomeUnauthorized
)

// Resolution is the terminal state of one resolution attempt.
// URL and Link are only set when Outcome is OutcomeSuccess.
type Resolution struct {
	Outcome Outcome
	URL     string
	Link    *models.Link
}

// RequestMetadata carries the per-request click context from the HTTP layer
// into the recording pipeline.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// ResolverService orchestrates the redirect hot path: cache-aside lookup,
// activation/expiration gating, the password gate, and the fire-and-forget
// hand-off to the click recorder.
type ResolverService struct {
	linkRepo    repository.LinkRepository
	cache       *cache.ResolutionCache
	clickEvents chan<- models.ClickEvent // nil disables click recording
	now         func() time.Time
}

// NewResolverService creates a ResolverService. clickEvents may be nil when
// no click recording is wanted (e.g. CLI usage).
func NewResolverService(linkRepo repository.LinkRepository, resolutionCache *cache.ResolutionCache, clickEvents chan<- models.ClickEvent) *ResolverService {
	return &ResolverService{
		linkRepo:    linkRepo,
		cache:       resolutionCache,
		clickEvents: clickEvents,
		now:         time.Now,
	}
}

// Resolve runs a full resolution attempt for the presented code (which may be
// a short code or a custom alias) and returns its terminal state.
//
// On success a click event is queued for asynchronous recording; queueing is
// non-blocking and a full buffer drops the event rather than delaying the
// redirect. Only a store failure returns a non-nil error.
func (s *ResolverService) Resolve(code, password string, meta RequestMetadata) (*Resolution, error) {
	link, err := s.Peek(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			return &Resolution{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	if link.PasswordProtected {
		if password == "" {
			return &Resolution{Outcome: OutcomePasswordRequired}, nil
		}
		if !s.VerifyPassword(link, password) {
			return &Resolution{Outcome: OutcomeUnauthorized}, nil
		}
	}

	s.queueClick(link, meta)

	return &Resolution{
		Outcome: OutcomeSuccess,
		URL:     link.OriginalURL,
		Link:    link,
	}, nil
}

// Peek performs the cache-aside lookup and the resolvability gate without
// touching the password gate or recording anything. Inactive and expired
// links return ErrLinkNotFound exactly like absent ones; the caller is not
// allowed to tell the difference.
func (s *ResolverService) Peek(code string) (*models.Link, error) {
	link, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	if link == nil || !link.IsResolvable(s.now()) {
		return nil, apperrors.ErrLinkNotFound
	}
	return link, nil
}

// VerifyPassword compares a plaintext password against the link's stored
// bcrypt hash. Unprotected links accept anything; a protected link with no
// stored hash fails closed rather than accepting everything.
func (s *ResolverService) VerifyPassword(link *models.Link, password string) bool {
	if !link.PasswordProtected {
		return true
	}
	if link.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)) == nil
}

// lookup resolves code through the cache with store fallback. On a store hit
// the snapshot is cached under the presented key before returning, gate
// checks included later so that expiry is re-evaluated on every attempt.
// Returns (nil, nil) when neither an alias nor a short code matches.
func (s *ResolverService) lookup(code string) (*models.Link, error) {
	if link, ok := s.cache.Get(code); ok {
		return link, nil
	}

	// Alias takes precedence: if another link's short code textually equals
	// this alias, the alias-owning link wins.
	link, err := s.linkRepo.GetLinkByAlias(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		link, err = s.linkRepo.GetLinkByShortCode(code)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	s.cache.Put(code, link)
	return link, nil
}

// queueClick hands the resolved link to the click recorder without blocking.
func (s *ResolverService) queueClick(link *models.Link, meta RequestMetadata) {
	if s.clickEvents == nil {
		return
	}

	event := models.ClickEvent{
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		Timestamp: s.now(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Referer:   meta.Referer,
	}
	if link.CustomAlias != nil {
		event.CustomAlias = *link.CustomAlias
	}

	select {
	case s.clickEvents <- event:
	default:
		// Buffer full: drop the event rather than delaying the redirect.
		log.Printf("WARNING: click events channel is full, dropping click for link %d (%s)", link.ID, link.ShortCode)
	}
}
