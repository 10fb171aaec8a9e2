package monitor

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/marcvidal/linkshortener/internal/repository"
)

// UrlMonitor manages periodic monitoring of destination URLs to check their
// accessibility. It maintains a state map to track URL status changes and
// notify when they occur.
type UrlMonitor struct {
	linkRepo    repository.LinkRepository // Repository to fetch all links from database
	interval    time.Duration             // How often to check URLs
	knownStates map[uint]bool             // Cache of previous URL states (ID -> accessible or not)
	mu          sync.Mutex                // Protects concurrent access to knownStates map
	httpClient  *http.Client              // HTTP client for making requests
}

// NewUrlMonitor creates and returns a new instance of UrlMonitor.
// interval determines how frequently URLs will be checked.
func NewUrlMonitor(linkRepo repository.LinkRepository, interval time.Duration) *UrlMonitor {
	return &UrlMonitor{
		linkRepo:    linkRepo,
		interval:    interval,
		knownStates: make(map[uint]bool),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Start launches the periodic URL monitoring loop.
// This is a blocking function that runs indefinitely until the program stops.
func (m *UrlMonitor) Start() {
	log.Printf("[MONITOR] Starting URL monitor with interval of %v...", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Execute an immediate check on startup before waiting for the first tick
	m.checkUrls()

	for range ticker.C {
		m.checkUrls()
	}
}

// checkUrls performs a status check on all resolvable destination URLs.
// It compares current state with previous state and logs any changes.
func (m *UrlMonitor) checkUrls() {
	log.Println("[MONITOR] Starting URL status verification...")

	links, err := m.linkRepo.GetAllLinks()
	if err != nil {
		log.Printf("[MONITOR] ERROR retrieving links for monitoring: %v", err)
		return
	}

	now := time.Now()
	for _, link := range links {
		// Inactive and expired links are not served, no point checking them
		if !link.IsResolvable(now) {
			continue
		}

		currentState := m.isUrlAccessible(link.OriginalURL)

		// Thread-safe access to the state map since multiple goroutines might access it
		m.mu.Lock()
		previousState, exists := m.knownStates[link.ID]
		m.knownStates[link.ID] = currentState
		m.mu.Unlock()

		// First time checking this link, just log the initial state
		if !exists {
			log.Printf("[MONITOR] Initial state for link %s (%s): %s",
				link.ShortCode, link.OriginalURL, formatState(currentState))
			continue
		}

		// Detect if a URL went from working to broken or vice versa
		if currentState != previousState {
			log.Printf("[NOTIFICATION] Link %s (%s) changed from %s to %s!",
				link.ShortCode, link.OriginalURL, formatState(previousState), formatState(currentState))
		}
	}
	log.Println("[MONITOR] URL status verification completed.")
}

// isUrlAccessible performs an HTTP HEAD request to check if a URL is accessible.
// Returns true if the URL responds with a successful HTTP status code (2xx or 3xx).
func (m *UrlMonitor) isUrlAccessible(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// HEAD is faster than GET since we don't need the response body
	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		log.Printf("[MONITOR] Error creating request for URL '%s': %v", url, err)
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Printf("[MONITOR] Error accessing URL '%s': %v", url, err)
		return false
	}
	defer resp.Body.Close()

	// 2xx (success) and 3xx (redirect) count as accessible,
	// 4xx (client error) and 5xx (server error) do not
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// formatState converts the boolean accessibility state to a readable string.
func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}
