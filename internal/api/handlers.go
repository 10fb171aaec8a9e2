package api

import (
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/marcvidal/linkshortener/internal/errors"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/qrcode"
	"github.com/marcvidal/linkshortener/internal/services"
	"github.com/gin-gonic/gin"
)

// Deps bundles everything the HTTP handlers need.
type Deps struct {
	Links     *services.LinkService
	Resolver  *services.ResolverService
	Analytics *services.AnalyticsService
	QR        *qrcode.Service

	// TrustProxyHeaders enables forwarded-for style client IP extraction.
	// Off by default - those headers are trivially spoofed.
	TrustProxyHeaders bool
	// DefaultWindowDays is the analytics window used when the caller does
	// not pass ?days=.
	DefaultWindowDays int
}

// SetupRoutes configures all Gin API routes and injects necessary dependencies.
func SetupRoutes(router *gin.Engine, deps Deps) {
	// Health check route - used for monitoring service availability
	router.GET("/health", HealthCheckHandler)

	// API routes group - management endpoints under /api/v1
	api := router.Group("/api/v1")
	{
		api.POST("/links", CreateLinkHandler(deps))
		api.GET("/links", ListLinksHandler(deps))
		api.GET("/links/:id", GetLinkHandler(deps))
		api.PUT("/links/:id", UpdateLinkHandler(deps))
		api.DELETE("/links/:id", DeleteLinkHandler(deps))
		api.PATCH("/links/:id/toggle", ToggleLinkHandler(deps))
		api.GET("/links/:id/analytics", AnalyticsHandler(deps))
		api.GET("/stats/:shortCode", StatsHandler(deps))
		api.GET("/qr/:id", QRCodeHandler(deps))
	}

	// Redirection routes at root level - this is where users access their
	// short URLs (e.g. localhost:8080/abc123)
	router.GET("/:code", RedirectHandler(deps))
	router.GET("/:code/info", LinkInfoHandler(deps))
	router.POST("/:code/verify-password", VerifyPasswordHandler(deps))
}

// HealthCheckHandler handles the /health route to verify service status.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLinkRequest represents the JSON request body for creating or updating
// a link.
type CreateLinkRequest struct {
	OriginalURL string     `json:"original_url" binding:"required,url"`
	CustomAlias string     `json:"custom_alias"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Password    string     `json:"password"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// LinkResponse is the JSON shape of a link returned by the management API.
// The password hash never leaves the server.
type LinkResponse struct {
	ID                uint       `json:"id"`
	OriginalURL       string     `json:"original_url"`
	ShortCode         string     `json:"short_code"`
	CustomAlias       string     `json:"custom_alias,omitempty"`
	ShortURL          string     `json:"short_url"`
	Title             string     `json:"title,omitempty"`
	Description       string     `json:"description,omitempty"`
	ClickCount        int64      `json:"click_count"`
	IsActive          bool       `json:"is_active"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	PasswordProtected bool       `json:"password_protected"`
	QRCodeURL         string     `json:"qr_code_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (d Deps) linkResponse(link *models.Link) LinkResponse {
	resp := LinkResponse{
		ID:                link.ID,
		OriginalURL:       link.OriginalURL,
		ShortCode:         link.ShortCode,
		ShortURL:          d.Links.BuildShortURL(link),
		Title:             link.Title,
		Description:       link.Description,
		ClickCount:        link.ClickCount,
		IsActive:          link.IsActive,
		ExpiresAt:         link.ExpiresAt,
		PasswordProtected: link.PasswordProtected,
		CreatedAt:         link.CreatedAt,
		UpdatedAt:         link.UpdatedAt,
	}
	if link.CustomAlias != nil {
		resp.CustomAlias = *link.CustomAlias
	}
	if link.QRCodePath != "" {
		resp.QRCodeURL = "/api/v1/qr/" + strconv.FormatUint(uint64(link.ID), 10)
	}
	return resp
}

// CreateLinkHandler handles the creation of a new shortened link.
func CreateLinkHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		link, err := deps.Links.CreateLink(services.LinkParams{
			OriginalURL: req.OriginalURL,
			CustomAlias: req.CustomAlias,
			Title:       req.Title,
			Description: req.Description,
			Password:    req.Password,
			ExpiresAt:   req.ExpiresAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidURL):
				c.JSON(http.StatusBadRequest, gin.H{"error": "URL must start with http:// or https://"})
			case errors.Is(err, apperrors.ErrAliasTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "Custom alias already exists"})
			case errors.Is(err, apperrors.ErrCodeGenerationFailed):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to generate unique short code. Please try again later."})
			default:
				log.Printf("Error creating link: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create short link"})
			}
			return
		}

		c.JSON(http.StatusCreated, deps.linkResponse(link))
	}
}

// ListLinksHandler returns every stored link.
func ListLinksHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := deps.Links.ListLinks()
		if err != nil {
			respondLinkError(c, err)
			return
		}

		responses := make([]LinkResponse, 0, len(links))
		for i := range links {
			responses = append(responses, deps.linkResponse(&links[i]))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// GetLinkHandler returns a single link by id.
func GetLinkHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		link, err := deps.Links.GetLinkByID(id)
		if err != nil {
			respondLinkError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps.linkResponse(link))
	}
}

// UpdateLinkHandler applies new parameters to an existing link.
func UpdateLinkHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		link, err := deps.Links.UpdateLink(id, services.LinkParams{
			OriginalURL: req.OriginalURL,
			CustomAlias: req.CustomAlias,
			Title:       req.Title,
			Description: req.Description,
			Password:    req.Password,
			ExpiresAt:   req.ExpiresAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidURL):
				c.JSON(http.StatusBadRequest, gin.H{"error": "URL must start with http:// or https://"})
			case errors.Is(err, apperrors.ErrAliasTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "Custom alias already exists"})
			default:
				respondLinkError(c, err)
			}
			return
		}

		c.JSON(http.StatusOK, deps.linkResponse(link))
	}
}

// DeleteLinkHandler deletes a link and its click history.
func DeleteLinkHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		if err := deps.Links.DeleteLink(id); err != nil {
			respondLinkError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ToggleLinkHandler flips the active flag of a link.
func ToggleLinkHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		link, err := deps.Links.ToggleActive(id)
		if err != nil {
			respondLinkError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps.linkResponse(link))
	}
}

// RedirectHandler handles the redirection from a short URL to the original
// long URL. This is the hot path: the click is queued for asynchronous
// recording and the redirect is returned immediately.
func RedirectHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")

		meta := services.RequestMetadata{
			IPAddress: extractClientIP(c, deps.TrustProxyHeaders),
			UserAgent: c.GetHeader("User-Agent"),
			Referer:   c.GetHeader("Referer"),
		}

		res, err := deps.Resolver.Resolve(code, c.Query("password"), meta)
		if err != nil {
			log.Printf("Error resolving %s: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		switch res.Outcome {
		case services.OutcomeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Link not found or has expired"})
		case services.OutcomePasswordRequired:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Password required", "password_required": true})
		case services.OutcomeUnauthorized:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Password required or incorrect"})
		default:
			c.Redirect(http.StatusFound, res.URL)
		}
	}
}

// LinkInfoHandler returns basic information about a resolvable link without
// redirecting, for preview pages.
func LinkInfoHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := deps.Resolver.Peek(c.Param("code"))
		if err != nil {
			respondLinkError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"original_url":       link.OriginalURL,
			"title":              link.Title,
			"description":        link.Description,
			"created_at":         link.CreatedAt,
			"password_protected": link.PasswordProtected,
		})
	}
}

// VerifyPasswordHandler checks a password against a protected link without
// redirecting, so clients can validate before navigating.
func VerifyPasswordHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := deps.Resolver.Peek(c.Param("code"))
		if err != nil {
			respondLinkError(c, err)
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": deps.Resolver.VerifyPassword(link, req.Password)})
	}
}

// AnalyticsHandler returns the aggregated click analytics for a link.
func AnalyticsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		days := deps.DefaultWindowDays
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
				return
			}
			days = parsed
		}

		summary, err := deps.Analytics.Aggregate(id, days)
		if err != nil {
			respondLinkError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// StatsHandler returns the lightweight click total for a short code.
func StatsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		shortCode := c.Param("shortCode")

		link, totalClicks, err := deps.Links.GetLinkStats(shortCode)
		if err != nil {
			respondLinkError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"short_code":   link.ShortCode,
			"original_url": link.OriginalURL,
			"total_clicks": totalClicks,
			"created_at":   link.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// QRCodeHandler serves the PNG QR image generated for a link.
func QRCodeHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseLinkID(c)
		if !ok {
			return
		}

		link, err := deps.Links.GetLinkByID(id)
		if err != nil {
			respondLinkError(c, err)
			return
		}
		if link.QRCodePath == "" || deps.QR == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No QR code for this link"})
			return
		}

		data, err := deps.QR.Read(link.QRCodePath)
		if err != nil {
			log.Printf("Error reading QR code for link %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.Data(http.StatusOK, "image/png", data)
	}
}

// forwardHeaders are checked in order when proxy headers are trusted.
// All of them can be set by the client, which is why TrustProxyHeaders
// defaults to false.
var forwardHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"Forwarded-For",
}

// extractClientIP returns the best-effort client address. With proxy headers
// disabled only the transport-level remote address is used.
func extractClientIP(c *gin.Context, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		for _, header := range forwardHeaders {
			value := c.GetHeader(header)
			if value == "" || strings.EqualFold(value, "unknown") {
				continue
			}
			// X-Forwarded-For may carry a chain; the first hop is the client.
			if i := strings.Index(value, ","); i >= 0 {
				value = value[:i]
			}
			return strings.TrimSpace(value)
		}
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// respondLinkError maps service errors onto HTTP status codes.
func respondLinkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found or has expired"})
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		log.Printf("Store error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		log.Printf("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// parseLinkID parses the :id path parameter, responding 400 itself on bad
// input.
func parseLinkID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link id"})
		return 0, false
	}
	return uint(id), true
}
