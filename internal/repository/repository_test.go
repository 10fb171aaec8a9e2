package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marcvidal/linkshortener/internal/models"
)

// openTestDB ouvre une base SQLite en mémoire, limitée à une seule connexion
// pour que toutes les requêtes voient le même schéma.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Link{}, &models.Click{}))
	return db
}

func strptr(s string) *string { return &s }

func TestCreateAndGetLink(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	link := &models.Link{
		OriginalURL: "https://example.com/page",
		ShortCode:   "abc123",
		IsActive:    true,
	}
	require.NoError(t, repo.CreateLink(link))
	require.NotZero(t, link.ID)

	byID, err := repo.GetLinkByID(link.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", byID.ShortCode)

	byCode, err := repo.GetLinkByShortCode("abc123")
	require.NoError(t, err)
	assert.Equal(t, link.ID, byCode.ID)
}

func TestGetLinkByAlias(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	link := &models.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abc123",
		CustomAlias: strptr("promo"),
		IsActive:    true,
	}
	require.NoError(t, repo.CreateLink(link))

	found, err := repo.GetLinkByAlias("promo")
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)

	_, err = repo.GetLinkByAlias("nothere")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetLinkNotFound(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	_, err := repo.GetLinkByID(999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.GetLinkByShortCode("nothere")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExistsByShortCodeAndAlias(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	require.NoError(t, repo.CreateLink(&models.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abc123",
		CustomAlias: strptr("promo"),
	}))

	exists, err := repo.ExistsByShortCode("abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByShortCode("zzz999")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByAlias("promo")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByAlias("libre")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateLink(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123", IsActive: true}
	require.NoError(t, repo.CreateLink(link))

	link.IsActive = false
	link.Title = "Page d'accueil"
	require.NoError(t, repo.UpdateLink(link))

	updated, err := repo.GetLinkByID(link.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Page d'accueil", updated.Title)
}

func TestIncrementClickCount(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"}
	require.NoError(t, repo.CreateLink(link))

	for i := int64(1); i <= 3; i++ {
		count, err := repo.IncrementClickCount(link.ID)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	stored, err := repo.GetLinkByID(link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.ClickCount)
}

func TestIncrementClickCountUnknownLink(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	_, err := repo.IncrementClickCount(999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeleteLinkRemovesClicks(t *testing.T) {
	db := openTestDB(t)
	linkRepo := NewLinkRepository(db)
	clickRepo := NewClickRepository(db)

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"}
	require.NoError(t, linkRepo.CreateLink(link))
	require.NoError(t, clickRepo.CreateClick(&models.Click{LinkID: link.ID, IPAddress: "203.0.113.9", ClickedAt: time.Now()}))

	require.NoError(t, linkRepo.DeleteLink(link.ID))

	_, err := linkRepo.GetLinkByID(link.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := clickRepo.CountClicksByLinkID(link.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetAllLinks(t *testing.T) {
	repo := NewLinkRepository(openTestDB(t))

	require.NoError(t, repo.CreateLink(&models.Link{OriginalURL: "https://a.example", ShortCode: "aaa111"}))
	require.NoError(t, repo.CreateLink(&models.Link{OriginalURL: "https://b.example", ShortCode: "bbb222"}))

	links, err := repo.GetAllLinks()
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestFindClicksByLinkIDOrdersMostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	linkRepo := NewLinkRepository(db)
	clickRepo := NewClickRepository(db)

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"}
	require.NoError(t, linkRepo.CreateLink(link))

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, clickRepo.CreateClick(&models.Click{
			LinkID:    link.ID,
			IPAddress: "203.0.113.9",
			ClickedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	clicks, err := clickRepo.FindClicksByLinkID(link.ID)
	require.NoError(t, err)
	require.Len(t, clicks, 3)
	assert.True(t, clicks[0].ClickedAt.After(clicks[1].ClickedAt))
	assert.True(t, clicks[1].ClickedAt.After(clicks[2].ClickedAt))
}

func TestCountClicksByLinkID(t *testing.T) {
	db := openTestDB(t)
	linkRepo := NewLinkRepository(db)
	clickRepo := NewClickRepository(db)

	link := &models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"}
	require.NoError(t, linkRepo.CreateLink(link))

	count, err := clickRepo.CountClicksByLinkID(link.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 0; i < 4; i++ {
		require.NoError(t, clickRepo.CreateClick(&models.Click{LinkID: link.ID, ClickedAt: time.Now()}))
	}

	count, err = clickRepo.CountClicksByLinkID(link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
