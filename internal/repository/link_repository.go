package repository

import (
	"fmt"

	"github.com/marcvidal/linkshortener/internal/models"
	"gorm.io/gorm"
)

// LinkRepository est une interface qui définit les méthodes d'accès aux données
type LinkRepository interface {
	CreateLink(link *models.Link) error
	UpdateLink(link *models.Link) error
	DeleteLink(linkID uint) error
	GetLinkByID(linkID uint) (*models.Link, error)
	GetLinkByShortCode(shortCode string) (*models.Link, error)
	GetLinkByAlias(alias string) (*models.Link, error)
	ExistsByShortCode(shortCode string) (bool, error)
	ExistsByAlias(alias string) (bool, error)
	IncrementClickCount(linkID uint) (int64, error)
	GetAllLinks() ([]models.Link, error)
}

// GormLinkRepository est l'implémentation de LinkRepository utilisant GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository crée et retourne une nouvelle instance de GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// CreateLink insère un nouveau lien dans la base de données.
func (r *GormLinkRepository) CreateLink(link *models.Link) error {
	if err := r.db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// UpdateLink persiste les champs modifiés d'un lien existant.
func (r *GormLinkRepository) UpdateLink(link *models.Link) error {
	if err := r.db.Save(link).Error; err != nil {
		return fmt.Errorf("failed to update link %d: %w", link.ID, err)
	}
	return nil
}

// DeleteLink supprime un lien et tous ses clics associés.
func (r *GormLinkRepository) DeleteLink(linkID uint) error {
	if err := r.db.Where("link_id = ?", linkID).Delete(&models.Click{}).Error; err != nil {
		return fmt.Errorf("failed to delete clicks for link %d: %w", linkID, err)
	}
	if err := r.db.Delete(&models.Link{}, linkID).Error; err != nil {
		return fmt.Errorf("failed to delete link %d: %w", linkID, err)
	}
	return nil
}

// GetLinkByID récupère un lien par sa clé primaire.
func (r *GormLinkRepository) GetLinkByID(linkID uint) (*models.Link, error) {
	var link models.Link
	if err := r.db.First(&link, linkID).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// GetLinkByShortCode récupère un lien de la base de données en utilisant son shortCode.
func (r *GormLinkRepository) GetLinkByShortCode(shortCode string) (*models.Link, error) {
	var link models.Link
	if err := r.db.Where("short_code = ?", shortCode).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// GetLinkByAlias récupère un lien par son alias personnalisé.
func (r *GormLinkRepository) GetLinkByAlias(alias string) (*models.Link, error) {
	var link models.Link
	if err := r.db.Where("custom_alias = ?", alias).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// ExistsByShortCode vérifie si un shortCode est déjà utilisé.
func (r *GormLinkRepository) ExistsByShortCode(shortCode string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Link{}).Where("short_code = ?", shortCode).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check short code existence: %w", err)
	}
	return count > 0, nil
}

// ExistsByAlias vérifie si un alias personnalisé est déjà utilisé.
func (r *GormLinkRepository) ExistsByAlias(alias string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Link{}).Where("custom_alias = ?", alias).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check alias existence: %w", err)
	}
	return count > 0, nil
}

// IncrementClickCount incrémente le compteur de clics d'un lien de façon
// atomique côté base ("click_count = click_count + 1") et retourne le nouveau
// total. L'incrément n'est jamais calculé en mémoire applicative, pour ne pas
// perdre de mises à jour sous clics concurrents.
func (r *GormLinkRepository) IncrementClickCount(linkID uint) (int64, error) {
	res := r.db.Model(&models.Link{}).Where("id = ?", linkID).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment click count for link %d: %w", linkID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var count int64
	if err := r.db.Model(&models.Link{}).Where("id = ?", linkID).
		Pluck("click_count", &count).Error; err != nil {
		return 0, fmt.Errorf("failed to read click count for link %d: %w", linkID, err)
	}
	return count, nil
}

// GetAllLinks récupère tous les liens de la base de données.
func (r *GormLinkRepository) GetAllLinks() ([]models.Link, error) {
	var links []models.Link
	if err := r.db.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve all links: %w", err)
	}
	return links, nil
}
