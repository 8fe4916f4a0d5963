package db

import (
	"siteforge/internal/logging"
	"siteforge/pkg/models"

	"go.uber.org/zap"
)

var starterTemplates = []models.Template{
	{Name: "Folio", WebsiteType: "portfolio", Description: "Minimal portfolio with a project grid", Popular: true},
	{Name: "Launchpad", WebsiteType: "saas", Description: "SaaS landing page with pricing section", Popular: true},
	{Name: "Trattoria", WebsiteType: "restaurant", Description: "Restaurant site with menu and reservations"},
	{Name: "Storefront", WebsiteType: "ecommerce", Description: "Product catalog with featured items"},
	{Name: "Journal", WebsiteType: "blog", Description: "Clean blog layout with article list"},
	{Name: "Cornerstone", WebsiteType: "business", Description: "General business site with services section", Popular: true},
}

// Seed inserts the starter template catalog on first boot. Existing
// rows are left untouched.
func (d *Database) Seed() error {
	var count int64
	if err := d.DB.Model(&models.Template{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := d.DB.Create(&starterTemplates).Error; err != nil {
		return err
	}
	logging.L().Info("seeded starter templates", zap.Int("count", len(starterTemplates)))
	return nil
}
