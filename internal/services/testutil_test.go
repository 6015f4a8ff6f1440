package services_test

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/models"
)

func memdb(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, name string, price float64, stock int) (models.Product, models.ProductVariant) {
	t.Helper()

	product := models.Product{
		Slug:     name,
		Name:     name,
		IsActive: true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}

	variant := models.ProductVariant{
		ProductID: product.ID,
		SKU:       name + "-sku",
		Size:      "M",
		Price:     price,
		Stock:     stock,
		IsActive:  true,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatal(err)
	}
	return product, variant
}
