package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/handlers"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
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

func couponApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	h := handlers.NewCouponHandler(db, services.NewCouponService(db))
	app.Post("/api/coupons/validate", h.Validate)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	return resp, decoded
}

func TestValidateCouponEndpoint(t *testing.T) {
	db := memdb(t)
	coupon := models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		IsActive:      true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatal(err)
	}

	app := couponApp(t, db)

	resp, body := postJSON(t, app, "/api/coupons/validate", `{"code":"save10","subtotal":120}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %v", resp.StatusCode, body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data object: %v", body)
	}
	if data["discountAmount"] != float64(12) {
		t.Fatalf("want discountAmount 12, got %v", data["discountAmount"])
	}
	if data["code"] != "SAVE10" {
		t.Fatalf("want normalized code SAVE10, got %v", data["code"])
	}
}

func TestValidateCouponEndpointNotFound(t *testing.T) {
	db := memdb(t)
	app := couponApp(t, db)

	resp, body := postJSON(t, app, "/api/coupons/validate", `{"code":"NOPE","subtotal":50}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("error body must carry a message: %v", body)
	}
}

func TestValidateCouponEndpointMissingCode(t *testing.T) {
	db := memdb(t)
	app := couponApp(t, db)

	resp, _ := postJSON(t, app, "/api/coupons/validate", `{"subtotal":50}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}
