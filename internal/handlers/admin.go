package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

// AdminHandler serves back-office dashboard data.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// Dashboard returns aggregate counters for the admin dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	var totalOrders, totalUsers, totalProducts, subscriberCount int64

	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.NewsletterSubscriber{}).
		Where("is_active = ?", true).Count(&subscriberCount).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var byStatus []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return err
	}

	paidStatuses := []string{
		models.OrderStatusPaid,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	}

	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status IN ?", paidStatuses).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	since := time.Now().AddDate(0, 0, -30)
	var recentRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status IN ? AND placed_at >= ?", paidStatuses, since).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&recentRevenue).Error; err != nil {
		return err
	}

	var recentOrders []models.Order
	if err := h.db.Preload("Items").
		Order("placed_at desc").
		Limit(10).
		Find(&recentOrders).Error; err != nil {
		return err
	}

	var lowStock []models.ProductVariant
	if err := h.db.Where("is_active = ? AND stock <= ?", true, 5).
		Order("stock asc").
		Limit(20).
		Find(&lowStock).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":       totalOrders,
			"total_users":        totalUsers,
			"total_products":     totalProducts,
			"active_subscribers": subscriberCount,
			"orders_by_status":   byStatus,
			"total_revenue":      totalRevenue,
			"revenue_30_days":    recentRevenue,
			"recent_orders":      recentOrders,
			"low_stock_variants": lowStock,
		},
	})
}

// ListAllOrders returns every order, newest first, for the back office.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.Preload("Items").
		Order("placed_at desc").
		Limit(100).
		Find(&orders).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}
