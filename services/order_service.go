package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anjiri1684/zukih_store/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Page struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"last_page"`
}

type DashboardAnalytics struct {
	TotalRevenue      float64                      `json:"total_revenue"`
	CompletedPayments int64                        `json:"completed_payments"`
	OrdersByStatus    map[models.OrderStatus]int64 `json:"orders_by_status"`
	OrdersLast30Days  int64                        `json:"orders_last_30_days"`
	RecentOrders      []models.Order               `json:"recent_orders"`
}

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	return orders, err
}

func (s *OrderService) GetUserOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Payment").
		Where("user_id = ? AND order_number = ?", userID, orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &order, err
}

func (s *OrderService) ListUserPayments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var list []models.Payment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&list).Error
	return list, err
}

func (s *OrderService) GetUserPayment(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", paymentID, userID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &payment, err
}

func (s *OrderService) AdminListPayments(ctx context.Context, status string, page, limit int) ([]models.Payment, Page, error) {
	page, limit = normalizePage(page, limit)

	query := s.db.WithContext(ctx).Model(&models.Payment{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Page{}, err
	}

	var list []models.Payment
	err := query.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	return list, newPage(total, page, limit), err
}

func (s *OrderService) AdminListOrders(ctx context.Context, status string, page, limit int) ([]models.Order, Page, error) {
	page, limit = normalizePage(page, limit)

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Page{}, err
	}

	var orders []models.Order
	err := query.Preload("Payment").Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&orders).Error
	return orders, newPage(total, page, limit), err
}

// UpdateOrderStatus moves an order along its fulfilment lifecycle.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !order.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
		}
		if status != models.OrderCancelled && order.PaymentID == nil {
			return ErrOrderNotPaid
		}
		return tx.Model(&order).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"order_id": order.ID, "status": status}).Info("Order status updated")
	return &order, nil
}

func (s *OrderService) Dashboard(ctx context.Context) (*DashboardAnalytics, error) {
	db := s.db.WithContext(ctx)
	response := DashboardAnalytics{OrdersByStatus: map[models.OrderStatus]int64{}}

	err := db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&response.TotalRevenue)
	if err != nil {
		return nil, err
	}

	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentCompleted).Count(&response.CompletedPayments).Error; err != nil {
		return nil, err
	}

	var counts []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		response.OrdersByStatus[c.Status] = c.Count
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.Order{}).Where("created_at > ?", thirtyDaysAgo).Count(&response.OrdersLast30Days).Error; err != nil {
		return nil, err
	}

	if err := db.Order("created_at desc").Limit(5).Preload("Payment").Find(&response.RecentOrders).Error; err != nil {
		return nil, err
	}
	return &response, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func newPage(total int64, page, limit int) Page {
	return Page{
		Total:    total,
		Page:     page,
		LastPage: int(math.Ceil(float64(total) / float64(limit))),
	}
}
