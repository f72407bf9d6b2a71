package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/viylo-storefront/pkg/db/models"
	"github.com/angelmondragon/viylo-storefront/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Archive records orders the notifier accepted.
type Archive interface {
	Record(ctx context.Context, sessionID string, payload Payload) (*models.SentOrder, error)
}

// Repository reads and writes archived orders.
type Repository interface {
	Archive
	FindByOrderID(ctx context.Context, orderID string) ([]models.SentOrder, error)
	List(ctx context.Context, params pagination.Params) (Page, error)
}

// Page is one slice of the archive, newest first.
type Page struct {
	Orders     []models.SentOrder `json:"orders"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order archive bound to the provided DB.
func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &repository{db: db}, nil
}

func (r *repository) Record(ctx context.Context, sessionID string, payload Payload) (*models.SentOrder, error) {
	record := &models.SentOrder{
		ID:            uuid.New(),
		OrderID:       payload.OrderID,
		SessionID:     sessionID,
		CustomerName:  payload.Customer.Name,
		CustomerEmail: payload.Customer.Email,
		CustomerPhone: payload.Customer.Phone,
		Company:       payload.Customer.Company,
		Notes:         payload.Customer.Notes,
		OrderLines:    payload.OrderLines,
		Subtotal:      payload.Subtotal,
		Tax:           payload.Tax,
		Total:         payload.Total,
		Currency:      payload.Currency,
		Destination:   payload.Destination,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByOrderID returns every archived order with the id, newest first.
// Ids are not unique so more than one row may match.
func (r *repository) FindByOrderID(ctx context.Context, orderID string) ([]models.SentOrder, error) {
	var rows []models.SentOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List pages through the archive ordered by (created_at, id) descending.
func (r *repository) List(ctx context.Context, params pagination.Params) (Page, error) {
	limit, after, err := params.Window()
	if err != nil {
		return Page{}, err
	}

	query := r.db.WithContext(ctx).Model(&models.SentOrder{})
	if after != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}

	var rows []models.SentOrder
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return Page{}, err
	}

	var page Page
	page.Orders, page.NextCursor = pagination.Trim(rows, limit, func(o models.SentOrder) pagination.Key {
		return pagination.Key{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, nil
}
