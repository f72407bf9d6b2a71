package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SentOrder archives an order summary after the notifier accepted it.
type SentOrder struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       string          `gorm:"type:text;not null" json:"order_id"`
	SessionID     string          `gorm:"type:text;not null" json:"session_id"`
	CustomerName  string          `gorm:"type:text;not null" json:"customer_name"`
	CustomerEmail string          `gorm:"type:text;not null" json:"customer_email"`
	CustomerPhone string          `gorm:"type:text" json:"customer_phone,omitempty"`
	Company       string          `gorm:"type:text" json:"company,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	OrderLines    string          `gorm:"type:text;not null" json:"order_lines"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Currency      string          `gorm:"type:text;not null" json:"currency"`
	Destination   string          `gorm:"type:text;not null" json:"destination"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (SentOrder) TableName() string {
	return "sent_orders"
}
