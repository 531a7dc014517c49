package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusPaid     = "paid"
)

// Order is a customer order placed against a store. PaymentStatus is
// terminal once approved or paid; verification never moves it back.
type Order struct {
	ID            string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	StoreID       string    `gorm:"type:varchar(64);not null;index" json:"store_id"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	TotalAmount   float64   `gorm:"not null;default:0" json:"total_amount"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaymentSettled reports whether the order already holds a terminal
// payment status.
func (o *Order) IsPaymentSettled() bool {
	return o.PaymentStatus == PaymentStatusApproved || o.PaymentStatus == PaymentStatusPaid
}
