package models

import "time"

// OrderPayment records a gateway payment committed against an order. The
// unique (store_id, gateway_payment_id) index is what makes the commit
// procedure idempotent: inserting the same gateway payment twice is a no-op.
type OrderPayment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StoreID          string    `gorm:"type:varchar(64);not null;index:ux_order_payments_store_payment,unique,priority:1" json:"store_id"`
	OrderID          string    `gorm:"type:varchar(64);not null;index" json:"order_id"`
	GatewayPaymentID string    `gorm:"type:varchar(64);not null;index:ux_order_payments_store_payment,unique,priority:2" json:"gateway_payment_id"`
	Amount           float64   `gorm:"not null;default:0" json:"amount"`
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	StatusDetail     string    `gorm:"type:varchar(50);not null;default:'accredited'" json:"status_detail"`
	PaymentMethodID  string    `gorm:"type:varchar(50);not null;default:'unknown'" json:"payment_method_id"`
	PaymentTypeID    string    `gorm:"type:varchar(50);not null;default:'unknown'" json:"payment_type_id"`
	PayerEmail       string    `gorm:"type:varchar(191);not null;default:''" json:"payer_email"`
	ApprovedAt       time.Time `gorm:"type:timestamp;not null" json:"approved_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
