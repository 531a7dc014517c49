package models

import "time"

// Store is a merchant tenant. The gateway access token doubles as the
// HMAC secret for webhook verification and as the bearer credential for
// gateway API calls.
type Store struct {
	ID               string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(191);not null" json:"name"`
	MPAccessToken    string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	MPWebhookEnabled bool      `gorm:"default:true" json:"mp_webhook_enabled"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
