package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet statuses
const (
	WalletStatusActive   = "active"
	WalletStatusInactive = "inactive"
)

// Wallet identifies an account holder. Wallets are never deleted, only deactivated.
type Wallet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"owner_id"`
	Status    string    `gorm:"not null;default:'active'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = WalletStatusActive
	}
	return nil
}

func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}
