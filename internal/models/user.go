package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account established by the external identity provider. The
// external id is the only credential this service ever sees.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID string         `gorm:"uniqueIndex;not null" json:"externalId"`
	Username   string         `gorm:"not null" json:"username"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
