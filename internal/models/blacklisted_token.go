package models

import "time"

// BlacklistedToken records a revoked JWT until its natural expiry, after which
// the row is dead weight and may be purged.
type BlacklistedToken struct {
	ID        uint      `gorm:"primarykey"`
	Token     string    `gorm:"uniqueIndex;size:512;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
