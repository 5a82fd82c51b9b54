package models

import "time"

// User model. The demo build carries a single seeded account; the schema
// still keys everything by user id so a real identity provider can slot in.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index"`
	Email          string     `gorm:"size:255;not null;unique"`
	HashedPassword []byte     `gorm:"not null" json:"-"`
	Profile        *Profile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Offers         []OfferUpload
}
