package main

import (
	"errors"

	"gorm.io/gorm"

	"github.com/louisvcarpet/offergo/models"
)

// ProfileStore is the persistence port for the user's questionnaire profile.
// The concrete backend is injected so handlers never reach for ambient
// storage.
type ProfileStore interface {
	// Load returns the profile, creating an empty one on first access.
	Load(userID uint) (*models.Profile, error)
	// Update applies a field-by-field patch and persists the result.
	Update(userID uint, changes models.ProfileChanges) (*models.Profile, error)
	// Clear blanks all user-entered fields. Safe to call when nothing is set.
	Clear(userID uint) error
}

type gormProfileStore struct {
	db *gorm.DB
}

func newGormProfileStore(db *gorm.DB) *gormProfileStore {
	return &gormProfileStore{db: db}
}

func (s *gormProfileStore) Load(userID uint) (*models.Profile, error) {
	var p models.Profile
	err := s.db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.Profile{UserID: userID}
		if err := s.db.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormProfileStore) Update(userID uint, changes models.ProfileChanges) (*models.Profile, error) {
	p, err := s.Load(userID)
	if err != nil {
		return nil, err
	}
	changes.Apply(p)
	if err := s.db.Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *gormProfileStore) Clear(userID uint) error {
	p, err := s.Load(userID)
	if err != nil {
		return err
	}
	p.Reset()
	return s.db.Save(p).Error
}
