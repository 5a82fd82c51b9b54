package models

import (
	"strings"
	"time"
)

// OfferUpload is one uploaded compensation document. Whenever a user has any
// uploads at all, exactly one of them is marked current; that one drives the
// submission pipeline.
type OfferUpload struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      uint   `gorm:"index;not null" json:"-"`
	FileName    string `gorm:"size:255;not null" json:"filename"`
	StorePath   string `gorm:"column:store_path;size:512" json:"-"`
	ContentType string `gorm:"size:128" json:"content_type"`
	IsCurrent   bool   `gorm:"default:false;index" json:"is_current"`
}

// IsPDF accepts either a pdf content type or a .pdf filename.
func (o OfferUpload) IsPDF() bool {
	if strings.EqualFold(strings.TrimSpace(o.ContentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(o.FileName), ".pdf")
}

// EnsureSingleCurrent re-establishes the invariant over the list: when it is
// non-empty, exactly one entry has IsCurrent set. preferID wins when it names
// an existing entry; otherwise an already-current entry is kept; otherwise
// the first entry becomes current. Returns true when any flag changed.
func EnsureSingleCurrent(offers []OfferUpload, preferID string) bool {
	if len(offers) == 0 {
		return false
	}
	chosen := -1
	if preferID != "" {
		for i := range offers {
			if offers[i].ID == preferID {
				chosen = i
				break
			}
		}
	}
	if chosen == -1 {
		for i := range offers {
			if offers[i].IsCurrent {
				chosen = i
				break
			}
		}
	}
	if chosen == -1 {
		chosen = 0
	}
	changed := false
	for i := range offers {
		want := i == chosen
		if offers[i].IsCurrent != want {
			offers[i].IsCurrent = want
			changed = true
		}
	}
	return changed
}

// CurrentOffer returns the entry marked current, nil when none is.
func CurrentOffer(offers []OfferUpload) *OfferUpload {
	for i := range offers {
		if offers[i].IsCurrent {
			return &offers[i]
		}
	}
	return nil
}
