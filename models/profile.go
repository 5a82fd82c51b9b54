package models

import "time"

// Profile holds the user-entered identity and financial fields shown in the
// questionnaire (one-to-one with User). Fields are mutated one at a time as
// the user types; logout blanks them without deleting the row.
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint `gorm:"uniqueIndex;not null" json:"-"` // one-to-one relation
	User      User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	Name            string  `gorm:"size:255" json:"name"`
	City            string  `gorm:"size:255" json:"city"`
	Country         string  `gorm:"size:255" json:"country"`
	Nationality     string  `gorm:"size:255" json:"nationality"`
	MonthlyExpenses float64 `json:"monthly_expenses"`
	OwnedAssetValue float64 `json:"owned_asset_value"`
	DebtDescription string  `gorm:"size:512" json:"debt_description"`
	ResumeFilename  string  `gorm:"size:255" json:"resume_filename"`
	Completed       bool    `gorm:"default:false;not null" json:"completed"`
}

// ProfileChanges is a field-by-field patch; nil means leave unchanged.
type ProfileChanges struct {
	Name            *string  `json:"name"`
	City            *string  `json:"city"`
	Country         *string  `json:"country"`
	Nationality     *string  `json:"nationality"`
	MonthlyExpenses *float64 `json:"monthly_expenses"`
	OwnedAssetValue *float64 `json:"owned_asset_value"`
	DebtDescription *string  `json:"debt_description"`
	ResumeFilename  *string  `json:"resume_filename"`
	Completed       *bool    `json:"completed"`
}

// Apply copies the set fields onto p.
func (c ProfileChanges) Apply(p *Profile) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.City != nil {
		p.City = *c.City
	}
	if c.Country != nil {
		p.Country = *c.Country
	}
	if c.Nationality != nil {
		p.Nationality = *c.Nationality
	}
	if c.MonthlyExpenses != nil {
		p.MonthlyExpenses = *c.MonthlyExpenses
	}
	if c.OwnedAssetValue != nil {
		p.OwnedAssetValue = *c.OwnedAssetValue
	}
	if c.DebtDescription != nil {
		p.DebtDescription = *c.DebtDescription
	}
	if c.ResumeFilename != nil {
		p.ResumeFilename = *c.ResumeFilename
	}
	if c.Completed != nil {
		p.Completed = *c.Completed
	}
}

// Reset blanks every user-entered field. Used on logout.
func (p *Profile) Reset() {
	p.Name = ""
	p.City = ""
	p.Country = ""
	p.Nationality = ""
	p.MonthlyExpenses = 0
	p.OwnedAssetValue = 0
	p.DebtDescription = ""
	p.ResumeFilename = ""
	p.Completed = false
}
