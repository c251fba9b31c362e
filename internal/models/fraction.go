package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var percentageDivisor = decimal.NewFromInt(100)

// Fraction is the statutory share of a unit for one expense category.
type Fraction struct {
	DefaultModel
	CategoryID uuid.UUID `gorm:"uniqueIndex:fraction_category_unit"`
	Category   Category  `json:"-"`
	UnitID     uuid.UUID `gorm:"uniqueIndex:fraction_category_unit"`
	Unit       Unit      `json:"-"`

	// Percentage is stored either normalized in [0,1] or as a whole
	// percentage like 26.4. Use Normalized for computations.
	Percentage decimal.Decimal `gorm:"type:DECIMAL(20,9)"`
}

var ErrFractionNotUnique = errors.New("there is already a fraction for this category and unit")

// Normalized returns the percentage as a fraction in [0,1].
// Values above 1 are interpreted as whole percentages and divided by 100.
func (f Fraction) Normalized() decimal.Decimal {
	if f.Percentage.GreaterThan(decimal.NewFromInt(1)) {
		return f.Percentage.Div(percentageDivisor)
	}

	return f.Percentage
}

// FractionsFor returns all fraction records of a category with their units
// preloaded.
func FractionsFor(db *gorm.DB, categoryID uuid.UUID) ([]Fraction, error) {
	var fractions []Fraction
	err := db.Preload("Unit").Where("category_id = ?", categoryID).Find(&fractions).Error
	return fractions, err
}

// FractionMap returns the normalized fractions of a category keyed by unit ID.
func FractionMap(db *gorm.DB, categoryID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	fractions, err := FractionsFor(db, categoryID)
	if err != nil {
		return nil, err
	}

	fractionMap := make(map[uuid.UUID]decimal.Decimal, len(fractions))
	for _, fraction := range fractions {
		fractionMap[fraction.UnitID] = fraction.Normalized()
	}

	return fractionMap, nil
}
