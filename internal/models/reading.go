package models

import (
	"errors"

	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Meter indexes. Water and gas use a single meter, energy has two
// independent meters per unit.
const (
	MeterOne uint8 = 1
	MeterTwo uint8 = 2
)

// Reading is a cumulative meter reading for a unit in a billing period.
// Readings are scoped to the metered category, the same unit has separate
// water, gas and energy meters.
type Reading struct {
	DefaultModel
	CategoryID uuid.UUID       `gorm:"uniqueIndex:reading_category_unit_month_meter"`
	Category   Category        `json:"-"`
	UnitID     uuid.UUID       `gorm:"uniqueIndex:reading_category_unit_month_meter"`
	Unit       Unit            `json:"-"`
	Month      types.Month     `gorm:"uniqueIndex:reading_category_unit_month_meter"`
	Meter      uint8           `gorm:"uniqueIndex:reading_category_unit_month_meter;default:1"`
	Value      decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var ErrReadingNotUnique = errors.New("there is already a reading for this category, unit, month and meter")

// ReadingFor returns the reading for a category, unit, month and meter.
// The second return value reports whether the reading exists.
func ReadingFor(db *gorm.DB, categoryID, unitID uuid.UUID, month types.Month, meter uint8) (Reading, bool) {
	var reading Reading
	err := db.Where("category_id = ?", categoryID).
		Where("unit_id = ?", unitID).
		Where("month = ?", month).
		Where("meter = ?", meter).
		First(&reading).Error

	return reading, err == nil
}

// UpsertReading writes a reading, replacing an existing one for the same
// category, unit, month and meter.
func UpsertReading(db *gorm.DB, categoryID, unitID uuid.UUID, month types.Month, meter uint8, value decimal.Decimal) error {
	reading, ok := ReadingFor(db, categoryID, unitID, month, meter)
	if ok {
		reading.Value = value
		return db.Save(&reading).Error
	}

	return db.Create(&Reading{
		CategoryID: categoryID,
		UnitID:     unitID,
		Month:      month,
		Meter:      meter,
		Value:      value,
	}).Error
}

// Consumption returns the consumption of a unit for a month and meter:
// the current reading minus the previous period's reading, floored at
// zero. A missing reading on either side counts as zero consumption.
func Consumption(db *gorm.DB, categoryID, unitID uuid.UUID, month types.Month, meter uint8) decimal.Decimal {
	current, ok := ReadingFor(db, categoryID, unitID, month, meter)
	if !ok {
		return decimal.Zero
	}

	previous, ok := ReadingFor(db, categoryID, unitID, month.Previous(), meter)
	if !ok {
		return decimal.Zero
	}

	consumption := current.Value.Sub(previous.Value)
	if consumption.IsNegative() {
		return decimal.Zero
	}

	return consumption
}

// DualMeterConsumption returns the summed consumption of both meters for
// a unit and month.
func DualMeterConsumption(db *gorm.DB, categoryID, unitID uuid.UUID, month types.Month) decimal.Decimal {
	return Consumption(db, categoryID, unitID, month, MeterOne).
		Add(Consumption(db, categoryID, unitID, month, MeterTwo))
}

// AggregateConsumption sums the both-meter consumption of all units for a
// category and month. This feeds the common-area energy derivation and
// deliberately includes units without fraction records.
func AggregateConsumption(db *gorm.DB, categoryID uuid.UUID, month types.Month) (decimal.Decimal, error) {
	units, err := Units(db)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, unit := range units {
		total = total.Add(DualMeterConsumption(db, categoryID, unit.ID, month))
	}

	return total, nil
}

// ClearReadings deletes all readings recorded for a category in a month.
// Used when a metered expense is recomputed and the period's readings are
// rewritten as a whole.
func ClearReadings(db *gorm.DB, categoryID uuid.UUID, month types.Month) error {
	return db.Unscoped().
		Where("category_id = ?", categoryID).
		Where("month = ?", month).
		Delete(&Reading{}).Error
}
