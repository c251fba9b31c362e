package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryKind selects the allocation strategy for a category.
// It is resolved once when the category is configured, not by matching
// category names on every computation.
type CategoryKind string

const (
	// KindMetered apportions by single-meter consumption times a price
	// per unit of consumption. Used for water and gas.
	KindMetered CategoryKind = "METERED"

	// KindDualMeter apportions by the summed consumption of two meters
	// times a declared tariff. Used for the salon energy category.
	KindDualMeter CategoryKind = "DUAL_METER"

	// KindHalfShareFraction apportions by statutory fractions with the
	// commercial room paying half its fraction. Used for common-area
	// energy and the reserve fund.
	KindHalfShareFraction CategoryKind = "HALF_SHARE_FRACTION"

	// KindFraction apportions by statutory fractions without any
	// half-share rule.
	KindFraction CategoryKind = "FRACTION"

	// KindFlatPerUnit assigns the same fixed amount to every unit.
	KindFlatPerUnit CategoryKind = "FLAT_PER_UNIT"

	// KindSplitWithSibling splits entered line items into two buckets by
	// their commercial-room flag. The excluded bucket is booked on the
	// sibling category.
	KindSplitWithSibling CategoryKind = "SPLIT_WITH_SIBLING"

	// KindManual apportions exactly the per-unit amounts entered by the
	// caller.
	KindManual CategoryKind = "MANUAL"

	// KindRecordOnly records the total without apportioning anything.
	KindRecordOnly CategoryKind = "RECORD_ONLY"
)

// DerivationKind marks categories whose totals are recomputed from other
// expenses instead of being entered directly.
type DerivationKind string

const (
	// DerivationNone is a regular, directly entered category.
	DerivationNone DerivationKind = ""

	// DerivationReserveFund recomputes the total as 10% of the sum of
	// all base-category expenses for the month.
	DerivationReserveFund DerivationKind = "RESERVE_FUND"

	// DerivationCommonAreaEnergy recomputes the total as the energy
	// invoice minus the metered private consumption for the month.
	DerivationCommonAreaEnergy DerivationKind = "COMMON_AREA_ENERGY"
)

// Category represents an expense category, e.g. "Água" or "Fundo de Reserva".
type Category struct {
	DefaultModel
	Name string       `gorm:"uniqueIndex"`
	Kind CategoryKind `gorm:"default:MANUAL"`
	Note string

	// Ordering defines the position in billing statements, lower first.
	Ordering uint `gorm:"default:100"`

	// BaseForReserve marks categories whose totals feed the reserve fund.
	BaseForReserve bool

	Derivation DerivationKind

	// SiblingID references the category that receives the excluded
	// bucket of a KindSplitWithSibling category.
	SiblingID *uuid.UUID
	Sibling   *Category `json:"-"`
}

var (
	ErrCategoryNameNotUnique = errors.New("the category name must be unique")
	ErrCategoryKindUnknown   = errors.New("the category kind is not known")
)

func (c *Category) BeforeSave(_ *gorm.DB) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Note = strings.TrimSpace(c.Note)

	if c.Kind == "" {
		c.Kind = KindManual
	}

	switch c.Kind {
	case KindMetered, KindDualMeter, KindHalfShareFraction, KindFraction,
		KindFlatPerUnit, KindSplitWithSibling, KindManual, KindRecordOnly:
		return nil
	}

	return ErrCategoryKindUnknown
}

// IsDerived reports whether the category is recomputed from other
// expenses.
func (c Category) IsDerived() bool {
	return c.Derivation != DerivationNone
}

// CategoryByDerivation returns the category configured for a derivation.
func CategoryByDerivation(db *gorm.DB, derivation DerivationKind) (Category, bool) {
	var category Category
	err := db.Where("derivation = ?", derivation).First(&category).Error
	return category, err == nil
}

// CategoryByKind returns the first category configured with a kind.
func CategoryByKind(db *gorm.DB, kind CategoryKind) (Category, bool) {
	var category Category
	err := db.Where("kind = ?", kind).First(&category).Error
	return category, err == nil
}

// BaseCategoryIDs returns the IDs of all categories feeding the reserve
// fund.
func BaseCategoryIDs(db *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&Category{}).Where("base_for_reserve = ?", true).Pluck("id", &ids).Error
	return ids, err
}
