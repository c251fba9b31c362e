package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Allocation is one unit's computed share of an expense.
// The full set for an expense is regenerated whenever the expense is
// recomputed, it is never patched in place.
type Allocation struct {
	DefaultModel
	ExpenseID uuid.UUID       `gorm:"uniqueIndex:allocation_expense_unit"`
	Expense   Expense         `json:"-"`
	UnitID    uuid.UUID       `gorm:"uniqueIndex:allocation_expense_unit"`
	Unit      Unit            `json:"-"`
	Amount    decimal.Decimal `gorm:"type:DECIMAL(20,8)"`

	// Consumption is set for metered categories: the m³ or kWh the
	// amount was computed from.
	Consumption *decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

// AllocationsFor returns the allocations of an expense with their units
// preloaded, ordered by unit name.
func AllocationsFor(db *gorm.DB, expenseID uuid.UUID) ([]Allocation, error) {
	var allocations []Allocation
	err := db.Preload("Unit").
		Joins("JOIN units ON units.id = allocations.unit_id").
		Where("expense_id = ?", expenseID).
		Order("units.name ASC").
		Find(&allocations).Error

	return allocations, err
}

// ClearAllocations deletes all allocations of an expense.
func ClearAllocations(db *gorm.DB, expenseID uuid.UUID) error {
	return db.Unscoped().Where("expense_id = ?", expenseID).Delete(&Allocation{}).Error
}

// ReplaceAllocations clears the allocation set of an expense and writes a
// new one.
func ReplaceAllocations(db *gorm.DB, expenseID uuid.UUID, allocations []Allocation) error {
	err := ClearAllocations(db, expenseID)
	if err != nil {
		return err
	}

	for i := range allocations {
		allocations[i].ExpenseID = expenseID
		if err := db.Create(&allocations[i]).Error; err != nil {
			return err
		}
	}

	return nil
}
