// Package rateio implements the apportionment engine: it computes each
// unit's share of the shared condominium expenses for a billing period
// and keeps the derived categories consistent with their inputs.
package rateio

import (
	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultCommercialPattern matches the name of the commercial room that
// pays half its statutory fraction. Matching is case-insensitive.
const DefaultCommercialPattern = "*sala*"

// Engine computes apportionments on top of the data model.
//
// All writes of one logical operation run in a single transaction:
// either the expense, its readings, its allocations and the cascaded
// derived expenses are all updated, or none of them are.
type Engine struct {
	db                *gorm.DB
	log               zerolog.Logger
	commercialPattern string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithCommercialPattern sets the glob pattern identifying the commercial
// room by unit name.
func WithCommercialPattern(pattern string) Option {
	return func(e *Engine) {
		e.commercialPattern = pattern
	}
}

// New returns an Engine on top of db.
func New(db *gorm.DB, opts ...Option) *Engine {
	engine := &Engine{
		db:                db,
		log:               log.Logger,
		commercialPattern: DefaultCommercialPattern,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// ReadingInput is one meter reading entered with an expense. Units whose
// reading was left blank are simply not part of the batch.
type ReadingInput struct {
	UnitID uuid.UUID
	Meter  uint8
	Value  string
}

// LineItemInput is one invoice line of a split expense.
type LineItemInput struct {
	Supplier          string
	Description       string
	Number            string
	Amount            string
	ExcludeCommercial bool
}

// WaterInput carries the raw water invoice parameters.
type WaterInput struct {
	Invoice string
	TotalM3 string
}

// GasInput carries the raw gas recharge parameters.
type GasInput struct {
	Recharge   string
	Kg         string
	M3PerKg    string
	PricePerM3 string
}

// EnergyInput carries the raw salon energy parameters.
type EnergyInput struct {
	Invoice    string
	TotalKWh   string
	CostPerKWh string
	UsageRate  string
}

// ExpenseInput is everything a caller enters for one expense. Numeric
// fields are raw strings from the boundary, malformed values are coerced
// to zero by ParseAmount.
type ExpenseInput struct {
	CategoryID uuid.UUID
	Month      types.Month
	Note       string

	// Amount is the entered total for fraction, half-share and
	// record-only categories, and the per-unit amount for flat ones.
	Amount string

	Water  *WaterInput
	Gas    *GasInput
	Energy *EnergyInput

	Readings  []ReadingInput
	LineItems []LineItemInput

	// Manual holds one entered amount per unit for manual categories.
	Manual map[uuid.UUID]string
}

// RecordReading upserts a single meter reading outside of an expense
// computation. Recomputation of the depending expense is up to the
// caller's next upsert.
func (e *Engine) RecordReading(categoryID, unitID uuid.UUID, month types.Month, meter uint8, value decimal.Decimal) error {
	return models.UpsertReading(e.db, categoryID, unitID, month, meter, value)
}

// UpsertExpense writes an expense, apportions it and synchronously
// recomputes all depending derived expenses, all in one transaction.
//
// For derived categories the entered parameters are ignored and the
// derivation is recomputed instead.
func (e *Engine) UpsertExpense(input ExpenseInput) (models.Expense, error) {
	var expense models.Expense

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var category models.Category
		err := tx.First(&category, input.CategoryID).Error
		if err != nil {
			return err
		}

		if category.IsDerived() {
			err = e.recalcDerived(tx, category, input.Month)
			if err != nil {
				return err
			}

			found, ok := models.LatestExpense(tx, category.ID, input.Month)
			if ok {
				expense = found
			}
			return nil
		}

		expense, err = e.apportion(tx, category, input)
		if err != nil {
			return err
		}

		// The salon energy parameters and readings feed the
		// common-area energy derivation, which is itself a base
		// category. One hop, terminal.
		if category.Kind == models.KindDualMeter {
			return e.recalcCommonAreaEnergy(tx, input.Month)
		}

		if category.BaseForReserve || e.siblingIsBase(tx, category) {
			return e.recalcReserveFund(tx, input.Month)
		}

		return nil
	})

	return expense, err
}

// DeleteExpense removes an expense, its allocations and, for metered
// categories, the period's readings. Deleting a base-category expense
// recomputes the reserve fund so that it never stays stale.
func (e *Engine) DeleteExpense(id uuid.UUID) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var expense models.Expense
		err := tx.Preload("Category").First(&expense, id).Error
		if err != nil {
			return err
		}

		err = models.ClearAllocations(tx, expense.ID)
		if err != nil {
			return err
		}

		err = models.ReplaceLineItems(tx, expense.ID, nil)
		if err != nil {
			return err
		}

		err = tx.Delete(&expense).Error
		if err != nil {
			return err
		}

		// A metered expense takes its period's readings with it so that
		// a later upsert does not inherit stale current values.
		if expense.Category.Kind == models.KindMetered || expense.Category.Kind == models.KindDualMeter {
			err = models.ClearReadings(tx, expense.CategoryID, expense.Month)
			if err != nil {
				return err
			}
		}

		if expense.Category.BaseForReserve {
			return e.recalcReserveFund(tx, expense.Month)
		}

		return nil
	})
}

// Allocations returns the allocation set of an expense.
func (e *Engine) Allocations(expenseID uuid.UUID) ([]models.Allocation, error) {
	return models.AllocationsFor(e.db, expenseID)
}

// EditAllocation sets the amount of a single allocation and resyncs the
// expense total to the sum of its allocation set. Editing an allocation
// that does not exist propagates the not-found error.
func (e *Engine) EditAllocation(id uuid.UUID, amount decimal.Decimal) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var allocation models.Allocation
		err := tx.First(&allocation, id).Error
		if err != nil {
			return err
		}

		allocation.Amount = round2(amount)
		err = tx.Save(&allocation).Error
		if err != nil {
			return err
		}

		allocations, err := models.AllocationsFor(tx, allocation.ExpenseID)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, a := range allocations {
			total = total.Add(a.Amount)
		}

		return e.setExpenseTotal(tx, allocation.ExpenseID, round2(total))
	})
}

// ClearAllocations removes all allocations of an expense and zeroes its
// total.
func (e *Engine) ClearAllocations(expenseID uuid.UUID) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		err := models.ClearAllocations(tx, expenseID)
		if err != nil {
			return err
		}

		return e.setExpenseTotal(tx, expenseID, decimal.Zero)
	})
}

// setExpenseTotal rewrites an expense total and recomputes the reserve
// fund when the category feeds it.
func (e *Engine) setExpenseTotal(tx *gorm.DB, expenseID uuid.UUID, total decimal.Decimal) error {
	var expense models.Expense
	err := tx.First(&expense, expenseID).Error
	if err != nil {
		return err
	}

	expense.TotalAmount = total
	err = tx.Save(&expense).Error
	if err != nil {
		return err
	}

	var category models.Category
	err = tx.First(&category, expense.CategoryID).Error
	if err != nil {
		return err
	}

	if category.BaseForReserve {
		return e.recalcReserveFund(tx, expense.Month)
	}

	return nil
}

// DisplayAmount returns the amount to display for an expense. For
// derived categories this is the live-recomputed value, which may differ
// from the stored total when inputs changed since the last write.
func (e *Engine) DisplayAmount(expenseID uuid.UUID) (decimal.Decimal, error) {
	var expense models.Expense
	err := e.db.Preload("Category").First(&expense, expenseID).Error
	if err != nil {
		return decimal.Zero, err
	}

	switch expense.Category.Derivation {
	case models.DerivationReserveFund:
		base, err := models.SumBaseTotals(e.db, expense.Month)
		if err != nil {
			return decimal.Zero, err
		}
		return round2(base.Mul(reserveRate)), nil
	case models.DerivationCommonAreaEnergy:
		return e.commonAreaTotal(e.db, expense.Month), nil
	}

	return expense.TotalAmount, nil
}

// recalcDerived recomputes a derived category directly.
func (e *Engine) recalcDerived(tx *gorm.DB, category models.Category, month types.Month) error {
	switch category.Derivation {
	case models.DerivationReserveFund:
		return e.recalcReserveFund(tx, month)
	case models.DerivationCommonAreaEnergy:
		return e.recalcCommonAreaEnergy(tx, month)
	}

	return nil
}

// siblingIsBase reports whether the excluded bucket of a split category
// feeds the reserve fund.
func (e *Engine) siblingIsBase(tx *gorm.DB, category models.Category) bool {
	if category.SiblingID == nil {
		return false
	}

	var sibling models.Category
	err := tx.First(&sibling, *category.SiblingID).Error
	if err != nil {
		return false
	}

	return sibling.BaseForReserve
}
