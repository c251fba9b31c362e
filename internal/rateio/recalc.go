package rateio

import (
	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// reserveRate is the statutory reserve fund rate: 10% of the base
// category totals.
var reserveRate = decimal.RequireFromString("0.1")

// recalcReserveFund recomputes the reserve fund expense for a month and
// regenerates its allocations. It runs on every create, update and
// delete of a base-category expense for the month, deletions included,
// so the fund never goes stale.
//
// Missing configuration degrades to a no-op: the recomputation is
// idempotent and self-corrects on the next write.
func (e *Engine) recalcReserveFund(tx *gorm.DB, month types.Month) error {
	category, ok := models.CategoryByDerivation(tx, models.DerivationReserveFund)
	if !ok {
		e.log.Warn().Str("month", month.String()).Msg("no reserve fund category configured, skipping recomputation")
		return nil
	}

	base, err := models.SumBaseTotals(tx, month)
	if err != nil {
		return err
	}

	amount := round2(base.Mul(reserveRate))

	expense, ok := models.LatestExpense(tx, category.ID, month)
	if !ok {
		expense = models.Expense{
			CategoryID: category.ID,
			Month:      month,
		}
	}

	expense.TotalAmount = amount
	err = saveExpense(tx, &expense)
	if err != nil {
		return err
	}

	fractions, err := models.FractionsFor(tx, category.ID)
	if err != nil {
		return err
	}

	err = models.ReplaceAllocations(tx, expense.ID, e.splitHalfShare(amount, fractions))
	if err != nil {
		return err
	}

	recomputations.WithLabelValues("reserve_fund").Inc()
	return nil
}

// commonAreaTotal computes the derived common-area energy total for a
// month: the salon energy invoice minus what the metered private
// consumption cost, summed over all units and both meters. The result
// may be negative, no floor is applied.
//
// Missing upstream data degrades to zero.
func (e *Engine) commonAreaTotal(db *gorm.DB, month types.Month) decimal.Decimal {
	salon, ok := models.CategoryByKind(db, models.KindDualMeter)
	if !ok {
		return decimal.Zero
	}

	source, ok := models.LatestExpense(db, salon.ID, month)
	if !ok || source.Energy == nil {
		return decimal.Zero
	}

	aggregate, err := models.AggregateConsumption(db, salon.ID, month)
	if err != nil {
		e.log.Warn().Err(err).Str("month", month.String()).Msg("could not aggregate energy consumption")
		return decimal.Zero
	}

	return round2(source.Energy.Invoice.Sub(source.Energy.CostPerKWh.Mul(aggregate)))
}

// recalcCommonAreaEnergy recomputes the common-area energy expense for a
// month from the latest salon energy parameters, clears same-month
// duplicates and regenerates the half-share allocations. Since
// common-area energy is itself a base category, the reserve fund is
// recomputed afterwards. One hop, terminal: this never triggers another
// salon energy recomputation.
func (e *Engine) recalcCommonAreaEnergy(tx *gorm.DB, month types.Month) error {
	category, ok := models.CategoryByDerivation(tx, models.DerivationCommonAreaEnergy)
	if !ok {
		e.log.Warn().Str("month", month.String()).Msg("no common-area energy category configured, skipping recomputation")
		return nil
	}

	total := e.commonAreaTotal(tx, month)

	// Single expense per month: keep the newest row, drop duplicates.
	expense, ok := models.LatestExpense(tx, category.ID, month)
	if ok {
		err := deleteExpensesFor(tx, category.ID, month, &expense.ID)
		if err != nil {
			return err
		}
	} else {
		expense = models.Expense{
			CategoryID: category.ID,
			Month:      month,
		}
	}

	expense.TotalAmount = total
	err := saveExpense(tx, &expense)
	if err != nil {
		return err
	}

	fractions, err := models.FractionsFor(tx, category.ID)
	if err != nil {
		return err
	}

	err = models.ReplaceAllocations(tx, expense.ID, e.splitHalfShare(total, fractions))
	if err != nil {
		return err
	}

	recomputations.WithLabelValues("common_area_energy").Inc()

	// Common-area energy feeds the reserve fund.
	return e.recalcReserveFund(tx, month)
}

// deleteExpensesFor hard-deletes all expenses of a category for a month,
// except the one referenced by keep, together with their allocations.
func deleteExpensesFor(tx *gorm.DB, categoryID uuid.UUID, month types.Month, keep *uuid.UUID) error {
	expenses, err := models.ExpensesFor(tx, categoryID, month)
	if err != nil {
		return err
	}

	for _, expense := range expenses {
		if keep != nil && expense.ID == *keep {
			continue
		}

		err = models.ClearAllocations(tx, expense.ID)
		if err != nil {
			return err
		}

		err = tx.Unscoped().Delete(&expense).Error
		if err != nil {
			return err
		}
	}

	return nil
}
