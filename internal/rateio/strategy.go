package rateio

import (
	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// apportion selects the allocation strategy by the category kind,
// persists the expense and replaces its allocation set.
func (e *Engine) apportion(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	defer recomputations.WithLabelValues("expense").Inc()

	switch category.Kind {
	case models.KindMetered:
		if input.Gas != nil {
			return e.apportionGas(tx, category, input)
		}
		return e.apportionWater(tx, category, input)
	case models.KindDualMeter:
		return e.apportionDualMeter(tx, category, input)
	case models.KindHalfShareFraction:
		return e.apportionHalfShare(tx, category, input)
	case models.KindFraction:
		return e.apportionFraction(tx, category, input)
	case models.KindFlatPerUnit:
		return e.apportionFlat(tx, category, input)
	case models.KindSplitWithSibling:
		return e.apportionSplit(tx, category, input)
	case models.KindRecordOnly:
		return e.apportionRecordOnly(tx, category, input)
	}

	return e.apportionManual(tx, category, input)
}

// upsertExpenseRow updates the newest expense of the category for the
// month or creates one. When duplicate rows exist, the newest wins.
func upsertExpenseRow(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	expense, ok := models.LatestExpense(tx, category.ID, input.Month)
	if !ok {
		expense = models.Expense{
			CategoryID: category.ID,
			Month:      input.Month,
		}
	}

	expense.Note = input.Note
	return expense, nil
}

func saveExpense(tx *gorm.DB, expense *models.Expense) error {
	if expense.ID == uuid.Nil {
		return tx.Create(expense).Error
	}

	return tx.Save(expense).Error
}

// apportionWater implements the metered water strategy. The price per m³
// is always recomputed as invoice divided by the summed consumption of
// all units, the declared m³ total is stored for reference only.
func (e *Engine) apportionWater(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	water := input.Water
	if water == nil {
		water = &WaterInput{}
	}

	// A new water expense replaces the previous one for the month as a
	// whole, including stray duplicates.
	err := deleteExpensesFor(tx, category.ID, input.Month, nil)
	if err != nil {
		return models.Expense{}, err
	}

	// Readings left blank keep their stored value: only entered ones
	// are rewritten.
	err = e.writeReadings(tx, category.ID, input.Month, input.Readings)
	if err != nil {
		return models.Expense{}, err
	}

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	consumptions := make([]decimal.Decimal, len(units))
	totalConsumption := decimal.Zero
	for i, unit := range units {
		consumptions[i] = models.Consumption(tx, category.ID, unit.ID, input.Month, models.MeterOne)
		totalConsumption = totalConsumption.Add(consumptions[i])
	}

	invoice := ParseAmount(water.Invoice)
	price := safeDiv(invoice, totalConsumption)

	total := decimal.Zero
	allocations := make([]models.Allocation, 0, len(units))
	for i, unit := range units {
		consumption := consumptions[i]
		value := consumption.Mul(price)
		total = total.Add(value)
		allocations = append(allocations, models.Allocation{
			UnitID:      unit.ID,
			Amount:      round2(value),
			Consumption: &consumption,
		})
	}

	expense := models.Expense{
		CategoryID:  category.ID,
		Month:       input.Month,
		Note:        input.Note,
		TotalAmount: round2(total),
		Water: &models.WaterParams{
			Invoice:    invoice,
			TotalM3:    ParseAmount(water.TotalM3),
			PricePerM3: round4(price),
		},
	}

	err = tx.Create(&expense).Error
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionGas implements the metered gas strategy. The price per m³ is
// the declared tariff, not derived from the recharge cost.
func (e *Engine) apportionGas(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	gas := input.Gas
	if gas == nil {
		gas = &GasInput{}
	}

	// The period's gas readings are rewritten as a whole: a unit
	// without an entered reading has zero consumption this month.
	err := models.ClearReadings(tx, category.ID, input.Month)
	if err != nil {
		return models.Expense{}, err
	}

	err = e.writeReadings(tx, category.ID, input.Month, input.Readings)
	if err != nil {
		return models.Expense{}, err
	}

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	price := ParseAmount(gas.PricePerM3)

	total := decimal.Zero
	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		consumption := models.Consumption(tx, category.ID, unit.ID, input.Month, models.MeterOne)
		value := consumption.Mul(price)
		total = total.Add(value)
		allocations = append(allocations, models.Allocation{
			UnitID:      unit.ID,
			Amount:      round2(value),
			Consumption: &consumption,
		})
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = round2(total)
	expense.Gas = &models.GasParams{
		Recharge:   ParseAmount(gas.Recharge),
		Kg:         ParseAmount(gas.Kg),
		M3PerKg:    ParseAmount(gas.M3PerKg),
		PricePerM3: price,
	}

	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionDualMeter implements the salon energy strategy: the summed
// consumption of both meters times the declared usage rate. The invoice
// amount and utility cost per kWh are stored for the common-area energy
// derivation, they do not enter this allocation.
func (e *Engine) apportionDualMeter(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	energy := input.Energy
	if energy == nil {
		energy = &EnergyInput{}
	}

	err := models.ClearReadings(tx, category.ID, input.Month)
	if err != nil {
		return models.Expense{}, err
	}

	err = e.writeReadings(tx, category.ID, input.Month, input.Readings)
	if err != nil {
		return models.Expense{}, err
	}

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	rate := ParseAmount(energy.UsageRate)

	total := decimal.Zero
	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		consumption := models.DualMeterConsumption(tx, category.ID, unit.ID, input.Month)
		value := consumption.Mul(rate)
		total = total.Add(value)
		allocations = append(allocations, models.Allocation{
			UnitID:      unit.ID,
			Amount:      round2(value),
			Consumption: &consumption,
		})
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = round2(total)
	expense.Energy = &models.EnergyParams{
		Invoice:    ParseAmount(energy.Invoice),
		TotalKWh:   ParseAmount(energy.TotalKWh),
		CostPerKWh: ParseAmount(energy.CostPerKWh),
		UsageRate:  rate,
	}

	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionHalfShare apportions an entered total by statutory fractions
// with the commercial room's half-share rule.
func (e *Engine) apportionHalfShare(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	total := round2(ParseAmount(input.Amount))

	fractions, err := models.FractionsFor(tx, category.ID)
	if err != nil {
		return models.Expense{}, err
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = total
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, e.splitHalfShare(total, fractions))
}

// apportionFraction apportions an entered total by statutory fractions.
// Units without a fraction record get a zero allocation so that every
// unit appears on its statement.
func (e *Engine) apportionFraction(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	total := round2(ParseAmount(input.Amount))

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	fractionMap, err := models.FractionMap(tx, category.ID)
	if err != nil {
		return models.Expense{}, err
	}

	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		allocations = append(allocations, models.Allocation{
			UnitID: unit.ID,
			Amount: round2(total.Mul(fractionMap[unit.ID])),
		})
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = total
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionFlat assigns the same entered amount to every unit.
func (e *Engine) apportionFlat(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	amount := round2(ParseAmount(input.Amount))

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	total := decimal.Zero
	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		total = total.Add(amount)
		allocations = append(allocations, models.Allocation{
			UnitID: unit.ID,
			Amount: amount,
		})
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = total
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionManual apportions exactly the entered per-unit amounts.
func (e *Engine) apportionManual(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	total := decimal.Zero
	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		amount := round2(ParseAmount(input.Manual[unit.ID]))
		total = total.Add(amount)
		allocations = append(allocations, models.Allocation{
			UnitID: unit.ID,
			Amount: amount,
		})
	}

	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = total
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// apportionRecordOnly records the total without creating allocations.
func (e *Engine) apportionRecordOnly(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = round2(ParseAmount(input.Amount))
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	return expense, models.ClearAllocations(tx, expense.ID)
}

// apportionSplit splits the entered line items into an included and an
// excluded bucket. The included bucket stays on the category, the
// excluded one is booked on the sibling category. Each bucket is
// apportioned by its own fraction map, a bucket without fraction records
// is split evenly across all units.
func (e *Engine) apportionSplit(tx *gorm.DB, category models.Category, input ExpenseInput) (models.Expense, error) {
	var included, excluded []models.LineItem
	totalIncluded := decimal.Zero
	totalExcluded := decimal.Zero

	for _, item := range input.LineItems {
		lineItem := models.LineItem{
			Supplier:          item.Supplier,
			Description:       item.Description,
			Number:            item.Number,
			Amount:            ParseAmount(item.Amount),
			ExcludeCommercial: item.ExcludeCommercial,
		}

		if item.ExcludeCommercial {
			totalExcluded = totalExcluded.Add(lineItem.Amount)
			excluded = append(excluded, lineItem)
		} else {
			totalIncluded = totalIncluded.Add(lineItem.Amount)
			included = append(included, lineItem)
		}
	}

	units, err := models.Units(tx)
	if err != nil {
		return models.Expense{}, err
	}

	expense, err := e.writeBucket(tx, category, input, round2(totalIncluded), included, units)
	if err != nil {
		return models.Expense{}, err
	}

	if category.SiblingID != nil {
		var sibling models.Category
		err = tx.First(&sibling, *category.SiblingID).Error
		if err != nil {
			return models.Expense{}, err
		}

		_, err = e.writeBucket(tx, sibling, input, round2(totalExcluded), excluded, units)
		if err != nil {
			return models.Expense{}, err
		}
	} else if len(excluded) > 0 {
		e.log.Warn().Str("category", category.Name).Msg("line items excluded from the commercial room, but no sibling category is configured")
	}

	return expense, nil
}

// writeBucket persists one bucket of a split expense: the expense row,
// its line items and its allocations.
func (e *Engine) writeBucket(tx *gorm.DB, category models.Category, input ExpenseInput, total decimal.Decimal, items []models.LineItem, units []models.Unit) (models.Expense, error) {
	expense, err := upsertExpenseRow(tx, category, input)
	if err != nil {
		return models.Expense{}, err
	}

	expense.TotalAmount = total
	err = saveExpense(tx, &expense)
	if err != nil {
		return models.Expense{}, err
	}

	err = models.ReplaceLineItems(tx, expense.ID, items)
	if err != nil {
		return models.Expense{}, err
	}

	fractionMap, err := models.FractionMap(tx, category.ID)
	if err != nil {
		return models.Expense{}, err
	}

	unitCount := decimal.NewFromInt(int64(len(units)))

	allocations := make([]models.Allocation, 0, len(units))
	for _, unit := range units {
		var amount decimal.Decimal
		if len(fractionMap) > 0 {
			amount = round2(total.Mul(fractionMap[unit.ID]))
		} else {
			amount = round2(safeDiv(total, unitCount))
		}

		allocations = append(allocations, models.Allocation{
			UnitID: unit.ID,
			Amount: amount,
		})
	}

	return expense, models.ReplaceAllocations(tx, expense.ID, allocations)
}

// writeReadings upserts a batch of entered readings.
func (e *Engine) writeReadings(tx *gorm.DB, categoryID uuid.UUID, month types.Month, readings []ReadingInput) error {
	for _, reading := range readings {
		meter := reading.Meter
		if meter == 0 {
			meter = models.MeterOne
		}

		err := models.UpsertReading(tx, categoryID, reading.UnitID, month, meter, ParseAmount(reading.Value))
		if err != nil {
			return err
		}
	}

	return nil
}
