// Package report assembles per-unit billing statements from computed
// allocations. It produces plain data, rendering is up to the caller.
package report

import (
	"sort"

	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// Line is one expense share on a unit's statement.
type Line struct {
	CategoryID  uuid.UUID        `json:"categoryId"`
	Category    string           `json:"category"`
	Amount      decimal.Decimal  `json:"amount"`
	Consumption *decimal.Decimal `json:"consumption,omitempty"` // m³ or kWh for metered categories
}

// Statement is the billing statement of one unit for one period.
type Statement struct {
	UnitID uuid.UUID       `json:"unitId"`
	Unit   string          `json:"unit"`
	Month  types.Month     `json:"month"`
	Lines  []Line          `json:"lines"`
	Total  decimal.Decimal `json:"total"`
}

// ForUnit assembles the statement of a unit for a month. Lines follow
// the category display ordering, then the category name.
func ForUnit(db *gorm.DB, unitID uuid.UUID, month types.Month) (Statement, error) {
	var unit models.Unit
	err := db.First(&unit, unitID).Error
	if err != nil {
		return Statement{}, err
	}

	var allocations []models.Allocation
	err = db.Preload("Expense.Category").
		Joins("JOIN expenses ON expenses.id = allocations.expense_id AND expenses.deleted_at IS NULL").
		Where("allocations.unit_id = ?", unitID).
		Where("expenses.month = ?", month).
		Find(&allocations).Error
	if err != nil {
		return Statement{}, err
	}

	sort.SliceStable(allocations, func(i, j int) bool {
		a, b := allocations[i].Expense.Category, allocations[j].Expense.Category
		if a.Ordering != b.Ordering {
			return a.Ordering < b.Ordering
		}
		return a.Name < b.Name
	})

	statement := Statement{
		UnitID: unit.ID,
		Unit:   unit.Name,
		Month:  month,
		Lines:  make([]Line, 0, len(allocations)),
		Total:  decimal.Zero,
	}

	for _, allocation := range allocations {
		statement.Lines = append(statement.Lines, Line{
			CategoryID:  allocation.Expense.CategoryID,
			Category:    allocation.Expense.Category.Name,
			Amount:      allocation.Amount,
			Consumption: allocation.Consumption,
		})
		statement.Total = statement.Total.Add(allocation.Amount)
	}

	return statement, nil
}

// ForAllUnits assembles the statements of all units for a month.
func ForAllUnits(db *gorm.DB, month types.Month) ([]Statement, error) {
	units, err := models.Units(db)
	if err != nil {
		return nil, err
	}

	statements := make([]Statement, 0, len(units))
	for _, unit := range units {
		statement, err := ForUnit(db, unit.ID, month)
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}

	return statements, nil
}

// FormatBRL formats an amount for display on a statement, e.g.
// "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	printer := message.NewPrinter(language.BrazilianPortuguese)
	value, _ := amount.Float64()
	return printer.Sprintf("%v %.2f", currency.Symbol(currency.BRL), value)
}
