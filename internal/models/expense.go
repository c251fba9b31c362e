package models

import (
	"strings"

	"github.com/condominio-rateio/engine/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WaterParams are the raw invoice parameters of a water expense.
type WaterParams struct {
	Invoice    decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // R$ of the water invoice
	TotalM3    decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // declared m³ total, kept for reference only
	PricePerM3 decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // computed R$/m³
}

// GasParams are the raw parameters of a gas expense.
type GasParams struct {
	Recharge   decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // R$ of the gas recharge
	Kg         decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	M3PerKg    decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	PricePerM3 decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // declared R$/m³ tariff
}

// EnergyParams are the raw parameters of a salon energy expense.
type EnergyParams struct {
	Invoice    decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // R$ of the energy invoice
	TotalKWh   decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	CostPerKWh decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // R$ the utility charges per kWh
	UsageRate  decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // R$ billed per consumed kWh
}

// Expense is the billable total of one category for one billing period.
// The parameter records are a closed set; only the one matching the
// category kind is populated.
type Expense struct {
	DefaultModel
	CategoryID  uuid.UUID       `gorm:"index"`
	Category    Category        `json:"-"`
	Month       types.Month     `gorm:"index"`
	TotalAmount decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Note        string

	Water  *WaterParams  `gorm:"embedded;embeddedPrefix:water_"`
	Gas    *GasParams    `gorm:"embedded;embeddedPrefix:gas_"`
	Energy *EnergyParams `gorm:"embedded;embeddedPrefix:energy_"`
}

func (e *Expense) BeforeSave(_ *gorm.DB) error {
	e.Note = strings.TrimSpace(e.Note)
	return nil
}

// LineItem is one invoice line of a split expense. Lines flagged
// ExcludeCommercial are booked on the sibling category.
type LineItem struct {
	DefaultModel
	ExpenseID         uuid.UUID `gorm:"index"`
	Supplier          string
	Description       string
	Number            string
	Amount            decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	ExcludeCommercial bool
}

// LatestExpense returns the most recently inserted expense of a category
// for a month. When duplicates exist, the newest row wins.
func LatestExpense(db *gorm.DB, categoryID uuid.UUID, month types.Month) (Expense, bool) {
	var expense Expense
	err := db.Where("category_id = ?", categoryID).
		Where("month = ?", month).
		Order("created_at DESC, id DESC").
		First(&expense).Error

	return expense, err == nil
}

// ExpensesFor returns all expenses of a category for a month.
func ExpensesFor(db *gorm.DB, categoryID uuid.UUID, month types.Month) ([]Expense, error) {
	var expenses []Expense
	err := db.Where("category_id = ?", categoryID).
		Where("month = ?", month).
		Find(&expenses).Error

	return expenses, err
}

// SumBaseTotals sums the totals of all base-category expenses for a month.
func SumBaseTotals(db *gorm.DB, month types.Month) (decimal.Decimal, error) {
	ids, err := BaseCategoryIDs(db)
	if err != nil {
		return decimal.Zero, err
	}

	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	var expenses []Expense
	err = db.Where("category_id IN ?", ids).
		Where("month = ?", month).
		Find(&expenses).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, expense := range expenses {
		total = total.Add(expense.TotalAmount)
	}

	return total, nil
}

// LineItemsFor returns the line items of an expense.
func LineItemsFor(db *gorm.DB, expenseID uuid.UUID) ([]LineItem, error) {
	var items []LineItem
	err := db.Where("expense_id = ?", expenseID).Find(&items).Error
	return items, err
}

// ReplaceLineItems rewrites the line items of an expense as a whole.
func ReplaceLineItems(db *gorm.DB, expenseID uuid.UUID, items []LineItem) error {
	err := db.Unscoped().Where("expense_id = ?", expenseID).Delete(&LineItem{}).Error
	if err != nil {
		return err
	}

	for i := range items {
		items[i].ExpenseID = expenseID
		if err := db.Create(&items[i]).Error; err != nil {
			return err
		}
	}

	return nil
}
