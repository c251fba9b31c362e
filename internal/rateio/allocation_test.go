package rateio_test

import (
	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/rateio"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// allocationFor returns the allocation of a unit for an expense.
func (suite *TestSuiteStandard) allocationFor(expenseID, unitID uuid.UUID) models.Allocation {
	allocations, err := suite.engine.Allocations(expenseID)
	if err != nil {
		suite.Assert().FailNow("Allocations could not be loaded", "Error: %s", err)
	}

	for _, allocation := range allocations {
		if allocation.UnitID == unitID {
			return allocation
		}
	}

	suite.Assert().FailNowf("No allocation found", "Unit: %s, Expense: %s", unitID, expenseID)
	return models.Allocation{}
}

func (suite *TestSuiteStandard) TestEditAllocationResyncsTotal() {
	repairs := suite.createTestCategory(models.Category{Name: "Manutenção", Kind: models.KindManual})
	first := suite.createTestUnit(models.Unit{Name: "Apto 101"})
	second := suite.createTestUnit(models.Unit{Name: "Apto 102"})

	expense, err := suite.engine.UpsertExpense(rateio.ExpenseInput{
		CategoryID: repairs.ID,
		Month:      month,
		Manual:     map[uuid.UUID]string{first.ID: "10", second.ID: "20"},
	})
	assert.Nil(suite.T(), err)

	allocation := suite.allocationFor(expense.ID, first.ID)

	err = suite.engine.EditAllocation(allocation.ID, decimal.RequireFromString("50"))
	assert.Nil(suite.T(), err)

	suite.assertAmount(expense.ID, first.ID, "50")

	// The total follows the allocation sum
	var reloaded models.Expense
	assert.Nil(suite.T(), models.DB.First(&reloaded, expense.ID).Error)
	assert.True(suite.T(), reloaded.TotalAmount.Equal(decimal.RequireFromString("70")), "total is %s, expected 70", reloaded.TotalAmount)
}

func (suite *TestSuiteStandard) TestEditAllocationNotFound() {
	err := suite.engine.EditAllocation(uuid.New(), decimal.RequireFromString("10"))
	assert.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestEditAllocationUpdatesReserveFund() {
	fund, _, _, _ := suite.createReserveFixture()
	cleaning := suite.createTestCategory(models.Category{Name: "Serviço - Faxina", Kind: models.KindFraction, BaseForReserve: true})
	units, err := models.Units(models.DB)
	assert.Nil(suite.T(), err)

	expense, err := suite.engine.UpsertExpense(rateio.ExpenseInput{CategoryID: cleaning.ID, Month: month, Amount: "1000"})
	assert.Nil(suite.T(), err)

	// No fraction records on the base category: every allocation starts
	// at zero while the entered total is 1000
	allocation := suite.allocationFor(expense.ID, units[0].ID)
	err = suite.engine.EditAllocation(allocation.ID, decimal.RequireFromString("100"))
	assert.Nil(suite.T(), err)

	// The resynced base total of 100 feeds straight into the fund
	var reloaded models.Expense
	assert.Nil(suite.T(), models.DB.First(&reloaded, expense.ID).Error)
	assert.True(suite.T(), reloaded.TotalAmount.Equal(decimal.RequireFromString("100")), "total is %s, expected 100", reloaded.TotalAmount)

	fundExpense, ok := models.LatestExpense(models.DB, fund.ID, month)
	assert.True(suite.T(), ok)
	assert.True(suite.T(), fundExpense.TotalAmount.Equal(decimal.RequireFromString("10")), "fund is %s, expected 10", fundExpense.TotalAmount)
}

func (suite *TestSuiteStandard) TestClearAllocations() {
	fee := suite.createTestCategory(models.Category{Name: "Taxa Lixo", Kind: models.KindFlatPerUnit})
	_ = suite.createTestUnit(models.Unit{Name: "Apto 101"})
	_ = suite.createTestUnit(models.Unit{Name: "Apto 102"})

	expense, err := suite.engine.UpsertExpense(rateio.ExpenseInput{CategoryID: fee.ID, Month: month, Amount: "25"})
	assert.Nil(suite.T(), err)

	err = suite.engine.ClearAllocations(expense.ID)
	assert.Nil(suite.T(), err)

	allocations, err := suite.engine.Allocations(expense.ID)
	assert.Nil(suite.T(), err)
	assert.Len(suite.T(), allocations, 0)

	var reloaded models.Expense
	assert.Nil(suite.T(), models.DB.First(&reloaded, expense.ID).Error)
	assert.True(suite.T(), reloaded.TotalAmount.IsZero(), "total is %s, expected 0", reloaded.TotalAmount)
}

func (suite *TestSuiteStandard) TestClearAllocationsUpdatesReserveFund() {
	fund, _, _, _ := suite.createReserveFixture()
	cleaning := suite.createTestCategory(models.Category{Name: "Serviço - Faxina", Kind: models.KindFraction, BaseForReserve: true})

	expense, err := suite.engine.UpsertExpense(rateio.ExpenseInput{CategoryID: cleaning.ID, Month: month, Amount: "1000"})
	assert.Nil(suite.T(), err)

	err = suite.engine.ClearAllocations(expense.ID)
	assert.Nil(suite.T(), err)

	fundExpense, ok := models.LatestExpense(models.DB, fund.ID, month)
	assert.True(suite.T(), ok)
	assert.True(suite.T(), fundExpense.TotalAmount.IsZero(), "fund is %s, expected 0", fundExpense.TotalAmount)
}
