package models_test

import (
	"time"

	"github.com/condominio-rateio/engine/internal/models"
	"github.com/condominio-rateio/engine/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) TestConsumption() {
	unit := suite.createTestUnit(models.Unit{Name: "Apto 101"})
	category := suite.createTestCategory(models.Category{Name: "Água", Kind: models.KindMetered})

	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.May),
		Value:      decimal.RequireFromString("100"),
	})
	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.June),
		Value:      decimal.RequireFromString("112.5"),
	})

	consumption := models.Consumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.June), models.MeterOne)
	assert.True(suite.T(), consumption.Equal(decimal.RequireFromString("12.5")), "consumption is %s, expected 12.5", consumption)
}

func (suite *TestSuiteStandard) TestConsumptionNeverNegative() {
	unit := suite.createTestUnit(models.Unit{Name: "Apto 102"})
	category := suite.createTestCategory(models.Category{Name: "Gás", Kind: models.KindMetered})

	// Current reading below the previous one, e.g. after a meter swap
	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.May),
		Value:      decimal.RequireFromString("500"),
	})
	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.June),
		Value:      decimal.RequireFromString("3"),
	})

	consumption := models.Consumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.June), models.MeterOne)
	assert.True(suite.T(), consumption.IsZero(), "consumption is %s, expected 0", consumption)
}

func (suite *TestSuiteStandard) TestConsumptionMissingReading() {
	unit := suite.createTestUnit(models.Unit{})
	category := suite.createTestCategory(models.Category{Kind: models.KindMetered})

	// No readings at all
	consumption := models.Consumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.June), models.MeterOne)
	assert.True(suite.T(), consumption.IsZero())

	// Current reading without a previous one
	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.June),
		Value:      decimal.RequireFromString("100"),
	})

	consumption = models.Consumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.June), models.MeterOne)
	assert.True(suite.T(), consumption.IsZero())
}

func (suite *TestSuiteStandard) TestConsumptionYearWraparound() {
	unit := suite.createTestUnit(models.Unit{})
	category := suite.createTestCategory(models.Category{Kind: models.KindMetered})

	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2024, time.December),
		Value:      decimal.RequireFromString("80"),
	})
	_ = suite.createTestReading(models.Reading{
		CategoryID: category.ID,
		UnitID:     unit.ID,
		Month:      types.NewMonth(2025, time.January),
		Value:      decimal.RequireFromString("95"),
	})

	consumption := models.Consumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.January), models.MeterOne)
	assert.True(suite.T(), consumption.Equal(decimal.RequireFromString("15")), "consumption is %s, expected 15", consumption)
}

func (suite *TestSuiteStandard) TestUpsertReadingReplaces() {
	unit := suite.createTestUnit(models.Unit{})
	category := suite.createTestCategory(models.Category{Kind: models.KindMetered})
	month := types.NewMonth(2025, time.June)

	err := models.UpsertReading(models.DB, category.ID, unit.ID, month, models.MeterOne, decimal.RequireFromString("10"))
	assert.Nil(suite.T(), err)

	err = models.UpsertReading(models.DB, category.ID, unit.ID, month, models.MeterOne, decimal.RequireFromString("20"))
	assert.Nil(suite.T(), err)

	reading, ok := models.ReadingFor(models.DB, category.ID, unit.ID, month, models.MeterOne)
	assert.True(suite.T(), ok)
	assert.True(suite.T(), reading.Value.Equal(decimal.RequireFromString("20")))

	var count int64
	models.DB.Model(&models.Reading{}).Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *TestSuiteStandard) TestDualMeterConsumption() {
	unit := suite.createTestUnit(models.Unit{})
	category := suite.createTestCategory(models.Category{Name: "Energia Salão", Kind: models.KindDualMeter})

	for meter, values := range map[uint8][2]string{
		models.MeterOne: {"1000", "1150"},
		models.MeterTwo: {"500", "550"},
	} {
		_ = suite.createTestReading(models.Reading{
			CategoryID: category.ID,
			UnitID:     unit.ID,
			Month:      types.NewMonth(2025, time.May),
			Meter:      meter,
			Value:      decimal.RequireFromString(values[0]),
		})
		_ = suite.createTestReading(models.Reading{
			CategoryID: category.ID,
			UnitID:     unit.ID,
			Month:      types.NewMonth(2025, time.June),
			Meter:      meter,
			Value:      decimal.RequireFromString(values[1]),
		})
	}

	consumption := models.DualMeterConsumption(models.DB, category.ID, unit.ID, types.NewMonth(2025, time.June))
	assert.True(suite.T(), consumption.Equal(decimal.RequireFromString("200")), "consumption is %s, expected 200", consumption)
}

func (suite *TestSuiteStandard) TestAggregateConsumptionIncludesAllUnits() {
	category := suite.createTestCategory(models.Category{Kind: models.KindDualMeter})
	month := types.NewMonth(2025, time.June)

	// Two units, the second has no fraction records anywhere. Both
	// count towards the aggregate.
	for _, name := range []string{"Apto 201", "Sala Comercial"} {
		unit := suite.createTestUnit(models.Unit{Name: name})

		_ = suite.createTestReading(models.Reading{
			CategoryID: category.ID,
			UnitID:     unit.ID,
			Month:      month.Previous(),
			Value:      decimal.RequireFromString("100"),
		})
		_ = suite.createTestReading(models.Reading{
			CategoryID: category.ID,
			UnitID:     unit.ID,
			Month:      month,
			Value:      decimal.RequireFromString("130"),
		})
	}

	aggregate, err := models.AggregateConsumption(models.DB, category.ID, month)
	assert.Nil(suite.T(), err)
	assert.True(suite.T(), aggregate.Equal(decimal.RequireFromString("60")), "aggregate is %s, expected 60", aggregate)
}

func (suite *TestSuiteStandard) TestClearReadings() {
	unit := suite.createTestUnit(models.Unit{})
	category := suite.createTestCategory(models.Category{Kind: models.KindMetered})
	other := suite.createTestCategory(models.Category{Kind: models.KindMetered})
	month := types.NewMonth(2025, time.June)

	_ = suite.createTestReading(models.Reading{CategoryID: category.ID, UnitID: unit.ID, Month: month, Value: decimal.RequireFromString("1")})
	_ = suite.createTestReading(models.Reading{CategoryID: other.ID, UnitID: unit.ID, Month: month, Value: decimal.RequireFromString("2")})

	err := models.ClearReadings(models.DB, category.ID, month)
	assert.Nil(suite.T(), err)

	_, ok := models.ReadingFor(models.DB, category.ID, unit.ID, month, models.MeterOne)
	assert.False(suite.T(), ok, "cleared reading still present")

	_, ok = models.ReadingFor(models.DB, other.ID, unit.ID, month, models.MeterOne)
	assert.True(suite.T(), ok, "reading of another category was cleared")
}
