package rateio

import (
	"strings"

	"github.com/condominio-rateio/engine/internal/models"
	"github.com/ryanuber/go-glob"
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// distinguished returns the index of the commercial room's fraction
// record, matched by unit name against the configured glob pattern.
func (e *Engine) distinguished(fractions []models.Fraction) (int, bool) {
	for i, fraction := range fractions {
		if glob.Glob(e.commercialPattern, strings.ToLower(fraction.Unit.Name)) {
			return i, true
		}
	}

	return 0, false
}

// splitHalfShare computes the canonical half-share allocation: the
// commercial room pays half its statutory fraction of the total, the
// remainder is apportioned to the other units by their own normalized
// fractions. The absorbed half is not reallocated and the remaining
// fractions are not rescaled to sum to one.
//
// Without a commercial room among the fraction records the full
// fraction map is applied and a warning is logged.
func (e *Engine) splitHalfShare(total decimal.Decimal, fractions []models.Fraction) []models.Allocation {
	allocations := make([]models.Allocation, 0, len(fractions))

	index, ok := e.distinguished(fractions)
	if !ok {
		e.log.Warn().
			Str("pattern", e.commercialPattern).
			Msg("no commercial room among the fraction records, allocating full fractions")

		for _, fraction := range fractions {
			allocations = append(allocations, models.Allocation{
				UnitID: fraction.UnitID,
				Amount: round2(total.Mul(fraction.Normalized())),
			})
		}

		return allocations
	}

	share := round2(total.Mul(fractions[index].Normalized()).Div(two))
	remainder := total.Sub(share)

	for i, fraction := range fractions {
		amount := share
		if i != index {
			amount = round2(remainder.Mul(fraction.Normalized()))
		}

		allocations = append(allocations, models.Allocation{
			UnitID: fraction.UnitID,
			Amount: amount,
		})
	}

	return allocations
}
