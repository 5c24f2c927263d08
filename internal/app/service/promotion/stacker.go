package promotion

import (
	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/money"
	"github.com/tradeup/creditengine/pkg/types"
)

// Application is one promotion's contribution to a transaction.
type Application struct {
	Promotion  *models.Promotion
	BonusCents int64
}

// Stack walks the matched promotions in priority order and decides
// which actually apply. The first promotion always applies; a later one
// applies only if it is stackable and everything already applied is
// stackable too. Applying a non-stackable promotion ends the walk.
func Stack(baseCents int64, ordered []*models.Promotion) []Application {
	var applied []Application

	for _, p := range ordered {
		if len(applied) > 0 && !p.Stackable {
			continue
		}

		applied = append(applied, Application{
			Promotion:  p,
			BonusCents: contribution(baseCents, p),
		})

		if !p.Stackable {
			// A non-stackable application terminates the walk; it can
			// only ever be the first one applied.
			break
		}
	}
	return applied
}

// TotalBonus sums the contributions of the applied promotions.
func TotalBonus(apps []Application) int64 {
	var total int64
	for _, a := range apps {
		total += a.BonusCents
	}
	return total
}

func contribution(baseCents int64, p *models.Promotion) int64 {
	switch p.Type {
	case types.PromoTypeTradeInBonus, types.PromoTypePurchaseCashback:
		return money.Mul(baseCents, p.BonusPct())
	case types.PromoTypeFlatBonus:
		return p.BonusFlatCents()
	case types.PromoTypeMultiplier:
		// Expressed as a bonus on top of base: 2x yields base itself.
		return money.Mul(baseCents, p.Multiplier()-1)
	default:
		return 0
	}
}
