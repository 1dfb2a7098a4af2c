package core

import "fmt"

// Totals is the canonical tablet count a submission represents.
type Totals struct {
	Good    int `json:"good"`
	Damaged int `json:"damaged"`
}

// CalculateTotals converts raw submission fields into the canonical tablet total.
// It is the only place totals are derived; matching, aggregation, recalculation,
// reports and exports all go through it.
//
// cardsPerTurn is the resolved machine value (or the process-wide default) and is
// only consulted by the machine turn fallback.
func CalculateTotals(c SubmissionCounts, product ProductConfig, cardsPerTurn int) (Totals, error) {
	if c.DisplaysMade < 0 || c.PacksRemaining < 0 || c.LooseTablets < 0 || c.DamagedTablets < 0 {
		return Totals{}, fmt.Errorf("count fields cannot be negative")
	}

	switch c.Kind {
	case KindPackaged:
		if product.PackagesPerDisplay <= 0 {
			return Totals{}, &ConfigError{Product: product.ProductName, Field: "packages_per_display"}
		}
		if product.TabletsPerPackage <= 0 {
			return Totals{}, &ConfigError{Product: product.ProductName, Field: "tablets_per_package"}
		}
		good := c.DisplaysMade*product.PackagesPerDisplay*product.TabletsPerPackage +
			c.PacksRemaining*product.TabletsPerPackage +
			c.LooseTablets
		return Totals{Good: good, Damaged: c.DamagedTablets}, nil

	case KindBag:
		return Totals{Good: c.LooseTablets}, nil

	case KindMachine:
		// Older rows predate tablets_pressed_into_cards, hence the fallbacks.
		if c.TabletsPressedIntoCards != nil {
			if *c.TabletsPressedIntoCards < 0 {
				return Totals{}, fmt.Errorf("tablets pressed into cards cannot be negative")
			}
			return Totals{Good: *c.TabletsPressedIntoCards, Damaged: c.DamagedTablets}, nil
		}
		if c.LooseTablets > 0 {
			return Totals{Good: c.LooseTablets, Damaged: c.DamagedTablets}, nil
		}
		if c.Turns == nil || *c.Turns == 0 {
			return Totals{Damaged: c.DamagedTablets}, nil
		}
		if *c.Turns < 0 {
			return Totals{}, fmt.Errorf("turns cannot be negative")
		}
		if cardsPerTurn <= 0 {
			return Totals{}, &ConfigError{Product: product.ProductName, Field: "cards_per_turn"}
		}
		if product.TabletsPerPackage <= 0 {
			return Totals{}, &ConfigError{Product: product.ProductName, Field: "tablets_per_package"}
		}
		return Totals{Good: *c.Turns * cardsPerTurn * product.TabletsPerPackage, Damaged: c.DamagedTablets}, nil
	}

	return Totals{}, fmt.Errorf("unknown submission kind %q", c.Kind)
}

// affectsProduction reports whether a kind's totals are aggregated onto PO lines.
// Bag counts are physical recounts and never imply new production.
func affectsProduction(k SubmissionKind) bool {
	return k == KindPackaged || k == KindMachine
}
