// Package shipping quotes flat-rate shipping from a region lookup table.
package shipping

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

// Estimate is a quoted shipping option. Price is in whole CLP pesos.
type Estimate struct {
	Price   int64  `json:"price"`
	Label   string `json:"label"`
	Carrier string `json:"carrier"`
	ETA     string `json:"eta"`
	MinDays int    `json:"min_days"`
	MaxDays int    `json:"max_days"`
	Free    bool   `json:"free"`
}

// Estimator applies a RateTable. It never fails.
type Estimator struct {
	table RateTable
}

// NewEstimator builds an estimator over table; an empty table falls back to
// DefaultRateTable.
func NewEstimator(table *RateTable) *Estimator {
	if table == nil {
		def := DefaultRateTable()
		table = &def
	}
	return &Estimator{table: *table}
}

// Table returns the active rate table.
func (e *Estimator) Table() RateTable {
	return e.table
}

// Estimate quotes shipping for addr given the order subtotal.
func (e *Estimator) Estimate(addr types.ShippingAddress, subtotal int64) Estimate {
	t := e.table
	if subtotal >= t.FreeThreshold {
		return t.build(t.Free, true)
	}

	region := strings.ToLower(strings.TrimSpace(addr.Region))
	for _, zone := range t.Zones {
		if zone.Match != "" && strings.Contains(region, strings.ToLower(zone.Match)) {
			return t.build(zone.Rate, false)
		}
	}
	return t.build(t.Default, false)
}

// EstimateFor quotes only when addr is resolved; nil means "no address yet".
func (e *Estimator) EstimateFor(addr *types.ShippingAddress, subtotal int64) *Estimate {
	if !addr.IsResolved() {
		return nil
	}
	est := e.Estimate(*addr, subtotal)
	return &est
}

func (t RateTable) build(rate Rate, free bool) Estimate {
	price := rate.Price
	if free {
		price = 0
	}
	carrier := rate.Carrier
	if carrier == "" {
		carrier = t.Carrier
	}
	return Estimate{
		Price:   price,
		Label:   rate.Label,
		Carrier: carrier,
		ETA:     formatETA(rate.MinDays, rate.MaxDays),
		MinDays: rate.MinDays,
		MaxDays: rate.MaxDays,
		Free:    free,
	}
}

func formatETA(minDays, maxDays int) string {
	if minDays == maxDays {
		return fmt.Sprintf("%d días hábiles", minDays)
	}
	return fmt.Sprintf("%d-%d días hábiles", minDays, maxDays)
}
