package model

// Listing carries the facts the engine needs about one of our listings.
// Supplied by the inventory collaborator; the engine never mutates it.
type Listing struct {
	ID           string  `json:"id"`
	ASIN         string  `json:"asin"`
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	CurrentPrice float64 `json:"current_price"`
	CostPrice    float64 `json:"cost_price"`
	MinPrice     float64 `json:"min_price,omitempty"`
	MaxPrice     float64 `json:"max_price,omitempty"`

	InventoryLevel int     `json:"inventory_level,omitempty"`
	SalesVelocity  float64 `json:"sales_velocity,omitempty"` // units per day
}

// MarginPct returns the listing's current margin as a percentage of price.
// Zero when the price is unset.
func (l Listing) MarginPct() float64 {
	if l.CurrentPrice <= 0 {
		return 0
	}
	return (l.CurrentPrice - l.CostPrice) / l.CurrentPrice * 100
}
