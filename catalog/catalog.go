// Package catalog holds the static list of redeemable reward items.
//
// The catalog is defined at deployment and never mutated at runtime:
// redemption requests consult it, nothing writes to it.
package catalog

// Item is one redeemable reward.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointsCost  int64  `json:"pointsCost"`
	Icon        string `json:"icon"`
}

// Catalog is a read-only, ordered collection of reward items.
type Catalog struct {
	items []Item
	byID  map[string]Item
}

// New builds a catalog from the given items, preserving their order.
func New(items []Item) *Catalog {
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return &Catalog{items: items, byID: byID}
}

// Default returns the deployed reward catalog.
func Default() *Catalog {
	return New([]Item{
		{
			ID:          "rent-discount-50",
			Name:        "$50 Rent Discount",
			Description: "Apply $50 off your next rent payment",
			PointsCost:  200,
			Icon:        "🏠",
		},
		{
			ID:          "amazon-25",
			Name:        "$25 Amazon Gift Card",
			Description: "Redeem for Amazon shopping",
			PointsCost:  100,
			Icon:        "🎁",
		},
		{
			ID:          "utility-credit-30",
			Name:        "$30 Utility Credit",
			Description: "Credit towards your utility bills",
			PointsCost:  120,
			Icon:        "⚡",
		},
		{
			ID:          "amazon-50",
			Name:        "$50 Amazon Gift Card",
			Description: "Redeem for Amazon shopping",
			PointsCost:  200,
			Icon:        "🎁",
		},
		{
			ID:          "rent-discount-100",
			Name:        "$100 Rent Discount",
			Description: "Apply $100 off your next rent payment",
			PointsCost:  400,
			Icon:        "🏠",
		},
		{
			ID:          "amazon-100",
			Name:        "$100 Amazon Gift Card",
			Description: "Redeem for Amazon shopping",
			PointsCost:  400,
			Icon:        "🎁",
		},
	})
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Items returns the catalog entries in deployment order.
func (c *Catalog) Items() []Item {
	result := make([]Item, len(c.items))
	copy(result, c.items)
	return result
}
