// Package shop defines the purchasable item catalog.
package shop

// ItemID identifies a shop item.
type ItemID string

const (
	// ItemHint reveals the correct option of the current quiz question.
	ItemHint ItemID = "hint"
)

// Item holds the configuration for one shop item.
type Item struct {
	ID          ItemID
	Name        string
	Emoji       string
	Price       int64
	Description string
}

// Items contains all available shop items. New items only need an entry
// here and a consumer.
var Items = map[ItemID]Item{
	ItemHint: {
		ID:          ItemHint,
		Name:        "Practice hint",
		Emoji:       "💡",
		Price:       20,
		Description: "Reveals the right answer on a quiz question",
	},
}

// AllItems returns the catalog in display order.
func AllItems() []Item {
	order := []ItemID{ItemHint}

	items := make([]Item, 0, len(order))
	for _, id := range order {
		if item, ok := Items[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// GetItem returns the item config for the given id.
func GetItem(id ItemID) (Item, bool) {
	item, ok := Items[id]
	return item, ok
}
