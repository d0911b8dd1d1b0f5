package model

type Size string

const (
	SizeSmall  Size = "SMALL"
	SizeMedium Size = "MEDIUM"
	SizeLarge  Size = "LARGE"
)

// Sizes in display order.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

func (s Size) Valid() bool {
	return s == SizeSmall || s == SizeMedium || s == SizeLarge
}

// MenuItem belongs to a category; the cafe is reached through it.
// Price is used when HasSizes is false, Prices otherwise.
type MenuItem struct {
	Base
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId" gorm:"size:36;index;not null"`
	Category    *Category `json:"category,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	HasSizes    bool      `json:"hasSizes"`
	Price       *float64  `json:"price"`
	Image       string    `json:"image"`
	IsAvailable bool      `json:"isAvailable"`
	Prices      []Price   `json:"prices" gorm:"constraint:OnDelete:CASCADE"`
}

type Price struct {
	Base
	MenuItemID string  `json:"menuItemId" gorm:"size:36;not null;uniqueIndex:idx_price_item_size"`
	Size       Size    `json:"size" gorm:"size:10;not null;uniqueIndex:idx_price_item_size"`
	Price      float64 `json:"price" gorm:"not null"`
}
